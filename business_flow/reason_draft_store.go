package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"github.com/redis/go-redis/v9"
)

// ReasonKind selects which closed status a reason dialog moves a lead to
type ReasonKind string

const (
	ReasonKindLost ReasonKind = "lost"
	ReasonKindJunk ReasonKind = "junk"
)

// Target returns the status the dialog submits
func (k ReasonKind) Target() (models.LeadStatus, error) {
	switch k {
	case ReasonKindLost:
		return models.LeadStatusLost, nil
	case ReasonKindJunk:
		return models.LeadStatusJunk, nil
	default:
		return "", NewBusinessErrorf("REASON_KIND_INVALID", "Unknown reason dialog kind %q", ErrReasonKindInvalid, k)
	}
}

// ReasonDraft is an open Lost/Junk dialog
type ReasonDraft struct {
	LeadID     string            `json:"lead_id"`
	Kind       ReasonKind        `json:"kind"`
	FromStatus models.LeadStatus `json:"from_status"`
	Reason     *string           `json:"reason,omitempty"`
	OpenedAt   time.Time         `json:"opened_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// ReasonDraftStore keeps dialog drafts between requests
type ReasonDraftStore interface {
	Get(ctx context.Context, actor, leadID string) (*ReasonDraft, error)
	Put(ctx context.Context, actor string, draft *ReasonDraft, ttl time.Duration) error
	Delete(ctx context.Context, actor, leadID string) error
}

func redisKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

func reasonDraftKey(prefix, actor, leadID string) string {
	return redisKey(prefix, fmt.Sprintf("%s:%s:%s", utils.ReasonDraftCacheKey, strings.ToLower(actor), leadID))
}

// RedisReasonDraftStore stores drafts as JSON with a TTL
type RedisReasonDraftStore struct {
	rc     *redis.Client
	prefix string
}

func NewRedisReasonDraftStore(rc *redis.Client, prefix string) *RedisReasonDraftStore {
	return &RedisReasonDraftStore{rc: rc, prefix: prefix}
}

func (s *RedisReasonDraftStore) Get(ctx context.Context, actor, leadID string) (*ReasonDraft, error) {
	bs, err := s.rc.Get(ctx, reasonDraftKey(s.prefix, actor, leadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, NewBusinessError("CACHE_NOT_AVAILABLE", "Failed to read reason dialog", errors.Join(ErrCacheNotAvailable, err))
	}

	var draft ReasonDraft
	if err := json.Unmarshal(bs, &draft); err != nil {
		return nil, NewBusinessError("CACHE_NOT_AVAILABLE", "Corrupted reason dialog", err)
	}
	return &draft, nil
}

func (s *RedisReasonDraftStore) Put(ctx context.Context, actor string, draft *ReasonDraft, ttl time.Duration) error {
	bs, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	if err := s.rc.Set(ctx, reasonDraftKey(s.prefix, actor, draft.LeadID), bs, ttl).Err(); err != nil {
		return NewBusinessError("CACHE_NOT_AVAILABLE", "Failed to save reason dialog", errors.Join(ErrCacheNotAvailable, err))
	}
	return nil
}

func (s *RedisReasonDraftStore) Delete(ctx context.Context, actor, leadID string) error {
	if err := s.rc.Del(ctx, reasonDraftKey(s.prefix, actor, leadID)).Err(); err != nil {
		return NewBusinessError("CACHE_NOT_AVAILABLE", "Failed to discard reason dialog", errors.Join(ErrCacheNotAvailable, err))
	}
	return nil
}

// MemoryReasonDraftStore is used when the cache is disabled
type MemoryReasonDraftStore struct {
	mu     sync.Mutex
	drafts map[string]ReasonDraft
	now    func() time.Time
}

func NewMemoryReasonDraftStore() *MemoryReasonDraftStore {
	return &MemoryReasonDraftStore{
		drafts: make(map[string]ReasonDraft),
		now:    utils.UTCNow,
	}
}

func (s *MemoryReasonDraftStore) Get(_ context.Context, actor, leadID string) (*ReasonDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := reasonDraftKey("", actor, leadID)
	draft, ok := s.drafts[key]
	if !ok {
		return nil, nil
	}
	if !draft.ExpiresAt.IsZero() && !s.now().Before(draft.ExpiresAt) {
		delete(s.drafts, key)
		return nil, nil
	}
	return &draft, nil
}

func (s *MemoryReasonDraftStore) Put(_ context.Context, actor string, draft *ReasonDraft, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *draft
	if ttl > 0 {
		stored.ExpiresAt = s.now().Add(ttl)
	}
	s.drafts[reasonDraftKey("", actor, draft.LeadID)] = stored
	return nil
}

func (s *MemoryReasonDraftStore) Delete(_ context.Context, actor, leadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, reasonDraftKey("", actor, leadID))
	return nil
}
