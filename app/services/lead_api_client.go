package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var leadAPIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "lead_api_request_duration_seconds",
	Help:    "Duration of calls to the upstream lead API",
	Buckets: prometheus.DefBuckets,
}, []string{"operation", "status"})

// Upload form field names understood by the lead API
const (
	PaymentDetailsFileField = "paymentDetailsFile"
	BookingFormFileField    = "bookingFormFile"
)

// LeadAPIClient is the remote lead record store
type LeadAPIClient interface {
	ListLeads(ctx context.Context) ([]models.Lead, error)
	GetLead(ctx context.Context, leadID string) (*models.Lead, error)
	CreateLead(ctx context.Context, lead models.Lead) (*models.Lead, error)
	UpdateLead(ctx context.Context, leadID string, lead models.Lead) (*models.Lead, error)
	UpdateLeadWithDocs(ctx context.Context, leadID string, lead models.Lead, files []UploadFile) (*models.Lead, error)
	ConvertWithDocs(ctx context.Context, leadID string, lead models.Lead, files []UploadFile) (*models.Lead, error)
	AdvanceStage(ctx context.Context, leadID, stageID string) error
}

// UploadFile is one binary attached to a multipart lead write
type UploadFile struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// RemoteError is a failed call to the lead API or the document collaborator
type RemoteError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("lead api: %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("lead api: status %d for %s: %s", e.StatusCode, e.Operation, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// ServerMessage returns the message to show the console user
func (e *RemoteError) ServerMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.StatusCode)
}

// NotFound reports whether the upstream answered 404
func (e *RemoteError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

type HTTPLeadAPIClient struct {
	BaseURL         string
	HTTPClient      *http.Client
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
}

func NewLeadAPIClient(baseURL string, timeout, retryMaxElapsed time.Duration) *HTTPLeadAPIClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLeadAPIClient{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		HTTPClient:      &http.Client{Timeout: timeout},
		Timeout:         timeout,
		RetryMaxElapsed: retryMaxElapsed,
	}
}

func (c *HTTPLeadAPIClient) Name() string { return "lead-api" }

// ListLeads fetches the whole collection, accepting grouped and flat shapes
func (c *HTTPLeadAPIClient) ListLeads(ctx context.Context) ([]models.Lead, error) {
	var body []byte
	err := c.retry(ctx, func() error {
		var err error
		body, err = c.do(ctx, "list_leads", http.MethodGet, "/leads", nil, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	leads, err := DecodeLeadCollection(body)
	if err != nil {
		return nil, &RemoteError{Operation: "list_leads", Err: err}
	}
	return leads, nil
}

// GetLead fetches one lead, falling back to the collection when the item endpoint is missing
func (c *HTTPLeadAPIClient) GetLead(ctx context.Context, leadID string) (*models.Lead, error) {
	var body []byte
	err := c.retry(ctx, func() error {
		var err error
		body, err = c.do(ctx, "get_lead", http.MethodGet, "/leads/"+url.PathEscape(leadID), nil, "")
		return err
	})
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) && (re.StatusCode == http.StatusNotFound || re.StatusCode == http.StatusMethodNotAllowed) {
			return c.findInCollection(ctx, leadID)
		}
		return nil, err
	}
	return decodeLead("get_lead", body)
}

func (c *HTTPLeadAPIClient) findInCollection(ctx context.Context, leadID string) (*models.Lead, error) {
	leads, err := c.ListLeads(ctx)
	if err != nil {
		return nil, err
	}
	for i := range leads {
		if leads[i].LeadID == leadID {
			return &leads[i], nil
		}
	}
	return nil, nil
}

// CreateLead posts a new lead
func (c *HTTPLeadAPIClient) CreateLead(ctx context.Context, lead models.Lead) (*models.Lead, error) {
	payload, err := json.Marshal(lead)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "create_lead", http.MethodPost, "/leads", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	return decodeLead("create_lead", body)
}

// UpdateLead replaces the whole record
func (c *HTTPLeadAPIClient) UpdateLead(ctx context.Context, leadID string, lead models.Lead) (*models.Lead, error) {
	payload, err := json.Marshal(lead)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "update_lead", http.MethodPut, "/leads/"+url.PathEscape(leadID), bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}
	return decodeLead("update_lead", body)
}

// UpdateLeadWithDocs replaces the whole record and attaches new documents
func (c *HTTPLeadAPIClient) UpdateLeadWithDocs(ctx context.Context, leadID string, lead models.Lead, files []UploadFile) (*models.Lead, error) {
	return c.multipartWrite(ctx, "update_lead_with_docs", http.MethodPut, "/leads/"+url.PathEscape(leadID), lead, files)
}

// ConvertWithDocs performs the first conversion of a lead
func (c *HTTPLeadAPIClient) ConvertWithDocs(ctx context.Context, leadID string, lead models.Lead, files []UploadFile) (*models.Lead, error) {
	return c.multipartWrite(ctx, "convert_with_docs", http.MethodPost, "/leads/"+url.PathEscape(leadID)+"/convert-with-docs", lead, files)
}

// AdvanceStage moves the lead's pipeline stage pointer
func (c *HTTPLeadAPIClient) AdvanceStage(ctx context.Context, leadID, stageID string) error {
	path := "/leads/" + url.PathEscape(leadID) + "/stage/" + url.PathEscape(stageID)
	return c.retry(ctx, func() error {
		_, err := c.do(ctx, "advance_stage", http.MethodPatch, path, nil, "")
		return err
	})
}

func (c *HTTPLeadAPIClient) multipartWrite(ctx context.Context, op, method, path string, lead models.Lead, files []UploadFile) (*models.Lead, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := writeLeadFields(w, lead); err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Reader == nil {
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.Field, escapeQuotes(f.Filename)))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, fmt.Errorf("failed to read upload %s: %w", f.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	body, err := c.do(ctx, op, method, path, &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return decodeLead(op, body)
}

// writeLeadFields writes every non-null lead attribute as a form field
func writeLeadFields(w *multipart.Writer, lead models.Lead) error {
	raw, err := json.Marshal(lead)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		var value string
		switch v := fields[k].(type) {
		case nil:
			continue
		case string:
			value = v
		case float64:
			value = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			value = strconv.FormatBool(v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			value = string(b)
		}
		if err := w.WriteField(k, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *HTTPLeadAPIClient) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) ([]byte, error) {
	start := time.Now()
	status := "error"
	defer func() {
		leadAPIRequestDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, &RemoteError{Operation: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := BearerTokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Operation: op, Err: err}
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Operation: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Operation: op, StatusCode: resp.StatusCode, Message: extractServerMessage(respBody)}
	}
	return respBody, nil
}

// retry repeats idempotent calls on transport errors and 5xx answers
func (c *HTTPLeadAPIClient) retry(ctx context.Context, fn func() error) error {
	var bo backoff.BackOff = &backoff.StopBackOff{}
	if c.RetryMaxElapsed > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = 200 * time.Millisecond
		exp.MaxElapsedTime = c.RetryMaxElapsed
		bo = exp
	}
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		var re *RemoteError
		if errors.As(err, &re) && re.StatusCode > 0 && re.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// BearerTokenFromContext returns the console user's token forwarded to collaborators
func BearerTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(utils.BearerTokenKey).(string)
	return token
}

type leadGroup struct {
	FormType  string            `json:"formType"`
	StageName string            `json:"stageName"`
	StageID   *string           `json:"stageId"`
	Leads     []json.RawMessage `json:"leads"`
}

// DecodeLeadCollection accepts a flat array, an array of stage groups or either wrapped in {"data": ...}
func DecodeLeadCollection(body []byte) ([]models.Lead, error) {
	body = unwrapData(body)

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("unexpected lead collection shape: %w", err)
	}

	leads := make([]models.Lead, 0, len(items))
	for _, item := range items {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(item, &probe); err != nil {
			return nil, fmt.Errorf("unexpected lead entry: %w", err)
		}

		if _, grouped := probe["leads"]; grouped {
			var g leadGroup
			if err := json.Unmarshal(item, &g); err != nil {
				return nil, fmt.Errorf("unexpected lead group: %w", err)
			}
			for _, raw := range g.Leads {
				var lead models.Lead
				if err := json.Unmarshal(raw, &lead); err != nil {
					return nil, fmt.Errorf("unexpected lead in group %s: %w", g.StageName, err)
				}
				if lead.StageName == nil && g.StageName != "" {
					lead.StageName = utils.ToPtr(g.StageName)
				}
				if lead.StageID == nil && g.StageID != nil {
					lead.StageID = g.StageID
				}
				normalizeConverted(&lead, g.FormType)
				leads = append(leads, lead)
			}
			continue
		}

		var lead models.Lead
		if err := json.Unmarshal(item, &lead); err != nil {
			return nil, fmt.Errorf("unexpected lead entry: %w", err)
		}
		normalizeConverted(&lead, "")
		leads = append(leads, lead)
	}
	return leads, nil
}

// normalizeConverted applies the converted-stage marker to status for every decode path
func normalizeConverted(lead *models.Lead, formType string) {
	if lead.Status.IsClosed() {
		return
	}
	if strings.EqualFold(formType, "CONVERTED") ||
		(lead.StageName != nil && strings.EqualFold(strings.TrimSpace(*lead.StageName), "converted")) {
		lead.Status = models.LeadStatusConverted
	}
}

func decodeLead(op string, body []byte) (*models.Lead, error) {
	body = unwrapData(body)
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var lead models.Lead
	if err := json.Unmarshal(body, &lead); err != nil {
		return nil, &RemoteError{Operation: op, Err: fmt.Errorf("unexpected lead shape: %w", err)}
	}
	normalizeConverted(&lead, "")
	return &lead, nil
}

func unwrapData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return env.Data
	}
	return trimmed
}

func extractServerMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if s, ok := env.Error.(string); ok && s != "" {
			return s
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
