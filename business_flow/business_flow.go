// Package businessflow contains the lead lifecycle rules and the flows that apply them
package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
)

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// Actor is the authenticated console user performing an operation
type Actor struct {
	Name string
	Role models.Role
}

func (a Actor) Valid() bool {
	return a.Name != "" && a.Role.Valid()
}

func requireActor(actor Actor) error {
	if !actor.Valid() {
		return NewBusinessError("ACTOR_REQUIRED", "Authenticated actor is required", ErrActorRequired)
	}
	return nil
}

// remoteFailure wraps a lead API error keeping the server message for the console
func remoteFailure(message string, err error) error {
	var re *services.RemoteError
	if errors.As(err, &re) {
		message = re.ServerMessage()
	}
	return NewBusinessError("REMOTE_FAILURE", message, errors.Join(ErrRemoteFailure, err))
}

func createAuditLog(ctx context.Context, auditRepo repository.AuditLogRepository, actor Actor, leadID string, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}
	if actor.Name != "" {
		audit.ActorName = utils.ToPtr(actor.Name)
		audit.ActorRole = utils.ToPtr(actor.Role.String())
	}
	if leadID != "" {
		audit.LeadID = &leadID
	}
	if metadata != nil && len(metadata.Additional) > 0 {
		if raw, err := json.Marshal(metadata.Additional); err == nil {
			audit.Metadata = raw
		}
	}

	// Extract request ID from context if available
	requestID := ctx.Value(utils.RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	if err := auditRepo.Save(ctx, audit); err != nil {
		log.Printf("audit log %s for lead %s failed: %v", action, leadID, err)
		return err
	}

	return nil
}
