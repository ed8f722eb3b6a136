package dto

import (
	"io"
	"time"

	"github.com/amirphl/leadflow/models"
)

// ListLeadsRequest selects the active tab and free-text search of the lead list
type ListLeadsRequest struct {
	Tab    string `json:"tab" query:"tab" validate:"omitempty,max=32"`
	Search string `json:"search" query:"search" validate:"omitempty,max=200"`
}

// LeadTabDTO is one role-specific tab with its badge count
type LeadTabDTO struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// LeadListResponse is the filtered lead list with unfiltered tab counts
type LeadListResponse struct {
	ActiveTab string        `json:"active_tab"`
	Search    string        `json:"search,omitempty"`
	Tabs      []LeadTabDTO  `json:"tabs"`
	Leads     []models.Lead `json:"leads"`
	Total     int           `json:"total"`
}

// LeadDetailResponse is an opened lead with what the actor may do with it
type LeadDetailResponse struct {
	Lead               models.Lead               `json:"lead"`
	CallHistory        []models.CallHistoryEntry `json:"call_history"`
	Editable           map[models.LeadField]bool `json:"editable"`
	AllowedTransitions []string                  `json:"allowed_transitions"`
	LostReasons        []string                  `json:"lost_reasons,omitempty"`
}

// LeadMutationResponse is returned after every write, built from a fresh fetch
type LeadMutationResponse struct {
	Cancelled     bool         `json:"cancelled"`
	Lead          *models.Lead `json:"lead,omitempty"`
	ChangedFields []string     `json:"changed_fields,omitempty"`
	ActiveTab     string       `json:"active_tab"`
	Tabs          []LeadTabDTO `json:"tabs"`
	CorrelationID string       `json:"correlation_id,omitempty"`
}

// CreateLeadRequest represents a new lead submitted from the console
type CreateLeadRequest struct {
	Name            string     `json:"name" validate:"required,min=1,max=255"`
	ContactNumber   *string    `json:"contact_number,omitempty" validate:"omitempty,max=20"`
	Email           *string    `json:"email,omitempty" validate:"omitempty,email,max=255"`
	PropertyType    *string    `json:"property_type,omitempty" validate:"omitempty,property_type"`
	ProjectAddress  *string    `json:"project_address,omitempty" validate:"omitempty,max=1000"`
	ExpectedBudget  *float64   `json:"expected_budget,omitempty" validate:"omitempty,gte=0"`
	SalesRep        *string    `json:"sales_rep,omitempty" validate:"omitempty,max=255"`
	Designer        *string    `json:"designer,omitempty" validate:"omitempty,max=255"`
	CallDescription *string    `json:"call_description,omitempty" validate:"omitempty,max=5000"`
	NextCall        *time.Time `json:"next_call,omitempty"`
}

// UpdateLeadRequest carries edit form values; nil means the field was not touched
type UpdateLeadRequest struct {
	Name            *string    `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	ContactNumber   *string    `json:"contact_number,omitempty" validate:"omitempty,max=20"`
	Email           *string    `json:"email,omitempty" validate:"omitempty,email,max=255"`
	PropertyType    *string    `json:"property_type,omitempty" validate:"omitempty,property_type"`
	ProjectAddress  *string    `json:"project_address,omitempty" validate:"omitempty,max=1000"`
	ExpectedBudget  *float64   `json:"expected_budget,omitempty" validate:"omitempty,gte=0"`
	SalesRep        *string    `json:"sales_rep,omitempty" validate:"omitempty,max=255"`
	Designer        *string    `json:"designer,omitempty" validate:"omitempty,max=255"`
	CallDescription *string    `json:"call_description,omitempty" validate:"omitempty,max=5000"`
	NextCall        *time.Time `json:"next_call,omitempty"`
}

// AssignLeadRequest assigns personnel to a lead
type AssignLeadRequest struct {
	SalesRep *string `json:"sales_rep,omitempty" validate:"omitempty,max=255"`
	Designer *string `json:"designer,omitempty" validate:"omitempty,max=255"`
}

// TransitionLeadRequest asks for a status change with its required payload
type TransitionLeadRequest struct {
	Status        string  `json:"status" validate:"required,lead_status"`
	SalesRep      *string `json:"sales_rep,omitempty" validate:"omitempty,max=255"`
	Designer      *string `json:"designer,omitempty" validate:"omitempty,max=255"`
	ReasonForLost *string `json:"reason_for_lost,omitempty"`
	ReasonForJunk *string `json:"reason_for_junk,omitempty" validate:"omitempty,max=2000"`
}

// FollowUpRequest records a follow-up call note
type FollowUpRequest struct {
	Text         string     `json:"text" validate:"required,min=1,max=5000"`
	NextFollowUp *time.Time `json:"next_follow_up,omitempty"`
}

// CallHistoryResponse lists recorded calls most recent first
type CallHistoryResponse struct {
	LeadID  string                    `json:"lead_id"`
	Entries []models.CallHistoryEntry `json:"entries"`
}

// TransitionHistoryItem is one recorded lifecycle write of a lead
type TransitionHistoryItem struct {
	CorrelationID string    `json:"correlation_id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	ActorName     string    `json:"actor_name"`
	ActorRole     string    `json:"actor_role"`
	Reason        *string   `json:"reason,omitempty"`
	ChangedFields []string  `json:"changed_fields"`
	Success       bool      `json:"success"`
	ErrorMessage  *string   `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransitionHistoryResponse lists a lead's recorded transitions oldest first
type TransitionHistoryResponse struct {
	LeadID             string                  `json:"lead_id"`
	CurrentStatus      string                  `json:"current_status"`
	AllowedTransitions []string                `json:"allowed_transitions"`
	Items              []TransitionHistoryItem `json:"items"`
}

// LeadExportResponse is a spreadsheet of the active tab
type LeadExportResponse struct {
	Filename string
	Content  []byte
	Rows     int
}

// OpenReasonDialogRequest starts a Lost or Junk dialog
type OpenReasonDialogRequest struct {
	Kind string `json:"kind" validate:"required,oneof=lost junk"`
}

// ChooseReasonRequest sets the reason of an open dialog
type ChooseReasonRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

// ReasonDialogResponse describes the state of a reason dialog
type ReasonDialogResponse struct {
	LeadID    string    `json:"lead_id"`
	Kind      string    `json:"kind"`
	Reason    *string   `json:"reason,omitempty"`
	Options   []string  `json:"options,omitempty"`
	CanSubmit bool      `json:"can_submit"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DocumentInput is one conversion attachment: a new upload or a stored reference
type DocumentInput struct {
	IsExisting  bool      `json:"is_existing"`
	Reference   string    `json:"reference,omitempty"`
	Filename    string    `json:"-"`
	Size        int64     `json:"-"`
	ContentType string    `json:"-"`
	File        io.Reader `json:"-"`
}

// ConversionRequest carries the conversion form as submitted
type ConversionRequest struct {
	QuotedAmount         string `json:"quoted_amount" form:"quoted_amount"`
	FinalQuotation       string `json:"final_quotation" form:"final_quotation"`
	SignupAmount         string `json:"signup_amount" form:"signup_amount"`
	PaymentDate          string `json:"payment_date" form:"payment_date"`
	PaymentMode          string `json:"payment_mode" form:"payment_mode" validate:"max=64"`
	PanNumber            string `json:"pan_number" form:"pan_number"`
	ProjectTimeline      string `json:"project_timeline" form:"project_timeline" validate:"max=255"`
	Discount             string `json:"discount" form:"discount"`
	PaymentTransactionID string `json:"payment_transaction_id" form:"payment_transaction_id"`
	GstAvailable         bool   `json:"gst_available" form:"gst_available"`
	Gst                  string `json:"gst" form:"gst"`

	PaymentDetailsFile *DocumentInput `json:"payment_details_file,omitempty" form:"-"`
	BookingFormFile    *DocumentInput `json:"booking_form_file,omitempty" form:"-"`
}

// DocumentURLResponse carries a short-lived view URL for a stored document
type DocumentURLResponse struct {
	Reference string    `json:"reference"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DocumentStream is an authenticated document body handed back to the console
type DocumentStream struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
	Size        int64
}
