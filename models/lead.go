package models

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// LeadStatus represents the lifecycle status of a lead
type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "New"
	LeadStatusAssigned   LeadStatus = "Assigned"
	LeadStatusInProgress LeadStatus = "In Progress"
	LeadStatusVerified   LeadStatus = "Verified"
	LeadStatusConverted  LeadStatus = "Converted"
	LeadStatusLost       LeadStatus = "Lost"
	LeadStatusJunk       LeadStatus = "Junk"
)

// LeadStatuses lists every status in pipeline order
var LeadStatuses = []LeadStatus{
	LeadStatusNew,
	LeadStatusAssigned,
	LeadStatusInProgress,
	LeadStatusVerified,
	LeadStatusConverted,
	LeadStatusLost,
	LeadStatusJunk,
}

// String returns the string representation of the status
func (s LeadStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s LeadStatus) Valid() bool {
	return slices.Contains(LeadStatuses, s)
}

// IsTerminal reports whether no status transition may leave s
func (s LeadStatus) IsTerminal() bool {
	return s == LeadStatusConverted || s == LeadStatusLost || s == LeadStatusJunk
}

// IsClosed reports whether the lead is read-only (Lost or Junk)
func (s LeadStatus) IsClosed() bool {
	return s == LeadStatusLost || s == LeadStatusJunk
}

// Scan implements the sql.Scanner interface for LeadStatus
func (s *LeadStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = LeadStatus(v)
	case []byte:
		*s = LeadStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into LeadStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for LeadStatus
func (s LeadStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid LeadStatus: %s", s)
	}
	return string(s), nil
}

// Role is the console role of the acting user
type Role string

const (
	RoleManager Role = "manager"
	RoleSales   Role = "sales"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	return r == RoleManager || r == RoleSales
}

// Scan implements the sql.Scanner interface for Role
func (r *Role) Scan(value any) error {
	if value == nil {
		*r = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*r = Role(v)
	case []byte:
		*r = Role(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Role", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for Role
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid Role: %s", r)
	}
	return string(r), nil
}

// PropertyType is the kind of project a lead is enquiring about
type PropertyType string

const (
	PropertyType1BHK       PropertyType = "1 BHK"
	PropertyType2BHK       PropertyType = "2 BHK"
	PropertyType3BHK       PropertyType = "3 BHK"
	PropertyType4BHK       PropertyType = "4 BHK"
	PropertyTypeVilla      PropertyType = "Villa"
	PropertyTypeCommercial PropertyType = "Commercial"
	PropertyTypeOther      PropertyType = "Other"
)

func (p PropertyType) String() string {
	return string(p)
}

func (p PropertyType) Valid() bool {
	switch p {
	case PropertyType1BHK, PropertyType2BHK, PropertyType3BHK, PropertyType4BHK,
		PropertyTypeVilla, PropertyTypeCommercial, PropertyTypeOther:
		return true
	default:
		return false
	}
}

// LostReason is the closed set of reasons a lead may be marked Lost with
type LostReason string

const (
	LostReasonBudget       LostReason = "Budget constraints"
	LostReasonTimeline     LostReason = "Timeline mismatch"
	LostReasonCompetitor   LostReason = "Went with competitor"
	LostReasonCancelled    LostReason = "Project cancelled/postponed"
	LostReasonUnresponsive LostReason = "Unresponsive"
	LostReasonRequirements LostReason = "Requirements not met"
	LostReasonLocation     LostReason = "Location issue"
	LostReasonOther        LostReason = "Other"
)

// LostReasons lists the reasons in the order the dialog presents them
var LostReasons = []LostReason{
	LostReasonBudget,
	LostReasonTimeline,
	LostReasonCompetitor,
	LostReasonCancelled,
	LostReasonUnresponsive,
	LostReasonRequirements,
	LostReasonLocation,
	LostReasonOther,
}

func (r LostReason) String() string {
	return string(r)
}

func (r LostReason) Valid() bool {
	return slices.Contains(LostReasons, r)
}

// LeadField names an editable attribute of a lead
type LeadField string

const (
	FieldName           LeadField = "name"
	FieldContactNumber  LeadField = "contactNumber"
	FieldEmail          LeadField = "email"
	FieldPropertyType   LeadField = "propertyType"
	FieldProjectAddress LeadField = "projectAddress"
	FieldExpectedBudget LeadField = "expectedBudget"

	FieldSalesRep LeadField = "salesRep"
	FieldDesigner LeadField = "designer"

	FieldCallDescription LeadField = "callDescription"
	FieldNextCall        LeadField = "nextCall"

	FieldQuotedAmount           LeadField = "quotedAmount"
	FieldFinalQuotation         LeadField = "finalQuotation"
	FieldSignupAmount           LeadField = "signupAmount"
	FieldPaymentDate            LeadField = "paymentDate"
	FieldPaymentMode            LeadField = "paymentMode"
	FieldPanNumber              LeadField = "panNumber"
	FieldProjectTimeline        LeadField = "projectTimeline"
	FieldDiscount               LeadField = "discount"
	FieldPaymentDetailsFileName LeadField = "paymentDetailsFileName"
	FieldBookingFormFileName    LeadField = "bookingFormFileName"
	FieldPaymentTransactionID   LeadField = "paymentTransactionId"
	FieldGstAvailable           LeadField = "gstAvailable"
	FieldGst                    LeadField = "gst"

	FieldStatus        LeadField = "status"
	FieldReasonForLost LeadField = "reasonForLost"
	FieldReasonForJunk LeadField = "reasonForJunk"
)

// Field groups
var (
	ProfileFields = []LeadField{
		FieldName, FieldContactNumber, FieldEmail,
		FieldPropertyType, FieldProjectAddress, FieldExpectedBudget,
	}
	AssignmentFields = []LeadField{FieldSalesRep, FieldDesigner}
	FollowUpFields   = []LeadField{FieldCallDescription, FieldNextCall}
	ConversionFields = []LeadField{
		FieldQuotedAmount, FieldFinalQuotation, FieldSignupAmount,
		FieldPaymentDate, FieldPaymentMode, FieldPanNumber,
		FieldProjectTimeline, FieldDiscount, FieldPaymentDetailsFileName,
		FieldBookingFormFileName, FieldPaymentTransactionID,
		FieldGstAvailable, FieldGst,
	}
	ReasonFields = []LeadField{FieldStatus, FieldReasonForLost, FieldReasonForJunk}
)

// AllLeadFields returns every field the editability map covers
func AllLeadFields() []LeadField {
	fields := make([]LeadField, 0, 32)
	fields = append(fields, ProfileFields...)
	fields = append(fields, AssignmentFields...)
	fields = append(fields, FollowUpFields...)
	fields = append(fields, ConversionFields...)
	fields = append(fields, ReasonFields...)
	return fields
}

// CallHistoryEntry is one recorded follow-up call
type CallHistoryEntry struct {
	Text         string     `json:"text"`
	Date         string     `json:"date"`
	Timestamp    time.Time  `json:"timestamp"`
	NextFollowUp *time.Time `json:"nextFollowUp,omitempty"`
}

// Lead is a prospective customer record as exchanged with the lead API
type Lead struct {
	LeadID string `json:"leadId,omitempty"`

	// Profile
	Name           string        `json:"name"`
	ContactNumber  *string       `json:"contactNumber"`
	Email          *string       `json:"email"`
	PropertyType   *PropertyType `json:"propertyType"`
	ProjectAddress *string       `json:"projectAddress"`
	ExpectedBudget *float64      `json:"expectedBudget"`

	Status LeadStatus `json:"status"`

	// Assignment
	SalesRep *string `json:"salesRep"`
	Designer *string `json:"designer"`

	// Follow-up
	CallDescription *string            `json:"callDescription"`
	CallHistory     []CallHistoryEntry `json:"callHistory"`
	NextCall        *time.Time         `json:"nextCall"`

	// Conversion
	QuotedAmount           *float64 `json:"quotedAmount"`
	FinalQuotation         *float64 `json:"finalQuotation"`
	SignupAmount           *float64 `json:"signupAmount"`
	PaymentDate            *string  `json:"paymentDate"`
	PaymentMode            *string  `json:"paymentMode"`
	PanNumber              *string  `json:"panNumber"`
	ProjectTimeline        *string  `json:"projectTimeline"`
	Discount               *float64 `json:"discount"`
	PaymentDetailsFileName *string  `json:"paymentDetailsFileName"`
	BookingFormFileName    *string  `json:"bookingFormFileName"`
	PaymentTransactionID   *string  `json:"paymentTransactionId"`
	GstAvailable           *bool    `json:"gstAvailable"`
	Gst                    *string  `json:"gst"`

	// Loss / junk
	ReasonForLost *LostReason `json:"reasonForLost"`
	ReasonForJunk *string     `json:"reasonForJunk"`

	SubmittedBy *string `json:"submittedBy"`

	// Secondary pipeline stage
	StageID   *string `json:"stageId,omitempty"`
	StageName *string `json:"stageName,omitempty"`
}

// IsNew reports whether the lead has not been created upstream yet
func (l *Lead) IsNew() bool {
	return l.LeadID == ""
}

// HasConversionDetails reports whether any conversion field is populated
func (l *Lead) HasConversionDetails() bool {
	return l.QuotedAmount != nil || l.FinalQuotation != nil || l.SignupAmount != nil ||
		nonEmpty(l.PaymentDate) || nonEmpty(l.PaymentMode) || nonEmpty(l.PanNumber) ||
		nonEmpty(l.ProjectTimeline) || l.Discount != nil ||
		nonEmpty(l.PaymentDetailsFileName) || nonEmpty(l.BookingFormFileName) ||
		nonEmpty(l.PaymentTransactionID) || nonEmpty(l.Gst)
}

// IsAssigned reports whether a sales rep or designer is set
func (l *Lead) IsAssigned() bool {
	return nonEmpty(l.SalesRep) || nonEmpty(l.Designer)
}

// DisplayCallHistory returns a most-recent-first copy of the call history
func (l *Lead) DisplayCallHistory() []CallHistoryEntry {
	out := slices.Clone(l.CallHistory)
	slices.Reverse(out)
	return out
}

// Clone returns a copy that shares no mutable state with l
func (l Lead) Clone() Lead {
	c := l
	c.ContactNumber = clonePtr(l.ContactNumber)
	c.Email = clonePtr(l.Email)
	c.PropertyType = clonePtr(l.PropertyType)
	c.ProjectAddress = clonePtr(l.ProjectAddress)
	c.ExpectedBudget = clonePtr(l.ExpectedBudget)
	c.SalesRep = clonePtr(l.SalesRep)
	c.Designer = clonePtr(l.Designer)
	c.CallDescription = clonePtr(l.CallDescription)
	c.CallHistory = slices.Clone(l.CallHistory)
	c.NextCall = clonePtr(l.NextCall)
	c.QuotedAmount = clonePtr(l.QuotedAmount)
	c.FinalQuotation = clonePtr(l.FinalQuotation)
	c.SignupAmount = clonePtr(l.SignupAmount)
	c.PaymentDate = clonePtr(l.PaymentDate)
	c.PaymentMode = clonePtr(l.PaymentMode)
	c.PanNumber = clonePtr(l.PanNumber)
	c.ProjectTimeline = clonePtr(l.ProjectTimeline)
	c.Discount = clonePtr(l.Discount)
	c.PaymentDetailsFileName = clonePtr(l.PaymentDetailsFileName)
	c.BookingFormFileName = clonePtr(l.BookingFormFileName)
	c.PaymentTransactionID = clonePtr(l.PaymentTransactionID)
	c.GstAvailable = clonePtr(l.GstAvailable)
	c.Gst = clonePtr(l.Gst)
	c.ReasonForLost = clonePtr(l.ReasonForLost)
	c.ReasonForJunk = clonePtr(l.ReasonForJunk)
	c.SubmittedBy = clonePtr(l.SubmittedBy)
	c.StageID = clonePtr(l.StageID)
	c.StageName = clonePtr(l.StageName)
	return c
}

// SearchText returns the lower-cased scalar fields joined for substring search
func (l *Lead) SearchText() string {
	parts := []string{l.LeadID, l.Name, string(l.Status)}
	for _, p := range []*string{
		l.ContactNumber, l.Email, l.ProjectAddress, l.SalesRep, l.Designer,
		l.CallDescription, l.PaymentMode, l.PanNumber, l.ProjectTimeline,
		l.PaymentTransactionID, l.Gst, l.ReasonForJunk, l.SubmittedBy, l.StageName,
		l.PaymentDate,
	} {
		if p != nil {
			parts = append(parts, *p)
		}
	}
	if l.PropertyType != nil {
		parts = append(parts, string(*l.PropertyType))
	}
	if l.ReasonForLost != nil {
		parts = append(parts, string(*l.ReasonForLost))
	}
	for _, f := range []*float64{l.ExpectedBudget, l.QuotedAmount, l.FinalQuotation, l.SignupAmount, l.Discount} {
		if f != nil {
			parts = append(parts, strconv.FormatFloat(*f, 'f', -1, 64))
		}
	}
	if l.NextCall != nil {
		parts = append(parts, l.NextCall.Format("2006-01-02 15:04"))
	}
	return strings.ToLower(strings.Join(parts, "\x00"))
}

func nonEmpty(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
