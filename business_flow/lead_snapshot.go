package businessflow

import (
	"time"

	"github.com/amirphl/leadflow/models"
)

// LeadPatch holds the fields one operation intends to change; nil keeps the current value
type LeadPatch struct {
	Name           *string
	ContactNumber  *string
	Email          *string
	PropertyType   *models.PropertyType
	ProjectAddress *string
	ExpectedBudget *float64

	SalesRep *string
	Designer *string

	CallDescription *string
	NextCall        *time.Time
	CallEntry       *models.CallHistoryEntry

	// Conversion replaces the whole conversion payload when set
	Conversion *ConversionDetails

	Status        *models.LeadStatus
	ReasonForLost *models.LostReason
	ReasonForJunk *string
}

// BuildWriteRequest merges patch over the current record and returns the whole
// record to send together with the fields whose value changed.
// The lead API replaces records wholesale, so this is the only place a write body is assembled.
func BuildWriteRequest(current models.Lead, patch LeadPatch) (models.Lead, []models.LeadField) {
	next := current.Clone()
	var changed []models.LeadField

	if patch.Name != nil && *patch.Name != next.Name {
		next.Name = *patch.Name
		changed = append(changed, models.FieldName)
	}
	overlay(&next.ContactNumber, patch.ContactNumber, models.FieldContactNumber, &changed)
	overlay(&next.Email, patch.Email, models.FieldEmail, &changed)
	overlay(&next.PropertyType, patch.PropertyType, models.FieldPropertyType, &changed)
	overlay(&next.ProjectAddress, patch.ProjectAddress, models.FieldProjectAddress, &changed)
	overlay(&next.ExpectedBudget, patch.ExpectedBudget, models.FieldExpectedBudget, &changed)

	overlay(&next.SalesRep, patch.SalesRep, models.FieldSalesRep, &changed)
	overlay(&next.Designer, patch.Designer, models.FieldDesigner, &changed)

	overlay(&next.CallDescription, patch.CallDescription, models.FieldCallDescription, &changed)
	if patch.NextCall != nil && (next.NextCall == nil || !next.NextCall.Equal(*patch.NextCall)) {
		t := *patch.NextCall
		next.NextCall = &t
		changed = append(changed, models.FieldNextCall)
	}
	if patch.CallEntry != nil {
		next.CallHistory = AppendCallHistory(next.CallHistory, *patch.CallEntry)
	}

	if c := patch.Conversion; c != nil {
		replace(&next.QuotedAmount, c.QuotedAmount, models.FieldQuotedAmount, &changed)
		replace(&next.FinalQuotation, c.FinalQuotation, models.FieldFinalQuotation, &changed)
		replace(&next.SignupAmount, &c.SignupAmount, models.FieldSignupAmount, &changed)
		replace(&next.PaymentDate, &c.PaymentDate, models.FieldPaymentDate, &changed)
		replace(&next.PaymentMode, c.PaymentMode, models.FieldPaymentMode, &changed)
		replace(&next.PanNumber, c.PanNumber, models.FieldPanNumber, &changed)
		replace(&next.ProjectTimeline, c.ProjectTimeline, models.FieldProjectTimeline, &changed)
		replace(&next.Discount, c.Discount, models.FieldDiscount, &changed)
		replace(&next.PaymentDetailsFileName, c.PaymentDetailsFileName, models.FieldPaymentDetailsFileName, &changed)
		replace(&next.BookingFormFileName, c.BookingFormFileName, models.FieldBookingFormFileName, &changed)
		replace(&next.PaymentTransactionID, c.PaymentTransactionID, models.FieldPaymentTransactionID, &changed)
		replace(&next.GstAvailable, &c.GstAvailable, models.FieldGstAvailable, &changed)
		replace(&next.Gst, c.Gst, models.FieldGst, &changed)
	}

	if patch.Status != nil && *patch.Status != next.Status {
		next.Status = *patch.Status
		changed = append(changed, models.FieldStatus)
	}
	overlay(&next.ReasonForLost, patch.ReasonForLost, models.FieldReasonForLost, &changed)
	overlay(&next.ReasonForJunk, patch.ReasonForJunk, models.FieldReasonForJunk, &changed)

	return next, changed
}

// overlay sets *dst to v when v is given and differs
func overlay[T comparable](dst **T, v *T, field models.LeadField, changed *[]models.LeadField) {
	if v == nil {
		return
	}
	if *dst != nil && **dst == *v {
		return
	}
	c := *v
	*dst = &c
	*changed = append(*changed, field)
}

// replace sets *dst to v including nil
func replace[T comparable](dst **T, v *T, field models.LeadField, changed *[]models.LeadField) {
	if v == nil {
		if *dst != nil {
			*dst = nil
			*changed = append(*changed, field)
		}
		return
	}
	overlay(dst, v, field, changed)
}

func fieldNames(fields []models.LeadField) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, string(f))
	}
	return out
}
