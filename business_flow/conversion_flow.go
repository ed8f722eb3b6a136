package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/config"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/repository"
	"github.com/amirphl/leadflow/utils"
	"github.com/cenkalti/backoff/v4"
)

var (
	panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	gstPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	// plain decimal notation only; ParseFloat alone also takes NaN, Inf and hex floats
	amountPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
)

var errNotDecimal = errors.New("not a decimal number")

func parseAmount(raw string) (float64, error) {
	if !amountPattern.MatchString(raw) {
		return 0, errNotDecimal
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotDecimal
	}
	return v, nil
}

// ConversionDetails is a validated conversion form
type ConversionDetails struct {
	QuotedAmount           *float64
	FinalQuotation         *float64
	SignupAmount           float64
	PaymentDate            string
	PaymentMode            *string
	PanNumber              *string
	ProjectTimeline        *string
	Discount               *float64
	PaymentTransactionID   *string
	GstAvailable           bool
	Gst                    *string
	PaymentDetailsFileName *string
	BookingFormFileName    *string
}

// ValidateConversion checks the conversion form and collects every field problem in one error
func ValidateConversion(req *dto.ConversionRequest) (ConversionDetails, error) {
	ve := NewValidationError()
	var d ConversionDetails

	signup := strings.TrimSpace(req.SignupAmount)
	if signup == "" {
		ve.Add(string(models.FieldSignupAmount), "signup amount is required")
	} else if amount, err := parseAmount(signup); err != nil {
		ve.Add(string(models.FieldSignupAmount), "signup amount must be a number")
	} else if amount <= 0 {
		ve.Add(string(models.FieldSignupAmount), "signup amount must be positive")
	} else if amount > utils.MaxSignupAmount {
		ve.Add(string(models.FieldSignupAmount), fmt.Sprintf("signup amount must not exceed %d", utils.MaxSignupAmount))
	} else {
		d.SignupAmount = amount
	}

	paymentDate := strings.TrimSpace(req.PaymentDate)
	if paymentDate == "" {
		ve.Add(string(models.FieldPaymentDate), "payment date is required")
	} else if _, err := utils.ParseLeadDate(paymentDate); err != nil {
		ve.Add(string(models.FieldPaymentDate), "payment date must be YYYY-MM-DD")
	} else {
		d.PaymentDate = paymentDate
	}

	d.QuotedAmount = optionalAmount(req.QuotedAmount, models.FieldQuotedAmount, ve)
	d.FinalQuotation = optionalAmount(req.FinalQuotation, models.FieldFinalQuotation, ve)
	d.Discount = optionalAmount(req.Discount, models.FieldDiscount, ve)

	if pan := strings.ToUpper(strings.TrimSpace(req.PanNumber)); pan != "" {
		if !panPattern.MatchString(pan) {
			ve.Add(string(models.FieldPanNumber), "PAN must look like ABCDE1234F")
		} else {
			d.PanNumber = &pan
		}
	}

	if txn := strings.TrimSpace(req.PaymentTransactionID); txn != "" {
		if n := len([]rune(txn)); n < 5 || n > 50 {
			ve.Add(string(models.FieldPaymentTransactionID), "transaction id must be 5 to 50 characters")
		} else {
			d.PaymentTransactionID = &txn
		}
	}

	d.GstAvailable = req.GstAvailable
	if gst := strings.ToUpper(strings.TrimSpace(req.Gst)); req.GstAvailable && gst != "" {
		if !gstPattern.MatchString(gst) {
			ve.Add(string(models.FieldGst), "GST number is not valid")
		} else {
			d.Gst = &gst
		}
	}

	d.PaymentMode = utils.TrimmedPtr(&req.PaymentMode)
	d.ProjectTimeline = utils.TrimmedPtr(&req.ProjectTimeline)

	d.PaymentDetailsFileName = documentName(req.PaymentDetailsFile, models.FieldPaymentDetailsFileName, ve)
	d.BookingFormFileName = documentName(req.BookingFormFile, models.FieldBookingFormFileName, ve)

	if err := ve.ErrOrNil(); err != nil {
		return ConversionDetails{}, err
	}
	return d, nil
}

func optionalAmount(raw string, field models.LeadField, ve *ValidationError) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := parseAmount(raw)
	if err != nil {
		ve.Add(string(field), "must be a number")
		return nil
	}
	if v < 0 {
		ve.Add(string(field), "must not be negative")
		return nil
	}
	return &v
}

func documentName(doc *dto.DocumentInput, field models.LeadField, ve *ValidationError) *string {
	if doc == nil {
		return nil
	}
	if doc.IsExisting {
		ref := strings.TrimSpace(doc.Reference)
		if ref == "" {
			ve.Add(string(field), "existing document reference is missing")
			return nil
		}
		return &ref
	}
	if doc.File == nil {
		return nil
	}
	name := strings.TrimSpace(doc.Filename)
	if name == "" {
		ve.Add(string(field), "uploaded document has no file name")
		return nil
	}
	return &name
}

// ConversionFlow handles conversion intake and stored document access
type ConversionFlow interface {
	SubmitConversion(ctx context.Context, leadID string, req *dto.ConversionRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error)
	DocumentURL(ctx context.Context, reference string, actor Actor, metadata *ClientMetadata) (*dto.DocumentURLResponse, error)
	OpenDocument(ctx context.Context, reference string, actor Actor, metadata *ClientMetadata) (*dto.DocumentStream, error)
}

// ConversionFlowImpl implements the conversion business flow
type ConversionFlowImpl struct {
	store     services.LeadAPIClient
	documents services.DocumentService
	auditRepo repository.AuditLogRepository
	writer    *leadWriter
	leadCfg   config.LeadAPIConfig
}

// NewConversionFlow creates a new conversion flow instance
func NewConversionFlow(
	store services.LeadAPIClient,
	documents services.DocumentService,
	historyRepo repository.LeadStatusHistoryRepository,
	auditRepo repository.AuditLogRepository,
	leadCfg config.LeadAPIConfig,
) ConversionFlow {
	return &ConversionFlowImpl{
		store:     store,
		documents: documents,
		auditRepo: auditRepo,
		writer:    newLeadWriter(store, historyRepo, auditRepo),
		leadCfg:   leadCfg,
	}
}

// SubmitConversion converts a Verified lead or edits the conversion details of a Converted one
func (f *ConversionFlowImpl) SubmitConversion(ctx context.Context, leadID string, req *dto.ConversionRequest, actor Actor, metadata *ClientMetadata) (*dto.LeadMutationResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := lockLead(leadID); err != nil {
		return nil, err
	}
	defer unlockLead(leadID)

	current, err := f.writer.load(ctx, leadID)
	if err != nil {
		return nil, err
	}

	switch current.Status {
	case models.LeadStatusVerified:
		if _, err := CheckTransition(current.Status, models.LeadStatusConverted, actor.Role); err != nil {
			f.writer.reject(ctx, actor, current, models.LeadStatusConverted, err, metadata)
			return nil, err
		}
	case models.LeadStatusConverted:
	default:
		err := NewBusinessErrorf("TRANSITION_NOT_ALLOWED", "Lead in status %q cannot be converted", ErrTransitionNotAllowed, current.Status)
		f.writer.reject(ctx, actor, current, models.LeadStatusConverted, err, metadata)
		return nil, err
	}

	details, err := ValidateConversion(req)
	if err != nil {
		return nil, err
	}

	converted := models.LeadStatusConverted
	patch := LeadPatch{Conversion: &details, Status: &converted}
	if current.Status == models.LeadStatusConverted {
		_, changed := BuildWriteRequest(current, patch)
		if locked := ConversionLockedFields(current, actor.Role, changed); len(locked) > 0 {
			return nil, fieldsNotEditable(locked)
		}
	}
	uploads := conversionUploads(req)
	firstConversion := !current.HasConversionDetails()

	return f.writer.write(ctx, writeRequest{
		actor:        actor,
		metadata:     metadata,
		current:      current,
		patch:        patch,
		action:       models.AuditActionConversionSubmitted,
		failedAction: models.AuditActionConversionFailed,
		description:  conversionDescription(firstConversion),
		send: func(ctx context.Context, snapshot models.Lead) (*models.Lead, error) {
			switch {
			case firstConversion:
				return f.store.ConvertWithDocs(ctx, snapshot.LeadID, snapshot, uploads)
			case len(uploads) > 0:
				return f.store.UpdateLeadWithDocs(ctx, snapshot.LeadID, snapshot, uploads)
			default:
				return f.store.UpdateLead(ctx, snapshot.LeadID, snapshot)
			}
		},
		afterWrite: func(ctx context.Context, written models.Lead) {
			f.advanceStage(ctx, actor, written, metadata)
		},
	})
}

// advanceStage moves the secondary pipeline pointer; failures are only logged
func (f *ConversionFlowImpl) advanceStage(ctx context.Context, actor Actor, lead models.Lead, metadata *ClientMetadata) {
	stageID := strings.TrimSpace(f.leadCfg.ConvertedStageID)
	if stageID == "" || lead.StageID == nil || *lead.StageID == "" || *lead.StageID == stageID {
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = f.leadCfg.StageAdvanceMaxElapsed
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 2 * time.Second
	}

	err := backoff.Retry(func() error {
		return f.store.AdvanceStage(ctx, lead.LeadID, stageID)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		log.Printf("stage advance for lead %s to %s failed: %v", lead.LeadID, stageID, err)
		errMsg := err.Error()
		_ = createAuditLog(ctx, f.auditRepo, actor, lead.LeadID, models.AuditActionStageAdvanceFailed,
			fmt.Sprintf("Stage advance to %s failed", stageID), false, &errMsg, metadata)
	}
}

// DocumentURL exchanges a stored-file reference for a short-lived viewable URL
func (f *ConversionFlowImpl) DocumentURL(ctx context.Context, reference string, actor Actor, metadata *ClientMetadata) (*dto.DocumentURLResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateReference(reference); err != nil {
		return nil, err
	}

	view, err := f.documents.ViewURL(ctx, reference)
	if err != nil {
		return nil, f.documentFailure(ctx, actor, reference, err, metadata)
	}

	_ = createAuditLog(ctx, f.auditRepo, actor, "", models.AuditActionDocumentOpened,
		fmt.Sprintf("Document URL issued for %s", reference), true, nil, metadata)

	return &dto.DocumentURLResponse{
		Reference: reference,
		URL:       view.URL,
		ExpiresAt: view.ExpiresAt,
	}, nil
}

// OpenDocument fetches a stored file with the actor's credentials
func (f *ConversionFlowImpl) OpenDocument(ctx context.Context, reference string, actor Actor, metadata *ClientMetadata) (*dto.DocumentStream, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateReference(reference); err != nil {
		return nil, err
	}

	obj, err := f.documents.Open(ctx, reference)
	if err != nil {
		return nil, f.documentFailure(ctx, actor, reference, err, metadata)
	}

	_ = createAuditLog(ctx, f.auditRepo, actor, "", models.AuditActionDocumentOpened,
		fmt.Sprintf("Document %s opened", reference), true, nil, metadata)

	return &dto.DocumentStream{
		Body:        obj.Body,
		ContentType: obj.ContentType,
		Filename:    obj.Filename,
		Size:        obj.Size,
	}, nil
}

func (f *ConversionFlowImpl) documentFailure(ctx context.Context, actor Actor, reference string, err error, metadata *ClientMetadata) error {
	errMsg := err.Error()
	_ = createAuditLog(ctx, f.auditRepo, actor, "", models.AuditActionDocumentOpenFailed,
		fmt.Sprintf("Document %s could not be opened", reference), false, &errMsg, metadata)

	var re *services.RemoteError
	if errors.As(err, &re) && re.NotFound() {
		return NewBusinessError("DOCUMENT_NOT_FOUND", "Document not found", ErrDocumentNotFound)
	}
	return remoteFailure("Failed to open document", err)
}

func validateReference(reference string) error {
	if strings.TrimSpace(reference) == "" {
		ve := NewValidationError()
		ve.Add("reference", services.ErrDocumentReferenceRequired.Error())
		return ve
	}
	return nil
}

func conversionUploads(req *dto.ConversionRequest) []services.UploadFile {
	var uploads []services.UploadFile
	add := func(field string, doc *dto.DocumentInput) {
		if doc == nil || doc.IsExisting || doc.File == nil {
			return
		}
		uploads = append(uploads, services.UploadFile{
			Field:       field,
			Filename:    doc.Filename,
			ContentType: doc.ContentType,
			Size:        doc.Size,
			Reader:      doc.File,
		})
	}
	add(services.PaymentDetailsFileField, req.PaymentDetailsFile)
	add(services.BookingFormFileField, req.BookingFormFile)
	return uploads
}

func conversionDescription(first bool) string {
	if first {
		return "Lead converted"
	}
	return "Conversion details updated"
}
