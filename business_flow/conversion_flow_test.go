package businessflow

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/services"
	"github.com/amirphl/leadflow/config"
	"github.com/amirphl/leadflow/models"
	testutil "github.com/amirphl/leadflow/testing"
	"github.com/amirphl/leadflow/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeDocuments struct {
	url  string
	body string
	err  error
}

func (f *fakeDocuments) ViewURL(_ context.Context, reference string) (*services.DocumentURL, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.DocumentURL{URL: f.url + "?ref=" + reference, ExpiresAt: fixedNow().Add(5 * time.Minute)}, nil
}

func (f *fakeDocuments) Open(_ context.Context, reference string) (*services.DocumentObject, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.DocumentObject{
		Body:        io.NopCloser(strings.NewReader(f.body)),
		ContentType: "application/pdf",
		Filename:    reference,
		Size:        int64(len(f.body)),
	}, nil
}

func (d *flowDeps) conversionFlow(docs services.DocumentService, cfg config.LeadAPIConfig) ConversionFlow {
	return NewConversionFlow(d.store, docs, d.historyRepo, d.auditRepo, cfg)
}

func TestValidateConversion(t *testing.T) {
	base := func() *dto.ConversionRequest {
		return &dto.ConversionRequest{SignupAmount: "50000", PaymentDate: "2024-05-01"}
	}

	tests := []struct {
		name    string
		mutate  func(r *dto.ConversionRequest)
		field   models.LeadField
		wantErr bool
	}{
		{"accepted", func(r *dto.ConversionRequest) {}, "", false},
		{"signup not a number", func(r *dto.ConversionRequest) { r.SignupAmount = "abc" }, models.FieldSignupAmount, true},
		{"signup negative", func(r *dto.ConversionRequest) { r.SignupAmount = "-5" }, models.FieldSignupAmount, true},
		{"signup zero", func(r *dto.ConversionRequest) { r.SignupAmount = "0" }, models.FieldSignupAmount, true},
		{"signup over cap", func(r *dto.ConversionRequest) { r.SignupAmount = "1000000000" }, models.FieldSignupAmount, true},
		{"signup at cap", func(r *dto.ConversionRequest) { r.SignupAmount = "999999999" }, "", false},
		{"signup missing", func(r *dto.ConversionRequest) { r.SignupAmount = " " }, models.FieldSignupAmount, true},
		{"payment date missing", func(r *dto.ConversionRequest) { r.PaymentDate = "" }, models.FieldPaymentDate, true},
		{"payment date garbage", func(r *dto.ConversionRequest) { r.PaymentDate = "May first" }, models.FieldPaymentDate, true},
		{"payment date rfc3339", func(r *dto.ConversionRequest) { r.PaymentDate = "2024-05-01T10:00:00Z" }, "", false},
		{"pan lower case", func(r *dto.ConversionRequest) { r.PanNumber = "abcde1234f" }, "", false},
		{"pan short", func(r *dto.ConversionRequest) { r.PanNumber = "AB12" }, models.FieldPanNumber, true},
		{"txn id short", func(r *dto.ConversionRequest) { r.PaymentTransactionID = "T12" }, models.FieldPaymentTransactionID, true},
		{"txn id long", func(r *dto.ConversionRequest) { r.PaymentTransactionID = strings.Repeat("x", 51) }, models.FieldPaymentTransactionID, true},
		{"txn id ok", func(r *dto.ConversionRequest) { r.PaymentTransactionID = "UTR12345" }, "", false},
		{"gst ignored when unavailable", func(r *dto.ConversionRequest) { r.Gst = "nonsense" }, "", false},
		{"gst invalid", func(r *dto.ConversionRequest) { r.GstAvailable = true; r.Gst = "nonsense" }, models.FieldGst, true},
		{"gst valid", func(r *dto.ConversionRequest) { r.GstAvailable = true; r.Gst = "27abcde1234f1z5" }, "", false},
		{"gst available but empty", func(r *dto.ConversionRequest) { r.GstAvailable = true }, "", false},
		{"negative discount", func(r *dto.ConversionRequest) { r.Discount = "-1" }, models.FieldDiscount, true},
		{"signup NaN", func(r *dto.ConversionRequest) { r.SignupAmount = "NaN" }, models.FieldSignupAmount, true},
		{"signup Inf", func(r *dto.ConversionRequest) { r.SignupAmount = "Inf" }, models.FieldSignupAmount, true},
		{"signup hex", func(r *dto.ConversionRequest) { r.SignupAmount = "0x10" }, models.FieldSignupAmount, true},
		{"signup hex float", func(r *dto.ConversionRequest) { r.SignupAmount = "0x1p4" }, models.FieldSignupAmount, true},
		{"signup exponent", func(r *dto.ConversionRequest) { r.SignupAmount = "1e5" }, models.FieldSignupAmount, true},
		{"signup decimal", func(r *dto.ConversionRequest) { r.SignupAmount = "12500.50" }, "", false},
		{"discount NaN", func(r *dto.ConversionRequest) { r.Discount = "NaN" }, models.FieldDiscount, true},
		{"quoted amount Inf", func(r *dto.ConversionRequest) { r.QuotedAmount = "+Inf" }, models.FieldQuotedAmount, true},
		{"existing document without reference", func(r *dto.ConversionRequest) {
			r.BookingFormFile = &dto.DocumentInput{IsExisting: true}
		}, models.FieldBookingFormFileName, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(req)
			_, err := ValidateConversion(req)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			ve, ok := AsValidationError(err)
			require.True(t, ok)
			assert.Contains(t, ve.Fields, string(tt.field))
		})
	}
}

func TestValidateConversion_Normalizes(t *testing.T) {
	receipt := &dto.DocumentInput{Filename: "receipt.pdf", File: strings.NewReader("pdf")}
	details, err := ValidateConversion(&dto.ConversionRequest{
		SignupAmount:       "250000",
		PaymentDate:        "2024-05-01",
		PanNumber:          " abcde1234f ",
		QuotedAmount:       "300000",
		GstAvailable:       true,
		Gst:                "27abcde1234f1z5",
		PaymentMode:        "  ",
		PaymentDetailsFile: receipt,
	})
	require.NoError(t, err)

	assert.Equal(t, 250000.0, details.SignupAmount)
	assert.Equal(t, "ABCDE1234F", *details.PanNumber)
	assert.Equal(t, "27ABCDE1234F1Z5", *details.Gst)
	assert.Equal(t, 300000.0, *details.QuotedAmount)
	assert.Nil(t, details.PaymentMode)
	assert.Equal(t, "receipt.pdf", *details.PaymentDetailsFileName)
	assert.Nil(t, details.BookingFormFileName)
}

func TestValidateConversion_CollectsAllErrors(t *testing.T) {
	_, err := ValidateConversion(&dto.ConversionRequest{SignupAmount: "abc", PanNumber: "AB12"})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Len(t, ve.Fields, 3)
}

func TestConversionFlow_FirstConversion(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusVerified)
	after := lead.Clone()
	after.Status = models.LeadStatusConverted
	after.SignupAmount = utils.ToPtr(250000.0)

	d.expectLoadAndRefresh(lead, after)
	d.store.On("ConvertWithDocs", mock.Anything, lead.LeadID, mock.Anything, mock.Anything).Return(nil, nil).Once()

	resp, err := d.conversionFlow(&fakeDocuments{}, config.LeadAPIConfig{}).SubmitConversion(context.Background(), lead.LeadID,
		&dto.ConversionRequest{SignupAmount: "250000", PaymentDate: "2024-05-01"}, testSales, nil)
	require.NoError(t, err)

	sent := d.store.sentLead(t, "ConvertWithDocs")
	assert.Equal(t, models.LeadStatusConverted, sent.Status)
	assert.Equal(t, 250000.0, *sent.SignupAmount)
	assert.Equal(t, "2024-05-01", *sent.PaymentDate)
	assert.Nil(t, sent.PaymentDetailsFileName)
	assert.Nil(t, sent.BookingFormFileName)
	assert.Equal(t, lead.Name, sent.Name)
	assert.Equal(t, lead.SalesRep, sent.SalesRep)

	assert.Equal(t, "converted", resp.ActiveTab)
	assert.Equal(t, models.LeadStatusConverted, resp.Lead.Status)
	d.store.AssertNotCalled(t, "UpdateLead", mock.Anything, mock.Anything, mock.Anything)
	d.store.AssertNotCalled(t, "AdvanceStage", mock.Anything, mock.Anything, mock.Anything)
}

func TestConversionFlow_UploadsFiles(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusVerified)
	d.expectLoadAndRefresh(lead, lead)
	d.store.On("ConvertWithDocs", mock.Anything, lead.LeadID, mock.Anything, mock.MatchedBy(func(files []services.UploadFile) bool {
		return len(files) == 1 && files[0].Field == services.BookingFormFileField && files[0].Filename == "booking.pdf"
	})).Return(nil, nil).Once()

	_, err := d.conversionFlow(&fakeDocuments{}, config.LeadAPIConfig{}).SubmitConversion(context.Background(), lead.LeadID, &dto.ConversionRequest{
		SignupAmount:    "250000",
		PaymentDate:     "2024-05-01",
		BookingFormFile: &dto.DocumentInput{Filename: "booking.pdf", ContentType: "application/pdf", File: strings.NewReader("pdf")},
	}, testManager, nil)
	require.NoError(t, err)

	sent := d.store.sentLead(t, "ConvertWithDocs")
	assert.Equal(t, "booking.pdf", *sent.BookingFormFileName)
	d.store.AssertExpectations(t)
}

func TestConversionFlow_EditExistingDetails(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusConverted)
	lead.PaymentDetailsFileName = utils.ToPtr("s3://leads/receipt.pdf")
	d.expectLoadAndRefresh(lead, lead)
	d.store.On("UpdateLead", mock.Anything, lead.LeadID, mock.Anything).Return(nil, nil).Once()

	_, err := d.conversionFlow(&fakeDocuments{}, config.LeadAPIConfig{}).SubmitConversion(context.Background(), lead.LeadID, &dto.ConversionRequest{
		SignupAmount:       "300000",
		PaymentDate:        "2024-05-01",
		PaymentDetailsFile: &dto.DocumentInput{IsExisting: true, Reference: "s3://leads/receipt.pdf"},
	}, testManager, nil)
	require.NoError(t, err)

	sent := d.store.sentLead(t, "UpdateLead")
	assert.Equal(t, 300000.0, *sent.SignupAmount)
	assert.Equal(t, "s3://leads/receipt.pdf", *sent.PaymentDetailsFileName)
	assert.Equal(t, models.LeadStatusConverted, sent.Status)
	d.store.AssertNotCalled(t, "ConvertWithDocs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConversionFlow_SalesCannotRewriteConvertedDetails(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusConverted)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)

	_, err := d.conversionFlow(&fakeDocuments{}, config.LeadAPIConfig{}).SubmitConversion(context.Background(), lead.LeadID,
		&dto.ConversionRequest{SignupAmount: "1", PaymentDate: "2020-01-01"}, testSales, nil)
	require.Error(t, err)
	assert.True(t, IsFieldNotEditable(err))
	assert.Contains(t, err.Error(), string(models.FieldSignupAmount))

	d.store.AssertNotCalled(t, "UpdateLead", mock.Anything, mock.Anything, mock.Anything)
	d.store.AssertNotCalled(t, "UpdateLeadWithDocs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConversionFlow_UnchangedEditIsCancel(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusConverted)
	lead.GstAvailable = utils.ToPtr(false)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)

	resp, err := d.conversionFlow(&fakeDocuments{}, config.LeadAPIConfig{}).SubmitConversion(context.Background(), lead.LeadID,
		&dto.ConversionRequest{SignupAmount: "250000", PaymentDate: "2024-05-01"}, testSales, nil)
	require.NoError(t, err)
	assert.True(t, resp.Cancelled)
	d.store.AssertNotCalled(t, "UpdateLead", mock.Anything, mock.Anything, mock.Anything)
}

func TestConversionFlow_Preconditions(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusInProgress)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)
	flow := d.conversionFlow(&fakeDocuments{}, config.LeadAPIConfig{})

	_, err := flow.SubmitConversion(context.Background(), lead.LeadID,
		&dto.ConversionRequest{SignupAmount: "250000", PaymentDate: "2024-05-01"}, testSales, nil)
	assert.True(t, IsTransitionNotAllowed(err))

	verified := testutil.NewTestLead(models.LeadStatusVerified)
	d.store.On("GetLead", mock.Anything, verified.LeadID).Return(&verified, nil)
	_, err = flow.SubmitConversion(context.Background(), verified.LeadID,
		&dto.ConversionRequest{SignupAmount: "abc", PaymentDate: "2024-05-01"}, testSales, nil)
	assert.True(t, IsValidationError(err))

	d.store.AssertNotCalled(t, "ConvertWithDocs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConversionFlow_RemoteFailure(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusVerified)
	d.store.On("GetLead", mock.Anything, lead.LeadID).Return(&lead, nil)
	d.store.On("ConvertWithDocs", mock.Anything, lead.LeadID, mock.Anything, mock.Anything).
		Return(nil, &services.RemoteError{Operation: "convert lead", StatusCode: 422, Message: "Signup amount exceeds quotation"})

	_, err := d.conversionFlow(&fakeDocuments{}, config.LeadAPIConfig{}).SubmitConversion(context.Background(), lead.LeadID,
		&dto.ConversionRequest{SignupAmount: "250000", PaymentDate: "2024-05-01"}, testSales, nil)

	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "Signup amount exceeds quotation", be.Message)
	d.store.AssertNotCalled(t, "ListLeads", mock.Anything)

	logs, err := d.auditRepo.ListByAction(context.Background(), models.AuditActionConversionFailed, 10, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestConversionFlow_StageAdvanceIsBestEffort(t *testing.T) {
	d := newFlowDeps(t)
	lead := testutil.NewTestLead(models.LeadStatusVerified)
	lead.StageID = utils.ToPtr("stage-verified")
	d.expectLoadAndRefresh(lead, lead)
	d.store.On("ConvertWithDocs", mock.Anything, lead.LeadID, mock.Anything, mock.Anything).Return(nil, nil)
	d.store.On("AdvanceStage", mock.Anything, lead.LeadID, "stage-converted").Return(errors.New("stage service down"))

	cfg := config.LeadAPIConfig{ConvertedStageID: "stage-converted", StageAdvanceMaxElapsed: 10 * time.Millisecond}
	resp, err := d.conversionFlow(&fakeDocuments{}, cfg).SubmitConversion(context.Background(), lead.LeadID,
		&dto.ConversionRequest{SignupAmount: "250000", PaymentDate: "2024-05-01"}, testSales, nil)
	require.NoError(t, err)
	assert.False(t, resp.Cancelled)

	d.store.AssertCalled(t, "AdvanceStage", mock.Anything, lead.LeadID, "stage-converted")
	logs, err := d.auditRepo.ListByAction(context.Background(), models.AuditActionStageAdvanceFailed, 10, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestConversionFlow_Documents(t *testing.T) {
	d := newFlowDeps(t)
	flow := d.conversionFlow(&fakeDocuments{url: "https://files.example.com/view", body: "%PDF"}, config.LeadAPIConfig{})

	view, err := flow.DocumentURL(context.Background(), "receipt.pdf", testSales, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/view?ref=receipt.pdf", view.URL)
	assert.Equal(t, "receipt.pdf", view.Reference)

	doc, err := flow.OpenDocument(context.Background(), "receipt.pdf", testSales, nil)
	require.NoError(t, err)
	defer doc.Body.Close()
	body, err := io.ReadAll(doc.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body))

	_, err = flow.DocumentURL(context.Background(), " ", testSales, nil)
	assert.True(t, IsValidationError(err))
}

func TestConversionFlow_DocumentNotFound(t *testing.T) {
	d := newFlowDeps(t)
	flow := d.conversionFlow(&fakeDocuments{err: &services.RemoteError{Operation: "document url", StatusCode: 404}}, config.LeadAPIConfig{})

	_, err := flow.OpenDocument(context.Background(), "gone.pdf", testManager, nil)
	assert.True(t, IsDocumentNotFound(err))

	logs, err := d.auditRepo.ListByAction(context.Background(), models.AuditActionDocumentOpenFailed, 10, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
