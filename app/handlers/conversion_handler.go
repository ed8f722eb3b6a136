package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/amirphl/leadflow/app/dto"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/amirphl/leadflow/utils"
	"github.com/gofiber/fiber/v3"
)

// ConversionHandlerInterface defines the contract for conversion and document handlers
type ConversionHandlerInterface interface {
	SubmitConversion(c fiber.Ctx) error
	DocumentURL(c fiber.Ctx) error
	OpenDocument(c fiber.Ctx) error
}

// ConversionHandler handles the conversion form and stored document access
type ConversionHandler struct {
	baseHandler
	flow businessflow.ConversionFlow
}

// NewConversionHandler creates a new conversion handler
func NewConversionHandler(flow businessflow.ConversionFlow) *ConversionHandler {
	return &ConversionHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// SubmitConversion
// @Summary Submit conversion
// @Description Convert a Verified lead or edit the conversion details of a Converted lead. Each document is either a new upload or a reference to an already stored file.
// @Tags Conversion
// @Accept mpfd
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param signup_amount formData string true "Signup amount"
// @Param payment_date formData string true "Payment date (YYYY-MM-DD)"
// @Param quoted_amount formData string false "Quoted amount"
// @Param final_quotation formData string false "Final quotation"
// @Param discount formData string false "Discount"
// @Param payment_mode formData string false "Payment mode"
// @Param pan_number formData string false "PAN"
// @Param project_timeline formData string false "Project timeline"
// @Param payment_transaction_id formData string false "Payment transaction id (5-50 chars)"
// @Param gst_available formData boolean false "GST registered"
// @Param gst formData string false "GSTIN"
// @Param payment_details_file formData file false "Payment details document (<=10MB)"
// @Param payment_details_reference formData string false "Reference of an already stored payment details document"
// @Param booking_form_file formData file false "Booking form document (<=10MB)"
// @Param booking_form_reference formData string false "Reference of an already stored booking form"
// @Success 200 {object} dto.APIResponse{data=dto.LeadMutationResponse} "Conversion saved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 409 {object} dto.APIResponse "Lead is not Verified or Converted"
// @Failure 502 {object} dto.APIResponse "Lead API failure"
// @Router /api/v1/leads/{id}/convert [post]
func (h *ConversionHandler) SubmitConversion(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	var req dto.ConversionRequest
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid multipart form", "INVALID_REQUEST", err.Error())
		}
		h.bindConversionForm(c, &req)

		var closers []io.Closer
		defer func() {
			for _, cl := range closers {
				_ = cl.Close()
			}
		}()

		for _, part := range []struct {
			field  string
			target **dto.DocumentInput
		}{
			{field: "payment_details", target: &req.PaymentDetailsFile},
			{field: "booking_form", target: &req.BookingFormFile},
		} {
			doc, closer, err := documentInput(form, c.FormValue(part.field+"_reference"), part.field+"_file")
			if err != nil {
				return h.ErrorResponse(c, fiber.StatusBadRequest, "File upload failed", "FILE_UPLOAD_FAILED", err.Error())
			}
			if closer != nil {
				closers = append(closers, closer)
			}
			*part.target = doc
		}
	} else {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/leads/:id/convert", utils.UploadRequestTimeout)
	defer cancel()

	result, err := h.flow.SubmitConversion(ctx, c.Params("id"), &req, actor, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to save conversion", "CONVERSION_FAILED")
	}
	if result.Cancelled {
		return h.SuccessResponse(c, fiber.StatusOK, "No changes to save", result)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Conversion saved successfully", result)
}

func (h *ConversionHandler) bindConversionForm(c fiber.Ctx, req *dto.ConversionRequest) {
	req.QuotedAmount = c.FormValue("quoted_amount")
	req.FinalQuotation = c.FormValue("final_quotation")
	req.SignupAmount = c.FormValue("signup_amount")
	req.PaymentDate = c.FormValue("payment_date")
	req.PaymentMode = c.FormValue("payment_mode")
	req.PanNumber = c.FormValue("pan_number")
	req.ProjectTimeline = c.FormValue("project_timeline")
	req.Discount = c.FormValue("discount")
	req.PaymentTransactionID = c.FormValue("payment_transaction_id")
	req.Gst = c.FormValue("gst")
	req.GstAvailable, _ = strconv.ParseBool(c.FormValue("gst_available"))
}

// documentInput prefers a fresh upload over a stored reference
func documentInput(form *multipart.Form, reference, fileField string) (*dto.DocumentInput, io.Closer, error) {
	if files := form.File[fileField]; len(files) > 0 {
		fh := files[0]
		if fh.Size > utils.MaxDocumentSize {
			return nil, nil, fmt.Errorf("%s exceeds %d bytes", fh.Filename, utils.MaxDocumentSize)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, nil, err
		}
		return &dto.DocumentInput{
			Filename:    fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			File:        f,
		}, f, nil
	}

	if reference = strings.TrimSpace(reference); reference != "" {
		return &dto.DocumentInput{IsExisting: true, Reference: reference}, nil, nil
	}
	return nil, nil, nil
}

// DocumentURL
// @Summary Document view URL
// @Description Exchange a stored file reference for a short-lived viewable URL
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param reference query string true "Stored file reference"
// @Success 200 {object} dto.APIResponse{data=dto.DocumentURLResponse} "URL issued"
// @Failure 400 {object} dto.APIResponse "Missing reference"
// @Failure 404 {object} dto.APIResponse "Document not found"
// @Failure 502 {object} dto.APIResponse "Document service failure"
// @Router /api/v1/documents/url [get]
func (h *ConversionHandler) DocumentURL(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/documents/url")
	defer cancel()

	result, err := h.flow.DocumentURL(ctx, c.Query("reference"), actor, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to get document URL", "DOCUMENT_URL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Document URL issued successfully", result)
}

// OpenDocument
// @Summary Open document
// @Description Stream a stored conversion document using the caller's credentials
// @Tags Documents
// @Produce octet-stream
// @Security BearerAuth
// @Param reference query string true "Stored file reference"
// @Success 200 {file} file "Document"
// @Failure 400 {object} dto.APIResponse "Missing reference"
// @Failure 404 {object} dto.APIResponse "Document not found"
// @Failure 502 {object} dto.APIResponse "Document service failure"
// @Router /api/v1/documents [get]
func (h *ConversionHandler) OpenDocument(c fiber.Ctx) error {
	actor, ok := h.actor(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authenticated user not found in context", "ACTOR_REQUIRED", nil)
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/documents", utils.UploadRequestTimeout)
	defer cancel()

	doc, err := h.flow.OpenDocument(ctx, c.Query("reference"), actor, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to open document", "DOCUMENT_OPEN_FAILED")
	}
	defer doc.Body.Close()

	// the request context ends with this handler, so the body is read before returning
	content, err := io.ReadAll(io.LimitReader(doc.Body, utils.MaxDocumentSize+1))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadGateway, "Failed to read document", "DOCUMENT_OPEN_FAILED", nil)
	}
	if len(content) > utils.MaxDocumentSize {
		return h.ErrorResponse(c, fiber.StatusBadGateway, "Document is too large to stream", "DOCUMENT_TOO_LARGE", nil)
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", doc.Filename))
	return c.Status(fiber.StatusOK).Send(content)
}
