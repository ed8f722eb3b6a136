// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/leadflow/app/dto"
	"github.com/amirphl/leadflow/app/middleware"
	businessflow "github.com/amirphl/leadflow/business_flow"
	"github.com/amirphl/leadflow/models"
	"github.com/amirphl/leadflow/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	return baseHandler{validator: NewValidator()}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and writes the 400 response when it fails
func (h *baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	if err := h.validator.Struct(req); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) {
			return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
		}
		details := make(map[string]string, len(errs))
		for _, e := range errs {
			details[e.Field()] = getValidationErrorMessage(e)
		}
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	return true, nil
}

// actor reads the authenticated console user stored by the auth middleware
func (h *baseHandler) actor(c fiber.Ctx) (businessflow.Actor, bool) {
	claims, ok := middleware.GetTokenClaimsFromContext(c)
	if !ok || claims == nil {
		return businessflow.Actor{}, false
	}
	actor := businessflow.Actor{Name: claims.UserName, Role: claims.Role}
	return actor, actor.Valid()
}

func (h *baseHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(h.requestID(c))
	metadata.AddAdditional("method", c.Method())
	metadata.AddAdditional("path", c.Path())
	return metadata
}

func (h *baseHandler) requestID(c fiber.Ctx) string {
	if id, ok := c.Locals(middleware.LocalRequestID).(string); ok && id != "" {
		return id
	}
	if id := c.Get("X-Request-ID"); id != "" {
		return id
	}
	return c.GetRespHeader("X-Request-ID")
}

func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, utils.DefaultRequestTimeout)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, h.requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	if token, ok := c.Locals(middleware.LocalAccessToken).(string); ok && token != "" {
		ctx = context.WithValue(ctx, utils.BearerTokenKey, token)
	}
	if actor, ok := h.actor(c); ok {
		ctx = context.WithValue(ctx, utils.ActorKey, actor.Name)
	}

	return ctx, cancel
}

// flowError maps business flow failures to HTTP responses
func (h *baseHandler) flowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	if ve, ok := businessflow.AsValidationError(err); ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", ve.Fields)
	}

	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		switch be.Code {
		case "LEAD_ID_REQUIRED", "LOST_REASON_REQUIRED", "REASON_KIND_INVALID":
			return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
		case "ACTOR_REQUIRED":
			return h.ErrorResponse(c, fiber.StatusUnauthorized, be.Message, be.Code, nil)
		case "FIELD_NOT_EDITABLE":
			return h.ErrorResponse(c, fiber.StatusForbidden, be.Message, be.Code, nil)
		case "LEAD_NOT_FOUND", "DOCUMENT_NOT_FOUND", "REASON_DRAFT_NOT_FOUND":
			return h.ErrorResponse(c, fiber.StatusNotFound, be.Message, be.Code, nil)
		case "TRANSITION_NOT_ALLOWED", "MUTATION_IN_FLIGHT", "CONVERSION_FORM_REQUIRED":
			return h.ErrorResponse(c, fiber.StatusConflict, be.Message, be.Code, nil)
		case "REMOTE_FAILURE":
			return h.ErrorResponse(c, fiber.StatusBadGateway, be.Message, be.Code, nil)
		case "CACHE_NOT_AVAILABLE":
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, be.Message, be.Code, nil)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return h.ErrorResponse(c, fiber.StatusGatewayTimeout, "Request timed out", "REQUEST_TIMEOUT", nil)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

// NewValidator returns a validator with the lead specific tags registered
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("lead_status", validateLeadStatus)
	_ = v.RegisterValidation("property_type", validatePropertyType)
	return v
}

func validateLeadStatus(fl validator.FieldLevel) bool {
	return models.LeadStatus(fl.Field().String()).Valid()
}

func validatePropertyType(fl validator.FieldLevel) bool {
	return models.PropertyType(strings.TrimSpace(fl.Field().String())).Valid()
}

func leadStatusNames() string {
	names := make([]string, 0, len(models.LeadStatuses))
	for _, s := range models.LeadStatuses {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	case "lead_status":
		return err.Field() + " must be one of: " + leadStatusNames()
	case "property_type":
		return err.Field() + " is not a known property type"
	default:
		return err.Field() + " is invalid"
	}
}
