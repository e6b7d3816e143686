package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	draftdomain "github.com/smallbiznis/rampline/internal/draft/domain"
	quotedomain "github.com/smallbiznis/rampline/internal/quote/domain"
	"github.com/smallbiznis/rampline/internal/salescloud"
	"github.com/smallbiznis/rampline/internal/syncer"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var graphErr *salescloud.GraphError
	if errors.As(err, &graphErr) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "graph_rejected",
			Message: graphErr.Message,
		}
	}

	var saveErr *syncer.SaveError
	if errors.As(err, &saveErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "save_failed",
			Message: saveErr.Error(),
		}
	}

	switch {
	case errors.Is(err, syncer.ErrSaveInFlight):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "a save for this quote is already running",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, salescloud.ErrMissingAuthToken),
		errors.Is(err, salescloud.ErrRequestFailed),
		errors.Is(err, salescloud.ErrResponseInvalid):
		return http.StatusBadGateway, errorPayload{
			Type:    "backend_error",
			Message: "backend request failed",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, quotedomain.ErrInvalidDate),
		errors.Is(err, quotedomain.ErrInvalidCadence),
		errors.Is(err, quotedomain.ErrInvalidStartDate),
		errors.Is(err, quotedomain.ErrTermTooLong),
		errors.Is(err, quotedomain.ErrPeriodTooLong),
		errors.Is(err, quotedomain.ErrTooManyPeriods),
		errors.Is(err, quotedomain.ErrPeriodsNotOrdered),
		errors.Is(err, quotedomain.ErrMissingPeriods),
		errors.Is(err, quotedomain.ErrMissingPrimaryLine),
		errors.Is(err, draftdomain.ErrPeriodOutOfRange):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, quotedomain.ErrQuoteNotFound),
		errors.Is(err, draftdomain.ErrDraftNotFound),
		errors.Is(err, salescloud.ErrRelationshipTypeNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog tags request log lines with a coarse error type.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
