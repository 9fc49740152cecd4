package handler

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mkrell/selene/internal/domain"
)

// statusByCode maps domain error codes to HTTP statuses.
var statusByCode = map[string]int{
	domain.EINVALID:      http.StatusBadRequest,
	domain.ENOTFOUND:     http.StatusNotFound,
	domain.ECONFLICT:     http.StatusConflict,
	domain.EUNAUTHORIZED: http.StatusUnauthorized,
	domain.EFORBIDDEN:    http.StatusForbidden,
	domain.EPAYMENT:      http.StatusBadGateway,
	domain.EINTERNAL:     http.StatusInternalServerError,
}

// errorBody is the JSON error envelope for all API responses.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	// OrderID and OrderNumber are set only for payment gateway failures,
	// where the order was persisted and the caller can offer a retry.
	OrderID     string `json:"orderId,omitempty"`
	OrderNumber string `json:"orderNumber,omitempty"`
}

// ErrorHandler returns an echo HTTPErrorHandler that translates domain
// errors into the JSON envelope. Internal error details are logged, never
// sent to the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var body errorBody
		status := http.StatusInternalServerError

		var gwErr *domain.PaymentGatewayError
		var httpErr *echo.HTTPError

		switch {
		case errors.As(err, &gwErr):
			status = http.StatusBadGateway
			body.Error.Code = domain.EPAYMENT
			body.Error.Message = "payment session could not be created, please retry"
			body.OrderID = gwErr.OrderID
			body.OrderNumber = gwErr.OrderNumber
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body.Error.Code = codeForStatus(status)
			if msg, ok := httpErr.Message.(string); ok {
				body.Error.Message = msg
			} else {
				body.Error.Message = http.StatusText(status)
			}
		default:
			code := domain.ErrorCode(err)
			if s, ok := statusByCode[code]; ok {
				status = s
			}
			body.Error.Code = code
			body.Error.Message = domain.ErrorMessage(err)
		}

		if status >= 500 {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("request failed")
			body.Error.Message = "internal error"
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func codeForStatus(status int) string {
	for code, s := range statusByCode {
		if s == status {
			return code
		}
	}
	return domain.EINTERNAL
}

// local subscriber numbers, 8 digits with optional country prefix.
var phonePattern = regexp.MustCompile(`^(\+\d{1,3})?\d{8}$`)

// Validator adapts validator/v10 to echo's Validator interface.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Validate implements echo.Validator. Tag violations surface as EINVALID.
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return domain.Invalid("validate", "invalid field "+first.Field())
		}
		return domain.Invalid("validate", "invalid request body")
	}
	return nil
}
