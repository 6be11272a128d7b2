package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"flagcli/internal/config"
	apperrors "flagcli/internal/errors"
)

// DefaultMaxBodySize bounds request bodies read by the validator
const DefaultMaxBodySize int64 = 1 << 20

// RequestValidator decodes JSON request bodies and validates them against
// their struct tags
type RequestValidator struct {
	validator   *validator.Validate
	logger      *slog.Logger
	maxBodySize int64
}

// NewRequestValidator creates a validator sharing the job validation rules
func NewRequestValidator(logger *slog.Logger) *RequestValidator {
	return &RequestValidator{
		validator:   config.NewValidator(),
		logger:      logger.With(slog.String("component", "request_validator")),
		maxBodySize: DefaultMaxBodySize,
	}
}

// Decode reads r's JSON body into dst. Unknown fields are rejected; an empty
// body leaves dst unchanged.
func (v *RequestValidator) Decode(r *http.Request, dst interface{}) *apperrors.APIError {
	if r.Body == nil {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, v.maxBodySize+1))
	if err != nil {
		v.logger.WarnContext(r.Context(), "failed to read request body",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(r.Context())))
		return apperrors.InvalidRequestWithError(err)
	}
	if int64(len(body)) > v.maxBodySize {
		return apperrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			"Request body exceeds maximum allowed size",
			map[string]interface{}{"max_size": v.maxBodySize})
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewWithDetails(http.StatusBadRequest, "INVALID_JSON",
			"Request body contains invalid JSON", err.Error())
	}
	return nil
}

// Struct validates s and reports every failing field
func (v *RequestValidator) Struct(s interface{}) *apperrors.APIError {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.InvalidRequestWithError(err)
	}

	out := make([]apperrors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperrors.ValidationError{
			Field:   fe.Field(),
			Message: config.FormatFieldError(fe),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return apperrors.NewValidationErrors(out)
}

// ContentTypeValidator rejects bodies that are not of one of contentTypes.
// Requests without a body pass.
func ContentTypeValidator(contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			for _, allowed := range contentTypes {
				if strings.HasPrefix(contentType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			apiErr := apperrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				fmt.Sprintf("Unsupported content type %q", contentType),
				map[string]interface{}{"allowed": contentTypes},
			)
			render.Render(w, r, apperrors.NewErrorResponse(apiErr))
		})
	}
}
