package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/leen-storefront/internal/booking"
	"github.com/wolfman30/leen-storefront/internal/chat"
	"github.com/wolfman30/leen-storefront/internal/drafts"
	"github.com/wolfman30/leen-storefront/internal/storefront"
	"github.com/wolfman30/leen-storefront/pkg/logging"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string        `json:"error"`
	Kind   string        `json:"kind"`
	Reason string        `json:"reason,omitempty"`
	Fields []string      `json:"fields,omitempty"`
	Draft  *booking.View `json:"draft,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kindForStatus(status)})
}

// decodeBody reads a JSON request body into dst and validates its tags.
// Failures are written to w and reported as false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
			}
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
				Error:  "request failed validation",
				Kind:   string(booking.KindValidation),
				Fields: fields,
			})
			return false
		}
		jsonError(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// errorStatus maps a failure onto its HTTP status and kind label.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, drafts.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, booking.ErrStale):
		return http.StatusConflict, "stale"
	case errors.Is(err, booking.ErrSessionClosed):
		return http.StatusGone, "closed"
	case errors.Is(err, booking.ErrSubmitInProgress):
		return http.StatusConflict, "submit_in_progress"
	case errors.Is(err, booking.ErrAlreadySubmitted):
		return http.StatusConflict, "already_submitted"
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusUnprocessableEntity, string(booking.KindValidation)
	case errors.Is(err, chat.ErrNotConfigured):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, chat.ErrAuthRejected), errors.Is(err, storefront.ErrNoToken):
		return http.StatusUnauthorized, string(booking.KindUnauthorized)
	}

	switch booking.KindOf(err) {
	case booking.KindValidation, booking.KindCouponRejected:
		return http.StatusUnprocessableEntity, string(booking.KindOf(err))
	case booking.KindNotFoundOrEmpty:
		return http.StatusNotFound, string(booking.KindNotFoundOrEmpty)
	case booking.KindConflict:
		return http.StatusConflict, string(booking.KindConflict)
	case booking.KindUnauthorized:
		return http.StatusUnauthorized, string(booking.KindUnauthorized)
	case booking.KindTransport:
		return http.StatusBadGateway, string(booking.KindTransport)
	}

	var apiErr *storefront.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			return http.StatusUnauthorized, string(booking.KindUnauthorized)
		case apiErr.Status == http.StatusNotFound:
			return http.StatusNotFound, string(booking.KindNotFoundOrEmpty)
		case apiErr.Status == http.StatusConflict:
			return http.StatusConflict, string(booking.KindConflict)
		case apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnprocessableEntity:
			return http.StatusUnprocessableEntity, string(booking.KindValidation)
		default:
			return http.StatusBadGateway, string(booking.KindTransport)
		}
	}
	if errors.Is(err, storefront.ErrTransport) {
		return http.StatusBadGateway, string(booking.KindTransport)
	}
	return http.StatusInternalServerError, "internal"
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return string(booking.KindValidation)
	case http.StatusUnauthorized:
		return string(booking.KindUnauthorized)
	case http.StatusNotFound:
		return "not_found"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// errorMessage prefers the backend's own wording for classified failures.
func errorMessage(err error) string {
	var be *booking.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	var apiErr *storefront.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, logger *logging.Logger, err error, view *booking.View) {
	status, kind := errorStatus(err)
	resp := ErrorResponse{Error: errorMessage(err), Kind: kind, Draft: view}
	var be *booking.Error
	if errors.As(err, &be) {
		resp.Reason = string(be.Reason)
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
		if status == http.StatusInternalServerError {
			resp.Error = "internal error"
		}
	} else {
		logger.Debug("request rejected", "status", status, "kind", kind, "error", err)
	}
	writeJSON(w, status, resp)
}
