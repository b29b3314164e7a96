package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies every error the booking flow surfaces to its callers.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFoundOrEmpty Kind = "not_found_or_empty"
	KindConflict        Kind = "conflict"
	KindCouponRejected  Kind = "coupon_rejected"
	KindUnauthorized    Kind = "unauthorized"
	KindTransport       Kind = "transport"
)

// ConflictReason refines KindConflict.
type ConflictReason string

const (
	ReasonSlotTaken           ConflictReason = "slot_taken"
	ReasonEmployeeUnavailable ConflictReason = "employee_unavailable"
)

var (
	ErrContract         = errors.New("booking: contract violation")
	ErrStale            = errors.New("booking: response superseded by a newer selection")
	ErrSessionClosed    = errors.New("booking: session closed")
	ErrSubmitInProgress = errors.New("booking: submission already in progress")
	ErrAlreadySubmitted = errors.New("booking: draft already submitted")

	ErrMissingFields     = errors.New("booking: draft is missing required selections")
	ErrOutOfOrder        = errors.New("booking: selection made before its prerequisite")
	ErrDateNotBookable   = errors.New("booking: date is not an active day for the seller")
	ErrSlotNotOffered    = errors.New("booking: time is not an available slot for the date")
	ErrUnknownEmployee   = errors.New("booking: employee does not perform this service")
	ErrEmployeeBusy      = errors.New("booking: employee is busy at the selected time")
	ErrInvalidPayment    = errors.New("booking: unknown payment option")
	ErrEmptyCouponCode   = errors.New("booking: coupon code is required")
	ErrCouponPending     = errors.New("booking: coupon validation in progress")
	ErrAvailabilityStale = errors.New("booking: availability is still loading")
)

// Error is a classified booking failure.
type Error struct {
	Kind    Kind
	Reason  ConflictReason
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("booking")
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		b.WriteString(" (" + string(e.Reason) + ")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil && (e.Message == "" || e.Kind == KindTransport) {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func validationError(op string, sentinel error, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg, Err: sentinel}
}

// RemoteStatus is implemented by backend client errors that carry an HTTP status.
type RemoteStatus interface {
	StatusCode() int
	BackendMessage() string
}

// classify converts a collaborator failure into the booking taxonomy. It is
// the only place raw transport errors are inspected.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, ErrContract) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransport, Op: op, Message: "request abandoned", Err: err}
	}

	var remote RemoteStatus
	if !errors.As(err, &remote) {
		return &Error{Kind: KindTransport, Op: op, Message: "marketplace unreachable", Err: err}
	}
	msg := remote.BackendMessage()
	status := remote.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: KindUnauthorized, Op: op, Message: msg, Err: err}
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFoundOrEmpty, Op: op, Message: msg, Err: err}
	case status == http.StatusConflict:
		return &Error{Kind: KindConflict, Reason: conflictReason(msg), Op: op, Message: msg, Err: err}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if op == opApplyCoupon {
			return &Error{Kind: KindCouponRejected, Op: op, Message: msg, Err: err}
		}
		if op == opSubmit && looksLikeConflict(msg) {
			return &Error{Kind: KindConflict, Reason: conflictReason(msg), Op: op, Message: msg, Err: err}
		}
		return &Error{Kind: KindValidation, Op: op, Message: msg, Err: err}
	default:
		return &Error{Kind: KindTransport, Op: op, Message: msg, Err: err}
	}
}

func conflictReason(msg string) ConflictReason {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "employee") || strings.Contains(lower, "staff") {
		return ReasonEmployeeUnavailable
	}
	return ReasonSlotTaken
}

func looksLikeConflict(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range []string{"not available", "unavailable", "already booked", "busy", "taken"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

const (
	opActiveDays    = "active_days"
	opAvailableTime = "available_times"
	opBusyEmployees = "busy_employees"
	opApplyCoupon   = "apply_coupon"
	opSubmit        = "submit"
)
