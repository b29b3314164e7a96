package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		op         string
		err        error
		wantKind   Kind
		wantReason ConflictReason
	}{
		{"unauthorized", opAvailableTime, &remoteErr{401, "Unauthenticated."}, KindUnauthorized, ""},
		{"forbidden", opSubmit, &remoteErr{403, "forbidden"}, KindUnauthorized, ""},
		{"not found", opActiveDays, &remoteErr{404, "no seller"}, KindNotFoundOrEmpty, ""},
		{"conflict slot", opSubmit, &remoteErr{409, "This time is already booked"}, KindConflict, ReasonSlotTaken},
		{"conflict employee", opSubmit, &remoteErr{409, "Employee is not available"}, KindConflict, ReasonEmployeeUnavailable},
		{"submit 422 busy", opSubmit, &remoteErr{422, "The employee is busy at this time"}, KindConflict, ReasonEmployeeUnavailable},
		{"submit 422 other", opSubmit, &remoteErr{422, "date is required"}, KindValidation, ""},
		{"coupon 400", opApplyCoupon, &remoteErr{400, "Invalid coupon"}, KindCouponRejected, ""},
		{"server error", opAvailableTime, &remoteErr{500, "oops"}, KindTransport, ""},
		{"network", opAvailableTime, errors.New("connection refused"), KindTransport, ""},
		{"cancelled", opAvailableTime, fmt.Errorf("do: %w", context.Canceled), KindTransport, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.op, tt.err)
			var be *Error
			if !errors.As(got, &be) {
				t.Fatalf("expected *Error, got %T", got)
			}
			if be.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", be.Kind, tt.wantKind)
			}
			if be.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", be.Reason, tt.wantReason)
			}
			if !errors.Is(got, tt.err) && !errors.Is(got, context.Canceled) {
				t.Errorf("classified error does not wrap the cause")
			}
		})
	}
}

func TestClassify_PassesThroughClassified(t *testing.T) {
	orig := validationError(opSubmit, ErrMissingFields, "missing date")
	if got := classify(opSubmit, orig); got != error(orig) {
		t.Fatalf("expected the same error back, got %v", got)
	}
	if classify(opSubmit, nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindConflict, Reason: ReasonSlotTaken, Op: opSubmit, Message: "taken"}
	want := "booking: submit: conflict (slot_taken): taken"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}
