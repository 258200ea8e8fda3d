package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("run %s not found", "r1"), KindNotFound},
		{"wrapped conflict", fmt.Errorf("enroll: %w", Conflict("already enrolled")), KindConflict},
		{"plain error", errors.New("boom"), KindInternal},
		{"internal", Internal(errors.New("disk"), "failed to commit"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindNotFound:        http.StatusNotFound,
		KindConflict:        http.StatusConflict,
		KindInvalidArgument: http.StatusBadRequest,
		KindUnauthenticated: http.StatusUnauthorized,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := kind.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", kind, got, want)
		}
	}
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	err := Internal(errors.New("database is locked"), "failed to record payment")
	if got := PublicMessage(err); got != "internal server error" {
		t.Errorf("PublicMessage() = %q, want generic message", got)
	}

	if got := PublicMessage(InvalidArgument("not a session member")); got != "not a session member" {
		t.Errorf("PublicMessage() = %q, want %q", got, "not a session member")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("constraint failed")
	err := Internal(cause, "failed to insert")
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}
