package apperrors

import (
	"errors"
	"testing"
)

func TestKindOfClassifiesWrappedError(t *testing.T) {
	err := NotFoundf("session %s not found", "s1")
	if got := KindOf(err); got != KindNotFound {
		t.Fatalf("expected KindNotFound, got %s", got)
	}

	wrapped := Wrap(KindTooManyRequest, err, "upstream throttled")
	if got := KindOf(wrapped); got != KindTooManyRequest {
		t.Fatalf("expected KindTooManyRequest, got %s", got)
	}
	if !errors.Is(wrapped, wrapped) {
		t.Fatalf("expected wrapped error to be comparable to itself")
	}
	if !errors.As(wrapped, new(*Error)) {
		t.Fatalf("expected errors.As to unwrap into *Error")
	}
}

func TestKindOfDefaultsToServer(t *testing.T) {
	if got := KindOf(errors.New("plain error")); got != KindServer {
		t.Fatalf("expected KindServer fallback, got %s", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindServer, cause, "dial upstream")
	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap to expose cause")
	}
}
