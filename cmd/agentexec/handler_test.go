package main

import (
	"net/http"
	"testing"

	"github.com/haasonsaas/agentexec/internal/apperrors"
)

func TestStatusForKindMapsEveryKind(t *testing.T) {
	cases := map[apperrors.Kind]int{
		apperrors.KindBadRequest:     http.StatusBadRequest,
		apperrors.KindNotFound:       http.StatusNotFound,
		apperrors.KindValidation:     http.StatusUnprocessableEntity,
		apperrors.KindTooManyRequest: http.StatusTooManyRequests,
		apperrors.KindServer:         http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := statusForKind(kind); got != want {
			t.Errorf("statusForKind(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestStatusForKindDefaultsToServerErrorForUnknownKind(t *testing.T) {
	if got := statusForKind("something_unclassified"); got != http.StatusInternalServerError {
		t.Fatalf("expected default 500 for unrecognized kind, got %d", got)
	}
}

func TestParseSessionIDExtractsPathSegment(t *testing.T) {
	id, ok := parseSessionID("/sessions/abc-123/chat")
	if !ok || id != "abc-123" {
		t.Fatalf("unexpected parse result: id=%q ok=%v", id, ok)
	}
}

func TestParseSessionIDRejectsMalformedPaths(t *testing.T) {
	cases := []string{"/sessions//chat", "/other/path", "/sessions/abc-123", "/sessions/abc/notchat"}
	for _, path := range cases {
		if _, ok := parseSessionID(path); ok {
			t.Errorf("expected parseSessionID(%q) to reject the path", path)
		}
	}
}
