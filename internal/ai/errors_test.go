package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"missing key", fmt.Errorf("start: %w", ErrMissingCredential), KindMissingCredential},
		{"blocked", fmt.Errorf("veo: %w", ErrContentBlocked), KindContentBlocked},
		{"deadline", fmt.Errorf("poll: %w", context.DeadlineExceeded), KindTimeout},
		{"genai quota status", fmt.Errorf("gemini: %w", genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "Quota exceeded"}), KindQuotaExceeded},
		{"genai bad key", genai.APIError{Code: 400, Status: "INVALID_ARGUMENT", Message: "API key not valid. Please pass a valid API key."}, KindInvalidCredential},
		{"openrouter 401", &StatusError{Provider: "openrouter", Code: http.StatusUnauthorized}, KindInvalidCredential},
		{"plain text quota", errors.New("upstream said: quota exhausted"), KindQuotaExceeded},
		{"plain text safety", errors.New("response flagged by SAFETY"), KindContentBlocked},
		{"unknown", errors.New("connection reset by peer"), KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestKindMessageKeyAndStatus(t *testing.T) {
	if KindQuotaExceeded.MessageKey() != "errors.quotaExceeded" || KindQuotaExceeded.HTTPStatus() != http.StatusTooManyRequests {
		t.Fatalf("unexpected quota mapping")
	}
	if KindUnknown.MessageKey() != "errors.generic" || KindUnknown.HTTPStatus() != http.StatusInternalServerError {
		t.Fatalf("unexpected unknown mapping")
	}
	if KindMissingCredential.MessageKey() != "errors.apiKeyMissing" {
		t.Fatalf("unexpected missing key mapping")
	}
}
