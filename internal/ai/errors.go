package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

var (
	ErrMissingCredential = errors.New("ai: api key is not configured")
	ErrContentBlocked    = errors.New("ai: content blocked by safety filters")
	ErrNoVideo           = errors.New("ai: operation finished without a video")
)

type Kind int

const (
	KindUnknown Kind = iota
	KindMissingCredential
	KindInvalidCredential
	KindQuotaExceeded
	KindContentBlocked
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindMissingCredential:
		return "missing_credential"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindContentBlocked:
		return "content_blocked"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// MessageKey is the dotted translation key shown to the user.
func (k Kind) MessageKey() string {
	switch k {
	case KindMissingCredential:
		return "errors.apiKeyMissing"
	case KindInvalidCredential:
		return "errors.apiKeyInvalid"
	case KindQuotaExceeded:
		return "errors.quotaExceeded"
	case KindContentBlocked:
		return "errors.contentBlocked"
	case KindTimeout:
		return "errors.timeout"
	default:
		return "errors.generic"
	}
}

func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidCredential:
		return http.StatusUnauthorized
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindContentBlocked:
		return http.StatusUnprocessableEntity
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// StatusError is a non-2xx reply from an HTTP provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// Classify maps an error from any provider onto a Kind. Typed errors are checked
// first; message text is only a fallback for errors that arrive as plain strings.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	switch {
	case errors.Is(err, ErrMissingCredential):
		return KindMissingCredential
	case errors.Is(err, ErrContentBlocked):
		return KindContentBlocked
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if k := classifyStatus(apiErr.Code, apiErr.Status); k != KindUnknown {
			return k
		}
		return classifyText(apiErr.Message)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if k := classifyStatus(statusErr.Code, ""); k != KindUnknown {
			return k
		}
		return classifyText(statusErr.Body)
	}
	return classifyText(err.Error())
}

func classifyStatus(code int, status string) Kind {
	switch strings.ToUpper(status) {
	case "RESOURCE_EXHAUSTED":
		return KindQuotaExceeded
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return KindInvalidCredential
	case "DEADLINE_EXCEEDED":
		return KindTimeout
	}
	switch code {
	case http.StatusTooManyRequests:
		return KindQuotaExceeded
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindInvalidCredential
	case http.StatusGatewayTimeout:
		return KindTimeout
	}
	return KindUnknown
}

func classifyText(msg string) Kind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "resource_exhausted"), strings.Contains(m, "quota"):
		return KindQuotaExceeded
	case strings.Contains(m, "api key"), strings.Contains(m, "api_key_invalid"):
		return KindInvalidCredential
	case strings.Contains(m, "safety"), strings.Contains(m, "blocked"):
		return KindContentBlocked
	}
	return KindUnknown
}
