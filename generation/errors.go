package generation

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/promptar/promptar/types"
)

// User-safe messages keyed by coarse cause. Raw upstream error text never
// reaches a client; it is logged server-side only.
const (
	msgBusy        = "The generation service is busy right now. Please try again in a few minutes."
	msgTimeout     = "The generation service took too long to respond. Please try again."
	msgUnavailable = "The generation service is temporarily unavailable. Please try again later."
	msgNetwork     = "Could not reach the generation service. Please try again."
	msgGeneric     = "Model generation failed. Please try again."
	msgArtifact    = "The generated model could not be stored or processed."
)

// classify maps a raw generation failure onto the error taxonomy with a
// sanitized message. Structured errors produced deeper in the pipeline
// pass through unchanged.
func classify(err error, backend string) *types.Error {
	var typed *types.Error
	if errors.As(err, &typed) {
		return typed
	}

	if isTimeoutErr(err) {
		return types.NewError(types.ErrUpstreamTimeout, msgTimeout).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true).
			WithBackend(backend).
			WithCause(err)
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "quota") || strings.Contains(text, "rate limit") ||
		strings.Contains(text, "429") || strings.Contains(text, "busy"):
		return types.NewError(types.ErrQuotaExceeded, msgBusy).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true).
			WithBackend(backend).
			WithCause(err)
	case strings.Contains(text, "no such host") || strings.Contains(text, "connection refused") ||
		strings.Contains(text, "unreachable") || strings.Contains(text, "connection reset"):
		return types.NewError(types.ErrRemoteCallFailed, msgNetwork).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true).
			WithBackend(backend).
			WithCause(err)
	default:
		return types.NewError(types.ErrRemoteCallFailed, msgGeneric).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithBackend(backend).
			WithCause(err)
	}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
