package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	openaiclient "github.com/openai/openai-go/v2"
	"google.golang.org/api/googleapi"
)

// Kind classifies a provider failure so callers can decide between retrying,
// advancing to the next provider, or giving up.
type Kind string

const (
	// KindAuth covers rejected or missing credentials. Never retried.
	KindAuth Kind = "auth"
	// KindRateLimited covers quota and throttling rejections.
	KindRateLimited Kind = "rate_limited"
	// KindTimeout covers deadline expiry on a call.
	KindTimeout Kind = "timeout"
	// KindTransient covers connection resets, DNS failures and 5xx replies.
	KindTransient Kind = "transient"
	// KindMalformed covers unusable response bodies. Never retried, since
	// the same prompt tends to reproduce the same output.
	KindMalformed Kind = "malformed"
)

// Error wraps a provider failure with its provider ID and classification.
type Error struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same provider is worth another attempt.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindTransient:
		return true
	}
	return false
}

// KindOf extracts the classification from err, or KindTransient when err is
// not a provider error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

func wrapError(providerID string, kind Kind, err error) *Error {
	return &Error{Provider: providerID, Kind: kind, Err: err}
}

// classify maps an arbitrary SDK or transport error onto a Kind.
func classify(providerID string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return wrapError(providerID, KindTimeout, err)
	}

	var oaiErr *openaiclient.Error
	if errors.As(err, &oaiErr) {
		return wrapError(providerID, kindForStatus(oaiErr.StatusCode), err)
	}
	var antErr *anthropicclient.Error
	if errors.As(err, &antErr) {
		return wrapError(providerID, kindForStatus(antErr.StatusCode), err)
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return wrapError(providerID, kindForStatus(gErr.Code), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrapError(providerID, KindTimeout, err)
	}
	return wrapError(providerID, KindTransient, err)
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout:
		return KindTimeout
	case status >= http.StatusInternalServerError:
		return KindTransient
	default:
		return KindMalformed
	}
}
