// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and pipeline workers read them without
// importing net/http.
//
//	submitter := requestcontext.SubmitterID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
package requestcontext

import (
	"context"
	"time"
)

type (
	submitterIDKey   struct{}
	walletAddressKey struct{}
	requestIDKey     struct{}
	requestTimeKey   struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeySubmitterID   = submitterIDKey{}
	ContextKeyWalletAddress = walletAddressKey{}
	ContextKeyRequestID     = requestIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// SubmitterID returns the authenticated subject, or "" when the request is anonymous.
func SubmitterID(ctx context.Context) string {
	if sub, ok := ctx.Value(ContextKeySubmitterID).(string); ok {
		return sub
	}
	return ""
}

func WithSubmitterID(ctx context.Context, submitterID string) context.Context {
	return context.WithValue(ctx, ContextKeySubmitterID, submitterID)
}

// WalletAddress returns the wallet claimed by the submitter's token, if any.
func WalletAddress(ctx context.Context) string {
	if wallet, ok := ctx.Value(ContextKeyWalletAddress).(string); ok {
		return wallet
	}
	return ""
}

func WithWalletAddress(ctx context.Context, wallet string) context.Context {
	return context.WithValue(ctx, ContextKeyWalletAddress, wallet)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (pipeline runs, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// Detach returns a background context that keeps the request ID but none of the
// request's cancellation. Verification runs outlive the HTTP request that starts them.
func Detach(ctx context.Context) context.Context {
	detached := context.Background()
	if reqID := RequestID(ctx); reqID != "" {
		detached = WithRequestID(detached, reqID)
	}
	if sub := SubmitterID(ctx); sub != "" {
		detached = WithSubmitterID(detached, sub)
	}
	return detached
}
