// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application must be defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ClaimsKey contains the verified token claims for the request
	// Set by: middleware.Authenticate
	// Required by: all protected endpoints, middleware.RequireAdmin
	// Type: *auth.Claims
	ClaimsKey Key = "claims"

	// SelfAccountIDKey contains the caller's own account id
	// Set by: middleware.ResolveSelfID on /users/me routes
	// Used by: handlers that operate on the caller's account
	// Type: string
	SelfAccountIDKey Key = "self_account_id"

	// RequestIDKey contains the request ID string
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, error responses
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	// Used by: handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithClaims adds verified token claims to the context
func WithClaims(ctx context.Context, claims interface{}) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// WithSelfAccountID adds the caller's account id to the context
func WithSelfAccountID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SelfAccountIDKey, id)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetSelfAccountID retrieves the caller's account id from the context
func GetSelfAccountID(ctx context.Context) string {
	if id, ok := ctx.Value(SelfAccountIDKey).(string); ok {
		return id
	}
	return ""
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
