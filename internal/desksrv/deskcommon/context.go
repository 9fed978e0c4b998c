package deskcommon

import (
	"context"
)

// ctxKeyType represents the type for all context keys
type ctxKeyType string

const (
	ctxUserIdKey      ctxKeyType = "DeskUserId"
	ctxRoleKey        ctxKeyType = "DeskUserRole"
	ctxTestContextKey ctxKeyType = "DeskTestContext"
)

// WithUserID sets the caller's user ID in the provided context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIdKey, userID)
}

// GetUserID retrieves the caller's user ID from the provided context.
// Returns an empty string for anonymous requests.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(ctxUserIdKey).(string); ok {
		return userID
	}
	return ""
}

// WithRole sets the caller's role in the provided context.
func WithRole(ctx context.Context, role Role) context.Context {
	return context.WithValue(ctx, ctxRoleKey, role)
}

// GetRole retrieves the caller's role from the provided context.
// Defaults to RoleUser when unset.
func GetRole(ctx context.Context) Role {
	if role, ok := ctx.Value(ctxRoleKey).(Role); ok {
		return role
	}
	return RoleUser
}

// IsAdmin reports whether the caller holds the admin role.
func IsAdmin(ctx context.Context) bool {
	return GetRole(ctx) == RoleAdmin
}

// WithTestContext sets the test context in the provided context.
func WithTestContext(ctx context.Context, isTest bool) context.Context {
	return context.WithValue(ctx, ctxTestContextKey, isTest)
}

// GetTestContext retrieves the test context from the provided context.
func GetTestContext(ctx context.Context) bool {
	if testContext, ok := ctx.Value(ctxTestContextKey).(bool); ok {
		return testContext
	}
	return false
}
