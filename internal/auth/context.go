package auth

import (
	"context"
	"strings"
)

type userContextKey struct{}

type userInfo struct {
	id    string
	roles []string
}

// ContextWithUser attaches the authenticated admin identity to the context.
func ContextWithUser(ctx context.Context, userID string, roles []string) context.Context {
	return context.WithValue(ctx, userContextKey{}, userInfo{
		id:    strings.TrimSpace(userID),
		roles: dedupeRoles(roles),
	})
}

// UserIDFromContext extracts the authenticated admin id, if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	info, ok := ctx.Value(userContextKey{}).(userInfo)
	if !ok || info.id == "" {
		return "", false
	}
	return info.id, true
}

// RolesFromContext returns the deduplicated roles of the authenticated user.
func RolesFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	info, ok := ctx.Value(userContextKey{}).(userInfo)
	if !ok {
		return nil
	}
	return info.roles
}

// HasRole reports whether the authenticated user carries the role.
func HasRole(ctx context.Context, role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, r := range RolesFromContext(ctx) {
		if r == role {
			return true
		}
	}
	return false
}
