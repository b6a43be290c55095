package rbac

import (
	"context"
	"net/http"
	"strings"
)

// Checker answers whether a role holds a permission. A nil vocabulary
// at construction falls back to the package defaults in rules.go.
type Checker struct {
	grants map[string][]string
}

func NewChecker(grants map[string][]string) *Checker {
	if grants == nil {
		grants = RolePermissions
	}
	return &Checker{grants: grants}
}

func (c *Checker) Has(role, perm string) bool {
	for _, g := range c.grants[role] {
		if granted(g, perm) {
			return true
		}
	}
	return false
}

// Any reports whether the role holds at least one of the permissions.
func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

// Require returns middleware admitting requests whose context role holds
// any one of the permissions. A missing role is a plain 403.
func (c *Checker) Require(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !c.Any(role, perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// granted matches an exact permission, the global wildcard, or a prefix
// grant like "bank:*".
func granted(grant, perm string) bool {
	if grant == "*" || grant == perm {
		return true
	}
	if strings.HasSuffix(grant, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(grant, "*"))
	}
	return false
}

type roleKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}
