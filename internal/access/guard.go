// Package access decides whether an identity may open a view or perform a
// workflow action. Decisions are plain values; the guard never navigates,
// notifies or performs I/O, so callers own those side effects.
package access

import (
	"fmt"
	"strings"

	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
)

const (
	DefaultLoginPath    = "/login"
	DefaultFallbackPath = "/dashboard"
)

// Identity is an immutable snapshot of the caller for a single decision.
// Dev marks identities produced by a development override provider.
type Identity struct {
	IsAuthenticated bool
	Role            string
	UserID          string
	Dev             bool
}

// Requirement constrains who may pass. A requirement is met when the role
// matches any of Roles (aliases expanded), belongs to any of Families, and
// holds every capability in Capabilities. Empty fields are not checked.
type Requirement struct {
	Roles        []string
	Families     []rbac.Family
	Capabilities []rbac.Capability
}

// RequireRole is a single-role requirement.
func RequireRole(role string) *Requirement {
	return &Requirement{Roles: []string{role}}
}

// RequireAnyRole is met by membership in any of roles.
func RequireAnyRole(roles ...string) *Requirement {
	return &Requirement{Roles: roles}
}

// RequireFamily is met by any role in one of the families.
func RequireFamily(families ...rbac.Family) *Requirement {
	return &Requirement{Families: families}
}

// RequireCapability is met when every capability is granted.
func RequireCapability(caps ...rbac.Capability) *Requirement {
	return &Requirement{Capabilities: caps}
}

func (r *Requirement) empty() bool {
	return r == nil || (len(r.Roles) == 0 && len(r.Families) == 0 && len(r.Capabilities) == 0)
}

func (r *Requirement) String() string {
	if r.empty() {
		return "none"
	}
	var parts []string
	if len(r.Roles) > 0 {
		parts = append(parts, "roles="+strings.Join(r.Roles, "|"))
	}
	if len(r.Families) > 0 {
		fs := make([]string, len(r.Families))
		for i, f := range r.Families {
			fs[i] = string(f)
		}
		parts = append(parts, "families="+strings.Join(fs, "|"))
	}
	if len(r.Capabilities) > 0 {
		cs := make([]string, len(r.Capabilities))
		for i, c := range r.Capabilities {
			cs[i] = string(c)
		}
		parts = append(parts, "capabilities="+strings.Join(cs, ","))
	}
	return strings.Join(parts, " ")
}

// Context carries the resource state for workflow actions. A non-empty
// TargetStatus turns the decision into a transition check.
type Context struct {
	CurrentStatus string
	TargetStatus  string
}

func (c Context) isTransition() bool {
	return c.TargetStatus != ""
}

// Guard holds the navigation targets attached to redirects.
type Guard struct {
	LoginPath    string
	FallbackPath string
}

// NewGuard returns a guard, using defaults for empty paths.
func NewGuard(loginPath, fallbackPath string) *Guard {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	if fallbackPath == "" {
		fallbackPath = DefaultFallbackPath
	}
	return &Guard{LoginPath: loginPath, FallbackPath: fallbackPath}
}

// Decide evaluates identity against requirement and, for workflow actions,
// the transition table. It is deterministic for identical inputs.
func (g *Guard) Decide(id Identity, req *Requirement, ctx Context) Decision {
	if !id.IsAuthenticated {
		return redirect(g.LoginPath, rbac.CodeUnauthenticated, Notice{
			Kind:    NoticeInfo,
			Title:   "Authentication required",
			Message: "Please sign in to continue.",
		})
	}

	if req.empty() && !ctx.isTransition() {
		return Allow()
	}

	role, ok := rbac.Normalize(id.Role)
	if !ok {
		return deny(rbac.CodeUnknownRole, g.FallbackPath, Notice{
			Kind:    NoticeError,
			Title:   "Access restricted",
			Message: fmt.Sprintf("Role %q is not recognised.", id.Role),
		})
	}

	var from, to rbac.Status
	if ctx.isTransition() {
		var d *Decision
		from, to, d = validateTransition(ctx)
		if d != nil {
			return *d
		}
	}

	if role == rbac.RoleAdmin {
		return Allow()
	}

	if !req.empty() && !satisfies(role, req) {
		return deny(rbac.CodeForbidden, g.FallbackPath, Notice{
			Kind:    NoticeError,
			Title:   "Access restricted",
			Message: "You do not have permission to access this page.",
		})
	}

	if ctx.isTransition() && !rbac.CanTransition(from, to, role) {
		return illegal(from, to, fmt.Sprintf("A %s cannot move a request from %s to %s.", role, from.Label(), to.Label()))
	}

	return Allow()
}

// validateTransition rejects unknown statuses and no-op transitions before
// any role-specific rule, including the admin bypass.
func validateTransition(ctx Context) (rbac.Status, rbac.Status, *Decision) {
	from, ok := rbac.ParseStatus(ctx.CurrentStatus)
	if !ok {
		d := illegal(rbac.StatusUnknown, rbac.StatusUnknown, fmt.Sprintf("Current status %q is not recognised.", ctx.CurrentStatus))
		return "", "", &d
	}
	to, ok := rbac.ParseStatus(ctx.TargetStatus)
	if !ok {
		d := illegal(from, rbac.StatusUnknown, fmt.Sprintf("Target status %q is not recognised.", ctx.TargetStatus))
		return "", "", &d
	}
	if from == to {
		d := illegal(from, to, fmt.Sprintf("Request is already %s.", from.Label()))
		return "", "", &d
	}
	return from, to, nil
}

func satisfies(role rbac.Role, req *Requirement) bool {
	if len(req.Roles) > 0 {
		matched := false
		for _, raw := range req.Roles {
			if want, ok := rbac.Normalize(raw); ok && want == role {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(req.Families) > 0 {
		family := rbac.FamilyOf(role)
		matched := false
		for _, f := range req.Families {
			if family.Satisfies(f) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	perms := rbac.Resolve(role)
	for _, c := range req.Capabilities {
		if !perms.Has(c) {
			return false
		}
	}
	return true
}
