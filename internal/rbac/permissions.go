package rbac

// Capability names a single boolean permission.
type Capability string

const (
	CanViewRequests         Capability = "canViewRequests"
	CanCreateRequests       Capability = "canCreateRequests"
	CanViewOwnRequests      Capability = "canViewOwnRequests"
	CanApproveRequests      Capability = "canApproveRequests"
	CanRejectRequests       Capability = "canRejectRequests"
	CanReviewRequests       Capability = "canReviewRequests"
	CanAssignRequests       Capability = "canAssignRequests"
	CanAccessAnalytics      Capability = "canAccessAnalytics"
	CanAccessFieldReports   Capability = "canAccessFieldReports"
	CanAccessSystemSettings Capability = "canAccessSystemSettings"
	CanManageUsers          Capability = "canManageUsers"
	CanAccessAdminPanel     Capability = "canAccessAdminPanel"
)

// AllCapabilities lists every capability in declaration order.
var AllCapabilities = []Capability{
	CanViewRequests,
	CanCreateRequests,
	CanViewOwnRequests,
	CanApproveRequests,
	CanRejectRequests,
	CanReviewRequests,
	CanAssignRequests,
	CanAccessAnalytics,
	CanAccessFieldReports,
	CanAccessSystemSettings,
	CanManageUsers,
	CanAccessAdminPanel,
}

// PermissionSet is the fixed capability record derived from a role.
type PermissionSet struct {
	CanViewRequests         bool `json:"canViewRequests"`
	CanCreateRequests       bool `json:"canCreateRequests"`
	CanViewOwnRequests      bool `json:"canViewOwnRequests"`
	CanApproveRequests      bool `json:"canApproveRequests"`
	CanRejectRequests       bool `json:"canRejectRequests"`
	CanReviewRequests       bool `json:"canReviewRequests"`
	CanAssignRequests       bool `json:"canAssignRequests"`
	CanAccessAnalytics      bool `json:"canAccessAnalytics"`
	CanAccessFieldReports   bool `json:"canAccessFieldReports"`
	CanAccessSystemSettings bool `json:"canAccessSystemSettings"`
	CanManageUsers          bool `json:"canManageUsers"`
	CanAccessAdminPanel     bool `json:"canAccessAdminPanel"`
}

// Has reports whether the capability is granted. Unknown capability names
// are never granted.
func (p PermissionSet) Has(c Capability) bool {
	switch c {
	case CanViewRequests:
		return p.CanViewRequests
	case CanCreateRequests:
		return p.CanCreateRequests
	case CanViewOwnRequests:
		return p.CanViewOwnRequests
	case CanApproveRequests:
		return p.CanApproveRequests
	case CanRejectRequests:
		return p.CanRejectRequests
	case CanReviewRequests:
		return p.CanReviewRequests
	case CanAssignRequests:
		return p.CanAssignRequests
	case CanAccessAnalytics:
		return p.CanAccessAnalytics
	case CanAccessFieldReports:
		return p.CanAccessFieldReports
	case CanAccessSystemSettings:
		return p.CanAccessSystemSettings
	case CanManageUsers:
		return p.CanManageUsers
	case CanAccessAdminPanel:
		return p.CanAccessAdminPanel
	}
	return false
}

// Capabilities returns the granted capabilities in declaration order.
func (p PermissionSet) Capabilities() []Capability {
	out := make([]Capability, 0, len(AllCapabilities))
	for _, c := range AllCapabilities {
		if p.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// ParseCapability matches a capability name exactly.
func ParseCapability(s string) (Capability, bool) {
	for _, c := range AllCapabilities {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// grants lists, per capability, the roles it is granted to. Admin is not
// listed; it receives everything in Resolve.
var grants = map[Capability][]Role{
	CanViewRequests: {
		RoleFieldOfficer, RoleProjectOfficer, RoleAssistantProjectOfficer, RoleRegionalProjectOfficer,
		RoleHeadOfPrograms, RoleFinanceManager, RoleDirector, RoleCEO, RolePatron,
	},
	CanReviewRequests: {
		RoleFieldOfficer, RoleProjectOfficer, RoleAssistantProjectOfficer, RoleRegionalProjectOfficer,
		RoleHeadOfPrograms, RoleDirector, RoleCEO,
	},
	CanAssignRequests: {
		RoleProjectOfficer, RoleAssistantProjectOfficer, RoleRegionalProjectOfficer,
		RoleHeadOfPrograms, RoleDirector, RoleCEO,
	},
	CanAccessFieldReports: {
		RoleFieldOfficer, RoleProjectOfficer, RoleAssistantProjectOfficer, RoleRegionalProjectOfficer,
		RoleHeadOfPrograms,
	},
	CanAccessAnalytics:      {RoleHeadOfPrograms, RoleDirector, RoleCEO, RolePatron},
	CanApproveRequests:      {RoleDirector, RoleCEO, RolePatron},
	CanRejectRequests:       {RoleDirector, RoleCEO, RolePatron},
	CanAccessSystemSettings: {RoleDirector, RoleCEO},
	CanManageUsers:          {RoleDirector, RoleCEO},
}

// permissionTable is computed once and only read afterwards.
var permissionTable = func() map[Role]PermissionSet {
	table := make(map[Role]PermissionSet, len(canonicalRoles))
	for _, r := range canonicalRoles {
		table[r] = build(r)
	}
	return table
}()

func build(r Role) PermissionSet {
	if r == RoleAdmin {
		return PermissionSet{
			CanViewRequests:         true,
			CanCreateRequests:       true,
			CanViewOwnRequests:      true,
			CanApproveRequests:      true,
			CanRejectRequests:       true,
			CanReviewRequests:       true,
			CanAssignRequests:       true,
			CanAccessAnalytics:      true,
			CanAccessFieldReports:   true,
			CanAccessSystemSettings: true,
			CanManageUsers:          true,
			CanAccessAdminPanel:     true,
		}
	}
	granted := func(c Capability) bool {
		for _, g := range grants[c] {
			if g == r {
				return true
			}
		}
		return false
	}
	return PermissionSet{
		CanViewRequests:         granted(CanViewRequests),
		CanCreateRequests:       true,
		CanViewOwnRequests:      true,
		CanApproveRequests:      granted(CanApproveRequests),
		CanRejectRequests:       granted(CanRejectRequests),
		CanReviewRequests:       granted(CanReviewRequests),
		CanAssignRequests:       granted(CanAssignRequests),
		CanAccessAnalytics:      granted(CanAccessAnalytics),
		CanAccessFieldReports:   granted(CanAccessFieldReports),
		CanAccessSystemSettings: granted(CanAccessSystemSettings),
		CanManageUsers:          granted(CanManageUsers),
		CanAccessAdminPanel:     false,
	}
}

// restricted is the fail-closed set handed to unknown roles.
var restricted = PermissionSet{
	CanCreateRequests:  true,
	CanViewOwnRequests: true,
}

// Resolve returns the permission set for a role. It never fails: roles
// outside the canonical set get the restricted regular-user set.
func Resolve(r Role) PermissionSet {
	if p, ok := permissionTable[r]; ok {
		return p
	}
	return restricted
}

// ResolveString normalizes input and resolves it. The boolean reports
// whether the role was recognised.
func ResolveString(input string) (PermissionSet, bool) {
	r, ok := Normalize(input)
	if !ok {
		return restricted, false
	}
	return Resolve(r), true
}
