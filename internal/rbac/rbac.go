package rbac

import "strings"

// Role is a canonical, lower-case role key.
type Role string

// Role names
const (
	RoleUser                    Role = "user"                      // Regular requester
	RoleFieldOfficer            Role = "field_officer"             // Reviews requests in the field
	RoleProjectOfficer          Role = "project_officer"           // Assigns and reviews requests
	RoleAssistantProjectOfficer Role = "assistant_project_officer" // Assigns and reviews requests
	RoleRegionalProjectOfficer  Role = "regional_project_officer"  // Assigns and reviews requests
	RoleHeadOfPrograms          Role = "head_of_programs"          // Programme management
	RoleFinanceManager          Role = "finance_manager"           // Read-only workflow participant
	RoleDirector                Role = "director"                  // Management
	RoleCEO                     Role = "ceo"                       // Executive
	RolePatron                  Role = "patron"                    // Executive, approvals only
	RoleAdmin                   Role = "admin"                     // System administrator

	// RoleUnknown is returned by Normalize for unrecognised input.
	RoleUnknown Role = ""
)

var canonicalRoles = []Role{
	RoleUser,
	RoleFieldOfficer,
	RoleProjectOfficer,
	RoleAssistantProjectOfficer,
	RoleRegionalProjectOfficer,
	RoleHeadOfPrograms,
	RoleFinanceManager,
	RoleDirector,
	RoleCEO,
	RolePatron,
	RoleAdmin,
}

// aliases maps alternative spellings to their canonical role.
var aliases = map[string]Role{
	"programme_manager":  RoleHeadOfPrograms,
	"program_manager":    RoleHeadOfPrograms,
	"hop":                RoleHeadOfPrograms,
	"head_of_department": RoleHeadOfPrograms,
	"head_of_programmes": RoleHeadOfPrograms,
	"management":         RoleDirector,
}

var roleIndex = func() map[string]Role {
	idx := make(map[string]Role, len(canonicalRoles)+len(aliases))
	for _, r := range canonicalRoles {
		idx[string(r)] = r
	}
	for alias, r := range aliases {
		idx[alias] = r
	}
	return idx
}()

// Roles returns the canonical roles in a stable order.
func Roles() []Role {
	out := make([]Role, len(canonicalRoles))
	copy(out, canonicalRoles)
	return out
}

// Normalize maps a role string to its canonical role. Matching is
// case-insensitive and treats '-' and ' ' like '_'. Unrecognised input
// returns RoleUnknown and false; callers pick the safe default.
func Normalize(input string) (Role, bool) {
	key := normalizeKey(input)
	if key == "" {
		return RoleUnknown, false
	}
	r, ok := roleIndex[key]
	if !ok {
		return RoleUnknown, false
	}
	return r, true
}

// MustRole is Normalize for callers that treat unknown input as a regular
// user. It must not be used for security decisions.
func MustRole(input string) Role {
	if r, ok := Normalize(input); ok {
		return r
	}
	return RoleUser
}

// Valid reports whether r is a canonical role.
func (r Role) Valid() bool {
	_, ok := roleIndex[string(r)]
	return ok && aliases[string(r)] == ""
}

func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// Family is a coarse classification of roles.
type Family string

const (
	FamilyRegular           Family = "regular"
	FamilyFieldStaff        Family = "field_staff"
	FamilyProgramManagement Family = "program_management"
	FamilyExecutive         Family = "executive"
	FamilyAdmin             Family = "admin"
	FamilyUnknown           Family = ""
)

var families = map[Role]Family{
	RoleUser:                    FamilyRegular,
	RoleFieldOfficer:            FamilyFieldStaff,
	RoleProjectOfficer:          FamilyFieldStaff,
	RoleAssistantProjectOfficer: FamilyFieldStaff,
	RoleRegionalProjectOfficer:  FamilyFieldStaff,
	RoleHeadOfPrograms:          FamilyProgramManagement,
	RoleFinanceManager:          FamilyProgramManagement,
	RoleDirector:                FamilyExecutive,
	RoleCEO:                     FamilyExecutive,
	RolePatron:                  FamilyExecutive,
	RoleAdmin:                   FamilyAdmin,
}

// FamilyOf returns the family of a canonical role. Families are mutually
// exclusive.
func FamilyOf(r Role) Family {
	return families[r]
}

// ParseFamily normalizes a family name.
func ParseFamily(s string) (Family, bool) {
	f := Family(normalizeKey(s))
	switch f {
	case FamilyRegular, FamilyFieldStaff, FamilyProgramManagement, FamilyExecutive, FamilyAdmin:
		return f, true
	}
	return FamilyUnknown, false
}

// Satisfies reports whether f meets a check for required. Admin satisfies
// every family.
func (f Family) Satisfies(required Family) bool {
	if f == FamilyUnknown {
		return false
	}
	return f == FamilyAdmin || f == required
}
