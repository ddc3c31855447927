package rbac

// Status is a canonical request workflow state.
type Status string

// Request statuses
const (
	StatusSubmitted      Status = "submitted"       // new request, also the reopened state
	StatusAssigned       Status = "assigned"        // assigned to field staff
	StatusUnderReview    Status = "under_review"    // being reviewed by field staff
	StatusAdditionalInfo Status = "additional_info" // waiting on the requester
	StatusManagerReview  Status = "manager_review"  // with programme management
	StatusForwarded      Status = "forwarded"       // forwarded to executives for a decision
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"

	StatusUnknown Status = ""
)

var canonicalStatuses = []Status{
	StatusSubmitted,
	StatusAssigned,
	StatusUnderReview,
	StatusAdditionalInfo,
	StatusManagerReview,
	StatusForwarded,
	StatusApproved,
	StatusRejected,
	StatusCompleted,
	StatusCancelled,
}

// statusAliases folds the approval-style vocabulary into the canonical one.
var statusAliases = map[string]Status{
	"pending":   StatusSubmitted,
	"in_review": StatusUnderReview,
}

// Statuses returns the canonical statuses in workflow order.
func Statuses() []Status {
	out := make([]Status, len(canonicalStatuses))
	copy(out, canonicalStatuses)
	return out
}

// ParseStatus normalizes a status string, resolving aliases.
func ParseStatus(input string) (Status, bool) {
	key := normalizeKey(input)
	for _, s := range canonicalStatuses {
		if string(s) == key {
			return s, true
		}
	}
	if s, ok := statusAliases[key]; ok {
		return s, true
	}
	return StatusUnknown, false
}

// Valid reports whether s is a canonical status.
func (s Status) Valid() bool {
	for _, c := range canonicalStatuses {
		if c == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a near-terminal state. Only executive
// override roles may move a request out of one.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// Label is the human-readable form used in audit descriptions.
func (s Status) Label() string {
	switch s {
	case StatusSubmitted:
		return "Submitted"
	case StatusAssigned:
		return "Assigned"
	case StatusUnderReview:
		return "Under Review"
	case StatusAdditionalInfo:
		return "Additional Info Required"
	case StatusManagerReview:
		return "Manager Review"
	case StatusForwarded:
		return "Forwarded"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}
