package rbac

type edges map[Status][]Status

// reviewEdges are the field review steps shared by every reviewing role.
var reviewEdges = edges{
	StatusAssigned:       {StatusUnderReview},
	StatusUnderReview:    {StatusAdditionalInfo, StatusManagerReview},
	StatusAdditionalInfo: {StatusUnderReview},
}

var assignEdges = edges{
	StatusSubmitted: {StatusAssigned},
}

var programmeEdges = edges{
	StatusManagerReview: {StatusForwarded, StatusUnderReview},
	StatusApproved:      {StatusCompleted},
}

var decisionEdges = edges{
	StatusManagerReview: {StatusApproved, StatusRejected},
	StatusForwarded:     {StatusApproved, StatusRejected},
	StatusApproved:      {StatusCompleted},
}

// overrideEdges cancel any open request and reopen closed ones.
var overrideEdges = func() edges {
	e := edges{
		StatusRejected:  {StatusSubmitted},
		StatusCancelled: {StatusSubmitted},
	}
	for _, s := range canonicalStatuses {
		if !s.IsTerminal() {
			e[s] = append(e[s], StatusCancelled)
		}
	}
	return e
}()

func merge(parts ...edges) edges {
	out := edges{}
	for _, part := range parts {
		for from, tos := range part {
			for _, to := range tos {
				if !contains(out[from], to) {
					out[from] = append(out[from], to)
				}
			}
		}
	}
	return out
}

// transitionTable is keyed by role, then current status. Roles without an
// entry (user, finance_manager, admin) have no transitions; the admin
// bypass is applied by the access guard, not here.
var transitionTable = map[Role]edges{
	RoleFieldOfficer:            merge(reviewEdges),
	RoleProjectOfficer:          merge(assignEdges, reviewEdges),
	RoleAssistantProjectOfficer: merge(assignEdges, reviewEdges),
	RoleRegionalProjectOfficer:  merge(assignEdges, reviewEdges),
	RoleHeadOfPrograms:          merge(assignEdges, reviewEdges, programmeEdges),
	RoleDirector:                merge(assignEdges, reviewEdges, programmeEdges, decisionEdges, overrideEdges),
	RoleCEO:                     merge(assignEdges, reviewEdges, programmeEdges, decisionEdges, overrideEdges),
	RolePatron:                  merge(decisionEdges, overrideEdges),
}

// AllowedTransitions returns the statuses role may move a request to from
// current, in canonical status order. The result is a fresh slice; unknown
// roles and statuses yield an empty set.
func AllowedTransitions(current Status, role Role) []Status {
	next := transitionTable[role][current]
	out := make([]Status, 0, len(next))
	for _, s := range canonicalStatuses {
		if contains(next, s) {
			out = append(out, s)
		}
	}
	return out
}

// CanTransition reports whether target is in the allowed set of
// (current, role).
func CanTransition(current, target Status, role Role) bool {
	return contains(transitionTable[role][current], target)
}

func contains(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
