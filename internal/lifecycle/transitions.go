package lifecycle

// Status transition graph. Pure data, consulted before every mutation;
// who may trigger an edge is a separate concern (permissions.go).
//
// CLOSED and REJECTED are terminal. CUSTOMER_REJECTED is semi-terminal:
// only rework (IN_PROGRESS) or an administrative close may leave it.
var legalEdges = map[Status]map[Status]struct{}{
	StatusDraft: {
		StatusSubmitted: {},
		StatusRejected:  {},
	},
	StatusSubmitted: {
		StatusAssigned: {},
		StatusRejected: {},
	},
	StatusAssigned: {
		StatusInProgress: {},
		StatusRejected:   {},
	},
	StatusInProgress: {
		StatusCompleted: {},
		StatusRejected:  {},
	},
	StatusCompleted: {
		// Technician revert while the confirmation window is still pending.
		StatusInProgress: {},
		// Only via confirmation success or admin override, never a bare PATCH.
		StatusClosed:           {},
		StatusCustomerRejected: {},
		StatusRejected:         {},
	},
	StatusCustomerRejected: {
		StatusInProgress: {},
		StatusClosed:     {},
	},
	StatusClosed:   {},
	StatusRejected: {},
}

// IsLegalEdge reports whether (from, to) is an edge of the transition graph.
func IsLegalEdge(from, to Status) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	targets, ok := legalEdges[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}
