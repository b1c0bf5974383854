package model

// Side is an order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side that closes a position held on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// DecisionKind classifies the outcome of one bar evaluation.
type DecisionKind string

const (
	NoAction DecisionKind = "NO_ACTION"
	Enter    DecisionKind = "ENTER"
	Exit     DecisionKind = "EXIT"
)

// Decision is the transient outcome of evaluating one bar. Produced once per
// bar, consumed immediately by order dispatch, never persisted.
type Decision struct {
	Kind     DecisionKind `json:"kind"`
	Side     Side         `json:"side,omitempty"`
	Quantity int64        `json:"quantity,omitempty"`
	Reason   string       `json:"reason,omitempty"`
}

// Actionable reports whether the decision should reach the broker.
func (d Decision) Actionable() bool {
	return d.Kind == Enter || d.Kind == Exit
}

// NoDecision returns a NoAction decision with the given reason.
func NoDecision(reason string) Decision {
	return Decision{Kind: NoAction, Reason: reason}
}
