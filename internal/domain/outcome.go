package domain

// Outcome tags the result of a remote operation. Callers that only care
// about success use OK(). NotFound and Failed decide how loudly a failure
// is logged.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeFailed
)

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool { return o == OutcomeOK }

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "failed"
	}
}
