package domain

// Outcome classifies how the bridge finished one inbound message.
type Outcome string

const (
	OutcomeApproved  Outcome = "approved"  // user confirmed, result sent
	OutcomeRejected  Outcome = "rejected"  // user cancelled or request refused, error sent
	OutcomeDefaulted Outcome = "defaulted" // unrecognized method, null result sent
	OutcomeDropped   Outcome = "dropped"   // unparseable message, nothing sent
	OutcomeFailed    Outcome = "failed"    // prompt or delivery failure
)

// OutcomeRecorder receives one outcome per inbound message.
type OutcomeRecorder interface {
	Record(o Outcome)
}
