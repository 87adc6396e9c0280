package domain

// Outcome is the kind of automation decision made for one inbound message.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeReplied   Outcome = "replied"
	OutcomeEscalated Outcome = "escalated"
)

// Decision is the result of handling one inbound message.
type Decision struct {
	Outcome   Outcome
	Reason    string
	ReplyText string
}

// Skip returns a decision that leaves the conversation untouched.
func Skip(reason string) Decision {
	return Decision{Outcome: OutcomeSkipped, Reason: reason}
}

// Replied returns a decision carrying the automated reply text.
func Replied(text string) Decision {
	return Decision{Outcome: OutcomeReplied, ReplyText: text}
}

// Escalated returns a decision recording a hand-off to a human agent.
func Escalated(reason EscalationReason) Decision {
	return Decision{Outcome: OutcomeEscalated, Reason: string(reason)}
}
