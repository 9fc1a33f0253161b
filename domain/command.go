package domain

// SendCommand is a sending intent carried from the API surface to the
// orchestrator. Target is only meaningful for operator senders.
type SendCommand struct {
	Sender       Participant
	TargetMember *string
	Content      string
}
