package debate

// TurnComplete is emitted after a persona utterance has been accepted.
type TurnComplete struct {
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}

// ErrorEvent carries a human-readable failure for the requesting connection.
type ErrorEvent struct {
	Message string `json:"message"`
}
