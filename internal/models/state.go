package models

// State is the bot conversation state of a chat.
type State string

const (
	StateIdle           State = ""
	StateWaitingTZ      State = "wait_tz"
	StateWaitingSummary State = "wait_summary_at"
)
