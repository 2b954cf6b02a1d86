package domain

// IntentType classifies a console command.
type IntentType int

const (
	IntentUnknown    IntentType = iota
	IntentSilence               // stop speaking and drop everything queued
	IntentRepeatLast            // replay the last completed announcement
	IntentSay                   // speak the payload
	IntentAlert                 // speak the payload urgently
	IntentStatus
	IntentQuit
	IntentHelp
)

// String returns a human-readable intent type.
func (i IntentType) String() string {
	switch i {
	case IntentSilence:
		return "silence"
	case IntentRepeatLast:
		return "repeat_last"
	case IntentSay:
		return "say"
	case IntentAlert:
		return "alert"
	case IntentStatus:
		return "status"
	case IntentQuit:
		return "quit"
	case IntentHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Intent represents a parsed console command.
type Intent struct {
	Type    IntentType
	Payload string // text to speak for say and alert
}
