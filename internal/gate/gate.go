// Package gate decides which user actions are available in a session state.
package gate

import "github.com/oukeidos/gifsmith/internal/session"

type ActionKind int

const (
	ActionOpen ActionKind = iota
	ActionExport
	ActionBack
	ActionAbout
	ActionFormats
	ActionShowLogs
	ActionQuit
)

var actionNames = map[ActionKind]string{
	ActionOpen:     "open",
	ActionExport:   "export",
	ActionBack:     "back",
	ActionAbout:    "about",
	ActionFormats:  "formats",
	ActionShowLogs: "show_logs",
	ActionQuit:     "quit",
}

func (a ActionKind) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Actions lists every action the presentation layer may ask about.
func Actions() []ActionKind {
	return []ActionKind{ActionOpen, ActionExport, ActionBack, ActionAbout, ActionFormats, ActionShowLogs, ActionQuit}
}

// IsPermitted is pure: the answer depends only on its arguments.
// Actions it does not govern are permitted.
func IsPermitted(action ActionKind, state session.State) bool {
	switch action {
	case ActionOpen:
		return state.IsAwaitingInput()
	case ActionExport, ActionBack:
		return state.IsEditing()
	default:
		return true
	}
}
