package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/recap/internal/livesync"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStoreChanged MsgKind = iota
	MsgAlert
	MsgToastExpired
	MsgActionDone
)

// actionResult is the payload of [MsgActionDone].
type actionResult struct {
	label string
	err   error
}

// storeChangedMsg is the constructor for [MsgStoreChanged]
func storeChangedMsg() Msg {
	return Msg{kind: MsgStoreChanged}
}

// alertMsg is the constructor for [MsgAlert]
func alertMsg(a livesync.Alert) Msg {
	return Msg{kind: MsgAlert, data: a}
}

// toastExpiredMsg is the constructor for [MsgToastExpired]
func toastExpiredMsg(id int) Msg {
	return Msg{kind: MsgToastExpired, data: id}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(label string, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionResult{label: label, err: err}}
}
