package main

import (
	"encoding/json"
	"os"

	"github.com/echocog/aril/core/observer"
)

// pendingSession is the CLI's between-invocations accumulator: since each
// arilctl command is a separate process, a session's tool calls, decisions,
// failures, verifications, and information-seeks are recorded into this
// sidecar file by every record-* command and replayed through a real
// observer.Recorder at end-session time. It is not part of the core's
// persisted state — identity.UnifiedIdentity never sees it as anything but
// a sequence of Record* calls made within one process's lifetime.
type pendingSession struct {
	SessionID        string                    `json:"sessionId"`
	ToolCalls        []observer.ToolCall       `json:"toolCalls,omitempty"`
	Decisions        []observer.Decision       `json:"decisions,omitempty"`
	Failures         []observer.Failure        `json:"failures,omitempty"`
	Verifications    []observer.Verification   `json:"verifications,omitempty"`
	InformationSeeks []observer.InformationSeek `json:"informationSeeks,omitempty"`
}

func loadPending(path string) (*pendingSession, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p pendingSession
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func savePending(path string, p *pendingSession) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func clearPending(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
