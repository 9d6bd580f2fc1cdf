package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/echocog/aril/core/observer"
)

func newStartSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-session [SESSION_ID]",
		Short: "Begin a new session's capture",
		Long:  "Begins a new session's capture. If SESSION_ID is omitted, a fresh one is generated (matching the interaction-id convention used elsewhere in the codebase).",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStartSession,
	}
	cmd.Flags().Bool("force", false, "overwrite an already in-progress session sidecar")
	return cmd
}

func runStartSession(cmd *cobra.Command, args []string) error {
	sessionFile, _ := cmd.Flags().GetString("session-file")
	force, _ := cmd.Flags().GetBool("force")

	existing, err := loadPending(sessionFile)
	if err != nil {
		return fmt.Errorf("read session sidecar: %w", err)
	}
	if existing != nil && !force {
		return fmt.Errorf("a session (%q) is already in progress; pass --force to discard it", existing.SessionID)
	}

	sessionID := ""
	if len(args) == 1 {
		sessionID = args[0]
	} else {
		sessionID = uuid.New().String()
	}

	if err := savePending(sessionFile, &pendingSession{SessionID: sessionID}); err != nil {
		return fmt.Errorf("write session sidecar: %w", err)
	}
	fmt.Printf("started session %q\n", sessionID)
	return nil
}

func requirePending(sessionFile string) (*pendingSession, error) {
	p, err := loadPending(sessionFile)
	if err != nil {
		return nil, fmt.Errorf("read session sidecar: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("no session in progress; run start-session first")
	}
	return p, nil
}

func newRecordToolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record-tool",
		Short: "Record one tool call against the in-progress session",
		RunE:  runRecordTool,
	}
	cmd.Flags().String("kind", "other", "one of: read, edit, write, bash, grep, glob, other")
	cmd.Flags().String("path", "", "file path touched, for read/edit/write/grep/glob")
	cmd.Flags().String("command", "", "shell command, for bash")
	cmd.Flags().Bool("succeeded", true, "whether the call succeeded, meaningful for bash")
	return cmd
}

func runRecordTool(cmd *cobra.Command, args []string) error {
	sessionFile, _ := cmd.Flags().GetString("session-file")
	kind, _ := cmd.Flags().GetString("kind")
	path, _ := cmd.Flags().GetString("path")
	command, _ := cmd.Flags().GetString("command")
	succeeded, _ := cmd.Flags().GetBool("succeeded")

	p, err := requirePending(sessionFile)
	if err != nil {
		return err
	}

	p.ToolCalls = append(p.ToolCalls, observer.ToolCall{
		Kind:      toCallKind(kind),
		Path:      path,
		Command:   command,
		Succeeded: succeeded,
	})
	return savePending(sessionFile, p)
}

func toCallKind(s string) observer.CallKind {
	switch observer.CallKind(s) {
	case observer.KindRead, observer.KindEdit, observer.KindWrite, observer.KindBash, observer.KindGrep, observer.KindGlob:
		return observer.CallKind(s)
	default:
		return observer.KindOther
	}
}

func newRecordDecisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record-decision DESCRIPTION",
		Short: "Record a branching decision made this session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionFile, _ := cmd.Flags().GetString("session-file")
			p, err := requirePending(sessionFile)
			if err != nil {
				return err
			}
			p.Decisions = append(p.Decisions, observer.Decision{Description: args[0]})
			return savePending(sessionFile, p)
		},
	}
}

func newRecordFailureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record-failure DESCRIPTION",
		Short: "Record an observed failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionFile, _ := cmd.Flags().GetString("session-file")
			p, err := requirePending(sessionFile)
			if err != nil {
				return err
			}
			p.Failures = append(p.Failures, observer.Failure{Description: args[0]})
			return savePending(sessionFile, p)
		},
	}
}

func newRecordVerificationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record-verification DESCRIPTION",
		Short: "Record an explicit verification action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionFile, _ := cmd.Flags().GetString("session-file")
			p, err := requirePending(sessionFile)
			if err != nil {
				return err
			}
			p.Verifications = append(p.Verifications, observer.Verification{Description: args[0]})
			return savePending(sessionFile, p)
		},
	}
}

func newRecordInfoSeekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record-infoseek DESCRIPTION",
		Short: "Record an explicit information-seeking action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionFile, _ := cmd.Flags().GetString("session-file")
			p, err := requirePending(sessionFile)
			if err != nil {
				return err
			}
			p.InformationSeeks = append(p.InformationSeeks, observer.InformationSeek{Description: args[0]})
			return savePending(sessionFile, p)
		},
	}
}
