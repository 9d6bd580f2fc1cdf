package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/echocog/aril/core/identity"
)

func newEndSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "end-session",
		Short: "Close the in-progress session and run the learning pass",
		Long:  "Replays every recorded interaction through the session boundary, then runs the forward energy evolution and backward Shapley/replicator update, and persists the result.",
		RunE:  runEndSession,
	}
	cmd.Flags().Int("evolve-steps", 0, "number of forward Evolve steps (0 = orchestrator default)")
	cmd.Flags().Float64("dt", 0, "forward pass time step (0 = orchestrator default)")
	cmd.Flags().Float64("sigma", 0, "forward pass noise scale (0 = orchestrator default)")
	cmd.Flags().String("prompt", "", "reflection prompt override (empty = auto-built from the session)")
	return cmd
}

func runEndSession(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	sessionFile, _ := cmd.Flags().GetString("session-file")
	evolveSteps, _ := cmd.Flags().GetInt("evolve-steps")
	dt, _ := cmd.Flags().GetFloat64("dt")
	sigma, _ := cmd.Flags().GetFloat64("sigma")
	prompt, _ := cmd.Flags().GetString("prompt")

	p, err := requirePending(sessionFile)
	if err != nil {
		return err
	}

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	id, err := loadIdentity(ctx, store)
	if err != nil {
		return err
	}

	if err := id.StartSession(p.SessionID); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	for _, tc := range p.ToolCalls {
		id.RecordToolCall(tc)
	}
	for _, d := range p.Decisions {
		id.RecordDecision(d.Description)
	}
	for _, f := range p.Failures {
		id.RecordFailure(f.Description)
	}
	for _, v := range p.Verifications {
		id.RecordVerification(v.Description)
	}
	for _, s := range p.InformationSeeks {
		id.RecordInformationSeek(s.Description)
	}

	if err := id.EndSession(ctx, identity.EndSessionInput{
		ReflectionPrompt: prompt,
		EvolveSteps:      evolveSteps,
		Dt:               dt,
		Sigma:             sigma,
	}); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	if err := clearPending(sessionFile); err != nil {
		return fmt.Errorf("clear session sidecar: %w", err)
	}

	state := id.State()
	fmt.Printf("session %q closed: sessionCount=%d\n", p.SessionID, state.SessionCount)
	return nil
}
