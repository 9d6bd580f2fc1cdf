// Command arilctl is a thin, stateless-per-invocation front end over
// core/identity: every command opens the sidecar database, does one thing,
// and exits. Between record-* invocations the in-progress session's
// interactions live in a small JSON sidecar file (see pending.go); only
// end-session replays them through a real observer.Recorder and runs the
// orchestrator's full forward/backward pass.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "arilctl",
		Short: "Adjoint-Replicator Identity Learning control plane",
		Long:  "arilctl drives one agent's ARIL identity core: initialize a vocabulary, record a session's tool calls, and close the session to run its forward/backward learning pass.",
	}

	root.PersistentFlags().String("db", "./aril.db", "path to the identity's sidecar SQLite database")
	root.PersistentFlags().String("session-file", "./.arilctl-session.json", "path to the in-progress session's sidecar file")

	root.AddCommand(
		newInitCmd(),
		newStartSessionCmd(),
		newRecordToolCmd(),
		newRecordDecisionCmd(),
		newRecordFailureCmd(),
		newRecordVerificationCmd(),
		newRecordInfoSeekCmd(),
		newEndSessionCmd(),
		newStatusCmd(),
		newGuidanceCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "arilctl:", err)
		os.Exit(1)
	}
}
