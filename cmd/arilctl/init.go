package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/echocog/aril/core/identity"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a fresh identity over a named vocabulary",
		Long:  "Creates the sidecar database and seeds it with a bootstrap session (zero tool calls) so status and guidance have a well-formed state to read from immediately.",
		RunE:  runInit,
	}
	cmd.Flags().String("vocab", "", "comma-separated dimension names (required, e.g. caution,thoroughness,verbosity)")
	cmd.MarkFlagRequired("vocab")
	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	vocabCSV, _ := cmd.Flags().GetString("vocab")

	names := splitNames(vocabCSV)
	if len(names) == 0 {
		return fmt.Errorf("--vocab must name at least one dimension")
	}

	v, err := buildVocabulary(names)
	if err != nil {
		return fmt.Errorf("build vocabulary: %w", err)
	}

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	id := identity.New(v, defaultParams(len(names)), store, nil, nil)

	if err := id.StartSession("bootstrap"); err != nil {
		return fmt.Errorf("bootstrap session: %w", err)
	}
	if err := id.EndSession(ctx, identity.EndSessionInput{}); err != nil {
		return fmt.Errorf("bootstrap session: %w", err)
	}

	fmt.Printf("initialized identity at %s with dimensions: %v\n", dbPath, names)
	return nil
}
