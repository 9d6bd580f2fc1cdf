package main

import (
	"context"
	"fmt"
	"os"

	"github.com/containerd/console"
	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current identity state: weights, fitness, meta-rates",
		RunE:  runStatus,
	}
}

// terminalWidth reports the current terminal's column width, falling back
// to a conservative default when stdout isn't a TTY (e.g. piped to a file
// or CI log).
func terminalWidth() int {
	const fallback = 100
	c, err := console.ConsoleFromFile(os.Stdout)
	if err != nil {
		return fallback
	}
	size, err := c.Size()
	if err != nil || size.Width == 0 {
		return fallback
	}
	return int(size.Width)
}

func truncateCell(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := loadIdentity(context.Background(), store)
	if err != nil {
		return err
	}

	state := id.State()
	weights := id.Weights()
	names := id.Names()

	nameWidth := terminalWidth() / 4
	if nameWidth < 12 {
		nameWidth = 12
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Dimension", "Weight", "Fitness", "Meta Rate"})
	for i := range weights {
		name := fmt.Sprintf("dim_%d", i)
		if i < len(names) {
			name = names[i]
		}
		fitness := 0.0
		if i < len(state.Fitness) {
			fitness = state.Fitness[i]
		}
		metaRate := 0.0
		if i < len(state.MetaLearningRates) {
			metaRate = state.MetaLearningRates[i]
		}
		table.Append([]string{
			truncateCell(name, nameWidth),
			fmt.Sprintf("%.4f", weights[i]),
			fmt.Sprintf("%.4f", fitness),
			fmt.Sprintf("%.4f", metaRate),
		})
	}
	table.Render()

	fmt.Printf("\nsessionCount: %d\n", state.SessionCount)

	if err := id.VerifyChain(); err != nil {
		fmt.Printf("declaration chain: TAMPERED (%v)\n", err)
	} else {
		fmt.Println("declaration chain: valid")
	}
	return nil
}
