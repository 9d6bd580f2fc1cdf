package main

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newGuidanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guidance",
		Short: "Show ranked directives derived from the current identity state",
		RunE:  runGuidance,
	}
	cmd.Flags().Bool("markdown", false, "render as markdown instead of a table")
	return cmd
}

func runGuidance(cmd *cobra.Command, args []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	asMarkdown, _ := cmd.Flags().GetBool("markdown")

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := loadIdentity(context.Background(), store)
	if err != nil {
		return err
	}

	if asMarkdown {
		fmt.Println(id.GuidanceMarkdown())
		return nil
	}

	directives := id.Guidance()
	if len(directives) == 0 {
		fmt.Println("no directives at this threshold")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Strength", "Dimension", "Message", "Source"})
	for _, d := range directives {
		table.Append([]string{string(d.Strength), d.Dim, truncateCell(d.Message, terminalWidth()/2), d.Source})
	}
	table.Render()
	return nil
}
