package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved compilations",
	}
	cmd.AddCommand(historyListCmd())
	cmd.AddCommand(historyShowCmd())
	return cmd
}

func historyListCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved compilations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(repoRoot, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			records, err := store.ListPipelines(cmd.Context(), name)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{r.ID, r.Name, r.CreatedAt, r.Format})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "PIPELINE", "CREATED", "FORMAT"}, rows))
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "only list compilations of this pipeline")
	return cmd
}

func historyShowCmd() *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved compilation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoRoot, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(repoRoot)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(repoRoot, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			record, err := store.GetPipeline(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !summary {
				_, err = io.WriteString(cmd.OutOrStdout(), record.Document)
				return err
			}
			rows := make([][]string, 0, len(record.Components))
			for _, c := range record.Components {
				upstream := "-"
				if len(c.Upstream) > 0 {
					upstream = strings.Join(c.Upstream, ", ")
				}
				rows = append(rows, []string{fmt.Sprint(c.Position), c.Name, c.Class, upstream})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "COMPONENT", "CLASS", "UPSTREAM"}, rows))
			return err
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print the component table instead of the document")
	return cmd
}
