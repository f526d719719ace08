package main

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/metalagman/stepforge/internal/materializer"
	"github.com/metalagman/stepforge/internal/step"
	"github.com/spf13/cobra"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func stepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Inspect available step classes",
	}
	cmd.AddCommand(stepsListCmd())
	cmd.AddCommand(stepsDescribeCmd())
	return cmd
}

func stepsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List step classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := loadServices()
			if err != nil {
				return err
			}
			rows := make([][]string, 0)
			for _, class := range svc.Catalog.Classes() {
				cfg := "-"
				if t := class.ConfigType(); t != nil {
					cfg = typeName(t)
				}
				rows = append(rows, []string{
					class.Name(),
					joinOrDash(class.InputSpec().Names()),
					joinOrDash(class.OutputSpec().Names()),
					cfg,
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"CLASS", "INPUTS", "OUTPUTS", "CONFIG"}, rows))
			return err
		},
	}
}

func stepsDescribeCmd() *cobra.Command {
	var (
		raw   bool
		style string
	)
	cmd := &cobra.Command{
		Use:   "describe <class>",
		Short: "Describe a step class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := loadServices()
			if err != nil {
				return err
			}
			class, err := svc.Catalog.Get(args[0])
			if err != nil {
				return err
			}
			doc := describeClass(class, svc.Registry)
			if raw {
				_, err = io.WriteString(cmd.OutOrStdout(), doc)
				return err
			}
			out, err := glamour.Render(doc, style)
			if err != nil {
				return fmt.Errorf("render description: %w", err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering")
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style (dark|light|notty|ascii)")
	return cmd
}

func materializersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "materializers",
		Short: "List registered materializers and the types they handle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := loadServices()
			if err != nil {
				return err
			}
			rows := make([][]string, 0)
			for _, m := range svc.Registry.Materializers() {
				names := make([]string, 0, len(m.Types()))
				for _, t := range m.Types() {
					names = append(names, typeName(t))
				}
				sort.Strings(names)
				rows = append(rows, []string{m.Name(), strings.Join(names, ", ")})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"MATERIALIZER", "TYPES"}, rows))
			return err
		},
	}
}

func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

// describeClass renders class as markdown.
func describeClass(class *step.Class, reg *materializer.Registry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", class.Name())
	if d := class.Description(); d != "" {
		fmt.Fprintf(&b, "%s\n\n", d)
	}

	b.WriteString("## Inputs\n\n")
	if class.InputSpec().Len() == 0 {
		b.WriteString("None.\n\n")
	} else {
		b.WriteString("| Name | Artifact | Type | Materializer |\n|---|---|---|---|\n")
		for _, e := range class.InputSpec().Entries() {
			fmt.Fprintf(&b, "| %s | %s | `%s` | %s |\n", e.Name, e.Type, typeName(e.Declared), materializerName(reg, e.Declared))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Outputs\n\n")
	if class.OutputSpec().Len() == 0 {
		b.WriteString("None.\n\n")
	} else {
		b.WriteString("| Name | Artifact | Type |\n|---|---|---|\n")
		for _, e := range class.OutputSpec().Entries() {
			fmt.Fprintf(&b, "| %s | %s | `%s` |\n", e.Name, e.Type, typeName(e.Declared))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Processor\n\nRuns in process as `%s`.\n\n", class.ProcessorName())

	if t := class.ConfigType(); t != nil {
		fmt.Fprintf(&b, "## Config `%s`\n\n", typeName(t))
		b.WriteString("| Field | Type |\n|---|---|\n")
		for _, f := range step.ConfigFields(t) {
			fmt.Fprintf(&b, "| %s | `%s` |\n", f.Name, typeName(f.Type))
		}
		b.WriteString("\n")
		if schema := class.ConfigSchema(); schema != "" {
			fmt.Fprintf(&b, "### Schema\n\n```json\n%s\n```\n", schema)
		}
	}
	return b.String()
}

func materializerName(reg *materializer.Registry, t reflect.Type) string {
	if m, ok := reg.Lookup(t); ok {
		return m.Name()
	}
	return "-"
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "-"
	}
	return t.String()
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
