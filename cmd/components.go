package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/uikit/internal/assets"
	"github.com/conneroisu/uikit/internal/registry"
)

var componentsCmd = &cobra.Command{
	Use:     "components",
	Aliases: []string{"ls"},
	Short:   "List the registered components",
	Long: `List every registered component class with the tags that invoke it
and the assets it declares.

Examples:
  uikit components              # Table
  uikit components -o yaml      # YAML`,
	Args: cobra.NoArgs,
	RunE: runComponents,
}

var componentsFormat string

func init() {
	rootCmd.AddCommand(componentsCmd)
	AddOutputFlag(componentsCmd, &componentsFormat, FormatTable, FormatTable, FormatJSON, FormatYAML)
}

type componentRow struct {
	Name   string   `json:"name" yaml:"name"`
	Class  string   `json:"class" yaml:"class"`
	Tags   []string `json:"tags" yaml:"tags"`
	Assets []string `json:"assets,omitempty" yaml:"assets,omitempty"`
}

func runComponents(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd, "")
	if err != nil {
		return err
	}
	defer a.Close()

	return printComponents(cmd.OutOrStdout(), a.engine.Registry().GetAll(), componentsFormat)
}

func printComponents(w io.Writer, entries []*registry.Entry, format string) error {
	rows := make([]componentRow, 0, len(entries))
	for _, entry := range entries {
		row := componentRow{Name: entry.Name, Class: entry.Class, Tags: entry.Tags}
		if provider, ok := entry.Value.(assets.Provider); ok {
			row.Assets = provider.Assets()
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatYAML:
		return yaml.NewEncoder(w).Encode(rows)
	default:
		return printTable(w, rows)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#cba6f7"))
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086"))
)

func printTable(w io.Writer, rows []componentRow) error {
	header := []string{"NAME", "TAGS", "ASSETS"}
	cells := make([][]string, len(rows))
	widths := []int{len(header[0]), len(header[1]), len(header[2])}
	for i, row := range rows {
		cells[i] = []string{row.Name, strings.Join(row.Tags, ", "), strings.Join(row.Assets, ", ")}
		for c, cell := range cells[i] {
			widths[c] = max(widths[c], lipgloss.Width(cell))
		}
	}

	line := func(values []string, styles ...lipgloss.Style) string {
		parts := make([]string, len(values))
		for c, v := range values {
			parts[c] = styles[c].Width(widths[c] + 2).Render(v)
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " ")
	}

	if _, err := fmt.Fprintln(w, line(header, headerStyle, headerStyle, headerStyle)); err != nil {
		return err
	}
	plain := lipgloss.NewStyle()
	for _, row := range cells {
		if _, err := fmt.Fprintln(w, line(row, nameStyle, plain, mutedStyle)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n%d components\n", len(rows))
	return err
}
