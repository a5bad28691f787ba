package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var compileCmd = &cobra.Command{
	Use:   "compile <template>",
	Short: "Show the compiled form of a template",
	Long: `Compile rewrites the component tags of a template into render calls
and prints the result. Diagnostics go to stderr; the command fails when a
component tag could not be compiled.

Examples:
  uikit compile page.html              # Compiled template source
  uikit compile page.html -o yaml      # Source, classes and diagnostics`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

var compileFormat string

func init() {
	rootCmd.AddCommand(compileCmd)
	AddOutputFlag(compileCmd, &compileFormat, FormatText, FormatText, FormatJSON, FormatYAML)
}

type compileReport struct {
	Template    string   `json:"template" yaml:"template"`
	Source      string   `json:"source" yaml:"source"`
	Classes     []string `json:"classes" yaml:"classes"`
	Compiled    int      `json:"compiled" yaml:"compiled"`
	Prerendered int      `json:"prerendered" yaml:"prerendered"`
	Skipped     int      `json:"skipped" yaml:"skipped"`
	Diagnostics []string `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

func runCompile(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	tmpl, err := a.engine.Load(a.template)
	if err != nil {
		return err
	}
	res := tmpl.Compiled

	report := compileReport{
		Template:    res.Name,
		Source:      res.Source,
		Classes:     res.Classes,
		Compiled:    res.Compiled,
		Prerendered: res.Prerendered,
		Skipped:     res.Skipped,
	}
	for _, d := range res.Diagnostics {
		report.Diagnostics = append(report.Diagnostics, d.Error())
	}

	out := cmd.OutOrStdout()
	switch compileFormat {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	case FormatYAML:
		err = yaml.NewEncoder(out).Encode(report)
	default:
		for _, d := range report.Diagnostics {
			fmt.Fprintln(cmd.ErrOrStderr(), d)
		}
		_, err = fmt.Fprintln(out, res.Source)
	}
	if err != nil {
		return err
	}

	if res.Skipped > 0 {
		return fmt.Errorf("%d component tags in %s could not be compiled", res.Skipped, res.Name)
	}
	return nil
}
