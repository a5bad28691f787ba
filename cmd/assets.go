package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/uikit/internal/assets"
)

var assetsCmd = &cobra.Command{
	Use:   "assets <template>",
	Short: "List the assets a template needs",
	Long: `Assets renders a template and lists the CSS and JS files of the
components it invoked.

Examples:
  uikit assets page.html              # YAML list of assets
  uikit assets page.html -o html      # Ready-to-paste <link>/<script> tags
  uikit assets page.html -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runAssets,
}

var (
	assetsFormat string
	assetsData   string
)

func init() {
	rootCmd.AddCommand(assetsCmd)
	assetsCmd.Flags().StringVarP(&assetsData, "data", "d", "", "YAML or JSON file with template data")
	AddOutputFlag(assetsCmd, &assetsFormat, FormatYAML, FormatYAML, FormatJSON, "html")
}

type assetReport struct {
	Kind      assets.Kind `json:"kind" yaml:"kind"`
	Path      string      `json:"path" yaml:"path"`
	URL       string      `json:"url" yaml:"url"`
	File      string      `json:"file" yaml:"file"`
	Component string      `json:"component" yaml:"component"`
}

func runAssets(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	pass, err := renderPass(cmd, a, assetsData)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if assetsFormat == "html" {
		tags, err := assets.Render(pass.Assets, a.cfg.Assets.Inline)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, tags)
		return err
	}

	report := make([]assetReport, 0, len(pass.Assets))
	for _, asset := range pass.Assets {
		report = append(report, assetReport{
			Kind:      asset.Kind,
			Path:      asset.Path,
			URL:       asset.URL,
			File:      asset.File,
			Component: asset.Component,
		})
	}
	if assetsFormat == FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return yaml.NewEncoder(out).Encode(report)
}
