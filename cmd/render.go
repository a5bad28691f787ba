package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/uikit/internal/assets"
	"github.com/conneroisu/uikit/internal/engine"
)

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render a template to stdout",
	Long: `Render executes a template with optional YAML or JSON data and writes
the HTML to stdout.

Examples:
  uikit render page.html                      # Render without data
  uikit render page.html --data data.yaml     # Render with data
  uikit render page.html --assets             # Prefix the component assets`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderData   string
	renderAssets bool
	renderInline bool
)

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVarP(&renderData, "data", "d", "", "YAML or JSON file with template data")
	renderCmd.Flags().BoolVarP(&renderAssets, "assets", "a", false, "write the asset tags before the output")
	renderCmd.Flags().BoolVar(&renderInline, "inline", false, "inline asset contents (implies --assets)")
	AddFlagValidation(renderCmd, "data", ValidateFileExists)
}

func runRender(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := loadData(renderData)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	pass, err := a.engine.Render(cmd.Context(), &buf, a.template, data)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if renderAssets || renderInline {
		tags, err := assets.Render(pass.Assets, renderInline || a.cfg.Assets.Inline)
		if err != nil {
			return err
		}
		fmt.Fprint(out, tags)
	}
	_, err = buf.WriteTo(out)
	return err
}

// loadData reads template data from a YAML (or JSON) file. An empty
// path yields nil data.
func loadData(path string) (map[string]interface{}, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	var data map[string]interface{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse data %s: %w", path, err)
	}
	return data, nil
}

// renderPass renders the template of a into a buffer and returns the pass.
func renderPass(cmd *cobra.Command, a *app, dataFile string) (*engine.Pass, error) {
	data, err := loadData(dataFile)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	return a.engine.Render(cmd.Context(), &buf, a.template, data)
}
