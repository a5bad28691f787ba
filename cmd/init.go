package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/uikit/internal/config"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Create a config file and an example template",
	Long: `Init writes .uikit.yml with the default configuration and, unless
--minimal is given, an example template using the built-in components.
Existing files are left untouched.

Examples:
  uikit init                # Current directory
  uikit init site           # New directory 'site'
  uikit init --minimal      # Config file only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initMinimal bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "only write the config file")
}

const exampleTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{or .title "uikit"}}</title>
</head>
<body>
  <ui:breadcrumbs>
    <a href="/">Home</a>
    <span>Example</span>
  </ui:breadcrumbs>

  <h1>Example <small>built with uikit</small></h1>

  <ui:notification type="success" title="Ready">
    Edit templates/index.html and the page reloads.
  </ui:notification>

  <ui:toast type="info" timeout="5000">Hello {{or .name "there"}}!</ui:toast>

  <button variant="primary">Save</button>
  <ui:icon get="arrow" label="Next"/>

  <ui:code language="go" block>
    fmt.Println("hello")
  </ui:code>
</body>
</html>
`

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	cfg, err := config.LoadFrom(viperWithDefaults())
	if err != nil {
		return err
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	files := map[string][]byte{".uikit.yml": raw}
	if !initMinimal {
		files[filepath.Join(cfg.Components.TemplatesDir, "index.html")] = []byte(exampleTemplate)
	}

	out := cmd.OutOrStdout()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "skipped %s (exists)\n", path)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintf(out, "created %s\n", path)
	}
	return nil
}
