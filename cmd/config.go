package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/uikit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or validate the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging defaults, .uikit.yml,
UIKIT_ environment variables and flags.

Examples:
  uikit config show
  UIKIT_CACHE_DRIVER=sqlite uikit config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := config.Load(); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
		return err
	},
}

var configFormat string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd)
	AddOutputFlag(configShowCmd, &configFormat, FormatYAML, FormatYAML, FormatJSON)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if configFormat == FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}
	return yaml.NewEncoder(out).Encode(cfg)
}

// viperWithDefaults returns an instance holding only the defaults.
func viperWithDefaults() *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)
	return v
}
