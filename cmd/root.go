// Package cmd provides the uikit command-line interface.
//
// Configuration is read, in increasing priority, from .uikit.yml in the
// working directory (or the file named by --config or UIKIT_CONFIG_FILE),
// UIKIT_<SECTION>_<OPTION> environment variables and command flags.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/uikit/internal/component"
	"github.com/conneroisu/uikit/internal/config"
	"github.com/conneroisu/uikit/internal/engine"
	"github.com/conneroisu/uikit/internal/logging"
	"github.com/conneroisu/uikit/internal/registry"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "uikit",
	Short: "Component tags for Go html/template",
	Long: `uikit compiles component tags such as <ui:notification> inside
html/template files into render calls, renders them with a fragment cache
and collects the CSS and JS of every component a page uses.

Quick Start:
  uikit components                List the registered components
  uikit compile page.html         Show the compiled template
  uikit render page.html          Render a template to stdout
  uikit assets page.html          List the assets a render needs
  uikit serve                     Preview templates with live reload`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .uikit.yml, can also use UIKIT_CONFIG_FILE)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, notice, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("UIKIT_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".uikit")
	}
	config.BindEnv(viper.GetViper())

	// A missing config file leaves the defaults in place.
	_ = viper.ReadInConfig()
}

// newLogger creates the logger described by cfg, writing to w.
func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: w,
	})
}

// app holds what a command needs after setup.
type app struct {
	cfg    *config.Config
	engine *engine.Engine
	logger logging.Logger
	// template is the name of the template argument, if any.
	template string
}

// setup loads the configuration and builds an engine with the built-in
// components registered. A file outside the templates directory is
// loaded from its own directory.
func setup(cmd *cobra.Command, file string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	a := &app{cfg: cfg, logger: logger}
	if file != "" {
		a.template = templateName(cfg, file)
	}

	reg := registry.NewComponentRegistry()
	if _, err := component.RegisterDefaults(reg, cfg.Components.Namespace); err != nil {
		return nil, err
	}
	a.engine, err = engine.FromConfig(reg, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the engine.
func (a *app) Close() {
	if err := a.engine.Close(); err != nil {
		a.logger.Warn(context.Background(), err, "cannot close fragment cache")
	}
}

// templateName maps file to a template name, pointing the templates
// directory at the file's own directory when file lies outside of it.
func templateName(cfg *config.Config, file string) string {
	if _, err := os.Stat(file); err != nil {
		return filepath.ToSlash(file)
	}
	root, rootErr := filepath.Abs(cfg.Components.TemplatesDir)
	abs, absErr := filepath.Abs(file)
	if rootErr == nil && absErr == nil {
		if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	cfg.Components.TemplatesDir = filepath.Dir(file)
	return filepath.Base(file)
}
