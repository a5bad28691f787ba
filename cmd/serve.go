package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/uikit/internal/server"
	"github.com/conneroisu/uikit/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Preview templates with live reload",
	Long: `Serve renders every template under the templates directory on request,
injects the assets of the invoked components and reloads connected
browsers when templates or assets change.

Query parameters are passed to the template as data.

Examples:
  uikit serve                       # http://localhost:8080
  uikit serve -p 3000 --no-reload   # Different port, no live reload`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveNoReload bool

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "port to serve on")
	serveCmd.Flags().String("host", "localhost", "host to bind to")
	serveCmd.Flags().BoolVar(&serveNoReload, "no-reload", false, "disable live reload")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	AddFlagValidation(serveCmd, "port", ValidatePort)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd, "")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.engine, server.Options{
		Addr:       a.cfg.Server.Address(),
		Inline:     a.cfg.Assets.Inline,
		LiveReload: !serveNoReload,
		Logger:     a.logger,
	})

	a.engine.Watch(ctx)
	a.engine.PurgeEvery(ctx, a.cfg.Cache.PurgeInterval)
	if err := watch(ctx, a, srv); err != nil {
		return err
	}
	return srv.Start(ctx)
}

// watch reloads browsers when templates or asset directories change.
func watch(ctx context.Context, a *app, srv *server.Server) error {
	w, err := watcher.New(200*time.Millisecond, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = w.Stop()
	}()

	w.AddFilter(watcher.NoHiddenFilter)
	w.AddFilter(watcher.NoTempFilter)
	w.AddHandler(srv.HandleChanges)

	dirs := append([]string{a.cfg.Components.TemplatesDir}, a.cfg.Assets.Directories...)
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.AddRecursive(dir); err != nil {
			a.logger.Warn(ctx, err, "cannot watch {dir}", "dir", dir)
		}
	}
	return w.Start(ctx)
}
