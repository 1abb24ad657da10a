package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"liveserve/internal/daemon"
	"liveserve/internal/db"
	"liveserve/internal/logger"
	"liveserve/internal/repository"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [root]",
	Short: "Serve a directory and reload browsers on change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	if len(args) == 1 {
		cfg.Root = args[0]
	}
	if noInject, _ := cmd.Flags().GetBool("no-inject"); noInject {
		cfg.Inject = false
	}
	if noCSS, _ := cmd.Flags().GetBool("no-css-inject"); noCSS {
		cfg.CSSInject = false
	}
	if noHistory, _ := cmd.Flags().GetBool("no-history"); noHistory {
		cfg.History = false
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	var history *repository.HistoryRepository
	if cfg.History {
		if err := db.Init(cfg.DBPath); err != nil {
			logger.Log.Warn("reload history disabled",
				zap.Error(err))
		} else {
			defer func() {
				_ = db.Close()
			}()
			history = repository.NewHistoryRepository(db.DB)
		}
	}

	d, err := daemon.New(daemon.Options{
		Config:  cfg,
		History: history,
	})
	if err != nil {
		return err
	}

	if err := d.Start(context.Background()); err != nil {
		return err
	}

	printBanner(cfg.Root, serverURL("/"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info("shutting down",
			zap.String("signal", sig.String()))
	case <-d.StopCh():
		logger.Log.Info("stop requested via API")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return d.Stop(ctx)
}

func printBanner(root, url string) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	_, _ = bold.Print("Serving ")
	_, _ = fmt.Print(root)
	_, _ = bold.Print(" at ")
	_, _ = green.Println(url)
}

func init() {
	f := serveCmd.Flags()
	f.String("host", "", "address to bind (default 0.0.0.0)")
	f.String("file", "", "file served for unknown paths (SPA fallback)")
	f.Int("fallback-status", 0, "status code for fallback responses (200 or 404)")
	f.Duration("wait", 0, "debounce window for file changes")
	f.StringSlice("ignore", nil, "glob patterns to ignore")
	f.Bool("cors", false, "enable CORS for any origin")
	f.Bool("no-inject", false, "do not inject the reload script into HTML")
	f.Bool("no-css-inject", false, "reload the page on CSS changes instead of swapping stylesheets")
	f.Bool("no-history", false, "do not record reload history")

	_ = viper.BindPFlag("host", f.Lookup("host"))
	_ = viper.BindPFlag("file", f.Lookup("file"))
	_ = viper.BindPFlag("fallback_status", f.Lookup("fallback-status"))
	_ = viper.BindPFlag("wait", f.Lookup("wait"))
	_ = viper.BindPFlag("ignore_list", f.Lookup("ignore"))
	_ = viper.BindPFlag("cors", f.Lookup("cors"))

	rootCmd.AddCommand(serveCmd)
}
