package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rental-parser/api"
	"rental-parser/models"
	"rental-parser/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control surface (default).",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var crawlCmd = &cobra.Command{
	Use:       "crawl <source>",
	Short:     "Crawl one source once and print the result as JSON.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(models.SourceCian), string(models.SourceAvito), string(models.SourceYandex)},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		res := a.runner.RunCrawl(cmd.Context(), args[0])
		out := map[string]any{
			"found":    res.Found,
			"new":      res.New,
			"updated":  res.Updated,
			"duration": res.DurationString(),
		}
		if res.Err != nil {
			out = map[string]any{"error": res.Err.Error(), "duration": res.DurationString()}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		return res.Err
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate statistics of stored apartments.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		body, err := a.stats.Stats(cmd.Context())
		if err != nil {
			return err
		}
		var st models.Stats
		if err := json.Unmarshal(body, &st); err != nil {
			return fmt.Errorf("decode stats: %w", err)
		}
		services.NewInsightService(a.logger).Print(os.Stdout, &st)
		return nil
	},
}

func runServe(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           api.NewServer(a.runner, a.stats, a.browser, a.logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("=== %s ===", a)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.logger.Error("[app] Server failed: %v", err)
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("[app] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("[app] Shutdown: %v", err)
	}
	return nil
}
