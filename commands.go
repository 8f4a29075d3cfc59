package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"sjsage522/tcasworker/config"
	"sjsage522/tcasworker/helpers"
	"sjsage522/tcasworker/internal/crawler"
	"sjsage522/tcasworker/internal/render"
	"sjsage522/tcasworker/logger"
	"sjsage522/tcasworker/services/worker"
)

var stageDescriptions = map[string]string{
	config.StageUniversities: "List every university on the catalog index",
	config.StageFaculties:    "Keep universities' faculties matching the faculty keyword",
	config.StageFields:       "Find fields of study matching the field keywords",
	config.StagePrograms:     "List the programs of each matched field",
	config.StageRounds:       "Extract admission-round quotas of each program",
	config.StageFees:         "Extract the tuition fee of each program",
}

// runOptions are command-line overrides of the environment configuration
type runOptions struct {
	renderer string
	workers  int

	input    string
	output   string
	keywords []string
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}

	rootCmd := &cobra.Command{
		Use:           "tcasworker",
		Short:         "tcasworker extracts admissions data from the TCAS course catalog.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.renderer, "renderer", "", "page renderer: chrome or http (default from RENDERER)")
	rootCmd.PersistentFlags().IntVar(&opts.workers, "workers", 0, "concurrent pages per stage (default from WORKERS)")

	for _, name := range config.StageOrder {
		rootCmd.AddCommand(newStageCmd(name, opts))
	}
	rootCmd.AddCommand(newAllCmd(opts))

	return rootCmd
}

func newStageCmd(name string, opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: stageDescriptions[name],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd.Context(), cmd.OutOrStdout(), opts, name)
		},
	}
	if name != config.StageUniversities {
		cmd.Flags().StringVar(&opts.input, "input", "", "input dataset (default: previous stage's output)")
	}
	cmd.Flags().StringVar(&opts.output, "output", "", "output dataset")
	switch name {
	case config.StageFaculties, config.StageFields, config.StageFees:
		cmd.Flags().StringArrayVar(&opts.keywords, "keyword", nil, "keyword to match; repeatable (default from environment)")
	}
	return cmd
}

func newAllCmd(opts *runOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run every stage in dependency order, each reading the previous stage's output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd.Context(), cmd.OutOrStdout(), opts, config.StageOrder...)
		},
	}
}

// runStages runs the named stages in order and prints their summaries. The
// first fatal error stops the chain.
func runStages(ctx context.Context, out io.Writer, opts *runOptions, names ...string) error {
	log := logger.ForWorker()

	cfg := config.LoadConfig()
	if opts.renderer != "" {
		cfg.Renderer = opts.renderer
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("renderer", cfg.Renderer).
		Int("workers", cfg.Workers).
		Strs("stages", names).
		Msg("Starting pipeline")

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	renderer, err := render.New(cfg.Renderer, render.Options{
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		ChromeAddr:        cfg.ChromeAddr,
		Headless:          cfg.Headless,
		SnapshotTimeout:   cfg.ContentTimeout,
	})
	if err != nil {
		return err
	}

	w := worker.NewWorker(renderer, services.Publisher, helpers.NewLogger(skipLogPath(cfg)), cfg.Workers, cfg.RowRetries)

	var summaries []worker.Summary
	defer func() { printSummaries(out, summaries) }()

	for _, name := range names {
		sc, err := cfg.Stage(name)
		if err != nil {
			return err
		}
		if len(names) == 1 {
			opts.apply(&sc)
		}

		stage, err := crawler.NewStage(cfg, sc, services.Cache)
		if err != nil {
			return err
		}

		summary, err := w.Run(ctx, stage, sc)
		if err != nil {
			return err
		}
		summaries = append(summaries, summary)
	}

	return nil
}

// apply copies the single-stage flag overrides onto sc
func (o *runOptions) apply(sc *config.StageConfig) {
	if o.input != "" {
		sc.InputPath = o.input
	}
	if o.output != "" {
		sc.OutputPath = o.output
	}
	if len(o.keywords) > 0 {
		sc.Keywords = o.keywords
	}
}

// skipLogPath places the skip log next to the datasets; "" disables it
func skipLogPath(cfg *config.Config) string {
	if cfg.SkipLogFile == "" || cfg.DataDir == "" || filepath.IsAbs(cfg.SkipLogFile) {
		return cfg.SkipLogFile
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Warn("create data dir %s: %v", cfg.DataDir, err)
	}
	return filepath.Join(cfg.DataDir, cfg.SkipLogFile)
}

func printSummaries(out io.Writer, summaries []worker.Summary) {
	if len(summaries) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Stage", "Rows in", "Rows out", "Skipped", "Duration"})

	var total time.Duration
	for _, s := range summaries {
		t.AppendRow(table.Row{s.Stage, s.RowsIn, s.RowsOut, s.Skipped, s.Duration.Round(time.Millisecond)})
		total += s.Duration
	}
	if len(summaries) > 1 {
		t.AppendFooter(table.Row{"", "", "", "", total.Round(time.Millisecond)})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
	fmt.Fprintln(out)
}
