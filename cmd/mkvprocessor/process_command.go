package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/logging"
	"github.com/HThanh-how/mkvprocesser/internal/manifest"
	"github.com/HThanh-how/mkvprocesser/internal/metrics"
	"github.com/HThanh-how/mkvprocesser/internal/pipeline"
	"github.com/HThanh-how/mkvprocesser/internal/preflight"
)

var errFilesFailed = errors.New("one or more files failed or could not be recorded")

type runFlags struct {
	dryRun      bool
	workers     int
	jsonOutput  bool
	failOnError bool
	force       bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Plan output names without extracting or recording")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Files processed in parallel (overrides workflow.workers)")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Print the run summary as JSON")
}

// runConfig returns a per-run copy of cfg with flag overrides applied.
func (f *runFlags) runConfig(cfg *config.Config) (*config.Config, error) {
	runCfg := *cfg
	if f.workers < 0 {
		return nil, fmt.Errorf("--workers must be positive, got %d", f.workers)
	}
	if f.workers > 0 {
		runCfg.Workflow.Workers = f.workers
	}
	return &runCfg, nil
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "process [folder]",
		Short: "Process every media file in a folder once",
		Long: "Probe, classify, rename and extract every new media file in the folder.\n" +
			"Files already recorded as processed are skipped. Interrupt once to stop after\n" +
			"in-flight files finish; interrupt twice to abort them.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 1 {
				folder = args[0]
			}
			runCtx, hardStop, stop := interruptContexts(cmd.Context(), func(msg string) {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			})
			defer stop()

			summary, err := runProcess(cmd, ctx, &flags, runCtx, hardStop, folder)
			if err != nil {
				return err
			}
			if err := renderSummary(cmd, summary, flags.jsonOutput); err != nil {
				return err
			}
			if flags.failOnError && summary.HasFailures() {
				return errFilesFailed
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.failOnError, "fail-on-error", false, "Exit non-zero when any file fails")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Extract files the manifest already records; their entries are kept")
	return cmd
}

func runProcess(cmd *cobra.Command, ctx *commandContext, flags *runFlags, runCtx, hardStop context.Context, folder string) (pipeline.Summary, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return pipeline.Summary{}, err
	}
	runCfg, err := flags.runConfig(cfg)
	if err != nil {
		return pipeline.Summary{}, err
	}
	logger, err := ctx.logger(cmd, runCfg)
	if err != nil {
		return pipeline.Summary{}, err
	}
	_, m, err := ctx.openManifest(cmd, logger)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer m.Close()
	warnMissingTools(logger, runCfg, flags.dryRun)

	p := pipeline.New(runCfg, m, pipeline.WithLogger(logger), pipeline.WithMetrics(metrics.New()))
	return p.Run(runCtx, pipeline.RunOptions{Folder: folder, HardStop: hardStop, DryRun: flags.dryRun, Force: flags.force})
}

// warnMissingTools logs binaries that are not installed. Only a manifest that
// cannot be opened stops a run; files that need a missing tool fail after
// retries and are recorded like any other failure.
func warnMissingTools(logger *slog.Logger, cfg *config.Config, dryRun bool) {
	err := preflight.RequireTools(cfg, dryRun || cfg.Workflow.DryRun)
	if err == nil {
		return
	}
	logging.WarnWithContext(logger, "required tools missing", "tools_missing",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "install ffmpeg or set extraction.ffmpeg_binary, then run mkvprocessor doctor"),
		logging.String(logging.FieldImpact, "files needing the missing tools are recorded as failed"),
	)
}

func renderSummary(cmd *cobra.Command, summary pipeline.Summary, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(cmd, summary)
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if len(summary.Files) > 0 {
		rows := make([][]string, 0, len(summary.Files))
		for _, file := range summary.Files {
			detail := file.Reason
			if file.FinalName != "" && file.Outcome != manifest.OutcomeFailed {
				detail = file.FinalName + " (" + file.Reason + ")"
			}
			switch {
			case file.Forced:
				detail += " [forced, entry kept]"
			case !file.Recorded && file.Outcome == manifest.OutcomeFailed:
				detail += " [not recorded]"
			}
			rows = append(rows, []string{
				filepath.Base(file.Path),
				paint(string(file.Outcome), outcomeKind(file.Outcome), colorize),
				string(file.State),
				strconv.Itoa(len(file.Produced)),
				detail,
			})
		}
		fmt.Fprintln(out, renderTable([]column{
			{header: "File", maxWidth: 40},
			{header: "Outcome"},
			{header: "State"},
			{header: "Outputs", alignRight: true},
			{header: "Detail", maxWidth: 60},
		}, rows))
	}

	parts := []string{
		fmt.Sprintf("%d success", summary.Success),
		fmt.Sprintf("%d failed", summary.Failed),
		fmt.Sprintf("%d skipped", summary.Skipped),
	}
	if summary.Unrecorded > 0 {
		parts = append(parts, fmt.Sprintf("%d unrecorded", summary.Unrecorded))
	}
	if summary.NotDispatched > 0 {
		parts = append(parts, fmt.Sprintf("%d not started", summary.NotDispatched))
	}
	prefix := "Processed"
	if summary.DryRun {
		prefix = "Dry run:"
	}
	fmt.Fprintf(out, "%s %d files in %s: %s\n", prefix, summary.Scanned, summary.Folder, strings.Join(parts, ", "))
	return nil
}
