package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HThanh-how/mkvprocesser/internal/metrics"
	"github.com/HThanh-how/mkvprocesser/internal/pipeline"
	"github.com/HThanh-how/mkvprocesser/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "watch [folder]",
		Short: "Process the folder now and again whenever media files are added",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 1 {
				folder = args[0]
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCfg, err := flags.runConfig(cfg)
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd, runCfg)
			if err != nil {
				return err
			}
			_, m, err := ctx.openManifest(cmd, logger)
			if err != nil {
				return err
			}
			defer m.Close()
			warnMissingTools(logger, runCfg, flags.dryRun)

			runCtx, hardStop, stop := interruptContexts(cmd.Context(), func(msg string) {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			})
			defer stop()

			p := pipeline.New(runCfg, m, pipeline.WithLogger(logger), pipeline.WithMetrics(metrics.New()))
			trigger := func(ctx context.Context) error {
				summary, err := p.Run(ctx, pipeline.RunOptions{Folder: folder, HardStop: hardStop, DryRun: flags.dryRun})
				if err != nil {
					return err
				}
				return renderSummary(cmd, summary, flags.jsonOutput)
			}
			return watch.New(watch.OptionsFromConfig(runCfg, folder), trigger, logger).Run(runCtx)
		},
	}
	flags.register(cmd)
	return cmd
}
