package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/manifest"
	"github.com/HThanh-how/mkvprocesser/internal/pipeline"
	"github.com/HThanh-how/mkvprocesser/internal/signature"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect and maintain the processing manifest",
	}

	manifestCmd.AddCommand(newManifestListCommand(ctx))
	manifestCmd.AddCommand(newManifestShowCommand(ctx))
	manifestCmd.AddCommand(newManifestCompactCommand(ctx))
	manifestCmd.AddCommand(newManifestMergeCommand())
	manifestCmd.AddCommand(newManifestIgnoreCommand(ctx))

	return manifestCmd
}

func newManifestListCommand(ctx *commandContext) *cobra.Command {
	var outcomeFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List manifest entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter manifest.Outcome
			if strings.TrimSpace(outcomeFlag) != "" {
				parsed, err := manifest.ParseOutcome(outcomeFlag)
				if err != nil {
					return err
				}
				filter = parsed
			}

			_, m, err := ctx.openManifest(cmd, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			entries := m.Entries()
			if filter != "" {
				filtered := entries[:0]
				for _, entry := range entries {
					if entry.Outcome == filter {
						filtered = append(filtered, entry)
					}
				}
				entries = filtered
			}

			if jsonOutput {
				if entries == nil {
					entries = []manifest.Entry{}
				}
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Manifest is empty")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					shortKey(entry.Key()),
					paint(string(entry.Outcome), outcomeKind(entry.Outcome), colorize),
					filepath.Base(entry.SourcePath),
					strconv.Itoa(len(entry.ProducedNames)),
					entry.Timestamp.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				{header: "Signature"},
				{header: "Outcome"},
				{header: "Source", maxWidth: 50},
				{header: "Outputs", alignRight: true},
				{header: "Recorded"},
			}, rows))
			stats := m.Stats()
			if stats.Corrupt > 0 {
				fmt.Fprintf(out, "%d corrupt records were skipped while loading\n", stats.Corrupt)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outcomeFlag, "outcome", "", "Only show entries with this outcome (success, failed, skipped)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	return cmd
}

func newManifestShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <signature-key>",
		Short: "Show every entry recorded for one content signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := signature.ParseKey(args[0])
			if err != nil {
				return err
			}
			_, m, err := ctx.openManifest(cmd, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			history := m.History(sig)
			if len(history) == 0 {
				return fmt.Errorf("no manifest entries for %s", sig.Key())
			}
			if jsonOutput {
				return writeJSON(cmd, history)
			}

			out := cmd.OutOrStdout()
			verdict := m.ShouldProcess(sig)
			fmt.Fprintf(out, "Signature: %s\n", sig.Key())
			fmt.Fprintf(out, "Next run:  %s (%s)\n", processLabel(verdict.Process), verdict.Reason)
			for i, entry := range history {
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Entry %d\n", i+1)
				fmt.Fprintf(out, "  ID:       %s\n", entry.ID)
				fmt.Fprintf(out, "  Outcome:  %s\n", entry.Outcome)
				fmt.Fprintf(out, "  Source:   %s\n", entry.SourcePath)
				if entry.Reason != "" {
					fmt.Fprintf(out, "  Reason:   %s\n", entry.Reason)
				}
				fmt.Fprintf(out, "  Recorded: %s\n", entry.Timestamp.Local().Format(time.RFC3339))
				if entry.RunID != "" {
					fmt.Fprintf(out, "  Run:      %s\n", entry.RunID)
				}
				for _, name := range entry.ProducedNames {
					fmt.Fprintf(out, "  Output:   %s\n", name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	return cmd
}

func newManifestCompactCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Drop superseded entries, keeping one per content signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, m, err := ctx.openManifest(cmd, nil)
			if err != nil {
				return err
			}
			defer m.Close()

			removed, err := m.Compact(cmd.Context())
			if err != nil {
				return fmt.Errorf("compact manifest: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Compacted %s: removed %d entries, %d remain\n",
				cfg.Paths.ManifestPath, removed, len(m.Entries()))
			return nil
		},
	}
}

func newManifestMergeCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "merge <output> <input>...",
		Short:       "Merge JSONL manifests from several machines",
		Args:        cobra.MinimumNArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				expanded, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				paths = append(paths, expanded)
			}
			stats, err := manifest.Merge(cmd.Context(), paths[0], paths[1:]...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Merged %d manifests into %s: read %d entries, wrote %d\n",
				stats.Inputs, paths[0], stats.Read, stats.Written)
			if stats.Corrupt > 0 {
				fmt.Fprintf(out, "%d corrupt records were dropped\n", stats.Corrupt)
			}
			return nil
		},
	}
}

func newManifestIgnoreCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "ignore <file>...",
		Short: "Record files as skipped so they are never processed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd, cfg)
			if err != nil {
				return err
			}
			_, m, err := ctx.openManifest(cmd, logger)
			if err != nil {
				return err
			}
			defer m.Close()

			p := pipeline.New(cfg, m, pipeline.WithLogger(logger))
			out := cmd.OutOrStdout()
			var failed int
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				entry, err := p.Ignore(cmd.Context(), path, reason)
				switch {
				case errors.Is(err, pipeline.ErrAlreadyRecorded):
					fmt.Fprintf(out, "%s: %v\n", filepath.Base(path), err)
				case err != nil:
					failed++
					fmt.Fprintf(out, "%s: %v\n", filepath.Base(path), err)
				default:
					fmt.Fprintf(out, "%s: ignored (%s)\n", filepath.Base(path), entry.Key())
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be ignored", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason stored with the entry")
	return cmd
}

func shortKey(key string) string {
	hash, millis, ok := strings.Cut(key, ":")
	if !ok || len(hash) <= 12 {
		return key
	}
	return hash[:12] + ":" + millis
}

func processLabel(process bool) string {
	if process {
		return "process"
	}
	return "skip"
}
