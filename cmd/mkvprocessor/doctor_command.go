package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/HThanh-how/mkvprocesser/internal/manifest"
	"github.com/HThanh-how/mkvprocesser/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, folders and the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			problems := 0

			fmt.Fprintln(out, renderSectionHeader("Tools"))
			for _, status := range preflight.CheckSystemDeps(cfg) {
				kind := statusOK
				detail := status.Path
				if !status.Available {
					kind = statusError
					if status.Optional {
						kind = statusWarn
					} else {
						problems++
					}
					detail = status.Detail
				}
				fmt.Fprintln(out, renderCheckLine(status.Name, kind, detail, colorize))
			}

			fmt.Fprintln(out, renderSectionHeader("Folders"))
			folderChecks := preflight.RunAll(cfg)
			problems += len(preflight.Failed(folderChecks))
			for _, result := range folderChecks {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderCheckLine(result.Name, kind, result.Detail, colorize))
			}

			fmt.Fprintln(out, renderSectionHeader("Manifest"))
			_, m, err := ctx.openManifest(cmd, nil)
			switch {
			case errors.Is(err, manifest.ErrLocked):
				fmt.Fprintln(out, renderCheckLine("Manifest", statusWarn, "in use by a running process", colorize))
			case err != nil:
				problems++
				fmt.Fprintln(out, renderCheckLine("Manifest", statusError, err.Error(), colorize))
			default:
				stats := m.Stats()
				kind := statusOK
				if stats.Corrupt > 0 {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderCheckLine("Manifest", kind,
					fmt.Sprintf("%s: %d entries, %d signatures, %d corrupt", cfg.Paths.ManifestPath, stats.Entries, stats.Signatures, stats.Corrupt),
					colorize))
				_ = m.Close()
			}

			if problems > 0 {
				return fmt.Errorf("%d checks failed", problems)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
