package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON prints v to stdout. File names are kept as-is rather than having
// &, < and > escaped.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
