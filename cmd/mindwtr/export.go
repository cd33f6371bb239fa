package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	exportFormat string
	exportRemote bool
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "data",
	Short:   "Write the full document to stdout",
	Long: `Export the complete document as JSON or YAML.

With --remote the snapshot is sanitized the way a sync transport would
see it: secrets stripped, local file attachment URIs blanked and
settings reduced to the synced sections.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, cleanup, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		doc := s.Document()
		if exportRemote {
			doc = s.SanitizedForRemote()
		}

		switch exportFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close()
			return enc.Encode(doc)
		default:
			return fmt.Errorf("unknown format %q (want json or yaml)", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format: json or yaml")
	exportCmd.Flags().BoolVar(&exportRemote, "remote", false, "apply the sync-transport sanitizer")
	rootCmd.AddCommand(exportCmd)
}
