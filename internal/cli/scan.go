package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"tonearm/internal/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>...",
	Short: "Import audio files under the given directories into the library",
	Long: `Walk the given directories and import every supported audio file
(mp3, wav, flac). Files already in the library get their metadata
refreshed, so a rescan picks up retagged files. Unreadable files are
logged and skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		roots := make([]string, len(args))
		for i, arg := range args {
			abs, err := filepath.Abs(arg)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", arg, err)
			}
			roots[i] = abs
		}

		sc := scanner.New(st, cfg.ScanWorkers)
		res, err := sc.Scan(cmd.Context(), roots)
		if err != nil {
			return err
		}

		fmt.Printf("scan complete: %d added, %d refreshed, %d skipped\n",
			res.Added, res.Refreshed, res.Skipped)
		count, err := st.TrackCount(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("library now holds %d tracks\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
