package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"tonearm/api"
	"tonearm/internal/store"
	errs "tonearm/pkg/errors"
)

var (
	tracksArtist string
	tracksAlbum  string
	tracksSearch string
)

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List library tracks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		tracks, err := st.ListTracks(cmd.Context(), store.Filter{
			Artist: tracksArtist,
			Album:  tracksAlbum,
			Search: tracksSearch,
		})
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			fmt.Println("no tracks found")
			return nil
		}
		printTracks(tracks)
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <track-id>",
	Short: "Remove a track from the library",
	Long: `Remove a track row and prune it from every playlist. The audio
file itself is not touched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errs.E("forget", args[0], fmt.Errorf("%w: not a track id", errs.ErrNotFound))
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		track, err := st.GetTrack(cmd.Context(), id)
		if err != nil {
			return err
		}
		if err := st.DeleteTrack(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("forgot %s (%s)\n", track.Title, track.Path)
		return nil
	},
}

func init() {
	tracksCmd.Flags().StringVar(&tracksArtist, "artist", "", "filter by artist substring")
	tracksCmd.Flags().StringVar(&tracksAlbum, "album", "", "filter by album substring")
	tracksCmd.Flags().StringVar(&tracksSearch, "search", "", "match title, artist, album or path")
	rootCmd.AddCommand(tracksCmd)
	rootCmd.AddCommand(forgetCmd)
}

func printTracks(tracks []api.Track) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tARTIST\tALBUM\tLENGTH\tPLAYS\tRATING")

	rows := lo.Map(tracks, func(t api.Track, _ int) string {
		rating := ""
		if t.Rating != nil {
			rating = stars(*t.Rating)
		}
		return fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%d\t%s",
			t.ID, t.Title, t.Artist, t.Album, fmtDuration(t.Duration), t.PlayCount, rating)
	})
	for _, row := range rows {
		fmt.Fprintln(w, row)
	}
	w.Flush()
	fmt.Printf("%d tracks\n", len(tracks))
}
