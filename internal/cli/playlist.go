package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tonearm/internal/store"
	errs "tonearm/pkg/errors"
)

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "Manage playlists",
}

var playlistCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		id, err := st.CreatePlaylist(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("created playlist %q (id %d)\n", args[0], id)
		return nil
	},
}

var playlistRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a playlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := st.GetPlaylistByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := st.DeletePlaylist(cmd.Context(), p.ID); err != nil {
			return err
		}
		fmt.Printf("deleted playlist %q\n", p.Name)
		return nil
	},
}

var playlistAddCmd = &cobra.Command{
	Use:   "add <name> <track-id>",
	Short: "Append a track to a playlist",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editPlaylist(cmd.Context(), args[0], args[1],
			func(st *store.Store, pid, tid int64) error {
				if err := st.AddToPlaylist(cmd.Context(), pid, tid); err != nil {
					return err
				}
				fmt.Printf("added track %d to %q\n", tid, args[0])
				return nil
			})
	},
}

var playlistRemoveCmd = &cobra.Command{
	Use:   "remove <name> <track-id>",
	Short: "Remove all entries of a track from a playlist",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editPlaylist(cmd.Context(), args[0], args[1],
			func(st *store.Store, pid, tid int64) error {
				if err := st.RemoveFromPlaylist(cmd.Context(), pid, tid); err != nil {
					return err
				}
				fmt.Printf("removed track %d from %q\n", tid, args[0])
				return nil
			})
	},
}

var playlistShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "List a playlist's tracks in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := st.GetPlaylistByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		tracks, err := st.ListPlaylist(cmd.Context(), p.ID)
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			fmt.Printf("playlist %q is empty\n", p.Name)
			return nil
		}
		printTracks(tracks)
		return nil
	},
}

var playlistLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all playlists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		lists, err := st.ListPlaylists(cmd.Context())
		if err != nil {
			return err
		}
		if len(lists) == 0 {
			fmt.Println("no playlists")
			return nil
		}
		for _, p := range lists {
			fmt.Printf("%s (%d tracks)\n", p.Name, p.TrackCount)
		}
		return nil
	},
}

func init() {
	playlistCmd.AddCommand(playlistCreateCmd, playlistRmCmd, playlistAddCmd,
		playlistRemoveCmd, playlistShowCmd, playlistLsCmd)
	rootCmd.AddCommand(playlistCmd)
}

// editPlaylist resolves the playlist name and track id arguments, then runs
// one mutation against the store.
func editPlaylist(ctx context.Context, name, trackArg string, edit func(*store.Store, int64, int64) error) error {
	tid, err := strconv.ParseInt(trackArg, 10, 64)
	if err != nil {
		return errs.E("playlist", trackArg, fmt.Errorf("%w: not a track id", errs.ErrNotFound))
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := st.GetPlaylistByName(ctx, name)
	if err != nil {
		return err
	}
	return edit(st, p.ID, tid)
}
