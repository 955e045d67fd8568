package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tonearm/api"
	errs "tonearm/pkg/errors"
)

var rateCmd = &cobra.Command{
	Use:   "rate <track-id> <0-5>",
	Short: "Rate a library track",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errs.E("rate", args[0], fmt.Errorf("%w: not a track id", errs.ErrNotFound))
		}
		rating, err := strconv.Atoi(args[1])
		if err != nil {
			return errs.E("rate", args[1], fmt.Errorf("%w: rating must be a number", errs.ErrOutOfRange))
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.SetRating(cmd.Context(), id, rating); err != nil {
			return err
		}
		track, err := st.GetTrack(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("rated %s %s\n", track.Title, stars(rating))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rateCmd)
}

func stars(rating int) string {
	out := make([]rune, api.RatingMax)
	for i := range out {
		if i < rating {
			out[i] = '★'
		} else {
			out[i] = '☆'
		}
	}
	return string(out)
}
