package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tonearm/api"
	"tonearm/internal/audio"
	"tonearm/internal/coordinator"
	"tonearm/internal/store"
	"tonearm/internal/transport"
)

var playCmd = &cobra.Command{
	Use:   "play <path|track-id>",
	Short: "Play an audio file in the foreground",
	Long: `Play an audio file or a library track by id.

While playing, line commands on stdin control the transport:
  pause          suspend playback
  resume         continue playback
  seek <secs>    jump to an absolute position
  stop           end playback and exit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		path, err := resolveTrackArg(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}
		return runPlayback(cmd.Context(), st, path)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
}

// resolveTrackArg accepts either a filesystem path or a numeric library id.
func resolveTrackArg(ctx context.Context, st *store.Store, arg string) (string, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if _, statErr := os.Stat(arg); os.IsNotExist(statErr) {
			track, err := st.GetTrack(ctx, id)
			if err != nil {
				return "", err
			}
			return track.Path, nil
		}
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return arg, nil
	}
	return abs, nil
}

// runPlayback wires sink, transport and coordinator for one foreground
// session and blocks until the track ends or the user stops it.
func runPlayback(parent context.Context, st *store.Store, path string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sink := audio.NewSpeakerSink(cfg.Volume)
	tr := transport.New(transport.DefaultOpener, sink, transport.Options{
		DeviceTimeout: cfg.DeviceTimeout,
		SpeakerBuffer: cfg.SpeakerBuffer,
		StallTimeout:  cfg.StallTimeout,
	})
	trDone := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(trDone)
	}()

	coord := coordinator.New(tr, st, coordinator.Options{
		PlayedThreshold: cfg.PlayedThreshold,
	})
	go coord.Run()

	// Shut down in dependency order: transport first, then wait for the
	// coordinator to drain so a finished track's play count lands before
	// the process exits.
	shutdown := func() {
		cancel()
		<-trDone
		coord.Wait()
	}

	evs := coord.Subscribe()

	if err := coord.Play(ctx, path); err != nil {
		shutdown()
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	for {
		select {
		case ev, ok := <-evs:
			if !ok {
				shutdown()
				return nil
			}
			printEvent(ev)
			if ev.Type.Terminal() {
				shutdown()
				if ev.Type == api.EventFailed {
					return ev.Err
				}
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil // stdin closed, keep playing
				continue
			}
			handleLine(coord, line)
		case <-sig:
			if err := coord.Stop(); err != nil && !errors.Is(err, transport.ErrClosed) {
				shutdown()
				return err
			}
		}
	}
}

// handleLine applies one stdin control command.
func handleLine(coord *coordinator.Coordinator, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	var err error
	switch fields[0] {
	case "pause":
		err = coord.Pause()
	case "resume", "play":
		err = coord.Resume()
	case "stop", "quit", "q":
		err = coord.Stop()
	case "seek":
		if len(fields) != 2 {
			err = fmt.Errorf("usage: seek <seconds>")
			break
		}
		var target float64
		if target, err = strconv.ParseFloat(fields[1], 64); err != nil {
			err = fmt.Errorf("seek: %q is not a number", fields[1])
			break
		}
		var actual float64
		if actual, err = coord.Seek(target); err == nil {
			fmt.Printf("\rseeked to %s\n", fmtDuration(time.Duration(actual*float64(time.Second))))
		}
	default:
		err = fmt.Errorf("unknown command %q (pause, resume, seek <secs>, stop)", fields[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "\r%v\n", err)
	}
}

func printEvent(ev api.Event) {
	switch ev.Type {
	case api.EventStarted:
		fmt.Printf("playing %s (%s)\n", ev.Path, fmtDuration(ev.Duration))
	case api.EventPosition:
		fmt.Printf("\r%s / %s %-8s", fmtDuration(ev.Elapsed), fmtDuration(ev.Duration), ev.State)
	case api.EventPaused:
		fmt.Printf("\r%s / %s %-8s", fmtDuration(ev.Elapsed), fmtDuration(ev.Duration), "paused")
	case api.EventResumed:
		fmt.Printf("\r%s / %s %-8s", fmtDuration(ev.Elapsed), fmtDuration(ev.Duration), "playing")
	case api.EventStopped:
		fmt.Printf("\rstopped at %s\n", fmtDuration(ev.Elapsed))
	case api.EventFinished:
		fmt.Printf("\rfinished %s\n", ev.Path)
	case api.EventFailed:
		fmt.Println("\rplayback failed")
	}
}

// fmtDuration renders m:ss, or h:mm:ss for long tracks.
func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
