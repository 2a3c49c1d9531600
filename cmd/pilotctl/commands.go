package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nadzzz/pathlight/internal/client"
	"github.com/nadzzz/pathlight/internal/config"
	"github.com/nadzzz/pathlight/internal/pilot"
	"github.com/nadzzz/pathlight/internal/playback"
	"github.com/nadzzz/pathlight/internal/session"
)

// logOutput receives client logs; status lines go to the command's stderr.
var logOutput io.Writer = os.Stderr

// flags overriding the PILOT_* environment.
type rootFlags struct {
	endpoint string
	voice    string
	noTTS    bool
	noPlay   bool
	delay    time.Duration
}

func newRootCmd() *cobra.Command {
	var f rootFlags

	root := &cobra.Command{
		Use:           "pilotctl",
		Short:         "PathLight voice client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `Send recorded speech to a PathLight dispatch server.

Settings come from PILOT_* environment variables (or a .env file):
  PILOT_ENDPOINT        dispatch URL
  PILOT_VOICE           reply voice
  PILOT_TTS             request synthesized replies
  PILOT_PLAYBACK_DELAY  pause before reply audio
  PILOT_VOLUME          initial master volume, 0..1
  PILOT_PLAYER          playback command template`,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.endpoint, "endpoint", "", "dispatch URL (overrides PILOT_ENDPOINT)")
	pf.StringVar(&f.voice, "voice", "", "reply voice (overrides PILOT_VOICE)")
	pf.BoolVar(&f.noTTS, "no-tts", false, "ask for text-only replies")
	pf.BoolVar(&f.noPlay, "no-play", false, "never play reply audio")
	pf.DurationVar(&f.delay, "delay", -1, "pause before reply audio (overrides PILOT_PLAYBACK_DELAY)")

	root.AddCommand(newSendCmd(&f), newShellCmd(&f), newFeedbackCmd(&f))
	return root
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(f *rootFlags) (*config.ClientConfig, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if f.endpoint != "" {
		cfg.Endpoint = f.endpoint
	}
	if f.voice != "" {
		cfg.Voice = f.voice
	}
	if f.noTTS {
		cfg.ServerTTS = false
	}
	if f.delay >= 0 {
		cfg.PlaybackDelay = f.delay
	}
	if h, _, err := config.NewLogHandler(config.LoggingConfig{Level: cfg.LogLevel, Format: "text"}, logOutput); err == nil {
		slog.SetDefault(slog.New(h))
	}
	return cfg, nil
}

// pilotApp is one wired client.
type pilotApp struct {
	client  *client.Client
	audio   *playback.Sequencer
	session *session.Session
}

func newPilotApp(cfg *config.ClientConfig, status io.Writer, noPlay bool) *pilotApp {
	player := playback.NewExecPlayer(cfg.Player, cfg.Volume)
	audio := playback.NewSequencer(player)
	audio.OnError = func(err error) { fmt.Fprintln(status, "Playback error:", err) }

	state := pilot.NewState(pilot.Settings{
		ServerTTS:     cfg.ServerTTS,
		Voice:         cfg.Voice,
		Volume:        cfg.Volume,
		PlaybackDelay: cfg.PlaybackDelay,
	}, player)

	var exAudio pilot.Audio = audio
	var sessAudio session.Audio = audio
	if noPlay {
		exAudio, sessAudio = nil, nil
	}
	exec := pilot.NewExecutor(state, pilot.NewFileNotes(cfg.FeedbackFile), exAudio)

	app := &pilotApp{audio: audio}

	retry := cfg.RetryDelay
	if retry == 0 {
		retry = -1 // client.Options treats zero as "use the default"
	}
	app.client = client.New(client.Options{
		Endpoint:   cfg.Endpoint,
		Timeout:    cfg.Timeout,
		RetryDelay: retry,
		OnState: func(s client.State, attempt int) {
			app.session.OnClientState(s, attempt)
		},
	})
	app.session = session.New(session.Options{
		Dispatcher: app.client,
		Executor:   exec,
		Audio:      sessAudio,
		Mode:       cfg.Mode,
		Status:     func(line string) { fmt.Fprintln(status, line) },
	})
	return app
}

// printOutcome writes the transcript and reply for one utterance.
func printOutcome(w io.Writer, out *session.Outcome) {
	fmt.Fprintf(w, "You said: %s\n", out.Result.Transcript)
	fmt.Fprintf(w, "Reply: %s\n", out.Result.Reply)
	if out.Effect.Action != "" {
		fmt.Fprintf(w, "Action: %s (applied: %t, volume %.0f%%)\n", out.Effect.Action, out.Effect.Applied, out.Effect.Volume*100)
	}
}

func newSendCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send <audio-file>",
		Short: "Dispatch one recorded utterance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			app := newPilotApp(cfg, cmd.ErrOrStderr(), f.noPlay)

			out, err := app.session.Run(cmd.Context(), session.FileRecorder{Path: args[0]})
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), out)
			return app.audio.Wait(cmd.Context())
		},
	}
}

func newShellCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Dispatch recordings named on stdin, one path per line",
		Long: `Reads audio file paths from stdin and dispatches each in turn.
Settings changed by voice (speech on/off, voice, volume) carry over to the
next line, and "repeat" replays the last reply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			app := newPilotApp(cfg, cmd.ErrOrStderr(), f.noPlay)
			defer app.audio.Stop()

			sc := bufio.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				path := strings.TrimSpace(sc.Text())
				if path == "" {
					continue
				}
				out, err := app.session.Run(cmd.Context(), session.FileRecorder{Path: path})
				if err != nil {
					// Status already reported; keep the shell alive.
					slog.Debug("utterance failed", "path", path, "error", err)
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
					continue
				}
				printOutcome(cmd.OutOrStdout(), out)
			}
			if err := sc.Err(); err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			return app.audio.Wait(cmd.Context())
		},
	}
}

func newFeedbackCmd(f *rootFlags) *cobra.Command {
	var token string
	var limit int

	fb := &cobra.Command{
		Use:   "feedback",
		Short: "Read feedback recorded by the server",
	}
	fb.PersistentFlags().StringVar(&token, "token", "", "feedback token (overrides PILOT_FEEDBACK_TOKEN)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent feedback, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			c := client.New(client.Options{Endpoint: cfg.Endpoint, Timeout: cfg.Timeout})
			items, err := c.ListFeedback(cmd.Context(), pick(token, cfg.FeedbackToken), limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), items)
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "maximum items, 1-200 (server default 50)")

	latest := &cobra.Command{
		Use:   "latest",
		Short: "Show the newest feedback item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			c := client.New(client.Options{Endpoint: cfg.Endpoint, Timeout: cfg.Timeout})
			item, err := c.LatestFeedback(cmd.Context(), pick(token, cfg.FeedbackToken))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), item)
		},
	}

	fb.AddCommand(list, latest)
	return fb
}

func pick(flag, env string) string {
	if flag != "" {
		return flag
	}
	return env
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
