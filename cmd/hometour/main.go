// hometour - talk a Gemini Live model through your home.
//
// Streams microphone audio, typed text and camera (or screen) frames to the
// model and plays its voice back. The model remembers where things are and
// how household processes work through tool calls.
//
// Usage:
//
//	GOOGLE_API_KEY=... hometour --mode camera --camera-name FaceTime
//	hometour --mode screen --web-port 8080
//	hometour --mode none --layout ./house.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-hometour/internal/config"
	"github.com/teslashibe/go-hometour/internal/log"
	"github.com/teslashibe/go-hometour/pkg/audioio"
	_ "github.com/teslashibe/go-hometour/pkg/audioio/portaudio"
	"github.com/teslashibe/go-hometour/pkg/camera"
	"github.com/teslashibe/go-hometour/pkg/camera/capture"
	"github.com/teslashibe/go-hometour/pkg/live"
	"github.com/teslashibe/go-hometour/pkg/locations"
	"github.com/teslashibe/go-hometour/pkg/loop"
	"github.com/teslashibe/go-hometour/pkg/preference"
	"github.com/teslashibe/go-hometour/pkg/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "hometour",
		Short:         "Show a Gemini Live model around your home",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			if configFile != "" {
				v.SetConfigFile(configFile)
			}
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			log.Init(cfg.LogLevel)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("mode", string(camera.ModeCamera), "video source: camera, screen or none")
	flags.String("camera-name", "", "camera name substring to match (macOS)")
	flags.Int("camera-index", -1, "OpenCV camera index; wins over --camera-name")
	flags.String("layout", "", "YAML file with the initial object locations")
	flags.Int("web-port", 0, "serve the dashboard on this port (0 disables it)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&configFile, "config", "", "config file (default ./hometour.yaml)")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := log.L()

	objects := locations.DefaultLayout()
	if cfg.Layout != "" {
		var err error
		if objects, err = locations.LoadFile(cfg.Layout); err != nil {
			return fmt.Errorf("load layout: %w", err)
		}
	}
	home := preference.NewService(objects, logger)

	session := cfg.Live.
		WithSystemInstruction(preference.SystemPrompt).
		WithTools(home.GenaiTools()...)
	cams := camera.NewManager(cfg.Camera)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptStyle.Render("message > "),
		InterruptPrompt: "^C",
		EOFPrompt:       cfg.Loop.QuitToken,
	})
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer rl.Close()
	console := newConsole(rl.Stdout())

	deps := loop.Deps{
		Connect: func(ctx context.Context) (loop.Session, error) {
			s, err := live.Connect(ctx, session, logger)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
		OpenLines: func() (loop.LineReader, error) { return terminal{rl}, nil },
		OpenMic: func(context.Context) (audioio.Source, error) {
			return audioio.NewSource(cfg.Mic, logger)
		},
		OpenSpeaker: func(context.Context) (audioio.Sink, error) {
			return audioio.NewSink(cfg.Speaker, logger)
		},
		Tools:   home,
		Console: console,
		Logger:  logger,
	}
	if cfg.Camera.Mode != camera.ModeNone {
		deps.OpenFrames = func(ctx context.Context) (camera.Source, error) {
			return capture.Open(ctx, cams, logger)
		}
	}

	var dash *web.Server
	if cfg.WebPort > 0 {
		dash = web.NewServer(web.Options{Mode: cfg.Camera.Mode, Home: home, Camera: cams, Logger: logger})
		deps.Observer = dash

		// The dashboard outlives the run so the final state stays visible
		// until the process exits.
		go func() {
			if err := dash.Start(context.Background(), fmt.Sprintf(":%d", cfg.WebPort)); err != nil {
				logger.Warn("dashboard stopped", "error", err)
			}
		}()
		defer dash.Shutdown()
	}

	tour := loop.New(cfg.Loop, deps)
	if dash != nil {
		dash.Attach(tour)
	}
	printBanner(rl.Stdout(), cfg)

	if err := tour.Run(ctx); err != nil {
		return err
	}
	console.Notice(fmt.Sprintf("bye (%d turns)", tour.Stats().Turns.Load()))
	return nil
}
