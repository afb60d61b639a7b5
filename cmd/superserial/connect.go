package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fallrisk/super-serial/internal/config"
	"github.com/fallrisk/super-serial/internal/console"
	"github.com/fallrisk/super-serial/internal/link"
	"github.com/fallrisk/super-serial/internal/linkerr"
	"github.com/fallrisk/super-serial/internal/profile"
	"github.com/fallrisk/super-serial/internal/serialcfg"
	"github.com/fallrisk/super-serial/internal/transport"
)

var (
	connectFlags     serialFlags
	connectProfile   string
	connectLocalEcho bool
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Open a serial port in an interactive terminal",
	Example: `  superserial connect -p /dev/ttyUSB0 -b 9600 --parity e
  superserial connect --profile "bench supply"`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg := app.config
	logger := app.logger.With(zap.String("command", "connect"))

	raw, err := connectSettings(cmd)
	if err != nil {
		return err
	}

	var promptOnQuit, localEcho atomic.Bool
	prefs := loadPreferences(cfg, logger)
	promptOnQuit.Store(prefs.PromptOnQuit)
	localEcho.Store(prefs.LocalEcho)
	echoFlag := cmd.Flags().Changed("local-echo")
	if echoFlag {
		localEcho.Store(connectLocalEcho)
	}

	if cfg.Preferences.Watch && cfg.Preferences.Path != "" {
		watcher, err := config.WatchPreferences(cfg.Preferences.Path, logger, func(p config.Preferences) {
			promptOnQuit.Store(p.PromptOnQuit)
			if !echoFlag {
				localEcho.Store(p.LocalEcho)
			}
		})
		if err != nil {
			logger.Warn("Preferences will not be reloaded", zap.Error(err))
		} else {
			defer watcher.Close()
		}
	}

	display := console.NewDisplay(os.Stdout, os.Stderr)
	manager := link.NewManager(
		transport.NewSerialDriver(logger, cfg.Link.ReadWindow),
		display,
		link.Options{
			ReadBufferSize: cfg.Link.ReadBufferSize,
			PollInterval:   cfg.Link.PollInterval,
			Logger:         logger,
			Metrics:        app.metrics.Metrics,
		},
	)

	if err := manager.Open(cmd.Context(), raw); err != nil {
		return err
	}
	defer manager.Close()

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to put terminal in raw mode: %w", err)
		}
		defer term.Restore(fd, state)
	}

	session := console.NewSession(manager, os.Stdin, os.Stderr, logger)
	session.PromptOnQuit = promptOnQuit.Load
	session.LocalEcho = localEcho.Load
	session.Echo = display

	ended := make(chan error, 1)
	go func() {
		ended <- session.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-ended:
		if err != nil {
			logger.Debug("Session ended", zap.Error(err))
		}
		if linkerr.KindOf(err) == linkerr.DeviceRemoved {
			// the read loop may still be closing the link
			if event := <-display.Closed(); event.Err != nil {
				return event.Err
			}
			return nil
		}
	case event := <-display.Closed():
		if event.Err != nil {
			return event.Err
		}
	case sig := <-quit:
		logger.Info("Received signal", zap.String("signal", sig.String()))
	}

	return manager.Close()
}

// connectSettings builds the requested settings from --profile or the
// serial flags. --port overrides the profile's port.
func connectSettings(cmd *cobra.Command) (serialcfg.RawConfig, error) {
	if connectProfile == "" {
		args := connectFlags.resolve(cmd, app.config.Link.CLIDefaults())
		if args.Port == "" {
			return serialcfg.RawConfig{}, errors.New("either --port or --profile is required")
		}
		return serialcfg.FromCLI(args), nil
	}

	profiles, err := newProfileStore().Load(app.config.Profiles.Path)
	if err != nil {
		return serialcfg.RawConfig{}, err
	}
	p, ok := profile.NewCollection(profiles).Get(connectProfile)
	if !ok {
		return serialcfg.RawConfig{}, fmt.Errorf("%w: %s", profile.ErrNotFound, connectProfile)
	}

	raw := p.Raw()
	if cmd.Flags().Changed("port") {
		raw.Port = connectFlags.args.Port
	}
	return raw, nil
}

// loadPreferences reads the preferences file, falling back to the defaults
// when it is missing or invalid.
func loadPreferences(cfg *config.Config, logger *zap.Logger) config.Preferences {
	if cfg.Preferences.Path == "" {
		return config.DefaultPreferences()
	}
	prefs, err := config.LoadPreferences(cfg.Preferences.Path)
	if err != nil {
		logger.Debug("Using default preferences", zap.Error(err))
	}
	return prefs
}

func init() {
	connectFlags.register(connectCmd.Flags())
	connectCmd.Flags().StringVar(&connectProfile, "profile", "", "Connect using a saved profile")
	connectCmd.Flags().BoolVar(&connectLocalEcho, "local-echo", false, "Echo typed input (overrides the local_echo preference)")

	rootCmd.AddCommand(connectCmd)
}
