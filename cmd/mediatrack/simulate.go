package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OCAP2/mediatrack/internal/config"
	"github.com/OCAP2/mediatrack/internal/dispatcher"
	"github.com/OCAP2/mediatrack/internal/logging"
	"github.com/OCAP2/mediatrack/internal/monitor"
	"github.com/OCAP2/mediatrack/internal/otel"
	"github.com/OCAP2/mediatrack/internal/scheduler"
	"github.com/OCAP2/mediatrack/internal/sink"
	"github.com/OCAP2/mediatrack/internal/tracker"
	"github.com/OCAP2/mediatrack/pkg/youtube/sim"
)

type simulateOptions struct {
	*rootOptions
	sinks   []string
	logFile bool
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "simulate <script.yaml>",
		Short: "Replay a scripted player session and ship its events to the configured sinks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.sinks, "sink", nil, "sinks to enable, overrides the configuration")
	cmd.Flags().BoolVar(&opts.logFile, "log-file", false, "also write logs to a file in logsDir")
	return cmd
}

func runSimulate(ctx context.Context, out io.Writer, scriptPath string, opts *simulateOptions) error {
	start := time.Now()
	cfgErr := config.Load(opts.configDir)
	if opts.logLevel != "" {
		viper.Set("logLevel", opts.logLevel)
	}
	if len(opts.sinks) > 0 {
		viper.Set("sinks", opts.sinks)
	}
	level := config.GetString("logLevel")

	var logFile io.WriteCloser
	if opts.logFile {
		f, err := logging.OpenLogFile(config.GetString("logsDir"), logging.DefaultService, start)
		if err != nil {
			return err
		}
		defer f.Close()
		logFile = f
	}

	provider, err := otel.New(config.GetOTelConfig(), logFile)
	if err != nil {
		return fmt.Errorf("setting up otel: %w", err)
	}
	defer provider.Shutdown(context.Background())

	runID := uuid.NewString()
	slogManager := logging.NewSlogManager()
	logOpts := logging.Options{
		Level:    level,
		Console:  true,
		Provider: provider.LoggerProvider(),
		Context: func() []slog.Attr {
			return []slog.Attr{slog.String("run", runID)}
		},
	}
	if logFile != nil {
		logOpts.File = logFile
	}
	slogManager.Setup(logOpts)
	logger := slogManager.Logger()
	defer slogManager.Flush(context.Background())
	otel.SetErrorHandler(func(err error) { logger.Warn("otel error", "error", err) })

	if cfgErr != nil {
		logger.Warn("Using default configuration", "error", cfgErr)
	}

	script, err := sim.LoadScript(scriptPath)
	if err != nil {
		return err
	}

	zl := logging.NewZerolog(out, level)
	d, err := dispatcher.New(logging.NewDispatcherLogger(zl))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	deps := sink.Dependencies{Logger: zl, Slog: logger}
	sinks := startSinks(d, config.GetSinkNames(), deps, config.GetDispatchConfig(), logger, level == "debug")
	defer closeSinks(sinks, logger)
	defer d.Close()
	if len(sinks) == 0 {
		logger.Warn("No sinks initialized, events will be dropped")
	}

	loop := scheduler.New()
	defer loop.Close()
	env := sim.NewEnvironment(loop)
	tr, err := tracker.New(tracker.Dependencies{
		Env:        env,
		Scheduler:  loop,
		Dispatcher: d,
		Logger:     logger.With("script", filepath.Base(scriptPath)),
	})
	if err != nil {
		return err
	}

	loop.Sync(func() {
		script.Setup(env)
		for _, f := range script.IFrames {
			if !f.Track {
				continue
			}
			trackingOpts, err := config.GetTrackingOptions(f.ID)
			if err != nil {
				logger.Error("Invalid tracking options", "mediaId", f.ID, "error", err)
				continue
			}
			_, _ = tr.Enable(f.ID, trackingOpts)
		}
		env.AfterReady(func() { script.Schedule(env) })
	})

	if mc := config.GetMonitorConfig(); mc.Enabled {
		mon := monitor.NewService(monitor.Dependencies{
			Logger: logger,
			Sessions: func() int {
				n := 0
				loop.Sync(func() { n = tr.Active() })
				return n
			},
			Stats:      d.Stats,
			StatusFile: mc.StatusFile,
			Interval:   mc.Interval,
		})
		if err := mon.Start(); err != nil {
			logger.Warn("Failed to start status monitor", "error", err)
		} else {
			defer mon.Stop()
		}
	}

	logger.Info("Simulation started", "duration", script.Duration, "players", len(script.IFrames))
	select {
	case <-time.After(sim.DefaultAPILatency + script.Duration):
	case <-ctx.Done():
		logger.Info("Simulation interrupted")
	}
	loop.Sync(tr.Close)
	d.Close()

	for _, name := range d.Names() {
		st := d.Stats()[name]
		if st.Dropped > 0 {
			fmt.Fprintf(out, "%s: %d dispatched, %d failed, %d dropped\n", name, st.Dispatched, st.Failed, st.Dropped)
			continue
		}
		fmt.Fprintf(out, "%s: %d dispatched, %d failed\n", name, st.Dispatched, st.Failed)
	}
	return nil
}
