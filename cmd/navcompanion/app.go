package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hammamikhairi/navcompanion/internal/config"
	"github.com/hammamikhairi/navcompanion/internal/conversation"
	"github.com/hammamikhairi/navcompanion/internal/display"
	"github.com/hammamikhairi/navcompanion/internal/domain"
	"github.com/hammamikhairi/navcompanion/internal/guidance"
	"github.com/hammamikhairi/navcompanion/internal/logger"
	"github.com/hammamikhairi/navcompanion/internal/speech"
	"github.com/hammamikhairi/navcompanion/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	printer *display.Printer

	journal      domain.Journal
	closeJournal func() error

	registry *prometheus.Registry
	metrics  *speech.Metrics
	queue    *speech.Queue
	remote   *speech.RemoteTransport
	server   *http.Server
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("api") {
		cfg.APIBaseURL = apiURL
	}
	if flags.Changed("room") {
		cfg.Room = room
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}
	if flags.Changed("journal") {
		cfg.JournalPath = journal
	}
	if noSpeech {
		cfg.NoSpeech = true
	}
	switch {
	case quiet:
		cfg.LogLevel = "off"
	case verbose:
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.LogFile == "" || cfg.LogFile == "stderr" {
		return logger.New(level, os.Stderr), nil
	}
	return logger.NewFile(level, cfg.LogFile, 16)
}

// newApp wires the journal, metrics, transports and queue.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		printer:  display.NewPrinter(os.Stdout),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = speech.NewMetrics(a.registry)

	if err := a.openJournal(ctx); err != nil {
		log.Close()
		return nil, err
	}

	local, remote := a.buildTransports()
	a.queue = speech.NewQueue(remote, local, log,
		speech.WithDefaultDedupeWindow(cfg.DedupeWindow),
		speech.WithJournal(a.journal),
		speech.WithMetrics(a.metrics),
	)
	return a, nil
}

func (a *app) openJournal(ctx context.Context) error {
	if a.cfg.JournalPath == "" {
		a.journal = storage.NewMemoryJournal(a.cfg.HistoryLimit, a.log)
		return nil
	}
	j, err := storage.OpenSQLite(ctx, a.cfg.JournalPath, a.cfg.JournalMaxRows, a.log)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	a.journal = j
	a.closeJournal = j.Close
	return nil
}

// buildTransports returns the local transport and, when the backend and
// audio device are available, the remote one. remote is a nil interface
// otherwise so the queue goes straight to local.
func (a *app) buildTransports() (local, remote domain.Transport) {
	cfg, log := a.cfg, a.log
	if cfg.NoSpeech {
		log.Info("speech disabled, announcements are only logged")
		return speech.NewNoOp(log), nil
	}

	synth, err := speech.NewExecSynthesizer(cfg.LocalTTSCommand)
	if err != nil {
		log.Error("local synthesizer unusable, falling back to no-op: %v", err)
		local = speech.NewNoOp(log)
	} else {
		local = speech.NewLocalTransport(synth, log)
		log.Debug("local synthesizer: %s", strings.Join(synth.Command(), " "))
	}

	if !cfg.RemoteEnabled() {
		log.Info("remote TTS disabled: set %s_API_BASE_URL to enable", config.Prefix)
		return local, nil
	}

	device, err := speech.NewOtoDevice(cfg.SampleRate, log)
	if err != nil {
		log.Error("audio device init failed, using local speech only: %v", err)
		return local, nil
	}
	clips, err := speech.NewClipStore(cfg.ClipDir, log)
	if err != nil {
		log.Error("clip store unavailable, using local speech only: %v", err)
		device.Close()
		return local, nil
	}
	if _, err := clips.Sweep(); err != nil {
		log.Warn("sweeping stale clips: %v", err)
	}

	a.remote = speech.NewRemoteTransport(cfg.APIBaseURL, device, clips, log,
		speech.WithAPIPrefix(cfg.APIPrefix),
		speech.WithFetchTimeout(cfg.FetchTimeout),
		speech.WithPollInterval(cfg.PollInterval),
	)
	log.Info("remote TTS enabled (%s%s%s)", cfg.APIBaseURL, cfg.APIPrefix, speech.SpeakPath)
	return local, a.remote
}

// serveMetrics exposes the registry when a metrics address is set.
func (a *app) serveMetrics() {
	if a.cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server: %v", err)
		}
	}()
	a.log.Info("metrics listening on %s/metrics", a.cfg.MetricsAddr)
}

// close stops speech and releases every resource, in dependency order.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.queue.Close(ctx); err != nil {
		a.log.Warn("queue did not drain: %v", err)
	}
	if a.remote != nil {
		if err := a.remote.Close(); err != nil {
			a.log.Warn("releasing audio device: %v", err)
		}
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn("metrics server shutdown: %v", err)
		}
	}
	if a.closeJournal != nil {
		if err := a.closeJournal(); err != nil {
			a.log.Warn("closing journal: %v", err)
		}
	}
	a.log.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runGuidance(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()
	a.serveMetrics()

	cfg := a.cfg
	a.printer.Banner(fmt.Sprintf("room %s · %s", cfg.Room, describeBackend(cfg)))

	notifier := speech.NewSpeakingNotifier(display.NewCLINotifier(a.printer, a.log), a.queue, a.log)
	_ = notifier.Notify(ctx, speech.LineWelcome())

	if cfg.RemoteEnabled() {
		client := guidance.NewClient(cfg.APIBaseURL, a.log,
			guidance.WithPrefix(cfg.APIPrefix),
			guidance.WithTimeout(cfg.FetchTimeout),
		)

		decisions := guidance.NewDecisionPoller(client, cfg.Room, notifier, a.log,
			guidance.WithInterval(cfg.DecisionInterval))
		decisions.Start(ctx)
		defer decisions.Stop()

		if cfg.RouteGuidance {
			here := guidance.StaticLocation{Latitude: cfg.Latitude, Longitude: cfg.Longitude}
			route := guidance.NewRoutePoller(client, here, cfg.Room, cfg.TravelMode, notifier, a.log,
				guidance.WithInterval(cfg.RouteInterval))
			route.Start(ctx)
			defer route.Stop()
		}
	} else {
		a.printer.Hint("No navigation API configured; only local announcements will be spoken.")
	}

	if term.IsTerminal(os.Stdin.Fd()) {
		runConsole(ctx, stop, a)
	}

	<-ctx.Done()
	a.printer.Hint(speech.LineShutdown())
	return nil
}

// runConsole reads keyboard commands in the background. quit cancels ctx.
func runConsole(ctx context.Context, cancel context.CancelFunc, a *app) {
	a.printer.Hint("Type help for console commands.")
	console := conversation.NewConsole(conversation.NewKeywordParser(a.log), a.queue, func(format string, args ...any) {
		a.printer.Hint(fmt.Sprintf(format, args...))
	}, a.log)
	go func() {
		defer cancel()
		if err := console.Run(ctx, os.Stdin); err != nil {
			a.log.Warn("console: %v", err)
		}
	}()
}

func runSay(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var opts []speech.EnqueueOption
	if sayHigh {
		opts = append(opts, speech.High())
	}
	if sayFlush {
		opts = append(opts, speech.FlushExisting())
	}

	f := a.queue.Enqueue(strings.Join(args, " "), opts...)
	select {
	case <-f.Done():
	case <-ctx.Done():
		a.queue.Stop("interrupted")
		<-f.Done()
	}

	a.printer.Println(display.FormatEntry(domain.JournalEntry{
		Text:       strings.Join(args, " "),
		Outcome:    f.Outcome(),
		FinishedAt: time.Now(),
	}))
	return f.Err()
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.JournalPath == "" {
		return fmt.Errorf("no journal configured: set %s_JOURNAL_PATH or --journal", config.Prefix)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	j, err := storage.OpenSQLite(ctx, cfg.JournalPath, 0, log)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer j.Close()

	entries, err := j.Recent(ctx, historySize)
	if err != nil {
		return err
	}
	display.NewPrinter(os.Stdout).History(entries)
	return nil
}

func describeBackend(cfg *config.Config) string {
	if !cfg.RemoteEnabled() {
		return "local speech only"
	}
	return cfg.APIBaseURL
}
