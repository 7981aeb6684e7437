// alloc-tracer runs a program that reports its heap activity on stdout and
// tracks the chunks it allocates, flagging overlaps and corruption.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel/trace"

	"github.com/mrzor/alloc-tracer/internal/attributes"
	"github.com/mrzor/alloc-tracer/internal/config"
	"github.com/mrzor/alloc-tracer/internal/eventstream"
	"github.com/mrzor/alloc-tracer/internal/otel"
	"github.com/mrzor/alloc-tracer/internal/output"
	"github.com/mrzor/alloc-tracer/internal/tracker"
	"github.com/mrzor/alloc-tracer/internal/viewer"
)

// Version information injected at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, config.ErrHelp) {
			fmt.Println(config.Usage(os.Args[0]))
			return
		}
		log.Fatalf("Error: %v", err)
	}
}

// setupOTEL initializes the OTEL provider when export is configured and
// returns a tracer and cleanup function. The tracer is nil when export is off.
func setupOTEL(versionInfo string) (trace.Tracer, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse OTEL config: %w", err)
	}

	if !otelCfg.Enabled() {
		log.Printf("OTEL export disabled (set OTEL_EXPORTER_OTLP_ENDPOINT to enable)")
		return nil, func() {}, nil
	}

	tp, err := otel.InitProvider(otelCfg, versionInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("ABORT: failed to initialize OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
			log.Printf("Error shutting down OTEL provider: %v", err)
		}
	}

	return tp.Tracer("alloc-tracer"), cleanup, nil
}

// setupRecorder builds the span recorder observing the store, or returns nil
// when there is no tracer.
func setupRecorder(cfg *config.Config, tracer trace.Tracer) (*output.SpanRecorder, error) {
	if tracer == nil {
		return nil, nil
	}

	evaluator, err := attributes.NewEvaluator(cfg.CustomAttributes)
	if err != nil {
		return nil, fmt.Errorf("failed to compile custom attributes: %w", err)
	}

	return output.NewSpanRecorder(tracer, evaluator, commandLine(cfg)), nil
}

// setupTracker opens the event source and builds the tracker. The returned
// cleanup closes the replay file, if any.
func setupTracker(cfg *config.Config, recorder *output.SpanRecorder, notifier eventstream.Notifier) (*tracker.Tracker, func(), error) {
	opts := tracker.Options{
		Command:    cfg.Command,
		Args:       cfg.Args,
		LineWidth:  cfg.LineWidth,
		MaxAddress: cfg.MaxAddress,
	}
	if recorder != nil {
		opts.Observer = recorder
	}

	cleanup := func() {}
	if cfg.Replay != "" {
		f, err := os.Open(cfg.Replay)
		if err != nil {
			return nil, nil, fmt.Errorf("opening replay file: %w", err)
		}
		opts.Replay = f
		cleanup = func() {
			_ = f.Close() //nolint:errcheck // Read-only file
		}
	}

	t, err := tracker.New(opts, notifier)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return t, cleanup, nil
}

func run() error {
	cfg, err := config.ParseArgs(os.Args)
	if err != nil {
		return err
	}

	filter, err := attributes.NewFilter(cfg.Filter)
	if err != nil {
		return err
	}

	// The viewer owns the terminal; logs go to a file while it runs.
	if !cfg.Headless {
		logFile, err := tea.LogToFile(cfg.LogFile, "alloc-tracer")
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer logFile.Close() //nolint:errcheck // Log file, nothing to recover
	}

	log.Printf("Starting alloc-tracer %s (commit: %s, built: %s)", version, commit, date)

	versionInfo := fmt.Sprintf("%s (%s)", version, commit)
	tracer, cleanupOTEL, err := setupOTEL(versionInfo)
	if err != nil {
		return err
	}
	defer cleanupOTEL()

	recorder, err := setupRecorder(cfg, tracer)
	if err != nil {
		return err
	}
	if recorder != nil {
		// Runs before the provider shutdown so the spans get flushed.
		defer recorder.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier, wake := viewer.NewNotifier()
	t, cleanupTracker, err := setupTracker(cfg, recorder, notifier)
	if err != nil {
		return err
	}
	defer cleanupTracker()

	if err := t.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := t.Stop(); err != nil {
			log.Printf("Error stopping tracker: %v", err)
		}
	}()

	if cfg.Headless {
		drain(ctx, t, wake, cfg.Tick)
	} else if err := runViewer(ctx, cfg, t, filter, wake); err != nil {
		return err
	}

	logSummary(t)
	return nil
}

// runViewer runs the terminal viewer until the user quits or ctx is done.
func runViewer(ctx context.Context, cfg *config.Config, t *tracker.Tracker, filter *attributes.Filter, wake <-chan struct{}) error {
	m := viewer.New(t, viewer.Options{
		Title:      commandTitle(cfg),
		Filter:     filter,
		Tick:       cfg.Tick,
		MaxAddress: cfg.MaxAddress,
		Notify:     wake,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running viewer: %w", err)
	}
	return nil
}

// drain applies events until the traced output ends or ctx is done. With
// nobody to press play, a corruption pause is logged and resumed at once.
func drain(ctx context.Context, t *tracker.Tracker, wake <-chan struct{}, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		pollAll(t)

		select {
		case <-ctx.Done():
			log.Println("Received signal, terminating...")
			return
		case <-t.Done():
			pollAll(t)
			return
		case <-wake:
		case <-ticker.C:
		}
	}
}

func pollAll(t *tracker.Tracker) {
	for t.Poll() || !t.IngestionEnabled() {
		if !t.IngestionEnabled() {
			log.Printf("Corruption reported, %d events queued; resuming ingestion", t.Pending())
			t.SetIngestionEnabled(true)
		}
	}
}

func logSummary(t *tracker.Tracker) {
	st := t.Stats()
	c := t.Counters()
	log.Printf("Lines read: %d (decoded %d, rejected %d)", c.Lines, c.Decoded, c.Rejected)
	log.Printf("Live chunks: %d (ok %d, already used %d, already freed %d, corrupted %d)",
		st.Total(), st.Ok, st.AlreadyUsed, st.AlreadyFreed, st.Corrupted)

	select {
	case <-t.Done():
		if err := t.Wait(); err != nil {
			log.Printf("Traced process exited with error: %v", err)
		}
	default:
	}
}

func commandLine(cfg *config.Config) []string {
	if cfg.Command == "" {
		return []string{"replay", cfg.Replay}
	}
	return cfg.FullCommand()
}

func commandTitle(cfg *config.Config) string {
	return strings.Join(commandLine(cfg), " ")
}
