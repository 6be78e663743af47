// Command oscbank runs a bank of wavetable oscillators on an audio server.
//
//	oscbank [flags] [client [server]]
//
// client is the name announced to the server (default: the program name) and
// server selects a PulseAudio server. Each oscillator exposes one output and
// frequency, phase and amplitude modulation inputs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jienfak/jack-sin/pkg/config"
	"github.com/jienfak/jack-sin/pkg/control"
	"github.com/jienfak/jack-sin/pkg/framework/bank"
	"github.com/jienfak/jack-sin/pkg/framework/debug"
)

// reportInterval is the period of the block timing summary
const reportInterval = 10 * time.Second

func main() {
	os.Exit(run(os.Args, os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	name := filepath.Base(args[0])
	debug.SetOutput(stderr)
	debug.SetLevel(debug.LogLevelInfo)

	cfg, warnings, err := parseArgs(name, args[1:], stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		debug.Error("%s: %v", name, err)
		return 1
	}

	level, _ := debug.ParseLevel(cfg.LogLevel)
	debug.SetLevel(level)
	for _, w := range warnings {
		debug.Warn("%s", w)
	}
	debug.Info("%s", cfg)
	debug.Debug("client %q on server %q", cfg.Client, cfg.Server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, debug.Default().WithPrefix(name)); err != nil {
		debug.Error("%s: %v", name, err)
		return 1
	}
	return 0
}

// parseArgs layers defaults, the config file, flags and positional arguments.
// It returns the validation warnings alongside the configuration.
func parseArgs(name string, args []string, stderr io.Writer) (*config.Config, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [flags] [client [server]]\n", name)
		fs.PrintDefaults()
	}
	var (
		path     = fs.String("config", "", "bank description `file` (YAML)")
		backend  = fs.String("backend", config.DefaultBackend, "audio backend: pulse, oto or headless")
		rate     = fs.Int("rate", config.DefaultSampleRate, "sample rate in Hz, also the wavetable length")
		block    = fs.Int("block", config.DefaultBlockSize, "frames per processing block")
		logLevel = fs.String("log-level", config.DefaultLogLevel, "debug, info, warn, error or off")
		ctlFile  = fs.String("control", "", "control `file` watched for parameter changes")
		legacy   = fs.Bool("legacy-ports", false, "name phase modulation inputs <name>_pb_mod")
	)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg := config.Default()
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			return nil, nil, err
		}
	}
	if cfg.Client == "" {
		cfg.Client = name
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backend
		case "rate":
			cfg.SampleRate = *rate
		case "block":
			cfg.BlockSize = *block
		case "log-level":
			cfg.LogLevel = *logLevel
		case "control":
			cfg.ControlFile = *ctlFile
		case "legacy-ports":
			cfg.LegacyPortNames = *legacy
		}
	})

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 2:
		cfg.Server = rest[1]
		fallthrough
	case 1:
		cfg.Client = rest[0]
	default:
		fs.Usage()
		return nil, nil, fmt.Errorf("too many arguments: %q", rest[2:])
	}

	warnings, err := cfg.Validate()
	if err != nil {
		return nil, nil, err
	}
	return cfg, warnings, nil
}

// serve runs the bank until ctx is cancelled or the host shuts down
func serve(ctx context.Context, cfg *config.Config, log *debug.Logger) error {
	b := bank.New(log.WithPrefix("bank"))
	defer b.Close()

	h, mon, err := openHost(cfg, log.WithPrefix(cfg.Backend))
	if err != nil {
		return err
	}
	// the host stops calling Process before the bank releases its oscillators
	defer h.Close()

	if err := populate(b, h, cfg); err != nil {
		return err
	}
	if err := b.Activate(h); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-b.Done():
			return b.Err()
		}
	})
	g.Go(func() error {
		report(gctx, h, mon, log.WithPrefix("meter"))
		return nil
	})
	if cfg.ControlFile != "" {
		w := control.NewWatcher(cfg.ControlFile, b, log.WithPrefix("control"))
		g.Go(func() error { return w.Run(gctx) })
	}

	err = g.Wait()
	log.Info("%s", h.Meter().Snapshot())
	return err
}

// report logs block timing and, when a level monitor is attached, the
// mixdown level once per interval
func report(ctx context.Context, h engineHost, mon *levelMonitor, log *debug.Logger) {
	ticker := time.NewTicker(reportInterval)
	defer ticker.Stop()
	var overruns uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := h.Meter().Snapshot()
			if stats.Overruns > overruns {
				log.Warn("%d late blocks: %s", stats.Overruns-overruns, stats)
			} else {
				log.Debug("%s", stats)
			}
			overruns = stats.Overruns
			if mon != nil {
				mon.flush(log)
			}
		}
	}
}
