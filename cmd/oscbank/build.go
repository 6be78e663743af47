package main

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/jienfak/jack-sin/pkg/config"
	"github.com/jienfak/jack-sin/pkg/dsp/modulation"
	"github.com/jienfak/jack-sin/pkg/framework/bank"
	"github.com/jienfak/jack-sin/pkg/framework/debug"
	"github.com/jienfak/jack-sin/pkg/framework/oscillator"
	"github.com/jienfak/jack-sin/pkg/host"
	"github.com/jienfak/jack-sin/pkg/host/headless"
	"github.com/jienfak/jack-sin/pkg/host/oto"
	"github.com/jienfak/jack-sin/pkg/host/pulse"
)

// engineHost is what every backend offers on top of host.Host
type engineHost interface {
	host.Host
	Patch(portName string, src modulation.Source) error
	Meter() *debug.BlockMeter
}

// openHost opens the configured backend. The headless backend also gets a
// level monitor fed from its mixdown.
func openHost(cfg *config.Config, log *debug.Logger) (engineHost, *levelMonitor, error) {
	hc := host.Config{
		Client:     cfg.Client,
		SampleRate: cfg.SampleRate,
		BlockSize:  cfg.BlockSize,
		Logger:     log,
	}
	switch cfg.Backend {
	case config.BackendPulse:
		h, err := pulse.New(hc, cfg.Server)
		if err != nil {
			return nil, nil, err
		}
		return h, nil, nil
	case config.BackendOto:
		h, err := oto.New(hc)
		if err != nil {
			return nil, nil, err
		}
		return h, nil, nil
	case config.BackendHeadless:
		mon := &levelMonitor{}
		h, err := headless.New(hc, headless.WithSink(mon.observe))
		if err != nil {
			return nil, nil, err
		}
		return h, mon, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// populate creates the configured oscillators on h, adds them to b in order
// and patches their modulators.
func populate(b *bank.Bank, h engineHost, cfg *config.Config) error {
	for _, entry := range cfg.Oscillators {
		opts, err := entry.Options(cfg.LegacyPortNames)
		if err != nil {
			return fmt.Errorf("oscillator %q: %w", entry.Name, err)
		}
		osc, err := oscillator.New(h, entry.Name, opts...)
		if err != nil {
			return err
		}
		osc.SetPhaseBias(entry.PhaseBias)
		osc.SetCurrentPhase(entry.Phase)
		if err := b.Add(osc); err != nil {
			return err
		}

		for _, m := range []struct {
			port *host.Port
			mod  *config.Modulator
		}{
			{osc.FreqModPort(), entry.Modulation.Freq},
			{osc.AmpModPort(), entry.Modulation.Amp},
			{osc.PhaseModPort(), entry.Modulation.Phase},
		} {
			if m.mod == nil {
				continue
			}
			lfo, err := m.mod.LFO(h.SampleRate())
			if err != nil {
				return fmt.Errorf("oscillator %q: %w", entry.Name, err)
			}
			if err := h.Patch(m.port.Name(), lfo); err != nil {
				return err
			}
		}
	}
	return nil
}

// levelMonitor gathers mixdown statistics on the headless driver goroutine.
// observe only touches atomics; flush logs from the report goroutine.
type levelMonitor struct {
	peak    atomic.Uint32 // float32 bits
	rms     atomic.Uint32 // float32 bits, last block
	clipped atomic.Int64
	nan     atomic.Int64
	frames  atomic.Int64
}

func (m *levelMonitor) observe(mix []float32) {
	stats := debug.Analyze(mix)
	bits := math.Float32bits(stats.Peak)
	for {
		cur := m.peak.Load()
		if stats.Peak <= math.Float32frombits(cur) || m.peak.CompareAndSwap(cur, bits) {
			break
		}
	}
	m.rms.Store(math.Float32bits(stats.RMS))
	m.clipped.Add(int64(stats.Clipped))
	m.nan.Add(int64(stats.NaNCount))
	m.frames.Add(int64(len(mix)))
}

// take returns and resets what was gathered since the previous call
func (m *levelMonitor) take() (debug.SignalStats, int64) {
	stats := debug.SignalStats{
		Peak:     math.Float32frombits(m.peak.Swap(0)),
		RMS:      math.Float32frombits(m.rms.Load()),
		Clipped:  int(m.clipped.Swap(0)),
		NaNCount: int(m.nan.Swap(0)),
	}
	return stats, m.frames.Swap(0)
}

func (m *levelMonitor) flush(log *debug.Logger) {
	stats, frames := m.take()
	if frames == 0 {
		return
	}
	if stats.Clipped > 0 || stats.NaNCount > 0 {
		log.Warn("mix over %d frames: %s", frames, stats)
	} else {
		log.Debug("mix over %d frames: %s", frames, stats)
	}
}
