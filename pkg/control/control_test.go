package control

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jienfak/jack-sin/pkg/framework/bank"
	"github.com/jienfak/jack-sin/pkg/framework/ident"
	"github.com/jienfak/jack-sin/pkg/framework/oscillator"
	"github.com/jienfak/jack-sin/pkg/host"
	"github.com/jienfak/jack-sin/pkg/host/headless"
)

func newBank(t *testing.T, names ...string) *bank.Bank {
	t.Helper()
	h, err := headless.New(host.Config{SampleRate: 1000, BlockSize: 8}, headless.Manual())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	b := bank.New(nil)
	for _, name := range names {
		osc, err := oscillator.New(h, name)
		require.NoError(t, err)
		require.NoError(t, b.Add(osc))
	}
	return b
}

func TestApply(t *testing.T) {
	b := newBank(t, "01", "02")
	f, err := Parse(strings.NewReader(`
oscillators:
  "01":
    frequency: 440
    amplitude: 0.5
  "02":
    phase_bias: 1250
    phase: -1
    name: bass
`))
	require.NoError(t, err)

	n, err := f.Apply(b)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	o1, _ := b.Lookup("01")
	assert.Equal(t, 440, o1.Frequency())
	assert.Equal(t, float32(0.5), o1.Amplitude())
	assert.Zero(t, o1.PhaseBias(), "unlisted fields stay untouched")

	o2, _ := b.Lookup("02")
	assert.Equal(t, oscillator.DefaultFrequency, o2.Frequency())
	assert.Equal(t, 250, o2.PhaseBias())
	assert.Equal(t, 999, o2.CurrentPhase())
	assert.Equal(t, "bass", o2.Name())
}

func TestApplyReportsUnknown(t *testing.T) {
	b := newBank(t, "01")
	f, err := Parse(strings.NewReader(`
oscillators:
  "01": {frequency: 100}
  "09": {frequency: 200}
  "10": {frequency: 300}
`))
	require.NoError(t, err)

	n, err := f.Apply(b)
	assert.Equal(t, 1, n)
	require.ErrorIs(t, err, ErrUnknownOscillator)
	assert.Contains(t, err.Error(), `"09"`)
	assert.Contains(t, err.Error(), `"10"`)

	o1, _ := b.Lookup("01")
	assert.Equal(t, 100, o1.Frequency())
}

func TestApplyInvalidName(t *testing.T) {
	b := newBank(t, "01")
	f, err := Parse(strings.NewReader("oscillators:\n  \"01\": {name: \"a:b\", frequency: 5}\n"))
	require.NoError(t, err)

	n, err := f.Apply(b)
	assert.Zero(t, n)
	require.ErrorIs(t, err, ident.ErrNameInvalid)

	o1, _ := b.Lookup("01")
	assert.Equal(t, oscillator.DefaultFrequency, o1.Frequency(), "a rejected entry changes nothing")
}

func TestApplyRenameToTakenName(t *testing.T) {
	b := newBank(t, "01", "02", "03")
	f, err := Parse(strings.NewReader(`
oscillators:
  "01": {name: lead}
  "02": {name: lead, frequency: 5}
  "03": {name: "01"}
`))
	require.NoError(t, err)

	n, err := f.Apply(b)
	assert.Equal(t, 1, n)
	require.ErrorIs(t, err, bank.ErrDuplicateName)
	assert.Contains(t, err.Error(), "02")
	assert.Contains(t, err.Error(), "03")

	o1, _ := b.Lookup("01")
	assert.Equal(t, "lead", o1.Name())
	o2, _ := b.Lookup("02")
	assert.Equal(t, "02", o2.Name())
	assert.Equal(t, oscillator.DefaultFrequency, o2.Frequency(), "a rejected entry changes nothing")
	o3, _ := b.Lookup("03")
	assert.Equal(t, "03", o3.Name(), "original names stay reserved")
}

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Oscillators)

	_, err = Parse(strings.NewReader("oscillators:\n  \"01\": {pitch: 3}\n"))
	require.Error(t, err)

	_, err = Read(filepath.Join(t.TempDir(), "none.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatcher(t *testing.T) {
	b := newBank(t, "01")
	o1, _ := b.Lookup("01")

	dir := t.TempDir()
	path := filepath.Join(dir, "control.yaml")
	require.NoError(t, os.WriteFile(path, []byte("oscillators:\n  \"01\": {frequency: 300}\n"), 0o644))

	applied := make(chan error, 16)
	w := NewWatcher(path, b, nil)
	w.Settle = 10 * time.Millisecond
	w.OnApply = func(_ int, err error) { applied <- err }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	wait := func() {
		t.Helper()
		select {
		case err := <-applied:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("timeout waiting for control file")
		}
	}

	wait()
	assert.Equal(t, 300, o1.Frequency())

	// replace via rename, the way editors save
	tmp := filepath.Join(dir, ".control.yaml.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("oscillators:\n  \"01\": {frequency: 700}\n"), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool {
		select {
		case <-applied:
		default:
		}
		return o1.Frequency() == 700
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherMissingFile(t *testing.T) {
	b := newBank(t, "01")
	dir := t.TempDir()
	path := filepath.Join(dir, "later.yaml")

	applied := make(chan struct{}, 4)
	w := NewWatcher(path, b, nil)
	w.Settle = 10 * time.Millisecond
	w.OnApply = func(int, error) { applied <- struct{}{} }

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// give the watcher time to register before creating the file
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("oscillators:\n  \"01\": {amplitude: 0.75}\n"), 0o644))

	select {
	case <-applied:
	case <-ctx.Done():
		t.Fatal("file creation not picked up")
	}
	o1, _ := b.Lookup("01")
	assert.Equal(t, float32(0.75), o1.Amplitude())
}
