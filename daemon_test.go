package rgbfade

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/goleak"
	"libdb.so/rgbfade/pwmserial"
)

func noDelayConfig() *Config {
	cfg := DefaultConfig()
	cfg.Fade.Hex.Delay = 0
	cfg.Fade.Preset.Delay = 0
	cfg.Fade.Startup.Delay = 0
	return cfg
}

func TestDaemonStdin(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, err := NewDaemon(noDelayConfig(), discardLogger())
	require.NoError(t, err)

	var stdout bytes.Buffer
	d.Stdin = strings.NewReader("nope\n")
	d.Stdout = &stdout

	require.NoError(t, d.Run(context.Background()))
	assert.Contains(t, stdout.String(), "Available presets:\n")
	assert.Contains(t, stdout.String(), invalidMessage+"\n")
}

func TestDaemonSurvivesLongLine(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, err := NewDaemon(noDelayConfig(), discardLogger())
	require.NoError(t, err)

	var stdout bytes.Buffer
	d.Stdin = strings.NewReader(strings.Repeat("x", 70000) + "\nocean\n")
	d.Stdout = &stdout

	require.NoError(t, d.Run(context.Background()))
	assert.Contains(t, stdout.String(), invalidMessage+"\n")
	assert.Contains(t, stdout.String(), "Starting transition to preset: ocean\n")
}

func TestDaemonInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Kind = "dmx"

	_, err := NewDaemon(cfg, discardLogger())
	assert.ErrorContains(t, err, "invalid configuration")
}

// fakeBoard is a serial port to a PWM board. Writes after Close fail.
type fakeBoard struct {
	mu      sync.Mutex
	written bytes.Buffer
	closed  bool

	reports *io.PipeReader
}

func newFakeBoard() *fakeBoard {
	r, _ := io.Pipe()
	return &fakeBoard{reports: r}
}

func (b *fakeBoard) Read(p []byte) (int, error) {
	return b.reports.Read(p)
}

func (b *fakeBoard) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.New("port closed")
	}
	return b.written.Write(p)
}

func (b *fakeBoard) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	return b.reports.Close()
}

func (b *fakeBoard) SetReadTimeout(time.Duration) error { return nil }

func (b *fakeBoard) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// packets decodes everything written so far.
func (b *fakeBoard) packets() ([]pwmserial.IncomingPacket, error) {
	b.mu.Lock()
	r := bytes.NewReader(bytes.Clone(b.written.Bytes()))
	b.mu.Unlock()

	var packets []pwmserial.IncomingPacket
	for r.Len() > 0 {
		p, err := pwmserial.ReadIncomingPacket(r)
		if err != nil {
			return packets, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}

func TestDaemonClearsBoardOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := noDelayConfig()
	cfg.Output.Kind = SerialOutput
	cfg.Output.Device = "/dev/ttyACM0"

	d, err := NewDaemon(cfg, discardLogger())
	require.NoError(t, err)

	board := newFakeBoard()
	d.OpenPort = func(name string, mode *serial.Mode) (Port, error) {
		if name != "/dev/ttyACM0" {
			return nil, fmt.Errorf("unexpected port %q", name)
		}
		return board, nil
	}

	stdin, stdinW := io.Pipe()
	defer stdinW.Close() // unblocks the line reader
	d.Stdin = stdin
	d.Stdout = io.Discard

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Initialize plus the startup fade of 51 frames.
	assert.Eventually(t, func() bool {
		packets, err := board.packets()
		return err == nil && len(packets) >= 1+51*3
	}, 2*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	packets, err := board.packets()
	require.NoError(t, err)
	require.NotEmpty(t, packets)
	assert.Equal(t, pwmserial.InitializePacket{Channels: 3}, packets[0])
	assert.Equal(t, pwmserial.ClearPacket{}, packets[len(packets)-1])
	assert.True(t, board.isClosed())
}
