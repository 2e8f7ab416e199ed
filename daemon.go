// Package rgbfade drives a 3-channel RGB LED strip from newline-terminated
// text commands, fading linearly between colors.
package rgbfade

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
	"libdb.so/rgbfade/internal/pwmout"
)

// Daemon is the main rgbfade daemon. It wires the configured input and output
// to a Controller.
type Daemon struct {
	cfg    *Config
	logger *slog.Logger

	// Stdin and Stdout are used when the input device is "-".
	Stdin  io.Reader
	Stdout io.Writer
	// OpenPort opens the serial ports. It defaults to serial.Open.
	OpenPort func(name string, mode *serial.Mode) (Port, error)
}

// Port is the part of serial.Port that the daemon uses.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

func openSerialPort(name string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// NewDaemon creates a new rgbfade daemon.
func NewDaemon(cfg *Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		OpenPort: openSerialPort,
	}, nil
}

// Run starts the daemon. It blocks until the input is exhausted or the given
// context is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	return (&internalDaemon{Daemon: d}).Run(ctx)
}

// errInputClosed stops the group once the controller returns at EOF.
var errInputClosed = errors.New("input closed")

// closeOutput turns the output off and releases it. It is called once, after
// the controller stops.
type closeOutput func() error

type internalDaemon struct {
	*Daemon
	closers []io.Closer // input ports only
}

func (d *internalDaemon) Run(ctx context.Context) error {
	defer d.closeAll()

	ccfg, err := d.cfg.ControllerConfig()
	if err != nil {
		return err
	}

	input, console, err := d.openInput()
	if err != nil {
		return err
	}

	output, closeOut, err := d.openOutput()
	if err != nil {
		return err
	}

	controller, err := NewController(ccfg, output, console, d.logger)
	if err != nil {
		d.turnOffOutput(closeOut)
		return err
	}

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		<-ctx.Done()
		// The output port stays open until closeOut has turned it off.
		d.logger.Debug("closing input ports")
		d.closeAll()
		return nil
	})

	if reporter, ok := output.(*pwmout.Serial); ok {
		errg.Go(func() error {
			return reporter.ReadReports(ctx)
		})
	}

	// The line reader is not part of the group: a read on stdin cannot be
	// interrupted, and its errors reach the controller through ReadLine.
	lines := NewLineReader(input)
	go lines.Run(ctx)

	errg.Go(func() error {
		err := controller.Run(ctx, lines)
		d.turnOffOutput(closeOut)
		if err == nil {
			return errInputClosed
		}
		return err
	})

	if err := errg.Wait(); err != nil && !errors.Is(err, errInputClosed) {
		return err
	}

	return nil
}

func (d *internalDaemon) openInput() (io.Reader, io.Writer, error) {
	if d.cfg.Input.UsesStdin() {
		return d.Stdin, d.Stdout, nil
	}

	port, err := d.OpenPort(d.cfg.Input.Device, &serial.Mode{
		BaudRate: d.cfg.Input.Baud,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open input serial port")
	}
	d.closers = append(d.closers, port)

	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		return nil, nil, errors.Wrap(err, "failed to reset read timeout")
	}

	// Messages are echoed back to whoever is typing on the port.
	return port, port, nil
}

func (d *internalDaemon) openOutput() (Output, closeOutput, error) {
	switch d.cfg.Output.Kind {
	case SerialOutput:
		port, err := d.OpenPort(d.cfg.Output.Device, &serial.Mode{
			BaudRate: d.cfg.Output.Baud,
		})
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to open output serial port")
		}

		d.logger.Debug("waiting 100ms for the board to start...")
		time.Sleep(100 * time.Millisecond)

		out, err := pwmout.NewSerial(port, d.logger)
		if err != nil {
			port.Close()
			return nil, nil, err
		}

		return out, out.Close, nil

	case SysfsOutput:
		sysfs := d.cfg.Output.Sysfs
		out, err := pwmout.OpenSysfs(sysfs.Chip, sysfs.Channels, time.Duration(sysfs.Period), d.logger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to open sysfs PWM")
		}
		return out, out.Close, nil

	default:
		return pwmout.NewLog(d.logger), func() error { return nil }, nil
	}
}

func (d *internalDaemon) turnOffOutput(closeOut closeOutput) {
	if err := closeOut(); err != nil {
		d.logger.Warn(
			"failed to turn off output",
			"error", err)
	}
}

func (d *internalDaemon) closeAll() {
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			d.logger.Debug(
				"failed to close port",
				"error", err)
		}
	}
	d.closers = nil
}
