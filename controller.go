package rgbfade

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"libdb.so/rgbfade/internal/led"
)

// Output is the interface for types that drive the physical channels, such as
// a PWM chip.
type Output interface {
	// Write sets the intensity of one channel.
	Write(ch led.Channel, value uint8) error
}

// LineSource is the interface for line-oriented command inputs.
type LineSource interface {
	// ReadLine blocks until a line is available and returns it. It returns
	// io.EOF once the input is exhausted.
	ReadLine(ctx context.Context) (string, error)
	// Pending returns a line if one is already available, without blocking.
	// The returned line is consumed.
	Pending() (string, bool)
}

// Console messages. These are printed to the console writer as-is.
const (
	promptMessage  = "Please enter a color (preset name or hex code):"
	invalidMessage = "Invalid input. Please enter a valid preset name or a hex color code."
	helpMessage    = "Enter a preset name to start, type a hex color (e.g., 'FFAABB') to set a static color."
)

// ControllerConfig is the configuration for a Controller.
type ControllerConfig struct {
	// Presets is the preset table. It is never modified.
	Presets *led.PresetTable
	// Hex is the transition used for hex colors.
	Hex Transition
	// Preset is the transition used for presets.
	Preset Transition
	// Startup is the transition run once at startup.
	Startup Transition
}

// ControllerConfig returns the controller configuration described by the
// daemon configuration.
func (c *Config) ControllerConfig() (ControllerConfig, error) {
	presets, err := c.PresetTable()
	if err != nil {
		return ControllerConfig{}, err
	}
	return ControllerConfig{
		Presets: presets,
		Hex:     c.Fade.Hex.Transition(),
		Preset:  c.Fade.Preset.Transition(),
		Startup: c.Fade.Startup.Transition(),
	}, nil
}

// Controller reads color commands and fades the output to them. It is not
// safe for concurrent use; Run owns it.
type Controller struct {
	cfg     ControllerConfig
	out     Output
	console io.Writer
	logger  *slog.Logger
	current led.RGBColor
}

// NewController creates a new controller. Human-readable messages are printed
// to console. The current color starts off black.
func NewController(cfg ControllerConfig, out Output, console io.Writer, logger *slog.Logger) (*Controller, error) {
	if cfg.Presets == nil {
		return nil, errors.New("no preset table")
	}
	for _, tr := range []Transition{cfg.Hex, cfg.Preset, cfg.Startup} {
		if tr.Steps <= 0 {
			return nil, errors.Wrapf(ErrInvalidSteps, "got %d", tr.Steps)
		}
	}

	return &Controller{
		cfg:     cfg,
		out:     out,
		console: console,
		logger:  logger,
	}, nil
}

// Current returns the current output color.
func (c *Controller) Current() led.RGBColor {
	return c.current
}

// CommandKind is the kind of a classified command.
type CommandKind uint8

const (
	InvalidCommand CommandKind = iota
	HexCommand
	PresetCommand
)

// String returns the name of the command kind.
func (k CommandKind) String() string {
	switch k {
	case InvalidCommand:
		return "invalid"
	case HexCommand:
		return "hex"
	case PresetCommand:
		return "preset"
	default:
		return fmt.Sprintf("CommandKind(%d)", k)
	}
}

// Command is a classified input line.
type Command struct {
	Kind CommandKind
	// Name is the preset name for preset commands.
	Name string
	// Color is the target color. It is zero for invalid commands.
	Color led.RGBColor
}

// Classify classifies a trimmed input line. Hex colors take precedence over
// preset names.
func (c *Controller) Classify(line string) Command {
	if led.IsHexColor(line) {
		return Command{Kind: HexCommand, Color: led.MustParseHex(line)}
	}
	if color, ok := c.cfg.Presets.Lookup(line); ok {
		return Command{Kind: PresetCommand, Name: line, Color: color}
	}
	return Command{Kind: InvalidCommand}
}

// Run runs the command loop until the input is exhausted or ctx is canceled.
// It returns nil on EOF.
func (c *Controller) Run(ctx context.Context, in LineSource) error {
	// Exercise the outputs once with a fade to the current color.
	pending, interrupted, err := c.FadeTo(ctx, in, c.current, c.cfg.Startup)
	if err != nil {
		return errors.Wrap(err, "startup transition failed")
	}

	c.listPresets()

	for {
		line := pending
		if !interrupted {
			c.println(promptMessage)

			line, err = in.ReadLine(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					c.logger.Debug("input closed")
					return nil
				}
				return errors.Wrap(err, "failed to read command")
			}
		}

		pending, interrupted, err = c.handle(ctx, in, strings.TrimSpace(line))
		if err != nil {
			return err
		}
	}
}

func (c *Controller) handle(ctx context.Context, in LineSource, line string) (string, bool, error) {
	cmd := c.Classify(line)
	c.logger.Debug(
		"received command",
		"line", line,
		"kind", cmd.Kind)

	var tr Transition
	switch cmd.Kind {
	case HexCommand:
		c.printf("Setting static color: R=%d G=%d B=%d\n", cmd.Color.R(), cmd.Color.G(), cmd.Color.B())
		tr = c.cfg.Hex
	case PresetCommand:
		c.printf("Starting transition to preset: %s\n", cmd.Name)
		tr = c.cfg.Preset
	default:
		c.println(invalidMessage)
		return "", false, nil
	}

	pending, interrupted, err := c.FadeTo(ctx, in, cmd.Color, tr)
	if err != nil {
		return "", false, errors.Wrapf(err, "transition to %s failed", cmd.Color.Hex())
	}

	return pending, interrupted, nil
}

func (c *Controller) listPresets() {
	c.println("Available presets:")
	c.cfg.Presets.Each(func(p led.Preset) {
		c.println(p.Name)
	})
	c.println(helpMessage)
}

func (c *Controller) println(msg string) {
	c.printf("%s\n", msg)
}

func (c *Controller) printf(f string, v ...any) {
	if _, err := fmt.Fprintf(c.console, f, v...); err != nil {
		c.logger.Warn(
			"failed to write to console",
			"error", err)
	}
}
