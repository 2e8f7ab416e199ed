package rgbfade

import (
	"encoding"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"libdb.so/rgbfade/internal/led"
)

// Config is the configuration for the rgbfade daemon.
type Config struct {
	// Input is where commands are read from.
	Input InputConfig `toml:"input"`
	// Output is where colors are written to.
	Output OutputConfig `toml:"output"`
	// Fade configures the transitions for each kind of command.
	Fade FadeConfig `toml:"fade"`
	// Presets is the list of named colors. If empty, the built-in presets
	// are used.
	Presets []PresetConfig `toml:"preset"`
}

// InputConfig is the configuration for the command input.
type InputConfig struct {
	// Device is the path to the serial device to read commands from.
	// This is usually /dev/ttyUSB0 or /dev/ttyACM0. "-" reads from stdin.
	Device string `toml:"device"`
	// Baud is the baud rate for the serial connection.
	Baud int `toml:"baud"`
}

// UsesStdin returns true if commands are read from stdin.
func (c InputConfig) UsesStdin() bool {
	return c.Device == "" || c.Device == "-"
}

// OutputKind is the kind of output to drive.
type OutputKind string

const (
	// SerialOutput drives a PWM board speaking pwmserial over a serial port.
	SerialOutput OutputKind = "serial"
	// SysfsOutput drives a Linux sysfs PWM chip.
	SysfsOutput OutputKind = "sysfs"
	// LogOutput only logs the colors. It needs no hardware.
	LogOutput OutputKind = "log"
)

// OutputConfig is the configuration for the color output.
type OutputConfig struct {
	Kind OutputKind `toml:"kind"`
	// Device and Baud are used by the serial output.
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
	// Sysfs is used by the sysfs output.
	Sysfs SysfsConfig `toml:"sysfs"`
}

// SysfsConfig is the configuration for a sysfs PWM chip.
type SysfsConfig struct {
	// Chip is the path to the PWM chip, e.g. /sys/class/pwm/pwmchip0.
	Chip string `toml:"chip"`
	// Channels are the PWM channel numbers for red, green and blue.
	Channels [3]int `toml:"channels"`
	// Period is the PWM period.
	Period TOMLDuration `toml:"period"`
}

// FadeConfig configures the transition used for each kind of command.
type FadeConfig struct {
	Hex     TransitionConfig `toml:"hex"`
	Preset  TransitionConfig `toml:"preset"`
	Startup TransitionConfig `toml:"startup"`
}

// TransitionConfig is the configuration for a single kind of transition.
// A zero Steps takes the default step count. Delay takes its default only when
// Steps is also unset, so an explicit zero delay can be configured with steps.
type TransitionConfig struct {
	// Steps is the number of interpolation steps. It must be positive.
	Steps int `toml:"steps"`
	// Delay is the time to wait after each step.
	Delay TOMLDuration `toml:"delay"`
}

// Transition converts the configuration into a Transition.
func (c TransitionConfig) Transition() Transition {
	return Transition{
		Steps: c.Steps,
		Delay: time.Duration(c.Delay),
	}
}

// PresetConfig is a named color.
type PresetConfig struct {
	Name  string       `toml:"name"`
	Color led.RGBColor `toml:"color"`
}

// DefaultConfig returns the configuration used when no file is given: stdin
// input, log output, the built-in presets and the reference timings.
func DefaultConfig() *Config {
	cfg := &Config{
		Input: InputConfig{
			Device: "-",
			Baud:   9600,
		},
		Output: OutputConfig{
			Kind: LogOutput,
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Input.Baud == 0 {
		c.Input.Baud = 9600
	}
	if c.Output.Kind == "" {
		c.Output.Kind = LogOutput
	}
	if c.Output.Baud == 0 {
		c.Output.Baud = 115200
	}
	if c.Output.Sysfs.Chip == "" {
		c.Output.Sysfs.Chip = "/sys/class/pwm/pwmchip0"
	}
	if c.Output.Sysfs.Channels == [3]int{} {
		c.Output.Sysfs.Channels = [3]int{0, 1, 2}
	}
	if c.Output.Sysfs.Period == 0 {
		// 100 Hz.
		c.Output.Sysfs.Period = TOMLDuration(10 * time.Millisecond)
	}

	defaultTransition(&c.Fade.Hex, 50, 5*time.Millisecond)
	defaultTransition(&c.Fade.Preset, 50, 30*time.Millisecond)
	defaultTransition(&c.Fade.Startup, 50, 30*time.Millisecond)

	if len(c.Presets) == 0 {
		led.DefaultPresets().Each(func(p led.Preset) {
			c.Presets = append(c.Presets, PresetConfig{Name: p.Name, Color: p.Color})
		})
	}
}

func defaultTransition(t *TransitionConfig, steps int, delay time.Duration) {
	if t.Steps == 0 && t.Delay == 0 {
		t.Delay = TOMLDuration(delay)
	}
	if t.Steps == 0 {
		t.Steps = steps
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Output.Kind {
	case SerialOutput:
		if c.Output.Device == "" {
			return errors.New("serial output has no device")
		}
	case SysfsOutput:
		if c.Output.Sysfs.Period <= 0 {
			return errors.New("sysfs output needs a positive period")
		}
	case LogOutput:
	default:
		return fmt.Errorf("unknown output kind %q", c.Output.Kind)
	}

	if !c.Input.UsesStdin() && c.Input.Baud <= 0 {
		return fmt.Errorf("invalid input baud rate %d", c.Input.Baud)
	}

	transitions := []struct {
		name string
		cfg  TransitionConfig
	}{
		{"hex", c.Fade.Hex},
		{"preset", c.Fade.Preset},
		{"startup", c.Fade.Startup},
	}
	for _, t := range transitions {
		if t.cfg.Steps <= 0 {
			return fmt.Errorf("%s fade: %w", t.name, ErrInvalidSteps)
		}
		if t.cfg.Delay < 0 {
			return fmt.Errorf("%s fade: negative delay", t.name)
		}
	}

	if _, err := c.PresetTable(); err != nil {
		return errors.Wrap(err, "invalid presets")
	}

	return nil
}

// PresetTable builds the preset table from the configuration.
func (c *Config) PresetTable() (*led.PresetTable, error) {
	presets := make([]led.Preset, len(c.Presets))
	for i, p := range c.Presets {
		presets[i] = led.Preset{Name: p.Name, Color: p.Color}
	}
	return led.NewPresetTable(presets...)
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader. Omitted values are
// filled with their defaults.
func ParseConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return &config, nil
}
