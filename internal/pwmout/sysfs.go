package pwmout

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"libdb.so/rgbfade/internal/led"
)

// writeSysfs writes a sysfs attribute.
var writeSysfs = func(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

// Sysfs drives three channels of a Linux PWM chip through sysfs, e.g.
// /sys/class/pwm/pwmchip0.
type Sysfs struct {
	chip     string
	channels [led.NumChannels]int
	period   time.Duration
	logger   *slog.Logger
}

// OpenSysfs exports and enables the given channels of the chip. channels maps
// red, green and blue to PWM channel numbers. If a channel cannot be set up,
// the channels exported so far are unexported again.
func OpenSysfs(chip string, channels [led.NumChannels]int, period time.Duration, logger *slog.Logger) (*Sysfs, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid PWM period %v", period)
	}

	s := &Sysfs{
		chip:     chip,
		channels: channels,
		period:   period,
		logger:   logger,
	}

	var exported []int
	for _, ch := range led.Channels {
		didExport, err := s.setup(ch)
		if didExport {
			exported = append(exported, s.channels[ch])
		}
		if err != nil {
			for _, n := range exported {
				if err := s.writeChip("unexport", n); err != nil {
					logger.Warn(
						"failed to unexport PWM channel",
						"chip", chip,
						"channel", n,
						"error", err)
				}
			}
			return nil, errors.Wrapf(err, "failed to set up %s channel", ch)
		}
	}

	return s, nil
}

// setup exports the channel if needed and enables it with a zero duty cycle.
// It reports whether it exported the channel.
func (s *Sysfs) setup(ch led.Channel) (exported bool, err error) {
	dir := s.dir(ch)

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		s.logger.Debug(
			"exporting PWM channel",
			"chip", s.chip,
			"channel", s.channels[ch])

		if err := s.writeChip("export", s.channels[ch]); err != nil {
			return false, err
		}
		exported = true

		if _, err := os.Stat(dir); err != nil {
			return exported, errors.Wrap(err, "channel not exported")
		}
	}

	// The kernel rejects a period shorter than the current duty cycle, so
	// the duty cycle is zeroed first.
	for _, attr := range []struct {
		name  string
		value int64
	}{
		{"duty_cycle", 0},
		{"period", s.period.Nanoseconds()},
		{"enable", 1},
	} {
		if err := writeInt(filepath.Join(dir, attr.name), attr.value); err != nil {
			return exported, err
		}
	}

	return exported, nil
}

// Write sets the duty cycle of one channel to value/255 of the period.
func (s *Sysfs) Write(ch led.Channel, value uint8) error {
	return writeInt(filepath.Join(s.dir(ch), "duty_cycle"), s.DutyCycle(value).Nanoseconds())
}

// DutyCycle returns the high time for the given intensity.
func (s *Sysfs) DutyCycle(value uint8) time.Duration {
	return s.period * time.Duration(value) / 255
}

// Close turns the channels off and unexports them.
func (s *Sysfs) Close() error {
	var firstErr error
	for _, ch := range led.Channels {
		dir := s.dir(ch)
		for _, err := range []error{
			writeInt(filepath.Join(dir, "duty_cycle"), 0),
			writeInt(filepath.Join(dir, "enable"), 0),
			s.writeChip("unexport", s.channels[ch]),
		} {
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *Sysfs) dir(ch led.Channel) string {
	return filepath.Join(s.chip, "pwm"+strconv.Itoa(s.channels[ch]))
}

func (s *Sysfs) writeChip(file string, n int) error {
	return writeInt(filepath.Join(s.chip, file), int64(n))
}

func writeInt(path string, v int64) error {
	if err := writeSysfs(path, []byte(strconv.FormatInt(v, 10))); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
