package pwmout

import (
	"log/slog"

	"libdb.so/rgbfade/internal/led"
)

// Log is an output that only logs what would be written. It is used for dry
// runs.
type Log struct {
	logger *slog.Logger
	color  led.RGBColor
}

// NewLog creates a new Log output.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Write logs the new frame once the blue channel is written.
func (l *Log) Write(ch led.Channel, value uint8) error {
	l.color[ch] = value
	if ch == led.Blue {
		l.logger.Debug(
			"output frame",
			"color", l.color.Hex())
	}
	return nil
}

// Color returns the last written color.
func (l *Log) Color() led.RGBColor {
	return l.color
}
