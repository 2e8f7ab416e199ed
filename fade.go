package rgbfade

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"libdb.so/rgbfade/internal/led"
)

// ErrInvalidSteps is returned when a transition has no steps.
var ErrInvalidSteps = errors.New("transition steps must be positive")

// Transition describes a linear fade.
type Transition struct {
	// Steps is the number of interpolation steps. The fade writes Steps+1
	// colors, the last one being the target.
	Steps int
	// Delay is the time to wait after each written color.
	Delay time.Duration
}

// Interpolate returns the value at step i of a fade from one intensity to
// another over the given number of steps. It truncates toward zero.
func Interpolate(from, to uint8, i, steps int) uint8 {
	f := int(from)
	t := int(to)
	return uint8(f + (t-f)*i/steps)
}

// InterpolateColor interpolates every channel of a color.
func InterpolateColor(from, to led.RGBColor, i, steps int) led.RGBColor {
	var c led.RGBColor
	for ch := range c {
		c[ch] = Interpolate(from[ch], to[ch], i, steps)
	}
	return c
}

// FadeTo fades the output from the current color to target.
//
// Before each step, in is polled for a pending line. If there is one, the
// fade stops, the current color becomes the last color written and the line
// is returned with interrupted set to true. Otherwise the current color is
// set to target once all steps are written.
func (c *Controller) FadeTo(ctx context.Context, in LineSource, target led.RGBColor, tr Transition) (pending string, interrupted bool, err error) {
	if tr.Steps <= 0 {
		return "", false, errors.Wrapf(ErrInvalidSteps, "got %d", tr.Steps)
	}

	from := c.current

	var timer *time.Timer
	if tr.Delay > 0 {
		timer = time.NewTimer(tr.Delay)
		defer timer.Stop()
	}

	for i := 0; i <= tr.Steps; i++ {
		if line, ok := in.Pending(); ok {
			c.logger.Debug(
				"transition interrupted",
				"step", i,
				"steps", tr.Steps,
				"color", c.current)
			return line, true, nil
		}

		color := InterpolateColor(from, target, i, tr.Steps)
		if err := c.write(color); err != nil {
			return "", false, err
		}

		if timer != nil {
			if i > 0 {
				timer.Reset(tr.Delay)
			}
			select {
			case <-ctx.Done():
				return "", false, ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return "", false, err
		}
	}

	c.current = target
	return "", false, nil
}

// write writes the color to every output channel. The current color is only
// updated once all channels are written.
func (c *Controller) write(color led.RGBColor) error {
	for _, ch := range led.Channels {
		if err := c.out.Write(ch, color[ch]); err != nil {
			return errors.Wrapf(err, "failed to write %s channel", ch)
		}
	}
	c.current = color
	return nil
}
