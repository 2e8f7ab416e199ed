// Package led contains the color types shared by the controller and its
// outputs.
package led

import (
	"encoding"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// ErrInvalidFormat is returned when a string is not a 6-digit hex color.
var ErrInvalidFormat = errors.New("invalid hex color format")

// Channel is one of the three color channels of an RGB strip.
type Channel uint8

const (
	Red Channel = iota
	Green
	Blue
)

// NumChannels is the number of channels in an RGBColor.
const NumChannels = 3

// Channels lists all channels in output order.
var Channels = [NumChannels]Channel{Red, Green, Blue}

// String returns the name of the channel.
func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return fmt.Sprintf("Channel(%d)", c)
	}
}

// RGBColor is a color with one 8-bit intensity per channel. It is indexed by
// Channel.
type RGBColor [NumChannels]uint8

var (
	_ encoding.TextUnmarshaler = (*RGBColor)(nil)
	_ encoding.TextMarshaler   = (*RGBColor)(nil)
)

// RGB creates a new RGBColor.
func RGB(r, g, b uint8) RGBColor {
	return RGBColor{r, g, b}
}

// R returns the red intensity.
func (c RGBColor) R() uint8 { return c[Red] }

// G returns the green intensity.
func (c RGBColor) G() uint8 { return c[Green] }

// B returns the blue intensity.
func (c RGBColor) B() uint8 { return c[Blue] }

// Hex returns the color as 6 lowercase hex digits, without a leading #.
func (c RGBColor) Hex() string {
	return fmt.Sprintf("%02x%02x%02x", c[Red], c[Green], c[Blue])
}

// String implements fmt.Stringer.
func (c RGBColor) String() string {
	return fmt.Sprintf("R=%d G=%d B=%d", c[Red], c[Green], c[Blue])
}

// UnmarshalText parses a 6-digit hex color.
func (c *RGBColor) UnmarshalText(text []byte) error {
	color, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*c = color
	return nil
}

// MarshalText encodes the color as 6 hex digits.
func (c RGBColor) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// IsHexColor returns true if s is exactly 6 hexadecimal digits. A leading #
// is not accepted.
func IsHexColor(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// ParseHex parses a 6-digit hex string into a color. Each pair of digits is
// one channel, in red, green, blue order. Strings that do not satisfy
// IsHexColor return an error wrapping ErrInvalidFormat.
func ParseHex(s string) (RGBColor, error) {
	if !IsHexColor(s) {
		return RGBColor{}, errors.Wrapf(ErrInvalidFormat, "%q", s)
	}

	var c RGBColor
	for i := range c {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return RGBColor{}, errors.Wrapf(ErrInvalidFormat, "%q: %v", s, err)
		}
		c[i] = uint8(v)
	}
	return c, nil
}

// MustParseHex is like ParseHex but panics on invalid input. The caller must
// have checked the string with IsHexColor.
func MustParseHex(s string) RGBColor {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}
