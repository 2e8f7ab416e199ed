package rgbfade

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"libdb.so/rgbfade/internal/led"
	"pgregory.net/rapid"
)

func TestInterpolateSunsetMidpoint(t *testing.T) {
	c := InterpolateColor(led.RGBColor{}, led.RGB(255, 94, 19), 25, 50)
	assert.Equal(t, led.RGB(127, 47, 9), c)
}

func TestInterpolateTruncates(t *testing.T) {
	// (0-255)*1/50 = -5.1 truncates toward zero.
	assert.Equal(t, uint8(250), Interpolate(255, 0, 1, 50))
	assert.Equal(t, uint8(5), Interpolate(0, 255, 1, 50))
	assert.Equal(t, uint8(0), Interpolate(255, 0, 50, 50))
}

func TestInterpolateBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		from := rapid.Uint8().Draw(t, "from")
		to := rapid.Uint8().Draw(t, "to")
		steps := rapid.IntRange(1, 1000).Draw(t, "steps")
		i := rapid.IntRange(0, steps).Draw(t, "i")

		v := Interpolate(from, to, i, steps)
		want := int(from) + (int(to)-int(from))*i/steps
		if int(v) != want {
			t.Fatalf("Interpolate(%d, %d, %d, %d) = %d, want %d", from, to, i, steps, v, want)
		}
		if Interpolate(from, to, 0, steps) != from || Interpolate(from, to, steps, steps) != to {
			t.Fatalf("endpoints not exact")
		}
	})
}

func TestFadeToCompletes(t *testing.T) {
	c, out, _ := newTestController(t)

	target := led.RGB(255, 94, 19)
	pending, interrupted, err := c.FadeTo(context.Background(), &scriptedInput{}, target, Transition{Steps: 50})
	require.NoError(t, err)
	assert.False(t, interrupted)
	assert.Empty(t, pending)

	require.Len(t, out.frames, 51)
	for i, frame := range out.frames {
		assert.Equal(t, InterpolateColor(led.RGBColor{}, target, i, 50), frame, "step %d", i)
	}
	assert.Equal(t, led.RGB(127, 47, 9), out.frames[25])
	assert.Equal(t, target, c.Current())
}

func TestFadeToFromNonZero(t *testing.T) {
	c, out, _ := newTestController(t)

	_, _, err := c.FadeTo(context.Background(), &scriptedInput{}, led.RGB(200, 10, 100), Transition{Steps: 3})
	require.NoError(t, err)
	_, _, err = c.FadeTo(context.Background(), &scriptedInput{}, led.RGB(0, 255, 100), Transition{Steps: 3})
	require.NoError(t, err)

	assert.Equal(t, []led.RGBColor{
		{200, 10, 100},
		{134, 91, 100},
		{67, 173, 100},
		{0, 255, 100},
	}, out.frames[4:])
}

func TestFadeToInterrupted(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		k := rapid.IntRange(1, steps).Draw(rt, "k")
		target := led.RGB(
			rapid.Uint8().Draw(rt, "r"),
			rapid.Uint8().Draw(rt, "g"),
			rapid.Uint8().Draw(rt, "b"))

		c, out, _ := newTestController(t)

		in := &scriptedInput{interrupts: map[int]string{k: "ocean"}}
		pending, interrupted, err := c.FadeTo(context.Background(), in, target, Transition{Steps: steps})
		if err != nil {
			rt.Fatalf("FadeTo: %v", err)
		}
		if !interrupted || pending != "ocean" {
			rt.Fatalf("got pending=%q interrupted=%v", pending, interrupted)
		}
		if len(out.frames) != k {
			rt.Fatalf("wrote %d frames, want %d", len(out.frames), k)
		}
		if c.Current() != out.frames[k-1] {
			rt.Fatalf("current %v is not the last written frame %v", c.Current(), out.frames[k-1])
		}
	})
}

func TestFadeToInterruptedBeforeFirstStep(t *testing.T) {
	c, out, _ := newTestController(t)

	in := &scriptedInput{interrupts: map[int]string{0: "off"}}
	pending, interrupted, err := c.FadeTo(context.Background(), in, led.RGB(1, 2, 3), Transition{Steps: 5})
	require.NoError(t, err)
	assert.True(t, interrupted)
	assert.Equal(t, "off", pending)
	assert.Empty(t, out.frames)
	assert.Equal(t, led.RGBColor{}, c.Current())
}

func TestFadeToInvalidSteps(t *testing.T) {
	c, out, _ := newTestController(t)

	for _, steps := range []int{0, -1} {
		_, _, err := c.FadeTo(context.Background(), &scriptedInput{}, led.RGB(1, 2, 3), Transition{Steps: steps})
		assert.True(t, errors.Is(err, ErrInvalidSteps), "steps %d: %v", steps, err)
	}
	assert.Empty(t, out.frames)
}

func TestFadeToOutputFailure(t *testing.T) {
	c, out, _ := newTestController(t)
	out.failAt = 3

	_, _, err := c.FadeTo(context.Background(), &scriptedInput{}, led.RGB(50, 50, 50), Transition{Steps: 5})
	assert.ErrorContains(t, err, "green channel")

	// The partially written frame does not count.
	assert.Equal(t, out.frames[2], c.Current())
}

func TestFadeToDelay(t *testing.T) {
	c, _, _ := newTestController(t)

	start := time.Now()
	_, _, err := c.FadeTo(context.Background(), &scriptedInput{}, led.RGB(9, 9, 9), Transition{Steps: 4, Delay: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}
