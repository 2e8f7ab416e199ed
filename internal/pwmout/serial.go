// Package pwmout contains the outputs that drive the three PWM channels of an
// RGB strip.
package pwmout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/pkg/errors"
	"libdb.so/rgbfade/internal/led"
	"libdb.so/rgbfade/pwmserial"
)

// Serial drives a PWM board over a serial connection using the pwmserial
// protocol. Reports sent back by the board are handled by ReadReports. The
// Serial owns the port and closes it in Close.
type Serial struct {
	port   io.ReadWriteCloser
	logger *slog.Logger
	buf    bytes.Buffer
	closed atomic.Bool
}

// NewSerial creates a new Serial output and initializes the board.
func NewSerial(port io.ReadWriteCloser, logger *slog.Logger) (*Serial, error) {
	s := &Serial{
		port:   port,
		logger: logger,
	}

	if err := s.writePacket(pwmserial.InitializePacket{Channels: led.NumChannels}); err != nil {
		return nil, errors.Wrap(err, "failed to initialize board")
	}

	return s, nil
}

// Write sets the duty cycle of one channel.
func (s *Serial) Write(ch led.Channel, value uint8) error {
	return s.writePacket(pwmserial.DutyPacket{
		Channel: uint8(ch),
		Value:   value,
	})
}

// Clear turns all channels off.
func (s *Serial) Clear() error {
	return s.writePacket(pwmserial.ClearPacket{})
}

// Close turns all channels off and closes the port. ReadReports returns nil
// once the port is closed this way.
func (s *Serial) Close() error {
	s.closed.Store(true)

	clearErr := s.Clear()
	if err := s.port.Close(); err != nil {
		return errors.Wrap(err, "failed to close port")
	}

	return clearErr
}

// writePacket encodes the packet first so that it reaches the port in a single
// write.
func (s *Serial) writePacket(p pwmserial.IncomingPacket) error {
	s.buf.Reset()
	if err := pwmserial.WriteIncomingPacket(&s.buf, p); err != nil {
		return err
	}

	if _, err := s.port.Write(s.buf.Bytes()); err != nil {
		return errors.Wrapf(err, "failed to write %s packet", p.Type())
	}

	return nil
}

// ReadReports reads the packets sent back by the board until the port is
// closed or ctx is canceled. It returns an error if the board reports an
// error or panics.
func (s *Serial) ReadReports(ctx context.Context) error {
	for ctx.Err() == nil {
		p, err := pwmserial.ReadOutgoingPacket(s.port)
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, pwmserial.ErrChecksum) {
				s.logger.Warn("dropping corrupted packet from board")
				continue
			}
			return errors.Wrap(err, "failed to read packet")
		}

		switch p := p.(type) {
		case pwmserial.AckPacket:
			s.logger.Debug(
				"received ack packet from board",
				"acked_for", p.IncomingPacketType)

		case pwmserial.LogPacket:
			s.logger.Info(
				"received log packet from board",
				"message", p.Message)

		case pwmserial.ErrorPacket:
			s.logger.Warn(
				"received error packet from board",
				"message", p.Message)
			return fmt.Errorf("board reported error: %s", p.Message)

		case pwmserial.PanicPacket:
			s.logger.Error("board unrecoverably panicked")
			return errors.New("board panicked")

		default:
			return fmt.Errorf("received unknown packet from board: %s", p.Type())
		}
	}

	return ctx.Err()
}
