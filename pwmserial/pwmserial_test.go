package pwmserial

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDutyPacketLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIncomingPacket(&buf, DutyPacket{Channel: 1, Value: 0x5E}))

	b := buf.Bytes()
	require.Len(t, b, 3+4)
	assert.Equal(t, []byte{byte(TypeDutyPacket), 1, 0x5E}, b[:3])
	assert.Equal(t, crc32.ChecksumIEEE(b[:3]), Endianness.Uint32(b[3:]))
}

func TestIncomingPacketStream(t *testing.T) {
	packets := []IncomingPacket{
		InitializePacket{Channels: 3},
		DutyPacket{Channel: 0, Value: 255},
		DutyPacket{Channel: 2, Value: 19},
		ClearPacket{},
	}

	var buf bytes.Buffer
	for _, p := range packets {
		require.NoError(t, WriteIncomingPacket(&buf, p))
	}

	for _, want := range packets {
		got, err := ReadIncomingPacket(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Zero(t, buf.Len())
}

func TestOutgoingPacketStream(t *testing.T) {
	packets := []OutgoingPacket{
		AckPacket{IncomingPacketType: TypeDutyPacket},
		LogPacket{Message: "pwm ready"},
		ErrorPacket{Message: "channel 7 out of range"},
		PanicPacket{},
	}

	var buf bytes.Buffer
	for _, p := range packets {
		require.NoError(t, WriteOutgoingPacket(&buf, p))
	}

	for _, want := range packets {
		got, err := ReadOutgoingPacket(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIncomingPacket(&buf, DutyPacket{Channel: 0, Value: 10}))

	b := buf.Bytes()
	b[2] = 11 // corrupt the value

	_, err := ReadIncomingPacket(bytes.NewReader(b))
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestUnknownPacketType(t *testing.T) {
	_, err := ReadIncomingPacket(bytes.NewReader([]byte{0xFF}))
	assert.ErrorContains(t, err, "unknown packet type")

	_, err = ReadOutgoingPacket(bytes.NewReader([]byte{0xFF}))
	assert.ErrorContains(t, err, "unknown packet type")
}
