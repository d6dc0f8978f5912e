package backend

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/internal/metrics"
	"firestige.xyz/pktcraft/pkg/craft"
	pktlayers "firestige.xyz/pktcraft/pkg/layers"
)

func newStack(t *testing.T, ls ...craft.Layer) *craft.Stack {
	t.Helper()
	reg := craft.NewRegistry()
	require.NoError(t, pktlayers.Register(reg))
	logger, _ := test.NewNullLogger()
	return craft.NewStack(craft.WithRegistry(reg), craft.WithLogger(logger)).Push(ls...)
}

func craftFrame(t *testing.T, ls ...craft.Layer) Frame {
	t.Helper()
	s := newStack(t, ls...)
	require.NoError(t, s.Craft())
	f, err := FrameFromStack(s)
	require.NoError(t, err)
	return f
}

func sampleIP(t *testing.T) *pktlayers.IP {
	ip := pktlayers.NewIP()
	require.NoError(t, ip.SetDestinationIP("10.0.0.1"))
	ip.SetIdentification(0x1234)
	return ip
}

func TestFrameFromStack(t *testing.T) {
	ip := sampleIP(t)
	ip.SetOptions([]byte{0x01, 0x01, 0x01, 0x00})
	f := craftFrame(t, ip, pktlayers.NewUDP(), pktlayers.NewRawLayer([]byte("abc")))

	assert.Len(t, f.Data, 24+8+3)
	assert.Equal(t, "127.0.0.1", f.Src.String())
	assert.Equal(t, "10.0.0.1", f.Dst.String())
	assert.Equal(t, f.Data[:20], f.Header)
	assert.Equal(t, []byte{0x01, 0x01, 0x01, 0x00}, f.Options)
	assert.Len(t, f.Payload, 11)
	assert.Equal(t, []byte("abc"), f.Payload[8:])
}

func TestFrameFromStackNeedsIP(t *testing.T) {
	_, err := FrameFromStack(newStack(t, pktlayers.NewUDP()))
	assert.ErrorIs(t, err, craft.ErrBackend)

	_, err = FrameFromStack(newStack(t))
	assert.ErrorIs(t, err, craft.ErrBackend)
	assert.ErrorIs(t, err, craft.ErrEmptyStack)
}

func TestNewFrameReusesBuiltBuffer(t *testing.T) {
	s := newStack(t, sampleIP(t), pktlayers.NewUDP(), pktlayers.NewRawLayer([]byte("abc")))
	data, err := s.Build()
	require.NoError(t, err)

	f, err := NewFrame(s, data)
	require.NoError(t, err)
	assert.Same(t, &data[0], &f.Data[0])
	assert.Same(t, &data[20], &f.Payload[0])

	_, err = NewFrame(s, data[:10])
	assert.ErrorIs(t, err, craft.ErrBackend)
}

func TestPcapRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewPcapSender(&buf, 0)
	require.NoError(t, err)
	stamp := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	s.now = func() time.Time { return stamp }

	first := craftFrame(t, sampleIP(t), pktlayers.NewTCP())
	second := craftFrame(t, sampleIP(t), pktlayers.NewICMP(), pktlayers.NewRawLayer([]byte("ping")))
	require.NoError(t, s.Send(context.Background(), first))
	require.NoError(t, s.Send(context.Background(), second))
	require.NoError(t, s.Close())

	r, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeRaw, r.LinkType())

	for _, want := range []Frame{first, second} {
		data, ci, err := r.ReadPacketData()
		require.NoError(t, err)
		assert.Equal(t, want.Data, data)
		assert.Equal(t, len(want.Data), ci.Length)
		assert.True(t, stamp.Equal(ci.Timestamp))
	}
}

func TestPcapSnaplenTruncates(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewPcapSender(&buf, 24)
	require.NoError(t, err)

	f := craftFrame(t, sampleIP(t), pktlayers.NewTCP())
	require.NoError(t, s.Send(context.Background(), f))

	r, err := pcapgo.NewReader(&buf)
	require.NoError(t, err)
	data, ci, err := r.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, f.Data[:24], data)
	assert.Equal(t, 40, ci.Length)
}

func TestOpenPcapFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcap")
	s, err := New(config.BackendConfig{Type: NamePcap, Pcap: config.PcapBackendConfig{Path: path}}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), craftFrame(t, sampleIP(t), pktlayers.NewTCP())))
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(24+16+40), info.Size(), "file header, record header, packet")

	_, err = OpenPcapFile("", 0)
	assert.ErrorIs(t, err, craft.ErrBackend)
}

type mockConn struct {
	mock.Mock
}

func (m *mockConn) WriteTo(h *ipv4.Header, p []byte, cm *ipv4.ControlMessage) error {
	return m.Called(h, p, cm).Error(0)
}

func (m *mockConn) Close() error {
	return m.Called().Error(0)
}

func TestRawSenderWritesHeaderAndPayload(t *testing.T) {
	f := craftFrame(t, sampleIP(t), pktlayers.NewTCP(), pktlayers.NewRawLayer([]byte("data")))

	conn := new(mockConn)
	conn.On("WriteTo", mock.AnythingOfType("*ipv4.Header"), f.Payload, (*ipv4.ControlMessage)(nil)).Return(nil)
	conn.On("Close").Return(nil)

	s := &RawSender{conn: conn}
	require.NoError(t, s.Send(context.Background(), f))
	require.NoError(t, s.Close())
	conn.AssertExpectations(t)

	h := conn.Calls[0].Arguments.Get(0).(*ipv4.Header)
	assert.Equal(t, 4, h.Version)
	assert.Equal(t, ipv4.HeaderLen, h.Len)
	assert.Equal(t, 0x1234, h.ID)
	assert.Equal(t, 64, h.TTL)
	assert.Equal(t, 6, h.Protocol)
	assert.Equal(t, "10.0.0.1", h.Dst.String())
	assert.Equal(t, int(uint16(f.Data[10])<<8|uint16(f.Data[11])), h.Checksum)
}

func TestRawSenderRejectsUncoveredOptions(t *testing.T) {
	ip := sampleIP(t)
	ip.SetHeaderLength(5)
	ip.SetOptions([]byte{0x01, 0x01, 0x01, 0x01})
	f := craftFrame(t, ip, pktlayers.NewRawLayer(nil))

	conn := new(mockConn)
	err := (&RawSender{conn: conn}).Send(context.Background(), f)

	assert.ErrorIs(t, err, craft.ErrBackend)
	assert.Contains(t, err.Error(), "option bytes")
	conn.AssertNotCalled(t, "WriteTo", mock.Anything, mock.Anything, mock.Anything)
}

func TestRawSenderWrapsSocketErrors(t *testing.T) {
	f := craftFrame(t, sampleIP(t), pktlayers.NewTCP())

	conn := new(mockConn)
	conn.On("WriteTo", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("operation not permitted"))

	err := (&RawSender{conn: conn}).Send(context.Background(), f)
	assert.ErrorIs(t, err, craft.ErrBackend)
	assert.Contains(t, err.Error(), "operation not permitted")
}

func TestHexdumpSender(t *testing.T) {
	var out bytes.Buffer
	s, err := New(config.BackendConfig{Type: NameHexdump}, &out)
	require.NoError(t, err)

	f := craftFrame(t, sampleIP(t), pktlayers.NewTCP())
	require.NoError(t, s.Send(context.Background(), f))

	assert.Equal(t, "# packet 1: 127.0.0.1 -> 10.0.0.1, 40 bytes\n"+hex.Dump(f.Data), out.String())
}

func TestHexdumpSenderDecodes(t *testing.T) {
	var out bytes.Buffer
	s := NewHexdumpSender(&out, true)

	require.NoError(t, s.Send(context.Background(), craftFrame(t, sampleIP(t), pktlayers.NewTCP())))
	assert.Contains(t, out.String(), "IPv4")
	assert.Contains(t, out.String(), "TCP")
}

func TestSendHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := NewHexdumpSender(&out, false).Send(ctx, Frame{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, out.Len())
}

func TestFactory(t *testing.T) {
	assert.Subset(t, Names(), []string{NameHexdump, NamePcap, NameRaw})

	_, err := New(config.BackendConfig{Type: "nope"}, nil)
	assert.ErrorIs(t, err, craft.ErrBackend)
}

func TestWithMetrics(t *testing.T) {
	sent := testutil.ToFloat64(metrics.PacketsSentTotal.WithLabelValues(NameRaw))
	failed := testutil.ToFloat64(metrics.BackendErrorsTotal.WithLabelValues(NameRaw))

	conn := new(mockConn)
	conn.On("WriteTo", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	conn.On("WriteTo", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("no route")).Once()
	s := WithMetrics(&RawSender{conn: conn})

	f := craftFrame(t, sampleIP(t), pktlayers.NewTCP())
	assert.NoError(t, s.Send(context.Background(), f))
	assert.Error(t, s.Send(context.Background(), f))

	assert.Equal(t, NameRaw, s.Name())
	assert.Equal(t, sent+1, testutil.ToFloat64(metrics.PacketsSentTotal.WithLabelValues(NameRaw)))
	assert.Equal(t, failed+1, testutil.ToFloat64(metrics.BackendErrorsTotal.WithLabelValues(NameRaw)))
}
