package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pktcraft/internal/backend"
	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/pkg/craft"
	"firestige.xyz/pktcraft/pkg/layers"
)

// MockSender is a mock implementation of backend.Sender.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Name() string {
	return m.Called().String(0)
}

func (m *MockSender) Send(ctx context.Context, f backend.Frame) error {
	return m.Called(ctx, f).Error(0)
}

func (m *MockSender) Close() error {
	return m.Called().Error(0)
}

func newTestRegistry(t *testing.T) *craft.Registry {
	t.Helper()
	reg := craft.NewRegistry()
	require.NoError(t, layers.Register(reg))
	return reg
}

func newTestStack(t *testing.T, ls ...craft.Layer) *craft.Stack {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return craft.NewStack(craft.WithRegistry(newTestRegistry(t)), craft.WithLogger(logger)).Push(ls...)
}

func udpStack(t *testing.T) *craft.Stack {
	return newTestStack(t, layers.NewIP(), layers.NewUDP(), layers.NewRawLayer([]byte("hi")))
}

func TestRunSend_Success(t *testing.T) {
	mockSender := new(MockSender)
	mockSender.On("Send", mock.Anything, mock.MatchedBy(func(f backend.Frame) bool {
		return len(f.Data) == 20+8+2 && string(f.Payload[8:]) == "hi"
	})).Return(nil)

	var buf bytes.Buffer
	sent, err := runSend(context.Background(), udpStack(t), mockSender, sendOptions{count: 3}, &buf)

	assert.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Empty(t, buf.String())
	mockSender.AssertNumberOfCalls(t, "Send", 3)
}

func TestRunSend_Verbose(t *testing.T) {
	mockSender := new(MockSender)
	mockSender.On("Send", mock.Anything, mock.Anything).Return(nil)

	var buf bytes.Buffer
	_, err := runSend(context.Background(), udpStack(t), mockSender, sendOptions{count: 1, verbose: true}, &buf)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "< IP (20 bytes) :: ")
	assert.Contains(t, buf.String(), "< UDP (8 bytes) :: ")
	assert.Contains(t, buf.String(), `Payload = "hi"`)
}

func TestRunSend_SenderError(t *testing.T) {
	mockSender := new(MockSender)
	mockSender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	mockSender.On("Send", mock.Anything, mock.Anything).Return(errors.New("network is unreachable")).Once()

	var buf bytes.Buffer
	sent, err := runSend(context.Background(), udpStack(t), mockSender, sendOptions{count: 5}, &buf)

	assert.Error(t, err)
	assert.Equal(t, 1, sent)
	assert.Contains(t, err.Error(), "packet 2")
	assert.Contains(t, err.Error(), "network is unreachable")
	mockSender.AssertExpectations(t)
}

func TestRunSend_CraftError(t *testing.T) {
	ip := layers.NewIP()
	ip.SetOptions([]byte{0x01, 0x01})
	mockSender := new(MockSender)

	var buf bytes.Buffer
	sent, err := runSend(context.Background(), newTestStack(t, ip, layers.NewTCP()), mockSender, sendOptions{count: 1}, &buf)

	assert.ErrorIs(t, err, craft.ErrInvalidOptions)
	assert.Zero(t, sent)
	mockSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRunSend_NeedsIPAtBottom(t *testing.T) {
	mockSender := new(MockSender)

	var buf bytes.Buffer
	_, err := runSend(context.Background(), newTestStack(t, layers.NewUDP()), mockSender, sendOptions{count: 1}, &buf)

	assert.ErrorIs(t, err, craft.ErrBackend)
	mockSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRunSend_UnlimitedStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	mockSender := new(MockSender)
	mockSender.On("Send", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		calls++
		if calls == 3 {
			cancel()
		}
	})

	var buf bytes.Buffer
	sent, err := runSend(ctx, udpStack(t), mockSender, sendOptions{count: 0, interval: time.Millisecond}, &buf)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, sent)
}

func TestRunSend_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mockSender := new(MockSender)

	var buf bytes.Buffer
	sent, err := runSend(ctx, udpStack(t), mockSender, sendOptions{count: 1}, &buf)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sent)
	mockSender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRunProtocols(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runProtocols(newTestRegistry(t), &buf))

	out := buf.String()
	assert.Contains(t, out, "PROTOCOL")
	assert.Regexp(t, `IP\s+0x0800\s+20 bytes`, out)
	assert.Regexp(t, `TCP\s+0x0006\s+20 bytes`, out)
	assert.Regexp(t, `UDP\s+0x0011\s+8 bytes`, out)
	assert.Regexp(t, `ICMP\s+0x0001\s+8 bytes`, out)
	assert.Regexp(t, `RawLayer\s+0x0000\s+0 bytes`, out)
}

func TestRunFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runFields(newTestRegistry(t), "TCP", &buf))

	out := buf.String()
	assert.Contains(t, out, "TCP: 5 words, 20 header bytes")
	assert.Regexp(t, `OffRes \(DataOffset, Reserved\)\s+bitpair\s+3\s+0-7`, out)
	assert.Regexp(t, `Flags\s+hex\s+3\s+8-15\s+0x`, out)
	assert.Regexp(t, `DstPort\s+numeric\s+0\s+16-31\s+80`, out)
}

func TestRunFields_UnknownProtocol(t *testing.T) {
	var buf bytes.Buffer
	err := runFields(newTestRegistry(t), "SCTP", &buf)
	assert.ErrorIs(t, err, craft.ErrUnknownProtocol)
}

func TestBackendConfig(t *testing.T) {
	base := config.Default().Backend

	bc := backendConfig(base, packetFlags{}, "")
	assert.Equal(t, "hexdump", bc.Type)

	bc = backendConfig(base, packetFlags{}, backend.NamePcap)
	assert.Equal(t, backend.NamePcap, bc.Type)

	bc = backendConfig(base, packetFlags{backend: "raw", pcapFile: "x.pcap", decode: true}, backend.NameHexdump)
	assert.Equal(t, "raw", bc.Type)
	assert.Equal(t, "x.pcap", bc.Pcap.Path)
	assert.True(t, bc.Hexdump.Decode)
	assert.Equal(t, "pktcraft.pcap", base.Pcap.Path, "base config must not change")
}

func TestLoadStackFromShippedTemplate(t *testing.T) {
	require.NoError(t, registerProtocols())

	stack, err := loadStack("../templates/syn.yaml")
	require.NoError(t, err)
	assert.Equal(t, layers.NameIP, stack.Layer(0).Name())
	assert.Equal(t, layers.NameTCP, stack.Layer(1).Name())

	_, err = loadStack("../templates/missing.yaml")
	assert.Error(t, err)
}
