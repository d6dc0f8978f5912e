// Package backend hands crafted packets to something outside the process:
// a raw IPv4 socket, a capture file or a hex dump.
package backend

import (
	"context"
	"fmt"
	"net/netip"

	"firestige.xyz/pktcraft/pkg/craft"
	"firestige.xyz/pktcraft/pkg/layers"
)

// Frame is a crafted IPv4 packet split the way transmission backends need it.
// Header, Options and Payload alias Data.
type Frame struct {
	Data    []byte
	Src     netip.Addr
	Dst     netip.Addr
	Header  []byte // base IPv4 header without options
	Options []byte
	Payload []byte // everything after the IPv4 header and options
}

// FrameFromStack serializes a crafted stack whose bottom layer is IP.
func FrameFromStack(s *craft.Stack) (Frame, error) {
	return NewFrame(s, s.Bytes())
}

// NewFrame splits data, the buffer returned by s.Build, along the bottom IP
// layer of s without serializing the stack again.
func NewFrame(s *craft.Stack, data []byte) (Frame, error) {
	bottom := s.Layer(0)
	if bottom == nil {
		return Frame{}, fmt.Errorf("%w: %w", craft.ErrBackend, craft.ErrEmptyStack)
	}
	ip, ok := bottom.(*layers.IP)
	if !ok {
		return Frame{}, fmt.Errorf("%w: bottom layer must be %s, got %s", craft.ErrBackend, layers.NameIP, bottom.Name())
	}

	base := ip.HeaderSize()
	end := base + len(ip.Options())
	if len(data) < end {
		return Frame{}, fmt.Errorf("%w: %d bytes cannot hold the %d byte IP header", craft.ErrBackend, len(data), end)
	}
	return Frame{
		Data:    data,
		Src:     ip.SourceIP(),
		Dst:     ip.DestinationIP(),
		Header:  data[:base:base],
		Options: data[base:end:end],
		Payload: data[end:],
	}, nil
}

// Sender transmits finished frames. Implementations are not safe for
// concurrent use.
type Sender interface {
	Name() string
	Send(ctx context.Context, f Frame) error
	Close() error
}
