package backend

import (
	"context"
	"fmt"
	"io"
	"net"

	"golang.org/x/net/ipv4"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/pkg/craft"
)

// NameRaw selects the raw IPv4 socket backend.
const NameRaw = "raw"

func init() {
	Register(NameRaw, func(cfg config.BackendConfig, _ io.Writer) (Sender, error) {
		return NewRawSender(cfg.Raw.Network)
	})
}

// headerWriter is the subset of *ipv4.RawConn the raw sender uses.
type headerWriter interface {
	WriteTo(h *ipv4.Header, p []byte, cm *ipv4.ControlMessage) error
	Close() error
}

// RawSender writes frames to a raw IPv4 socket with the crafted header
// included. Opening one usually needs CAP_NET_RAW.
type RawSender struct {
	conn headerWriter
}

// NewRawSender opens a raw socket on network, e.g. "ip4:255".
func NewRawSender(network string) (*RawSender, error) {
	c, err := net.ListenPacket(network, "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("%w: raw: listen %s: %v", craft.ErrBackend, network, err)
	}
	rc, err := ipv4.NewRawConn(c)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: raw: %v", craft.ErrBackend, err)
	}
	return &RawSender{conn: rc}, nil
}

// Name returns NameRaw.
func (r *RawSender) Name() string { return NameRaw }

// Send hands the header, options and payload to the socket. A header the
// socket layer cannot parse is rejected before anything is written.
func (r *RawSender) Send(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h, err := parseHeader(f)
	if err != nil {
		return fmt.Errorf("%w: raw: rejected header: %v", craft.ErrBackend, err)
	}
	if err := r.conn.WriteTo(h, f.Payload, nil); err != nil {
		return fmt.Errorf("%w: raw: send to %s: %v", craft.ErrBackend, f.Dst, err)
	}
	return nil
}

// parseHeader rebuilds the header for WriteTo and rejects options the
// header length does not cover.
func parseHeader(f Frame) (*ipv4.Header, error) {
	b := make([]byte, 0, len(f.Header)+len(f.Options))
	b = append(append(b, f.Header...), f.Options...)
	h, err := ipv4.ParseHeader(b)
	if err != nil {
		return nil, err
	}
	if len(h.Options) != len(f.Options) {
		return nil, fmt.Errorf("header length %d bytes does not cover %d option bytes", h.Len, len(f.Options))
	}
	return h, nil
}

// Close closes the socket.
func (r *RawSender) Close() error {
	return r.conn.Close()
}
