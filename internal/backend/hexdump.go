package backend

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/pkg/craft"
)

// NameHexdump selects the hex dump backend.
const NameHexdump = "hexdump"

func init() {
	Register(NameHexdump, func(cfg config.BackendConfig, w io.Writer) (Sender, error) {
		return NewHexdumpSender(w, cfg.Hexdump.Decode), nil
	})
}

// HexdumpSender prints each frame as a hex dump, optionally followed by
// gopacket's decoding of it.
type HexdumpSender struct {
	w      io.Writer
	decode bool
	count  int
}

// NewHexdumpSender dumps to w. With decode set every dump is followed by
// gopacket's layer by layer view of the frame.
func NewHexdumpSender(w io.Writer, decode bool) *HexdumpSender {
	return &HexdumpSender{w: w, decode: decode}
}

// Name returns NameHexdump.
func (s *HexdumpSender) Name() string { return NameHexdump }

// Send writes a "# packet N" line and the dump of f.Data.
func (s *HexdumpSender) Send(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.count++
	_, err := fmt.Fprintf(s.w, "# packet %d: %s -> %s, %d bytes\n%s", s.count, f.Src, f.Dst, len(f.Data), hex.Dump(f.Data))
	if err == nil && s.decode {
		pkt := gopacket.NewPacket(f.Data, layers.LayerTypeIPv4, gopacket.Default)
		_, err = io.WriteString(s.w, pkt.String())
	}
	if err != nil {
		return fmt.Errorf("%w: hexdump: %v", craft.ErrBackend, err)
	}
	return nil
}

// Close is a no-op; the writer belongs to the caller.
func (s *HexdumpSender) Close() error { return nil }
