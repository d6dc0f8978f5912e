package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/pktcraft/internal/config"
	"firestige.xyz/pktcraft/pkg/craft"
)

// NamePcap selects the capture file backend.
const NamePcap = "pcap"

func init() {
	Register(NamePcap, func(cfg config.BackendConfig, _ io.Writer) (Sender, error) {
		return OpenPcapFile(cfg.Pcap.Path, cfg.Pcap.SnapLen)
	})
}

// PcapSender appends every frame to a pcap stream with raw IP link type.
type PcapSender struct {
	w       *pcapgo.Writer
	closer  io.Closer
	snaplen int
	now     func() time.Time
}

// NewPcapSender writes the file header to w. Frames longer than snaplen are
// truncated in the capture.
func NewPcapSender(w io.Writer, snaplen int) (*PcapSender, error) {
	if snaplen <= 0 {
		snaplen = 65535
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(uint32(snaplen), layers.LinkTypeRaw); err != nil {
		return nil, fmt.Errorf("%w: pcap: write file header: %v", craft.ErrBackend, err)
	}
	return &PcapSender{w: pw, snaplen: snaplen, now: time.Now}, nil
}

// OpenPcapFile creates (or truncates) path and writes the file header.
func OpenPcapFile(path string, snaplen int) (*PcapSender, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: pcap: path is required", craft.ErrBackend)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: pcap: %v", craft.ErrBackend, err)
	}
	s, err := NewPcapSender(f, snaplen)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// Name returns NamePcap.
func (s *PcapSender) Name() string { return NamePcap }

// Send appends one record stamped with the current time.
func (s *PcapSender) Send(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	capLen := min(len(f.Data), s.snaplen)
	ci := gopacket.CaptureInfo{
		Timestamp:     s.now(),
		CaptureLength: capLen,
		Length:        len(f.Data),
	}
	if err := s.w.WritePacket(ci, f.Data[:capLen]); err != nil {
		return fmt.Errorf("%w: pcap: write packet: %v", craft.ErrBackend, err)
	}
	return nil
}

// Close closes the file opened by OpenPcapFile. Writers passed to
// NewPcapSender are left open.
func (s *PcapSender) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
