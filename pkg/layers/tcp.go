package layers

import (
	"fmt"

	"firestige.xyz/pktcraft/pkg/checksum"
	"firestige.xyz/pktcraft/pkg/craft"
	"firestige.xyz/pktcraft/pkg/field"
)

const (
	tcpHeaderWords = 5
	tcpMaxOptions  = 40
)

// TCP control flags.
const (
	TCPFlagFIN uint8 = 0x01
	TCPFlagSYN uint8 = 0x02
	TCPFlagRST uint8 = 0x04
	TCPFlagPSH uint8 = 0x08
	TCPFlagACK uint8 = 0x10
	TCPFlagURG uint8 = 0x20
	TCPFlagECE uint8 = 0x40
	TCPFlagCWR uint8 = 0x80
)

var tcpLayout = func() *field.Registry {
	r := field.NewRegistry(tcpHeaderWords)
	r.Define(field.NewNumeric("SrcPort", 0, 0, 15))
	r.Define(field.NewNumeric("DstPort", 0, 16, 31))
	r.Define(field.NewNumeric("SeqNumber", 1, 0, 31))
	r.Define(field.NewNumeric("AckNumber", 2, 0, 31))
	r.Define(field.NewBitPair("OffRes", 3, 0, 7, 4, "DataOffset", "Reserved"))
	r.Define(field.NewHex("Flags", 3, 8, 15))
	r.Define(field.NewNumeric("WindowsSize", 3, 16, 31))
	r.Define(field.NewHex("CheckSum", 4, 0, 15))
	r.Define(field.NewNumeric("UrgPointer", 4, 16, 31))
	return r
}()

// TCP is a TCP header. Options are carried in the layer options region.
type TCP struct {
	craft.Base
}

// NewTCP returns a SYN segment to port 80 with a 5840 byte window.
func NewTCP() *TCP {
	tcp := &TCP{}
	tcp.Init(NameTCP, ProtoTCP, tcpLayout)

	tcp.SetSrcPort(0)
	tcp.SetDstPort(80)
	tcp.SetSeqNumber(0)
	tcp.SetAckNumber(0)
	tcp.SetDataOffset(tcpHeaderWords)
	tcp.SetReserved(0)
	tcp.SetFlags(TCPFlagSYN)
	tcp.SetWindowsSize(5840)
	tcp.SetCheckSum(0)
	tcp.SetUrgPointer(0)

	tcp.ResetFields()
	return tcp
}

// SrcPort returns the source port.
func (t *TCP) SrcPort() uint16 { return uint16(t.Uint("SrcPort")) }

// DstPort returns the destination port.
func (t *TCP) DstPort() uint16 { return uint16(t.Uint("DstPort")) }

// SeqNumber returns the sequence number.
func (t *TCP) SeqNumber() uint32 { return t.Uint("SeqNumber") }

// AckNumber returns the acknowledgment number.
func (t *TCP) AckNumber() uint32 { return t.Uint("AckNumber") }

// DataOffset returns the header length in 32-bit words.
func (t *TCP) DataOffset() uint8 { return uint8(t.Uint("DataOffset")) }

// Reserved returns the reserved bits.
func (t *TCP) Reserved() uint8 { return uint8(t.Uint("Reserved")) }

// Flags returns the control flags, see the TCPFlag constants.
func (t *TCP) Flags() uint8 { return uint8(t.Uint("Flags")) }

// WindowsSize returns the receive window.
func (t *TCP) WindowsSize() uint16 { return uint16(t.Uint("WindowsSize")) }

// CheckSum returns the checksum over the pseudo-header and segment.
func (t *TCP) CheckSum() uint16 { return uint16(t.Uint("CheckSum")) }

// UrgPointer returns the urgent pointer.
func (t *TCP) UrgPointer() uint16 { return uint16(t.Uint("UrgPointer")) }

// SetSrcPort sets the source port.
func (t *TCP) SetSrcPort(v uint16) { t.SetUint("SrcPort", uint32(v)) }

// SetDstPort sets the destination port.
func (t *TCP) SetDstPort(v uint16) { t.SetUint("DstPort", uint32(v)) }

// SetSeqNumber sets the sequence number.
func (t *TCP) SetSeqNumber(v uint32) { t.SetUint("SeqNumber", v) }

// SetAckNumber sets the acknowledgment number.
func (t *TCP) SetAckNumber(v uint32) { t.SetUint("AckNumber", v) }

// SetDataOffset sets the header length in 32-bit words.
func (t *TCP) SetDataOffset(v uint8) { t.SetUint("DataOffset", uint32(v)) }

// SetReserved sets the reserved bits.
func (t *TCP) SetReserved(v uint8) { t.SetUint("Reserved", uint32(v)) }

// SetFlags sets the control flags, see the TCPFlag constants.
func (t *TCP) SetFlags(v uint8) { t.SetUint("Flags", uint32(v)) }

// SetWindowsSize sets the receive window.
func (t *TCP) SetWindowsSize(v uint16) { t.SetUint("WindowsSize", uint32(v)) }

// SetCheckSum sets the checksum over the pseudo-header and segment.
func (t *TCP) SetCheckSum(v uint16) { t.SetUint("CheckSum", uint32(v)) }

// SetUrgPointer sets the urgent pointer.
func (t *TCP) SetUrgPointer(v uint16) { t.SetUint("UrgPointer", uint32(v)) }

// Craft derives the data offset from the options and the checksum over the
// IPv4 pseudo-header, this segment and everything stacked above it.
func (t *TCP) Craft(ctx *craft.Context) error {
	if words := len(t.Options()) / craft.WordSize; words > 0 && !t.IsFieldSet("OffRes") {
		t.SetDataOffset(uint8(tcpHeaderWords + words))
	}

	if !t.IsFieldSet("CheckSum") {
		t.SetCheckSum(0)
		cs, err := transportChecksum(ctx, t.Bytes(), NameTCP, uint8(ProtoTCP))
		if err != nil {
			return err
		}
		t.SetCheckSum(cs)
	}
	return nil
}

// Validate rejects options a receiver could not delimit.
func (t *TCP) Validate() error {
	return validateOptions(len(t.Options()), tcpMaxOptions)
}

// transportChecksum sums the pseudo-header of the IP layer below (when there
// is one), the segment itself and the bytes of every upper layer. The
// pseudo-header length is 16 bits wide, so larger segments are rejected.
func transportChecksum(ctx *craft.Context, segment []byte, name string, proto uint8) (uint16, error) {
	data := append(segment, ctx.UpperBytes()...)

	var sum uint32
	if ip, ok := ctx.Lower().(*IP); ok {
		if len(data) > maxLength {
			return 0, fmt.Errorf("%w: %s segment of %d bytes exceeds the pseudo-header length", craft.ErrPacketTooLarge, name, len(data))
		}
		sum = checksum.PseudoHeaderIPv4(ip.SourceIP(), ip.DestinationIP(), proto, len(data))
	} else {
		ctx.Warn("no IP layer below, checksum computed without pseudo-header")
	}
	return checksum.Fold(checksum.Partial(data, sum)), nil
}
