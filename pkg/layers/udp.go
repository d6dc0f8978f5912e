package layers

import (
	"firestige.xyz/pktcraft/pkg/craft"
	"firestige.xyz/pktcraft/pkg/field"
)

const udpHeaderWords = 2

var udpLayout = func() *field.Registry {
	r := field.NewRegistry(udpHeaderWords)
	r.Define(field.NewNumeric("SrcPort", 0, 0, 15))
	r.Define(field.NewNumeric("DstPort", 0, 16, 31))
	r.Define(field.NewNumeric("Length", 1, 0, 15))
	r.Define(field.NewHex("CheckSum", 1, 16, 31))
	return r
}()

// UDP is a UDP header.
type UDP struct {
	craft.Base
}

// NewUDP returns a datagram header addressed to port 53.
func NewUDP() *UDP {
	udp := &UDP{}
	udp.Init(NameUDP, ProtoUDP, udpLayout)

	udp.SetSrcPort(0)
	udp.SetDstPort(53)
	udp.SetLength(0)
	udp.SetCheckSum(0)

	udp.ResetFields()
	return udp
}

// SrcPort returns the source port.
func (u *UDP) SrcPort() uint16 { return uint16(u.Uint("SrcPort")) }

// DstPort returns the destination port.
func (u *UDP) DstPort() uint16 { return uint16(u.Uint("DstPort")) }

// Length returns the datagram length, header included.
func (u *UDP) Length() uint16 { return uint16(u.Uint("Length")) }

// CheckSum returns the checksum over the pseudo-header and datagram.
func (u *UDP) CheckSum() uint16 { return uint16(u.Uint("CheckSum")) }

// SetSrcPort sets the source port.
func (u *UDP) SetSrcPort(v uint16) { u.SetUint("SrcPort", uint32(v)) }

// SetDstPort sets the destination port.
func (u *UDP) SetDstPort(v uint16) { u.SetUint("DstPort", uint32(v)) }

// SetLength sets the datagram length, header included.
func (u *UDP) SetLength(v uint16) { u.SetUint("Length", uint32(v)) }

// SetCheckSum sets the checksum over the pseudo-header and datagram.
func (u *UDP) SetCheckSum(v uint16) { u.SetUint("CheckSum", uint32(v)) }

// Craft derives the datagram length and the checksum.
func (u *UDP) Craft(ctx *craft.Context) error {
	if !u.IsFieldSet("Length") {
		n, err := remainingLength(ctx, NameUDP)
		if err != nil {
			return err
		}
		u.SetLength(n)
	}

	if !u.IsFieldSet("CheckSum") {
		u.SetCheckSum(0)
		cs, err := transportChecksum(ctx, u.Bytes(), NameUDP, uint8(ProtoUDP))
		if err != nil {
			return err
		}
		if cs == 0 {
			// zero means "no checksum" on the wire (RFC 768)
			cs = 0xFFFF
		}
		u.SetCheckSum(cs)
	}
	return nil
}
