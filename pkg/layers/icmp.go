package layers

import (
	"firestige.xyz/pktcraft/pkg/checksum"
	"firestige.xyz/pktcraft/pkg/craft"
	"firestige.xyz/pktcraft/pkg/field"
)

const icmpHeaderWords = 2

// ICMP message types.
const (
	ICMPEchoReply              uint8 = 0
	ICMPDestinationUnreachable uint8 = 3
	ICMPEchoRequest            uint8 = 8
	ICMPTimeExceeded           uint8 = 11
)

var icmpLayout = func() *field.Registry {
	r := field.NewRegistry(icmpHeaderWords)
	r.Define(field.NewNumeric("Type", 0, 0, 7))
	r.Define(field.NewNumeric("Code", 0, 8, 15))
	r.Define(field.NewHex("CheckSum", 0, 16, 31))
	r.Define(field.NewHex("Identifier", 1, 0, 15))
	r.Define(field.NewHex("SequenceNumber", 1, 16, 31))
	return r
}()

// ICMP is an ICMP header in the echo layout.
type ICMP struct {
	craft.Base
}

// NewICMP returns an echo request with zero identifier and sequence.
func NewICMP() *ICMP {
	icmp := &ICMP{}
	icmp.Init(NameICMP, ProtoICMP, icmpLayout)

	icmp.SetType(ICMPEchoRequest)
	icmp.SetCode(0)
	icmp.SetCheckSum(0)
	icmp.SetIdentifier(0)
	icmp.SetSequenceNumber(0)

	icmp.ResetFields()
	return icmp
}

// Type returns the message type.
func (i *ICMP) Type() uint8 { return uint8(i.Uint("Type")) }

// Code returns the message code.
func (i *ICMP) Code() uint8 { return uint8(i.Uint("Code")) }

// CheckSum returns the message checksum.
func (i *ICMP) CheckSum() uint16 { return uint16(i.Uint("CheckSum")) }

// Identifier returns the echo identifier.
func (i *ICMP) Identifier() uint16 { return uint16(i.Uint("Identifier")) }

// SequenceNumber returns the echo sequence number.
func (i *ICMP) SequenceNumber() uint16 { return uint16(i.Uint("SequenceNumber")) }

// SetType sets the message type.
func (i *ICMP) SetType(v uint8) { i.SetUint("Type", uint32(v)) }

// SetCode sets the message code.
func (i *ICMP) SetCode(v uint8) { i.SetUint("Code", uint32(v)) }

// SetCheckSum sets the message checksum.
func (i *ICMP) SetCheckSum(v uint16) { i.SetUint("CheckSum", uint32(v)) }

// SetIdentifier sets the echo identifier.
func (i *ICMP) SetIdentifier(v uint16) { i.SetUint("Identifier", uint32(v)) }

// SetSequenceNumber sets the echo sequence number.
func (i *ICMP) SetSequenceNumber(v uint16) { i.SetUint("SequenceNumber", uint32(v)) }

// Craft derives the checksum over the message and everything above it.
func (i *ICMP) Craft(ctx *craft.Context) error {
	if !i.IsFieldSet("CheckSum") {
		i.SetCheckSum(0)
		i.SetCheckSum(checksum.Sum(append(i.Bytes(), ctx.UpperBytes()...)))
	}
	return nil
}
