// Package layers implements concrete protocol layers on top of craft.Base.
package layers

import (
	"fmt"
	"net/netip"

	"firestige.xyz/pktcraft/pkg/checksum"
	"firestige.xyz/pktcraft/pkg/craft"
	"firestige.xyz/pktcraft/pkg/field"
)

const (
	ipHeaderWords = 5
	ipMaxOptions  = 40

	// maxLength is the largest value a 16-bit length field can carry.
	maxLength = 0xFFFF
)

// IP flag bits as held by the 3-bit Flags sub-field.
const (
	IPFlagMoreFragments uint8 = 0x1
	IPFlagDontFragment  uint8 = 0x2
	IPFlagReserved      uint8 = 0x4
)

// DefaultIPAddr is the source and destination of a freshly built IP layer.
var DefaultIPAddr = netip.MustParseAddr("127.0.0.1")

var ipLayout = func() *field.Registry {
	r := field.NewRegistry(ipHeaderWords)
	r.Define(field.NewBitPair("VerHdr", 0, 0, 7, 4, "Version", "HeaderLength"))
	r.Define(field.NewNumeric("DifSerCP", 0, 8, 15))
	r.Define(field.NewNumeric("TotalLength", 0, 16, 31))
	r.Define(field.NewHex("Identification", 1, 0, 15))
	r.Define(field.NewBitPair("Off", 1, 16, 31, 3, "Flags", "FragmentOffset"))
	r.Define(field.NewNumeric("TTL", 2, 0, 7))
	r.Define(field.NewHex("Protocol", 2, 8, 15))
	r.Define(field.NewHex("CheckSum", 2, 16, 31))
	r.Define(field.NewIPv4Address("SourceIP", 3))
	r.Define(field.NewIPv4Address("DestinationIP", 4))
	return r
}()

// IP is an IPv4 header. Options are carried in the layer options region.
type IP struct {
	craft.Base
}

// NewIP returns an IPv4 header with consistent defaults: version 4, five
// header words, don't-fragment, TTL 64, protocol TCP and loopback addresses.
func NewIP() *IP {
	ip := &IP{}
	ip.Init(NameIP, ProtoIP, ipLayout)

	ip.SetVersion(4)
	ip.SetHeaderLength(ipHeaderWords)
	ip.SetDifSerCP(0)
	ip.SetTotalLength(0)
	ip.SetIdentification(0)
	ip.SetFlags(IPFlagDontFragment)
	ip.SetFragmentOffset(0)
	ip.SetTTL(64)
	ip.SetProtocol(uint8(ProtoTCP))
	ip.SetCheckSum(0)
	ip.MustSetAddr("SourceIP", DefaultIPAddr)
	ip.MustSetAddr("DestinationIP", DefaultIPAddr)

	ip.ResetFields()
	return ip
}

// Version returns the IP version.
func (ip *IP) Version() uint8 { return uint8(ip.Uint("Version")) }

// HeaderLength returns the header length in 32-bit words.
func (ip *IP) HeaderLength() uint8 { return uint8(ip.Uint("HeaderLength")) }

// DifSerCP returns the differentiated services byte.
func (ip *IP) DifSerCP() uint8 { return uint8(ip.Uint("DifSerCP")) }

// TotalLength returns the datagram length in bytes, header included.
func (ip *IP) TotalLength() uint16 { return uint16(ip.Uint("TotalLength")) }

// Identification returns the fragment identification.
func (ip *IP) Identification() uint16 { return uint16(ip.Uint("Identification")) }

// Flags returns the fragmentation flags, see the IPFlag constants.
func (ip *IP) Flags() uint8 { return uint8(ip.Uint("Flags")) }

// FragmentOffset returns the fragment offset in 8-byte units.
func (ip *IP) FragmentOffset() uint16 { return uint16(ip.Uint("FragmentOffset")) }

// TTL returns the time to live.
func (ip *IP) TTL() uint8 { return uint8(ip.Uint("TTL")) }

// Protocol returns the upper-layer protocol number.
func (ip *IP) Protocol() uint8 { return uint8(ip.Uint("Protocol")) }

// CheckSum returns the header checksum.
func (ip *IP) CheckSum() uint16 { return uint16(ip.Uint("CheckSum")) }

// SourceIP returns the source address.
func (ip *IP) SourceIP() netip.Addr { return ip.Addr("SourceIP") }

// DestinationIP returns the destination address.
func (ip *IP) DestinationIP() netip.Addr { return ip.Addr("DestinationIP") }

// SetVersion sets the IP version.
func (ip *IP) SetVersion(v uint8) { ip.SetUint("Version", uint32(v)) }

// SetHeaderLength sets the header length in 32-bit words.
func (ip *IP) SetHeaderLength(v uint8) { ip.SetUint("HeaderLength", uint32(v)) }

// SetDifSerCP sets the differentiated services byte.
func (ip *IP) SetDifSerCP(v uint8) { ip.SetUint("DifSerCP", uint32(v)) }

// SetTotalLength sets the datagram length in bytes, header included.
func (ip *IP) SetTotalLength(v uint16) { ip.SetUint("TotalLength", uint32(v)) }

// SetIdentification sets the fragment identification.
func (ip *IP) SetIdentification(v uint16) { ip.SetUint("Identification", uint32(v)) }

// SetFlags sets the fragmentation flags, see the IPFlag constants.
func (ip *IP) SetFlags(v uint8) { ip.SetUint("Flags", uint32(v)) }

// SetFragmentOffset sets the fragment offset in 8-byte units.
func (ip *IP) SetFragmentOffset(v uint16) { ip.SetUint("FragmentOffset", uint32(v)) }

// SetTTL sets the time to live.
func (ip *IP) SetTTL(v uint8) { ip.SetUint("TTL", uint32(v)) }

// SetProtocol sets the upper-layer protocol number.
func (ip *IP) SetProtocol(v uint8) { ip.SetUint("Protocol", uint32(v)) }

// SetCheckSum sets the header checksum.
func (ip *IP) SetCheckSum(v uint16) { ip.SetUint("CheckSum", uint32(v)) }

// SetSourceIP parses and stores the source address.
func (ip *IP) SetSourceIP(addr string) error {
	return ip.Set("SourceIP", addr)
}

// SetDestinationIP parses and stores the destination address.
func (ip *IP) SetDestinationIP(addr string) error {
	return ip.Set("DestinationIP", addr)
}

// Craft derives total length, upper protocol, header length and checksum,
// in that order, for every one of them the caller left unset.
func (ip *IP) Craft(ctx *craft.Context) error {
	if !ip.IsFieldSet("TotalLength") {
		n, err := remainingLength(ctx, NameIP)
		if err != nil {
			return err
		}
		ip.SetTotalLength(n)
	}

	if !ip.IsFieldSet("Protocol") {
		if upper := ctx.Upper(); upper != nil {
			id, err := ctx.ProtoID(upper.Name())
			if err != nil {
				return err
			}
			if id > 0xFF {
				return fmt.Errorf("%w: %s identifier 0x%x does not fit the IP protocol field",
					craft.ErrUnknownProtocol, upper.Name(), id)
			}
			ip.SetProtocol(uint8(id))
		} else {
			ctx.Warn("no transport layer protocol associated with IP layer")
		}
	}

	if words := len(ip.Options()) / craft.WordSize; words > 0 && !ip.IsFieldSet("VerHdr") {
		ip.SetHeaderLength(uint8(ipHeaderWords + words))
	}

	if !ip.IsFieldSet("CheckSum") {
		ip.SetCheckSum(0)
		// the IPv4 checksum covers the header and options only
		ip.SetCheckSum(checksum.Sum(ip.Header()))
	}
	return nil
}

// HeaderBytes returns the crafted base header without options.
func (ip *IP) HeaderBytes() []byte {
	return ip.Header()[:ip.HeaderSize()]
}

// Validate rejects options a receiver could not delimit.
func (ip *IP) Validate() error {
	return validateOptions(len(ip.Options()), ipMaxOptions)
}

// remainingLength is the size of this layer and everything above it, or
// ErrPacketTooLarge when that does not fit a 16-bit length field.
func remainingLength(ctx *craft.Context, name string) (uint16, error) {
	n := ctx.RemainingSize()
	if n > maxLength {
		return 0, fmt.Errorf("%w: %s spans %d bytes, limit is %d", craft.ErrPacketTooLarge, name, n, maxLength)
	}
	return uint16(n), nil
}

func validateOptions(n, limit int) error {
	if n%craft.WordSize != 0 {
		return fmt.Errorf("%w: %d bytes is not a multiple of %d", craft.ErrInvalidOptions, n, craft.WordSize)
	}
	if n > limit {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", craft.ErrInvalidOptions, n, limit)
	}
	return nil
}
