// Package checksum implements the RFC 1071 Internet checksum.
//
// Data is summed as a sequence of big-endian 16-bit words, so the returned
// value can be stored directly into a header field that is serialized in
// network byte order, independent of the host byte order.
package checksum

import "net/netip"

// Sum returns the Internet checksum of b. An odd trailing byte is treated as
// if one zero byte followed it.
func Sum(b []byte) uint16 {
	return Fold(Partial(b, 0))
}

// Partial adds the 16-bit words of b to initial without folding or
// complementing, so several spans (pseudo-header, header, payload) can be
// accumulated before calling Fold. Every span except the last must have an
// even length.
func Partial(b []byte, initial uint32) uint32 {
	sum := initial
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
		// keep headroom for the next addition
		if sum > 0xFFFF0000 {
			sum = (sum >> 16) + (sum & 0xFFFF)
		}
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}
	return sum
}

// Fold reduces a 32-bit accumulator to 16 bits using end-around carry and
// returns its one's complement.
func Fold(sum uint32) uint16 {
	for sum>>16 != 0 {
		sum = (sum >> 16) + (sum & 0xFFFF)
	}
	return ^uint16(sum)
}

// PseudoHeaderIPv4 returns the partial sum of the IPv4 pseudo-header used by
// TCP and UDP: source address, destination address, zero, protocol and the
// upper-layer length. length must fit the 16-bit pseudo-header field;
// callers reject larger segments.
func PseudoHeaderIPv4(src, dst netip.Addr, proto uint8, length int) uint32 {
	s := src.As4()
	d := dst.As4()
	var sum uint32
	sum = Partial(s[:], sum)
	sum = Partial(d[:], sum)
	sum += uint32(proto)
	sum += uint32(length & 0xFFFF)
	return sum
}
