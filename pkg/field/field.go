// Package field describes the on-wire layout of a protocol header as a set of
// named bit ranges inside fixed 32-bit words.
//
// Bit positions are counted from the most significant bit of a word, which is
// the first bit on the wire once the word is serialized in network byte order.
// A field occupying bits 0..7 of word 0 is therefore the first header byte.
package field

import (
	"fmt"
	"net/netip"
)

// WordBits is the width of one storage word.
const WordBits = 32

// Kind discriminates how a field value is interpreted and displayed.
type Kind uint8

const (
	// Numeric is a fixed-width unsigned value displayed in decimal.
	Numeric Kind = iota
	// Hex is a fixed-width unsigned value displayed in hexadecimal.
	Hex
	// BitPair packs two logical sub-fields into one bit range.
	BitPair
	// IPv4Address holds an IPv4 address in network order in one full word.
	IPv4Address
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Hex:
		return "hex"
	case BitPair:
		return "bitpair"
	case IPv4Address:
		return "ipv4"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field is a named bit range inside one storage word.
type Field struct {
	name string
	kind Kind
	word int
	low  int
	high int

	// BitPair only: sub-field names and the width of the first one, which
	// occupies the most significant bits of the range.
	parts [2]string
	split int
}

// NewNumeric defines a decimal-displayed field over bits low..high of word.
func NewNumeric(name string, word, low, high int) Field {
	return Field{name: name, kind: Numeric, word: word, low: low, high: high}
}

// NewHex defines a hex-displayed field over bits low..high of word.
func NewHex(name string, word, low, high int) Field {
	return Field{name: name, kind: Hex, word: word, low: low, high: high}
}

// NewBitPair defines a field whose range packs two sub-fields. The first
// sub-field takes the leading firstBits bits, the second takes the rest.
func NewBitPair(name string, word, low, high, firstBits int, first, second string) Field {
	return Field{
		name:  name,
		kind:  BitPair,
		word:  word,
		low:   low,
		high:  high,
		parts: [2]string{first, second},
		split: firstBits,
	}
}

// NewIPv4Address defines an address field spanning the whole of word.
func NewIPv4Address(name string, word int) Field {
	return Field{name: name, kind: IPv4Address, word: word, low: 0, high: WordBits - 1}
}

func (f *Field) Name() string { return f.name }
func (f *Field) Kind() Kind   { return f.kind }
func (f *Field) Word() int    { return f.word }
func (f *Field) Low() int     { return f.low }
func (f *Field) High() int    { return f.high }

// Width returns the field width in bits.
func (f *Field) Width() int { return f.high - f.low + 1 }

// Parts returns the sub-field names of a BitPair, or nil.
func (f *Field) Parts() []string {
	if f.kind != BitPair {
		return nil
	}
	return f.parts[:]
}

// check reports a layout problem with the field definition, if any.
func (f *Field) check(words int) error {
	if f.name == "" {
		return fmt.Errorf("field has no name")
	}
	if f.word < 0 || f.word >= words {
		return fmt.Errorf("field %s: word %d outside layout of %d words", f.name, f.word, words)
	}
	if f.low < 0 || f.high >= WordBits || f.low > f.high {
		return fmt.Errorf("field %s: bit range %d..%d does not fit a %d-bit word", f.name, f.low, f.high, WordBits)
	}
	if f.kind == IPv4Address && f.Width() != WordBits {
		return fmt.Errorf("field %s: address fields must span a whole word", f.name)
	}
	if f.kind == BitPair {
		if f.split <= 0 || f.split >= f.Width() {
			return fmt.Errorf("field %s: split %d leaves an empty sub-field in %d bits", f.name, f.split, f.Width())
		}
		if f.parts[0] == "" || f.parts[1] == "" || f.parts[0] == f.parts[1] {
			return fmt.Errorf("field %s: bit pair needs two distinct sub-field names", f.name)
		}
	}
	return nil
}

func (f *Field) shift() uint { return uint(WordBits - 1 - f.high) }

func mask(width int) uint32 {
	if width >= WordBits {
		return 0xFFFFFFFF
	}
	return 1<<uint(width) - 1
}

// Get extracts the field value from words.
func (f *Field) Get(words []uint32) uint32 {
	if f.Width() == WordBits {
		return words[f.word]
	}
	return (words[f.word] >> f.shift()) & mask(f.Width())
}

// Set writes v, truncated to the field width, into words. Bits outside the
// field are preserved.
func (f *Field) Set(words []uint32, v uint32) {
	if f.Width() == WordBits {
		words[f.word] = v
		return
	}
	m := mask(f.Width()) << f.shift()
	words[f.word] = (words[f.word] &^ m) | ((v << f.shift()) & m)
}

func (f *Field) partGeometry(part int) (shift uint, width int) {
	second := f.Width() - f.split
	if part == 0 {
		return uint(second), f.split
	}
	return 0, second
}

// GetPart extracts sub-field part (0 or 1) of a BitPair.
func (f *Field) GetPart(words []uint32, part int) uint32 {
	shift, width := f.partGeometry(part)
	return (f.Get(words) >> shift) & mask(width)
}

// SetPart writes sub-field part (0 or 1) of a BitPair, truncated to its width.
func (f *Field) SetPart(words []uint32, part int, v uint32) {
	shift, width := f.partGeometry(part)
	m := mask(width) << shift
	f.Set(words, (f.Get(words)&^m)|((v<<shift)&m))
}

// GetAddr returns the IPv4 address held by an address field.
func (f *Field) GetAddr(words []uint32) netip.Addr {
	v := f.Get(words)
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// SetAddr stores addr in network order. Non-IPv4 addresses are rejected.
func (f *Field) SetAddr(words []uint32, addr netip.Addr) error {
	if !addr.Is4() && !addr.Is4In6() {
		return fmt.Errorf("field %s: %v is not an IPv4 address", f.name, addr)
	}
	b := addr.Unmap().As4()
	f.Set(words, uint32(b[0])<<24|uint32(b[1])<<16|uint32(b[2])<<8|uint32(b[3]))
	return nil
}

// Format renders the field value according to its kind.
func (f *Field) Format(words []uint32) string {
	switch f.kind {
	case Hex:
		return fmt.Sprintf("0x%x", f.Get(words))
	case BitPair:
		return fmt.Sprintf("(%s = %d , %s = %d)", f.parts[0], f.GetPart(words, 0), f.parts[1], f.GetPart(words, 1))
	case IPv4Address:
		return f.GetAddr(words).String()
	default:
		return fmt.Sprintf("%d", f.Get(words))
	}
}
