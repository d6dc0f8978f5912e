// Package craft composes protocol layers into a stack and resolves the
// fields that depend on neighbouring layers before serialization.
package craft

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"

	"firestige.xyz/pktcraft/pkg/field"
)

// WordSize is the size in bytes of one header storage word.
const WordSize = 4

// Layer is one protocol header plus its options and trailing payload.
type Layer interface {
	// Name is the protocol name used for upper-layer resolution.
	Name() string
	// ProtoID is the numeric protocol identifier of this layer.
	ProtoID() uint16
	// HeaderSize is the fixed header size in bytes, without options.
	HeaderSize() int
	// Size is header + options + payload of this layer alone.
	Size() int
	// AppendTo appends the serialized layer to b.
	AppendTo(b []byte) []byte
	// Craft fills in every derived field that was not explicitly set.
	Craft(ctx *Context) error
	// Validate reports structural problems that make the layer unsendable.
	Validate() error
	// Generic exposes the shared field storage.
	Generic() *Base
}

// Base holds the generic state shared by every concrete layer: the field
// layout, the backing words, the explicitly-set markers, options and payload.
// Concrete layers embed it and implement Craft.
type Base struct {
	name    string
	protoID uint16
	fields  *field.Registry
	words   []uint32
	set     map[string]bool
	options []byte
	payload []byte
}

// Init allocates storage for layout and names the layer. It must be called
// by the concrete constructor before any field access.
func (b *Base) Init(name string, protoID uint16, layout *field.Registry) {
	b.name = name
	b.protoID = protoID
	b.fields = layout
	b.words = make([]uint32, layout.Words())
	b.set = make(map[string]bool, layout.Len())
}

// Layer accessors shared by every concrete layer. Validate accepts
// everything; layers with structural limits override it.

// Generic returns b itself.
func (b *Base) Generic() *Base          { return b }
func (b *Base) Name() string            { return b.name }
func (b *Base) ProtoID() uint16         { return b.protoID }
func (b *Base) Fields() *field.Registry { return b.fields }
func (b *Base) HeaderSize() int         { return len(b.words) * WordSize }
func (b *Base) Size() int               { return b.HeaderSize() + len(b.options) + len(b.payload) }
func (b *Base) Options() []byte         { return b.options }
func (b *Base) Payload() []byte         { return b.payload }
func (b *Base) Validate() error         { return nil }

// Header serializes the header words in network byte order followed by the
// options, leaving out the payload.
func (b *Base) Header() []byte {
	dst := make([]byte, 0, b.HeaderSize()+len(b.options))
	for _, w := range b.words {
		dst = binary.BigEndian.AppendUint32(dst, w)
	}
	return append(dst, b.options...)
}

// Bytes serializes the layer on its own.
func (b *Base) Bytes() []byte {
	return b.AppendTo(make([]byte, 0, b.Size()))
}

func (b *Base) lookup(name string) field.Ref {
	return b.fields.MustLookup(name)
}

func (b *Base) markSet(f *field.Field) {
	b.set[f.Name()] = true
}

// SetOptions attaches header options. Options must be attached before the
// layer is crafted so derived header lengths include them.
func (b *Base) SetOptions(opts []byte) { b.options = append([]byte(nil), opts...) }

// SetPayload attaches bytes carried after the header and options.
func (b *Base) SetPayload(p []byte) { b.payload = append([]byte(nil), p...) }

// Uint returns the value of a field or BitPair sub-field. Undefined names
// panic.
func (b *Base) Uint(name string) uint32 {
	ref := b.lookup(name)
	if ref.IsPart() {
		return ref.Field.GetPart(b.words, ref.Part)
	}
	return ref.Field.Get(b.words)
}

// SetUint writes a field or BitPair sub-field and marks it explicitly set.
func (b *Base) SetUint(name string, v uint32) {
	ref := b.lookup(name)
	if ref.IsPart() {
		ref.Field.SetPart(b.words, ref.Part, v)
	} else {
		ref.Field.Set(b.words, v)
	}
	b.markSet(ref.Field)
}

// Addr returns the value of an address field.
func (b *Base) Addr(name string) netip.Addr {
	return b.lookup(name).Field.GetAddr(b.words)
}

// SetAddr writes an address field and marks it explicitly set.
func (b *Base) SetAddr(name string, addr netip.Addr) error {
	ref := b.lookup(name)
	if err := ref.Field.SetAddr(b.words, addr); err != nil {
		return fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	b.markSet(ref.Field)
	return nil
}

// MustSetAddr is SetAddr for compile-time constant addresses.
func (b *Base) MustSetAddr(name string, addr netip.Addr) {
	if err := b.SetAddr(name, addr); err != nil {
		panic(err)
	}
}

// Has reports whether name is a field or sub-field of this layer.
func (b *Base) Has(name string) bool {
	_, ok := b.fields.Lookup(name)
	return ok
}

// Set writes a loosely typed value, as produced by configuration decoders.
// Unlike SetUint it reports unknown names, unusable values and values wider
// than the field as errors instead of truncating.
func (b *Base) Set(name string, v any) error {
	ref, ok := b.fields.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s has no field %q", ErrUnknownField, b.name, name)
	}

	if ref.Field.Kind() == field.IPv4Address {
		switch a := v.(type) {
		case netip.Addr:
			return b.SetAddr(name, a)
		case string:
			addr, err := netip.ParseAddr(strings.TrimSpace(a))
			if err != nil {
				return fmt.Errorf("%w: %s.%s: %v", ErrBadValue, b.name, name, err)
			}
			return b.SetAddr(name, addr)
		}
	}

	n, err := toUint32(v)
	if err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrBadValue, b.name, name, err)
	}
	if n > ref.Max() {
		return fmt.Errorf("%w: %s.%s: %d exceeds the field maximum %d", ErrBadValue, b.name, name, n, ref.Max())
	}
	b.SetUint(name, n)
	return nil
}

func toUint32(v any) (uint32, error) {
	var n uint64
	switch x := v.(type) {
	case uint8:
		n = uint64(x)
	case uint16:
		n = uint64(x)
	case uint32:
		n = uint64(x)
	case uint64:
		n = x
	case uint:
		n = uint64(x)
	case int, int8, int16, int32, int64:
		i := toInt64(x)
		if i < 0 {
			return 0, fmt.Errorf("negative value %d", i)
		}
		n = uint64(i)
	case float64:
		if x < 0 || x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not an unsigned integer", x)
		}
		n = uint64(x)
	case bool:
		if x {
			n = 1
		}
	case string:
		p, err := strconv.ParseUint(strings.TrimSpace(x), 0, 64)
		if err != nil {
			return 0, err
		}
		n = p
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if n > math.MaxUint32 {
		return 0, fmt.Errorf("%d overflows a 32-bit word", n)
	}
	return uint32(n), nil
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	default:
		return v.(int64)
	}
}

// IsFieldSet reports whether the field (or the field holding the given
// sub-field) was explicitly set since the last reset.
func (b *Base) IsFieldSet(name string) bool {
	return b.set[b.lookup(name).Field.Name()]
}

// ResetField clears the explicitly-set marker of one field, making it
// eligible for derivation again on the next Craft.
func (b *Base) ResetField(name string) {
	delete(b.set, b.lookup(name).Field.Name())
}

// ResetFields clears every explicitly-set marker.
func (b *Base) ResetFields() {
	for k := range b.set {
		delete(b.set, k)
	}
}

// Words returns a copy of the header storage words.
func (b *Base) Words() []uint32 { return append([]uint32(nil), b.words...) }

// AppendTo serializes header words in network byte order followed by the
// options and the payload.
func (b *Base) AppendTo(dst []byte) []byte {
	for _, w := range b.words {
		dst = binary.BigEndian.AppendUint32(dst, w)
	}
	dst = append(dst, b.options...)
	return append(dst, b.payload...)
}

// String renders every field in registration order.
func (b *Base) String() string {
	var parts []string
	for _, f := range b.fields.Fields() {
		parts = append(parts, fmt.Sprintf("%s = %s", f.Name(), f.Format(b.words)))
	}
	if len(b.options) > 0 {
		parts = append(parts, fmt.Sprintf("Options = %d bytes", len(b.options)))
	}
	if len(b.payload) > 0 {
		parts = append(parts, fmt.Sprintf("Payload = %q", b.payload))
	}
	return fmt.Sprintf("< %s (%d bytes) :: %s >", b.name, b.Size(), strings.Join(parts, " , "))
}
