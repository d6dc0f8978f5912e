package layers

import (
	"fmt"

	"firestige.xyz/pktcraft/pkg/craft"
)

// Protocol names as resolved by lower layers.
const (
	NameIP   = "IP"
	NameICMP = "ICMP"
	NameTCP  = "TCP"
	NameUDP  = "UDP"
	NameRaw  = craft.RawLayerName
)

// Protocol identifiers.
const (
	ProtoIP   uint16 = 0x0800
	ProtoICMP uint16 = 0x01
	ProtoTCP  uint16 = 0x06
	ProtoUDP  uint16 = 0x11
	ProtoRaw  uint16 = 0x00
)

// Register adds every layer of this package to r. It is called once at
// startup; calling it twice on the same registry fails.
func Register(r *craft.Registry) error {
	entries := []struct {
		name string
		id   uint16
		ctor craft.Constructor
	}{
		{NameIP, ProtoIP, func() craft.Layer { return NewIP() }},
		{NameICMP, ProtoICMP, func() craft.Layer { return NewICMP() }},
		{NameTCP, ProtoTCP, func() craft.Layer { return NewTCP() }},
		{NameUDP, ProtoUDP, func() craft.Layer { return NewUDP() }},
		{NameRaw, ProtoRaw, func() craft.Layer { return NewRawLayer(nil) }},
	}
	for _, e := range entries {
		if err := r.Register(e.name, e.id, e.ctor); err != nil {
			return fmt.Errorf("register layers: %w", err)
		}
	}
	return nil
}
