package layers

import (
	"firestige.xyz/pktcraft/pkg/craft"
	"firestige.xyz/pktcraft/pkg/field"
)

var rawLayout = field.NewRegistry(0)

// RawLayer is unstructured payload with no header fields.
type RawLayer struct {
	craft.Base
}

// NewRawLayer returns a raw layer carrying a copy of data.
func NewRawLayer(data []byte) *RawLayer {
	r := &RawLayer{}
	r.Init(craft.RawLayerName, ProtoRaw, rawLayout)
	r.SetPayload(data)
	return r
}

// Craft has nothing to derive.
func (r *RawLayer) Craft(*craft.Context) error { return nil }
