package craft

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Context gives a layer being crafted read-only access to its neighbours.
// Neighbours are found by position in the owning stack, never through
// references held by the layers themselves.
type Context struct {
	stack *Stack
	index int
}

// Index returns the position of the layer being crafted.
func (c *Context) Index() int { return c.index }

// Upper returns the next higher layer, or nil for the topmost layer.
func (c *Context) Upper() Layer { return c.stack.Layer(c.index + 1) }

// Lower returns the next lower layer, or nil for the bottom layer.
func (c *Context) Lower() Layer { return c.stack.Layer(c.index - 1) }

// RemainingSize returns the size of the current layer plus every layer
// above it.
func (c *Context) RemainingSize() int { return c.stack.sizeFrom(c.index) }

// UpperBytes serializes every layer above the current one. Upper layers are
// already crafted when this is called from Craft.
func (c *Context) UpperBytes() []byte {
	if c.index+1 >= c.stack.Len() {
		return nil
	}
	return c.stack.appendFrom(make([]byte, 0, c.stack.sizeFrom(c.index+1)), c.index+1)
}

// ProtoID resolves a protocol name through the stack registry. The raw
// payload layer always resolves to 0.
func (c *Context) ProtoID(name string) (uint16, error) {
	if name == RawLayerName {
		return 0, nil
	}
	id, ok := c.stack.registry.ProtoID(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownProtocol, name)
	}
	return id, nil
}

// Warn emits an advisory message on the warning channel when warnings are
// enabled. It never affects the crafted bytes.
func (c *Context) Warn(format string, args ...any) {
	if !c.stack.warnings || c.stack.logger == nil {
		return
	}
	l := c.stack.layers[c.index]
	c.stack.logger.WithFields(logrus.Fields{
		"layer": l.Name(),
		"index": c.index,
	}).Warnf(format, args...)
}
