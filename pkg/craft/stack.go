package craft

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Stack is an ordered sequence of layers forming one packet, lowest
// protocol first. It exclusively owns its layers.
type Stack struct {
	layers   []Layer
	registry *Registry
	logger   logrus.FieldLogger
	warnings bool
}

// StackOption configures a Stack.
type StackOption func(*Stack)

// WithRegistry sets the registry used for upper-layer protocol resolution.
func WithRegistry(r *Registry) StackOption {
	return func(s *Stack) { s.registry = r }
}

// WithLogger sets the destination of advisory warnings.
func WithLogger(l logrus.FieldLogger) StackOption {
	return func(s *Stack) { s.logger = l }
}

// WithWarnings toggles advisory warnings such as a missing upper layer.
func WithWarnings(enabled bool) StackOption {
	return func(s *Stack) { s.warnings = enabled }
}

// NewStack creates an empty stack. Warnings are enabled and go to the
// logrus standard logger unless configured otherwise.
func NewStack(opts ...StackOption) *Stack {
	s := &Stack{
		registry: DefaultRegistry(),
		logger:   logrus.StandardLogger(),
		warnings: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push appends layers on top of the stack.
func (s *Stack) Push(layers ...Layer) *Stack {
	s.layers = append(s.layers, layers...)
	return s
}

// Len returns the number of layers.
func (s *Stack) Len() int { return len(s.layers) }

// Layer returns the layer at index i, or nil when out of range.
func (s *Stack) Layer(i int) Layer {
	if i < 0 || i >= len(s.layers) {
		return nil
	}
	return s.layers[i]
}

// Layers returns the layers bottom to top.
func (s *Stack) Layers() []Layer {
	return append([]Layer(nil), s.layers...)
}

// Registry returns the registry used for protocol resolution.
func (s *Stack) Registry() *Registry { return s.registry }

// Size returns the total serialized size of the packet.
func (s *Stack) Size() int {
	return s.sizeFrom(0)
}

func (s *Stack) sizeFrom(i int) int {
	n := 0
	for _, l := range s.layers[i:] {
		n += l.Size()
	}
	return n
}

// Validate checks every layer and returns all structural problems at once.
func (s *Stack) Validate() error {
	if len(s.layers) == 0 {
		return ErrEmptyStack
	}
	var errs *multierror.Error
	for i, l := range s.layers {
		if err := l.Validate(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("layer %d (%s): %w", i, l.Name(), err))
		}
	}
	return errs.ErrorOrNil()
}

// Craft validates the stack and then crafts every layer from the top down,
// so each layer sees the final size and content of everything above it.
// Layers only derive fields that were not explicitly set.
func (s *Stack) Craft() error {
	if err := s.Validate(); err != nil {
		return err
	}
	for i := len(s.layers) - 1; i >= 0; i-- {
		l := s.layers[i]
		if err := l.Craft(&Context{stack: s, index: i}); err != nil {
			return fmt.Errorf("craft layer %d (%s): %w", i, l.Name(), err)
		}
	}
	return nil
}

// Bytes serializes the stack as it currently is, without crafting.
func (s *Stack) Bytes() []byte {
	return s.appendFrom(make([]byte, 0, s.Size()), 0)
}

func (s *Stack) appendFrom(dst []byte, i int) []byte {
	for _, l := range s.layers[i:] {
		dst = l.AppendTo(dst)
	}
	return dst
}

// Build crafts the stack and returns the wire buffer. Nothing is returned
// when crafting fails.
func (s *Stack) Build() ([]byte, error) {
	if err := s.Craft(); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// String renders every layer on its own line.
func (s *Stack) String() string {
	out := ""
	for _, l := range s.layers {
		out += fmt.Sprintf("%v\n", l)
	}
	return out
}
