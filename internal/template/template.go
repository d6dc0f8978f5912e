// Package template describes packet stacks declaratively in YAML or TOML
// and turns them into craft stacks.
package template

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"firestige.xyz/pktcraft/pkg/craft"
)

// Format is a template encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Spec is a packet template: layers listed bottom to top.
type Spec struct {
	Name        string      `mapstructure:"name"`
	Description string      `mapstructure:"description"`
	Layers      []LayerSpec `mapstructure:"layers"`
}

// LayerSpec describes one layer. Fields override the protocol defaults and
// count as explicitly set, so Craft leaves them alone.
type LayerSpec struct {
	Protocol   string                 `mapstructure:"protocol"`
	Fields     map[string]interface{} `mapstructure:"fields"`
	OptionsHex string                 `mapstructure:"options_hex"`
	Payload    string                 `mapstructure:"payload"`
	PayloadHex string                 `mapstructure:"payload_hex"`
}

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported template extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// LoadFile reads and parses a template file.
func LoadFile(path string) (*Spec, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	spec, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes a template. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Spec, error) {
	raw := make(map[string]interface{})
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case FormatTOML:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported template format %q", format)
	}

	var spec Spec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &spec,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	if len(spec.Layers) == 0 {
		return nil, fmt.Errorf("invalid template: %w", craft.ErrEmptyStack)
	}
	return &spec, nil
}

// Build constructs a stack from the registry's default layers and applies
// the template on top. The stack is not crafted.
func (s *Spec) Build(reg *craft.Registry, opts ...craft.StackOption) (*craft.Stack, error) {
	stack := craft.NewStack(append([]craft.StackOption{craft.WithRegistry(reg)}, opts...)...)
	for i, ls := range s.Layers {
		l, err := ls.build(reg)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, ls.Protocol, err)
		}
		stack.Push(l)
	}
	return stack, nil
}

func (ls *LayerSpec) build(reg *craft.Registry) (craft.Layer, error) {
	l, err := reg.New(ls.Protocol)
	if err != nil {
		return nil, err
	}
	base := l.Generic()

	// sorted so overlapping names (VerHdr vs Version) apply deterministically
	names := make([]string, 0, len(ls.Fields))
	for name := range ls.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := base.Set(name, ls.Fields[name]); err != nil {
			return nil, err
		}
	}

	if ls.OptionsHex != "" {
		opts, err := decodeHex(ls.OptionsHex)
		if err != nil {
			return nil, fmt.Errorf("%w: options_hex: %v", craft.ErrBadValue, err)
		}
		base.SetOptions(opts)
	}

	switch {
	case ls.Payload != "" && ls.PayloadHex != "":
		return nil, fmt.Errorf("%w: payload and payload_hex are mutually exclusive", craft.ErrBadValue)
	case ls.Payload != "":
		base.SetPayload([]byte(ls.Payload))
	case ls.PayloadHex != "":
		p, err := decodeHex(ls.PayloadHex)
		if err != nil {
			return nil, fmt.Errorf("%w: payload_hex: %v", craft.ErrBadValue, err)
		}
		base.SetPayload(p)
	}
	return l, nil
}

// decodeHex accepts hex digits with optional whitespace and colons.
func decodeHex(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, s)
	return hex.DecodeString(strings.TrimPrefix(clean, "0x"))
}
