package locations

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed layout.yaml
var defaultLayout []byte

// DefaultLayout returns the home layout the assistant starts with.
func DefaultLayout() *Tree {
	t, err := Parse(defaultLayout)
	if err != nil {
		panic(fmt.Sprintf("locations: embedded layout: %v", err))
	}
	return t
}

// Parse decodes a YAML document of nested mappings whose leaves are
// sequences of object names.
func Parse(data []byte) (*Tree, error) {
	t := New()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("locations: parse layout: %w", err)
	}
	return t, nil
}

// Load reads a layout from r.
func Load(r io.Reader) (*Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("locations: read layout: %w", err)
	}
	return Parse(data)
}

// LoadFile reads a layout file. An empty name yields the default layout.
func LoadFile(name string) (*Tree, error) {
	if name == "" {
		return DefaultLayout(), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("locations: open layout: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// UnmarshalYAML implements yaml.Unmarshaler, keeping mapping key order.
func (t *Tree) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.DocumentNode && len(value.Content) == 1 {
		value = value.Content[0]
	}
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		t.root = newBranch()
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: layout root must be a mapping", value.Line)
	}
	root, err := decodeNode(value)
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

func decodeNode(value *yaml.Node) (*node, error) {
	switch value.Kind {
	case yaml.MappingNode:
		n := newBranch()
		for i := 0; i+1 < len(value.Content); i += 2 {
			key := value.Content[i].Value
			child, err := decodeNode(value.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			n.set(key, child)
		}
		return n, nil
	case yaml.SequenceNode:
		n := newBucket()
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: bucket entries must be object names", item.Line)
			}
			n.objects = append(n.objects, item.Value)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("line %d: expected mapping or list", value.Line)
	}
}

// MarshalYAML implements yaml.Marshaler, writing keys in insertion order.
func (t *Tree) MarshalYAML() (any, error) {
	return encodeNode(t.root), nil
}

func encodeNode(n *node) *yaml.Node {
	if n.bucket {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, obj := range n.objects {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: obj})
		}
		return seq
	}
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if len(n.keys) == 0 {
		m.Style = yaml.FlowStyle
	}
	for _, k := range n.keys {
		m.Content = append(m.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			encodeNode(n.children[k]),
		)
	}
	return m
}
