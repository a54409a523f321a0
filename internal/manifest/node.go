// Package manifest converts YAML content manifests into an ordered key/value
// tree and provides the field helpers used by the per-entity decoders.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Node is one key in the manifest tree. Scalars carry Value; mappings and
// sequences carry Nodes in document order. Sequence children are keyed by
// their index.
type Node struct {
	Key      string
	Value    string
	Nodes    []*Node
	Sequence bool
	Line     int
}

// Get returns the first child with the given key, or nil.
func (n *Node) Get(key string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Nodes {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// Has reports whether n has a child with the given key.
func (n *Node) Has(key string) bool {
	return n.Get(key) != nil
}

// LoadYAML parses a single YAML document into a tree rooted at an unnamed node.
func LoadYAML(r io.Reader) (*Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Node{}, nil
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	root := &Node{Line: doc.Line}
	if err := fill(root, &doc); err != nil {
		return nil, err
	}
	return root, nil
}

// LoadFile parses the manifest at path.
func LoadFile(fs afero.Fs, path string) (*Node, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	root, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}

func fill(dst *Node, src *yaml.Node) error {
	switch src.Kind {
	case yaml.DocumentNode:
		if len(src.Content) == 0 {
			return nil
		}
		return fill(dst, src.Content[0])
	case yaml.AliasNode:
		return fill(dst, src.Alias)
	case yaml.ScalarNode:
		if src.Tag != "!!null" {
			dst.Value = src.Value
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(src.Content); i += 2 {
			k, v := src.Content[i], src.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			child := &Node{Key: k.Value, Line: k.Line}
			if err := fill(child, v); err != nil {
				return err
			}
			dst.Nodes = append(dst.Nodes, child)
		}
	case yaml.SequenceNode:
		dst.Sequence = true
		for i, item := range src.Content {
			child := &Node{Key: strconv.Itoa(i), Line: item.Line}
			if err := fill(child, item); err != nil {
				return err
			}
			dst.Nodes = append(dst.Nodes, child)
		}
	}
	return nil
}
