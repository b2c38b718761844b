package oscjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// Access is the OSCQuery ACCESS attribute of a node.
type Access int

const (
	AccessNoValue   Access = 0
	AccessReadOnly  Access = 1
	AccessWriteOnly Access = 2
	AccessReadWrite Access = 3
)

// String returns the access mode name
func (a Access) String() string {
	switch a {
	case AccessNoValue:
		return "none"
	case AccessReadOnly:
		return "read"
	case AccessWriteOnly:
		return "write"
	case AccessReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// Node is one entry of an OSC namespace tree. It is either a *Container or a
// *Leaf; no other implementations exist.
type Node interface {
	json.Marshaler

	// Path returns the node's FULL_PATH.
	Path() string
	// AccessMode returns the node's ACCESS attribute.
	AccessMode() Access

	node()
}

// Container is a node with children. Its VALUE is always absent.
type Container struct {
	FullPath    string
	Access      Access
	Description string
	Contents    map[string]Node
}

// Leaf is a node without children. Value may be nil.
type Leaf struct {
	FullPath    string
	Access      Access
	Description string
	Type        string
	Value       []any
	Range       json.RawMessage
}

func (c *Container) Path() string { return c.FullPath }

func (c *Container) AccessMode() Access { return c.Access }

func (*Container) node() {}

func (l *Leaf) Path() string { return l.FullPath }

func (l *Leaf) AccessMode() Access { return l.Access }

func (*Leaf) node() {}

// NewContainer returns an empty container at fullPath.
func NewContainer(fullPath string, access Access) *Container {
	return &Container{
		FullPath: fullPath,
		Access:   access,
		Contents: make(map[string]Node),
	}
}

// Add inserts child under the last element of its FULL_PATH and returns c.
func (c *Container) Add(child Node) *Container {
	if c.Contents == nil {
		c.Contents = make(map[string]Node)
	}
	c.Contents[path.Base(child.Path())] = child
	return c
}

// DefaultRoot is the namespace this library serves: the root container with
// an empty /avatar container, which asks peers to send avatar traffic to the
// advertised OSC port.
func DefaultRoot() *Container {
	return NewContainer("/", AccessNoValue).
		Add(NewContainer("/avatar", AccessWriteOnly))
}

// Lookup finds the node at fullPath below root.
func Lookup(root Node, fullPath string) (Node, bool) {
	fullPath = "/" + strings.Trim(fullPath, "/")
	if fullPath == "/" {
		return root, true
	}

	current := root
	for _, part := range strings.Split(strings.TrimPrefix(fullPath, "/"), "/") {
		c, ok := current.(*Container)
		if !ok {
			return nil, false
		}
		child, ok := c.Contents[part]
		if !ok {
			return nil, false
		}
		current = child
	}
	return current, true
}

type containerWire struct {
	FullPath    string          `json:"FULL_PATH"`
	Access      Access          `json:"ACCESS"`
	Description string          `json:"DESCRIPTION,omitempty"`
	Contents    map[string]Node `json:"CONTENTS"`
}

type leafWire struct {
	FullPath    string          `json:"FULL_PATH"`
	Access      Access          `json:"ACCESS"`
	Description string          `json:"DESCRIPTION,omitempty"`
	Type        string          `json:"TYPE,omitempty"`
	Value       []any           `json:"VALUE,omitempty"`
	Range       json.RawMessage `json:"RANGE,omitempty"`
}

// MarshalJSON always emits CONTENTS, even when empty, so the node reads back
// as a container.
func (c *Container) MarshalJSON() ([]byte, error) {
	contents := c.Contents
	if contents == nil {
		contents = map[string]Node{}
	}
	return json.Marshal(containerWire{
		FullPath:    c.FullPath,
		Access:      c.Access,
		Description: c.Description,
		Contents:    contents,
	})
}

// MarshalJSON never emits CONTENTS.
func (l *Leaf) MarshalJSON() ([]byte, error) {
	return json.Marshal(leafWire{
		FullPath:    l.FullPath,
		Access:      l.Access,
		Description: l.Description,
		Type:        l.Type,
		Value:       l.Value,
		Range:       l.Range,
	})
}

// nodeWire is the union of both node shapes as they appear on the wire.
type nodeWire struct {
	FullPath    string                     `json:"FULL_PATH"`
	Access      Access                     `json:"ACCESS"`
	Description string                     `json:"DESCRIPTION"`
	Type        string                     `json:"TYPE"`
	Contents    map[string]json.RawMessage `json:"CONTENTS"`
	Value       json.RawMessage            `json:"VALUE"`
	Range       json.RawMessage            `json:"RANGE"`
}

// DecodeNode parses a namespace document. A node with a non-null CONTENTS
// object becomes a *Container (any VALUE next to it is dropped); every other
// node becomes a *Leaf.
func DecodeNode(data []byte) (Node, error) {
	return decodeNode(data, "/")
}

func decodeNode(data []byte, fallbackPath string) (Node, error) {
	var wire nodeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse node %s: %w", fallbackPath, err)
	}

	fullPath := wire.FullPath
	if fullPath == "" {
		fullPath = fallbackPath
	}

	if wire.Contents != nil {
		c := &Container{
			FullPath:    fullPath,
			Access:      wire.Access,
			Description: wire.Description,
			Contents:    make(map[string]Node, len(wire.Contents)),
		}
		for name, raw := range wire.Contents {
			child, err := decodeNode(raw, path.Join(fullPath, name))
			if err != nil {
				return nil, err
			}
			c.Contents[name] = child
		}
		return c, nil
	}

	value, err := decodeValue(wire.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse VALUE of %s: %w", fullPath, err)
	}

	return &Leaf{
		FullPath:    fullPath,
		Access:      wire.Access,
		Description: wire.Description,
		Type:        wire.Type,
		Value:       value,
		Range:       wire.Range,
	}, nil
}

// decodeValue accepts the array form OSCQuery specifies and, for lenient
// peers, a bare scalar which is wrapped into a one-element array.
func decodeValue(raw json.RawMessage) ([]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '[' {
		var values []any
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, err
		}
		return values, nil
	}

	var scalar any
	if err := json.Unmarshal(raw, &scalar); err != nil {
		return nil, err
	}
	return []any{scalar}, nil
}
