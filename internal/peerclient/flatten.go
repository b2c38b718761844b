package peerclient

import (
	"errors"
	"maps"
	"net/netip"
	"slices"

	"github.com/muurk/oscquery/internal/oscjson"
)

const (
	// ParametersPath is the subtree flattened into a Snapshot
	ParametersPath = "/avatar/parameters"

	// AvatarChangePath holds the id of the active avatar
	AvatarChangePath = "/avatar/change"
)

// ErrNoParameters is returned when a tree has no /avatar/parameters container.
var ErrNoParameters = errors.New("namespace has no " + ParametersPath + " container")

// Snapshot is one flattened view of a peer's avatar parameters.
type Snapshot struct {
	// Peer is the HTTP endpoint the tree was fetched from
	Peer netip.AddrPort

	// AvatarID is the first VALUE of /avatar/change, or "" when absent
	AvatarID string

	// Parameters maps every leaf FULL_PATH below /avatar/parameters to the
	// first element of its VALUE, or nil when the leaf has none
	Parameters map[string]any
}

// Names returns the parameter paths in sorted order.
func (s *Snapshot) Names() []string {
	return slices.Sorted(maps.Keys(s.Parameters))
}

// Flatten walks root's /avatar/parameters subtree into a Snapshot. An empty
// parameters container yields an empty map; a missing one is an error.
func Flatten(peer netip.AddrPort, root oscjson.Node) (*Snapshot, error) {
	node, ok := oscjson.Lookup(root, ParametersPath)
	if !ok {
		return nil, ErrNoParameters
	}
	params, ok := node.(*oscjson.Container)
	if !ok {
		return nil, ErrNoParameters
	}

	snapshot := &Snapshot{
		Peer:       peer,
		AvatarID:   avatarID(root),
		Parameters: make(map[string]any),
	}
	flatten(params, snapshot.Parameters)

	return snapshot, nil
}

func flatten(node oscjson.Node, out map[string]any) {
	switch n := node.(type) {
	case *oscjson.Leaf:
		var value any
		if len(n.Value) > 0 {
			value = n.Value[0]
		}
		out[n.FullPath] = value
	case *oscjson.Container:
		// sorted so a duplicated FULL_PATH resolves the same way every time
		for _, name := range slices.Sorted(maps.Keys(n.Contents)) {
			flatten(n.Contents[name], out)
		}
	}
}

func avatarID(root oscjson.Node) string {
	node, ok := oscjson.Lookup(root, AvatarChangePath)
	if !ok {
		return ""
	}
	leaf, ok := node.(*oscjson.Leaf)
	if !ok || len(leaf.Value) == 0 {
		return ""
	}
	id, _ := leaf.Value[0].(string)
	return id
}
