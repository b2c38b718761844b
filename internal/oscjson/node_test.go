package oscjson

import (
	"encoding/json"
	"strings"
	"testing"
)

const vrchatTree = `{
  "DESCRIPTION": "root node",
  "FULL_PATH": "/",
  "ACCESS": 0,
  "CONTENTS": {
    "avatar": {
      "FULL_PATH": "/avatar",
      "ACCESS": 2,
      "CONTENTS": {
        "change": {
          "FULL_PATH": "/avatar/change",
          "ACCESS": 3,
          "TYPE": "s",
          "VALUE": ["avtr_1234"]
        },
        "parameters": {
          "FULL_PATH": "/avatar/parameters",
          "ACCESS": 2,
          "CONTENTS": {
            "MuteSelf": {
              "FULL_PATH": "/avatar/parameters/MuteSelf",
              "ACCESS": 3,
              "TYPE": "T",
              "VALUE": [true]
            }
          }
        }
      }
    }
  }
}`

func TestDecodeNode_Tree(t *testing.T) {
	root, err := DecodeNode([]byte(vrchatTree))
	if err != nil {
		t.Fatalf("DecodeNode() error = %v", err)
	}

	c, ok := root.(*Container)
	if !ok {
		t.Fatalf("root is %T, want *Container", root)
	}
	if c.Description != "root node" {
		t.Errorf("Description = %q, want %q", c.Description, "root node")
	}

	node, ok := Lookup(root, "/avatar/parameters/MuteSelf")
	if !ok {
		t.Fatal("Lookup() did not find MuteSelf")
	}
	leaf, ok := node.(*Leaf)
	if !ok {
		t.Fatalf("MuteSelf is %T, want *Leaf", node)
	}
	if leaf.Type != "T" {
		t.Errorf("Type = %q, want T", leaf.Type)
	}
	if len(leaf.Value) != 1 || leaf.Value[0] != true {
		t.Errorf("Value = %v, want [true]", leaf.Value)
	}
	if leaf.AccessMode() != AccessReadWrite {
		t.Errorf("AccessMode() = %v, want %v", leaf.AccessMode(), AccessReadWrite)
	}
}

func TestDecodeNode_Shapes(t *testing.T) {
	tests := []struct {
		name          string
		doc           string
		wantContainer bool
		wantValue     []any
	}{
		{
			name:          "empty contents is a container",
			doc:           `{"FULL_PATH":"/a","CONTENTS":{}}`,
			wantContainer: true,
		},
		{
			name:      "null contents is a leaf",
			doc:       `{"FULL_PATH":"/a","CONTENTS":null,"VALUE":[1]}`,
			wantValue: []any{float64(1)},
		},
		{
			name: "null value leaf",
			doc:  `{"FULL_PATH":"/a","VALUE":null}`,
		},
		{
			name:      "scalar value is wrapped",
			doc:       `{"FULL_PATH":"/a","VALUE":"x"}`,
			wantValue: []any{"x"},
		},
		{
			name:          "contents wins over value",
			doc:           `{"FULL_PATH":"/a","CONTENTS":{},"VALUE":[1]}`,
			wantContainer: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := DecodeNode([]byte(tt.doc))
			if err != nil {
				t.Fatalf("DecodeNode() error = %v", err)
			}

			if tt.wantContainer {
				if _, ok := node.(*Container); !ok {
					t.Fatalf("node is %T, want *Container", node)
				}
				return
			}

			leaf, ok := node.(*Leaf)
			if !ok {
				t.Fatalf("node is %T, want *Leaf", node)
			}
			if len(leaf.Value) != len(tt.wantValue) {
				t.Fatalf("Value = %v, want %v", leaf.Value, tt.wantValue)
			}
			for i := range tt.wantValue {
				if leaf.Value[i] != tt.wantValue[i] {
					t.Errorf("Value[%d] = %v, want %v", i, leaf.Value[i], tt.wantValue[i])
				}
			}
		})
	}
}

func TestDecodeNode_MissingFullPath(t *testing.T) {
	node, err := DecodeNode([]byte(`{"CONTENTS":{"avatar":{"CONTENTS":{"x":{}}}}}`))
	if err != nil {
		t.Fatalf("DecodeNode() error = %v", err)
	}

	x, ok := Lookup(node, "/avatar/x")
	if !ok {
		t.Fatal("Lookup() did not find /avatar/x")
	}
	if x.Path() != "/avatar/x" {
		t.Errorf("Path() = %q, want /avatar/x", x.Path())
	}
}

func TestDecodeNode_Malformed(t *testing.T) {
	if _, err := DecodeNode([]byte(`{"CONTENTS":`)); err == nil {
		t.Error("DecodeNode() should fail on truncated JSON")
	}
	if _, err := DecodeNode([]byte(`{"VALUE":[1,}`)); err == nil {
		t.Error("DecodeNode() should fail on a broken VALUE array")
	}
}

func TestDefaultRoot_JSON(t *testing.T) {
	data, err := json.Marshal(DefaultRoot())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"FULL_PATH":"/","ACCESS":0,"CONTENTS":{"avatar":{"FULL_PATH":"/avatar","ACCESS":2,"CONTENTS":{}}}}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	// Round trip keeps the container shape
	node, err := DecodeNode(data)
	if err != nil {
		t.Fatalf("DecodeNode() error = %v", err)
	}
	avatar, ok := Lookup(node, "avatar")
	if !ok {
		t.Fatal("Lookup(avatar) failed")
	}
	if _, ok := avatar.(*Container); !ok {
		t.Errorf("avatar is %T, want *Container", avatar)
	}
}

func TestLeaf_MarshalJSON(t *testing.T) {
	leaf := &Leaf{FullPath: "/avatar/parameters/AFK", Access: AccessReadOnly, Type: "T", Value: []any{false}}

	data, err := json.Marshal(leaf)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "CONTENTS") {
		t.Errorf("leaf JSON should not contain CONTENTS: %s", data)
	}
	if !strings.Contains(string(data), `"VALUE":[false]`) {
		t.Errorf("leaf JSON missing VALUE: %s", data)
	}
}

func TestLookup(t *testing.T) {
	root := DefaultRoot()

	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"", true},
		{"/avatar", true},
		{"/avatar/", true},
		{"/avatar/parameters", false},
		{"/missing", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if _, ok := Lookup(root, tt.path); ok != tt.want {
				t.Errorf("Lookup(%q) ok = %v, want %v", tt.path, ok, tt.want)
			}
		})
	}
}

func TestAccess_String(t *testing.T) {
	if AccessWriteOnly.String() != "write" {
		t.Errorf("AccessWriteOnly.String() = %q", AccessWriteOnly.String())
	}
	if Access(9).String() != "Access(9)" {
		t.Errorf("Access(9).String() = %q", Access(9).String())
	}
}
