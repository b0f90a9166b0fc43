// Package treefile loads behaviour trees from YAML documents.
//
// A document names the initial blackboard, an optional tick rate and the
// top-level children:
//
//	name: ballfetch
//	rate: 2
//	blackboard:
//	  HAS_BALL: false
//	tree:
//	  - type: sequence
//	    name: root
//	    children:
//	      - type: fallback
//	        children:
//	          - type: condition
//	            expr: HAS_BALL == true
//	          - type: action
//	            call: getBall
//	            set: {HAS_BALL: true}
//
// Condition nodes carry exactly one of expr (expr-lang), script
// (JavaScript) or call (a registered predicate). Action nodes carry at most
// one of script or call, plus an optional set map written to the blackboard
// whenever the action succeeds; an action with only a set map always
// succeeds. A script action marked async may return a promise and stays
// busy until it settles. Everything is checked when the document is built, never at
// tick time.
package treefile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node types.
const (
	TypeSequence  = "sequence"
	TypeFallback  = "fallback"
	TypeCondition = "condition"
	TypeAction    = "action"
)

var (
	// ErrInvalidNode is returned for a node whose fields do not fit its type.
	ErrInvalidNode = errors.New("treefile: invalid node")
	// ErrUnknownCall is returned for a call not present in the registry.
	ErrUnknownCall = errors.New("treefile: unknown call")
)

// Document is a parsed tree file.
type Document struct {
	Name       string         `yaml:"name"`
	Rate       float64        `yaml:"rate"`
	Blackboard map[string]any `yaml:"blackboard"`
	Tree       []Node         `yaml:"tree"`
}

// Node describes one tree node.
type Node struct {
	Type     string         `yaml:"type"`
	Name     string         `yaml:"name"`
	Children []Node         `yaml:"children"`
	Expr     string         `yaml:"expr"`
	Script   string         `yaml:"script"`
	Call     string         `yaml:"call"`
	Set      map[string]any `yaml:"set"`
	// Async runs a script action on the script event loop.
	Async bool `yaml:"async"`
}

// Parse decodes and validates a document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("treefile: document is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("treefile: decode document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("treefile: read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("treefile: %s: %w", path, err)
	}
	return doc, nil
}

// Validate checks the structure of every node.
func (d *Document) Validate() error {
	if d.Rate < 0 {
		return fmt.Errorf("treefile: rate must not be negative: %v", d.Rate)
	}
	for i := range d.Tree {
		if err := d.Tree[i].validate(fmt.Sprintf("tree[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) validate(path string) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidNode, path, fmt.Sprintf(format, args...))
	}
	switch n.Type {
	case TypeSequence, TypeFallback:
		if n.Expr != "" || n.Script != "" || n.Call != "" || n.Set != nil || n.Async {
			return fail("%s takes only name and children", n.Type)
		}
		for i := range n.Children {
			if err := n.Children[i].validate(fmt.Sprintf("%s/children[%d]", path, i)); err != nil {
				return err
			}
		}
	case TypeCondition:
		if n.Children != nil || n.Set != nil || n.Async {
			return fail("condition takes no children, set or async")
		}
		if count(n.Expr, n.Script, n.Call) != 1 {
			return fail("condition needs exactly one of expr, script or call")
		}
	case TypeAction:
		if n.Children != nil || n.Expr != "" {
			return fail("action takes no children or expr")
		}
		switch count(n.Script, n.Call) {
		case 0:
			if len(n.Set) == 0 {
				return fail("action needs script, call or set")
			}
		case 2:
			return fail("action takes at most one of script or call")
		}
		if n.Async && n.Script == "" {
			return fail("async applies to script actions only")
		}
	case "":
		return fail("missing type")
	default:
		return fail("unknown type %q", n.Type)
	}
	return nil
}

func count(values ...string) (n int) {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
