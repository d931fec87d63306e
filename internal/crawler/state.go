package crawler

import (
	"fmt"

	"github.com/ramkansal/routeguessr/internal/extractor"
)

// StateKind tags the position of an area walk.
type StateKind int

const (
	// AtArea: the page at Link has not been visited yet.
	AtArea StateKind = iota
	// Leaf: Link is an area without children; Doc is its parsed page.
	Leaf
	// Failed: the walk stopped with Err.
	Failed
)

func (k StateKind) String() string {
	switch k {
	case AtArea:
		return "at-area"
	case Leaf:
		return "leaf"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("StateKind(%d)", int(k))
	}
}

// State is the walker's explicit position. Progress lives here rather than
// on the call stack so every step can be bounded the same way.
type State struct {
	Kind StateKind
	Link string
	Doc  *extractor.Document
	Err  error
}

func atArea(link string) State { return State{Kind: AtArea, Link: link} }

func leaf(link string, doc *extractor.Document) State {
	return State{Kind: Leaf, Link: link, Doc: doc}
}

func failed(link string, err error) State { return State{Kind: Failed, Link: link, Err: err} }
