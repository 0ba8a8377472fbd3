// Package requirements models the versioned requirement list a curation
// session edits, and the option paths offered when a necessity is
// ambiguous.
package requirements

import (
	"fmt"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
)

// Citation points at the passage that justifies an item.
type Citation struct {
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title,omitempty"`
	ChunkID       string  `json:"chunk_id"`
	Excerpt       string  `json:"excerpt"`
	Score         float64 `json:"score"`
}

// Item is one proposed requirement. Position is 1-based.
type Item struct {
	Position       int        `json:"position"`
	Description    string     `json:"description"`
	Unit           string     `json:"unit,omitempty"`
	Quantity       float64    `json:"quantity,omitempty"`
	UnableToRefine bool       `json:"unable_to_refine,omitempty"`
	Citations      []Citation `json:"citations"`
}

func (it Item) clone() Item {
	out := it
	out.Citations = append([]Citation(nil), it.Citations...)
	return out
}

// List is an ordered requirement list. Positions are always 1..len(Items).
type List struct {
	Items    []Item `json:"items"`
	Revision int    `json:"revision"`
}

// NewList numbers items in order, starting at revision 0.
func NewList(items []Item) List {
	l := List{Items: make([]Item, len(items))}
	for i, it := range items {
		l.Items[i] = it.clone()
	}
	l.renumber()
	return l
}

func (l List) Len() int { return len(l.Items) }

// Clone returns a deep copy sharing no slices with l.
func (l List) Clone() List {
	out := List{Revision: l.Revision, Items: make([]Item, len(l.Items))}
	for i, it := range l.Items {
		out.Items[i] = it.clone()
	}
	return out
}

// Item returns the item at a 1-based position.
func (l List) Item(position int) (Item, bool) {
	if position < 1 || position > len(l.Items) {
		return Item{}, false
	}
	return l.Items[position-1], true
}

// Remove drops the items at the given positions and renumbers the rest.
func (l *List) Remove(positions []int) error {
	drop, err := l.positionSet(positions)
	if err != nil {
		return err
	}
	l.filter(func(pos int) bool { _, gone := drop[pos]; return !gone })
	return nil
}

// RemoveRange drops positions start through end inclusive.
func (l *List) RemoveRange(start, end int) error {
	if start > end {
		start, end = end, start
	}
	positions := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		positions = append(positions, p)
	}
	return l.Remove(positions)
}

// KeepOnly drops every item not named in positions.
func (l *List) KeepOnly(positions []int) error {
	keep, err := l.positionSet(positions)
	if err != nil {
		return err
	}
	l.filter(func(pos int) bool { _, ok := keep[pos]; return ok })
	return nil
}

// Set replaces the item at position, keeping its position.
func (l *List) Set(position int, it Item) error {
	if position < 1 || position > len(l.Items) {
		return apperrors.Newf(apperrors.ErrInvalidInput, "position %d out of range 1..%d", position, len(l.Items))
	}
	it = it.clone()
	it.Position = position
	l.Items[position-1] = it
	return nil
}

// Bump records one successful edit.
func (l *List) Bump() {
	l.Revision++
}

func (l *List) positionSet(positions []int) (map[int]struct{}, error) {
	if len(positions) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "no positions given")
	}
	set := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		if p < 1 || p > len(l.Items) {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "position %d out of range 1..%d", p, len(l.Items))
		}
		set[p] = struct{}{}
	}
	return set, nil
}

func (l *List) filter(keep func(pos int) bool) {
	kept := l.Items[:0:0]
	for _, it := range l.Items {
		if keep(it.Position) {
			kept = append(kept, it)
		}
	}
	l.Items = kept
	l.renumber()
}

func (l *List) renumber() {
	for i := range l.Items {
		l.Items[i].Position = i + 1
	}
}

// OptionPath is one framing of an ambiguous necessity with its own list.
type OptionPath struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Framing  string   `json:"framing"`
	Pros     []string `json:"pros"`
	Cons     []string `json:"cons"`
	Guidance string   `json:"guidance"`
	Notes    string   `json:"notes,omitempty"`
	// Support is the share of retrieved candidates attributed to Framing.
	Support float64 `json:"support"`
	List    List    `json:"list"`
}

func (o OptionPath) Clone() OptionPath {
	out := o
	out.Pros = append([]string(nil), o.Pros...)
	out.Cons = append([]string(nil), o.Cons...)
	out.List = o.List.Clone()
	return out
}

// FindOption returns the option with the given ID.
func FindOption(options []OptionPath, id string) (OptionPath, bool) {
	for _, o := range options {
		if o.ID == id {
			return o, true
		}
	}
	return OptionPath{}, false
}

// OptionIDs lists option IDs in sorted order, for messages.
func OptionIDs(options []OptionPath) []string {
	ids := make([]string, len(options))
	for i, o := range options {
		ids[i] = o.ID
	}
	sort.Strings(ids)
	return ids
}

func (l List) String() string {
	return fmt.Sprintf("List(rev=%d, items=%d)", l.Revision, len(l.Items))
}
