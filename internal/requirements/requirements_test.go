package requirements

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
)

func listOf(n int) List {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			Description: fmt.Sprintf("item %d", i+1),
			Citations:   []Citation{{DocumentID: "d", ChunkID: fmt.Sprintf("d#%d", i)}},
		}
	}
	return NewList(items)
}

func descriptions(l List) []string {
	out := make([]string, len(l.Items))
	for i, it := range l.Items {
		out[i] = it.Description
	}
	return out
}

func assertContiguous(t *testing.T, l List) {
	t.Helper()
	for i, it := range l.Items {
		assert.Equal(t, i+1, it.Position)
	}
}

func TestRemove_RenumbersContiguously(t *testing.T) {
	l := listOf(5)
	require.NoError(t, l.Remove([]int{2, 4}))

	assert.Equal(t, []string{"item 1", "item 3", "item 5"}, descriptions(l))
	assertContiguous(t, l)
}

func TestRemoveRange(t *testing.T) {
	l := listOf(5)
	require.NoError(t, l.RemoveRange(4, 2))
	assert.Equal(t, []string{"item 1", "item 5"}, descriptions(l))
	assertContiguous(t, l)
}

func TestKeepOnly(t *testing.T) {
	l := listOf(5)
	require.NoError(t, l.KeepOnly([]int{3, 1, 3}))
	assert.Equal(t, []string{"item 1", "item 3"}, descriptions(l))
	assertContiguous(t, l)
}

func TestEdits_RejectOutOfRange(t *testing.T) {
	l := listOf(3)
	for name, edit := range map[string]func() error{
		"remove":     func() error { return l.Remove([]int{4}) },
		"remove 0":   func() error { return l.Remove([]int{0}) },
		"range":      func() error { return l.RemoveRange(2, 9) },
		"keep none":  func() error { return l.KeepOnly(nil) },
		"set beyond": func() error { return l.Set(4, Item{}) },
	} {
		err := edit()
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, name)
	}
	assert.Equal(t, 3, l.Len())
	assertContiguous(t, l)
}

func TestSequencesOfDeletionsStayContiguous(t *testing.T) {
	l := listOf(12)
	require.NoError(t, l.Remove([]int{1, 12}))
	require.NoError(t, l.RemoveRange(3, 5))
	require.NoError(t, l.KeepOnly([]int{1, 2, 4, 6}))
	require.NoError(t, l.Remove([]int{2}))

	assert.Equal(t, 3, l.Len())
	assertContiguous(t, l)
}

func TestClone_IsDeep(t *testing.T) {
	l := listOf(2)
	c := l.Clone()
	c.Items[0].Description = "changed"
	c.Items[0].Citations[0].Excerpt = "changed"
	require.NoError(t, c.Remove([]int{2}))
	c.Bump()

	assert.Equal(t, "item 1", l.Items[0].Description)
	assert.Empty(t, l.Items[0].Citations[0].Excerpt)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, 0, l.Revision)
	assert.Equal(t, 1, c.Revision)
}

func TestSet_KeepsPosition(t *testing.T) {
	l := listOf(3)
	require.NoError(t, l.Set(2, Item{Position: 9, Description: "novo"}))
	it, ok := l.Item(2)
	require.True(t, ok)
	assert.Equal(t, "novo", it.Description)
	assert.Equal(t, 2, it.Position)
}

func TestFindOption(t *testing.T) {
	opts := []OptionPath{{ID: "opt_locacao"}, {ID: "opt_compra"}}
	o, ok := FindOption(opts, "opt_compra")
	assert.True(t, ok)
	assert.Equal(t, "opt_compra", o.ID)
	_, ok = FindOption(opts, "opt_x")
	assert.False(t, ok)
	assert.Equal(t, []string{"opt_compra", "opt_locacao"}, OptionIDs(opts))
}
