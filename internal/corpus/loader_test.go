package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Locação de Veículos/etp-2023.md", "# ETP Locação de Veículos\n\nRequisitos...")
	writeFile(t, dir, "avulso.txt", "\n\nTermo de referência\ncorpo")
	writeFile(t, dir, "scan.pdf", "%PDF-1.4")
	writeFile(t, dir, ".git/config", "ignored")

	docs, err := Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "Locação de Veículos/etp-2023.md", docs[0].Path)
	assert.Equal(t, "ETP Locação de Veículos", docs[0].Title)
	assert.Equal(t, "markdown", docs[0].SourceType)
	assert.Equal(t, "locacao-de-veiculos", docs[0].ObjectiveSlug)
	assert.Equal(t, DocumentID("Locação de Veículos/etp-2023.md"), docs[0].ID)

	assert.Equal(t, "avulso.txt", docs[1].Path)
	assert.Equal(t, "Termo de referência", docs[1].Title)
	assert.Equal(t, "text", docs[1].SourceType)
	assert.Equal(t, DefaultObjective, docs[1].ObjectiveSlug)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "bad.txt", string([]byte{0xff, 0xfe, 0xfd}))
	_, err = Load(context.Background(), dir)
	assert.ErrorContains(t, err, "UTF-8")
}

func TestLoad_EmptyDir(t *testing.T) {
	docs, err := Load(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIDsAreStable(t *testing.T) {
	assert.Equal(t, DocumentID("a/b.txt"), DocumentID("a/b.txt"))
	assert.NotEqual(t, DocumentID("a/b.txt"), DocumentID("a/c.txt"))
	assert.Len(t, DocumentID("x"), 16)
	assert.Equal(t, "abc#3", ChunkID("abc", 3))
}
