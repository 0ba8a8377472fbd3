package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/tokenizer"
)

// DefaultObjective is the objective slug of documents at the corpus root.
const DefaultObjective = "geral"

var sourceTypes = map[string]string{
	".txt":      "text",
	".md":       "markdown",
	".markdown": "markdown",
}

// Load walks dir and returns every supported text document sorted by
// relative path. Files of other types (e.g. PDF awaiting conversion) are
// skipped; invalid UTF-8 is an error. The first directory level under dir
// names the document's objective.
func Load(ctx context.Context, dir string) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus path %s is not a directory", dir)
	}

	var docs []Document
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		sourceType, ok := sourceTypes[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		if !utf8.Valid(data) {
			return fmt.Errorf("reading %s: not valid UTF-8", rel)
		}
		text := string(data)
		docs = append(docs, Document{
			ID:            DocumentID(rel),
			Title:         titleOf(text, rel),
			SourceType:    sourceType,
			ObjectiveSlug: objectiveOf(rel),
			Path:          rel,
			Text:          text,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking corpus: %w", err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

func titleOf(text, rel string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return line
		}
	}
	base := filepath.Base(rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func objectiveOf(rel string) string {
	parts := strings.Split(rel, "/")
	if len(parts) < 2 {
		return DefaultObjective
	}
	return Slug(parts[0])
}

// Slug folds s to lower-case ASCII words joined by '-'.
func Slug(s string) string {
	words := strings.FieldsFunc(tokenizer.Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return DefaultObjective
	}
	return strings.Join(words, "-")
}
