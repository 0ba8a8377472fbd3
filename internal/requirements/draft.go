package requirements

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/tokenizer"
)

const (
	maxDescriptionRunes = 240
	minStatementWords   = 3
	statementsPerChunk  = 3
)

// Candidate is a retrieved chunk offered as evidence for requirements.
type Candidate struct {
	Chunk         corpus.Chunk
	DocumentTitle string
	Score         float64
}

// Draft is an uncited item together with the candidates that support it.
type Draft struct {
	Item    Item
	Support []Candidate
}

var (
	listMarker = regexp.MustCompile(`^(?:[-*•–]|\d{1,3}[.)]|[a-zA-Z][)])\s+`)
	quantityRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(unidades?|un|licencas?|kits?|caixas?|pacotes?|resmas?|litros?|metros?|horas?|meses|mes|veiculos?|equipamentos?|postos?|diarias?)\b`)
)

// Drafts turns ranked candidates into at most maxItems draft items. Each
// candidate contributes up to three requirement-like statements in the
// order they appear; statements already drafted only add support.
func Drafts(candidates []Candidate, maxItems int) []Draft {
	var drafts []Draft
	seen := make(map[string]int)
	for _, c := range candidates {
		taken := 0
		for _, stmt := range Statements(c.Chunk.Text) {
			if taken == statementsPerChunk {
				break
			}
			key := strings.Join(tokenizer.Words(stmt), " ")
			if i, ok := seen[key]; ok {
				drafts[i].Support = appendSupport(drafts[i].Support, c)
				continue
			}
			if maxItems > 0 && len(drafts) == maxItems {
				continue
			}
			seen[key] = len(drafts)
			drafts = append(drafts, Draft{Item: ItemFromStatement(stmt), Support: []Candidate{c}})
			taken++
		}
	}
	for i := range drafts {
		drafts[i].Item.Position = i + 1
	}
	return drafts
}

func appendSupport(support []Candidate, c Candidate) []Candidate {
	for _, s := range support {
		if s.Chunk.ID == c.Chunk.ID {
			return support
		}
	}
	return append(support, c)
}

// Statements splits chunk text into requirement-like statements: list
// entries and sentences of at least three words. Headings are skipped.
func Statements(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isHeading(line) {
			continue
		}
		line = listMarker.ReplaceAllString(line, "")
		for _, sentence := range splitSentences(line) {
			if len(strings.Fields(sentence)) < minStatementWords {
				continue
			}
			out = append(out, Truncate(sentence, maxDescriptionRunes))
		}
	}
	return out
}

// ItemFromStatement builds an item, picking up a quantity and unit when
// the statement states one ("20 unidades", "12 meses").
func ItemFromStatement(stmt string) Item {
	it := Item{Description: stmt}
	if m := quantityRe.FindStringSubmatch(tokenizer.Fold(stmt)); m != nil {
		if q, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64); err == nil {
			it.Quantity = q
			it.Unit = m[2]
		}
	}
	return it
}

func isHeading(line string) bool {
	if strings.HasPrefix(line, "#") {
		return true
	}
	if utf8.RuneCountInString(line) > 80 {
		return false
	}
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters++
		}
	}
	return letters > 0
}

func splitSentences(line string) []string {
	var out []string
	start := 0
	runes := []rune(line)
	for i, r := range runes {
		end := false
		switch r {
		case ';':
			end = true
		case '.', '!', '?':
			end = i+1 == len(runes) || unicode.IsSpace(runes[i+1])
		}
		if !end {
			continue
		}
		if s := strings.TrimSpace(string(runes[start:i])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// Truncate cuts s to at most n runes, backing up to a word boundary and
// appending "..." when anything was cut.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := n
	for i := n; i > n/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + "..."
}
