package command

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/tokenizer"
)

type intent int

const (
	intentNone intent = iota
	intentRemove
	intentReplace
	intentKeep
	intentConfirm
)

// Vocabulary is matched against folded words, so accents and case do not
// matter.
var verbs = map[string]intent{
	"remova": intentRemove, "remove": intentRemove, "remover": intentRemove,
	"apaga": intentRemove, "apague": intentRemove, "apagar": intentRemove,
	"exclui": intentRemove, "exclua": intentRemove, "excluir": intentRemove,
	"tira": intentRemove, "tire": intentRemove, "tirar": intentRemove,
	"retira": intentRemove, "retire": intentRemove, "retirar": intentRemove,
	"elimina": intentRemove, "elimine": intentRemove,
	"delete": intentRemove, "deleta": intentRemove,

	"substitui": intentReplace, "substitua": intentReplace, "substituir": intentReplace,
	"troca": intentReplace, "troque": intentReplace, "trocar": intentReplace,
	"refaz": intentReplace, "refaca": intentReplace, "refazer": intentReplace,
	"regenera": intentReplace, "regenere": intentReplace, "regenerar": intentReplace,
	"replace": intentReplace,

	"mantem": intentKeep, "mantenha": intentKeep, "manter": intentKeep,
	"deixa": intentKeep, "deixe": intentKeep,
	"fica": intentKeep, "ficam": intentKeep, "fique": intentKeep, "fiquem": intentKeep,
	"keep": intentKeep,

	"confirmo": intentConfirm, "confirma": intentConfirm, "confirmar": intentConfirm,
	"confirmado": intentConfirm, "ok": intentConfirm, "aprovado": intentConfirm,
	"aprovo": intentConfirm, "finaliza": intentConfirm, "finalizar": intentConfirm,
}

// Qualifiers that mean keep-only when no verb is given ("apenas 1 e 3").
var keepQualifiers = map[string]struct{}{
	"apenas": {}, "somente": {}, "so": {}, "only": {},
}

var confirmPhrases = [][2]string{{"pode", "seguir"}, {"pode", "finalizar"}, {"esta", "aprovado"}}

// segmentRe finds position references: "entre X e Y", ranges such as
// "X a Y", "X ao Y", "X até Y", "X-Y" (optionally "do item X ao item Y"),
// and single numbers. Leftmost alternatives win, so ranges are tried
// before single numbers.
var segmentRe = regexp.MustCompile(
	`entre\s+(?:os?\s+)?(?:ite(?:m|ns)\s+)?(\d+)\s+e\s+(?:o\s+)?(?:ite(?:m|ns)\s+)?(\d+)` +
		`|(\d+)\s*(?:-|–|ate|ao|a)\s*(?:o\s+)?(?:ite(?:m|ns)\s+)?(\d+)` +
		`|(\d+)`,
)

// decimalRe spots "2.5" or "2,5", which name no single position.
var decimalRe = regexp.MustCompile(`\d[.,]\d`)

// Positions spelled out in words cannot be resolved, and applying the
// numeric part alone would edit the wrong items.
var numberWords = map[string]struct{}{
	"um": {}, "uma": {}, "dois": {}, "duas": {}, "tres": {}, "quatro": {},
	"cinco": {}, "seis": {}, "sete": {}, "oito": {}, "nove": {}, "dez": {},
	"onze": {}, "doze": {}, "treze": {}, "quatorze": {}, "catorze": {},
	"quinze": {}, "vinte": {},
	"primeiro": {}, "primeira": {}, "primeiros": {}, "primeiras": {},
	"segundo": {}, "segunda": {}, "terceiro": {}, "terceira": {},
	"quarto": {}, "quarta": {}, "quinto": {}, "quinta": {},
	"sexto": {}, "sexta": {}, "setimo": {}, "setima": {},
	"oitavo": {}, "oitava": {}, "nono": {}, "nona": {}, "decimo": {}, "decima": {},
	"ultimo": {}, "ultima": {}, "ultimos": {}, "ultimas": {},
	"penultimo": {}, "penultima": {}, "antepenultimo": {}, "antepenultima": {},
}

type segment struct {
	start, end int
}

// Parse interprets utterance against a list of listSize items.
func Parse(utterance string, listSize int) Command {
	words := tokenizer.Words(utterance)
	in, at := detectIntent(words)
	if in == intentNone {
		return Unrecognized{Reason: "no recognized instruction"}
	}
	if at > 0 && words[at-1] == "nao" {
		return Unrecognized{Reason: "negated instruction"}
	}

	if in == intentConfirm {
		return Confirm{}
	}
	if mixedIntents(words, in) {
		return Unrecognized{Reason: "more than one kind of edit requested"}
	}
	for _, w := range words {
		if _, ok := numberWords[w]; ok {
			return Unrecognized{Reason: fmt.Sprintf("position %q must be given as a number", w)}
		}
	}
	folded := tokenizer.Fold(utterance)
	if decimalRe.MatchString(folded) {
		return Unrecognized{Reason: "positions must be whole numbers"}
	}

	segments := findSegments(folded)
	if len(segments) == 0 {
		return Unrecognized{Reason: "no item positions given"}
	}
	for _, s := range segments {
		for _, p := range []int{s.start, s.end} {
			if p < 1 || p > listSize {
				return Unrecognized{Reason: fmt.Sprintf("position %d is outside 1..%d", p, listSize)}
			}
		}
	}

	if in == intentRemove && len(segments) == 1 && segments[0].start != segments[0].end {
		return RemoveRange{Start: segments[0].start, End: segments[0].end}
	}
	positions := expand(segments)
	switch in {
	case intentRemove:
		return Remove{Positions: positions}
	case intentReplace:
		return Replace{Positions: positions}
	default:
		return KeepOnly{Positions: positions}
	}
}

// detectIntent returns the first positional verb in words, else a confirm
// word or phrase, else a bare keep qualifier, along with its word index.
// A positional verb outranks confirmation so "ok, remova 2" removes.
func detectIntent(words []string) (intent, int) {
	confirmAt := -1
	for i, w := range words {
		switch in := verbs[w]; in {
		case intentRemove, intentReplace, intentKeep:
			return in, i
		case intentConfirm:
			if confirmAt < 0 {
				confirmAt = i
			}
		}
		if confirmAt < 0 && i+1 < len(words) {
			for _, p := range confirmPhrases {
				if w == p[0] && words[i+1] == p[1] {
					confirmAt = i
				}
			}
		}
	}
	if confirmAt >= 0 {
		return intentConfirm, confirmAt
	}
	for i, w := range words {
		if _, ok := keepQualifiers[w]; ok {
			return intentKeep, i
		}
	}
	return intentNone, -1
}

// mixedIntents reports whether words carry a positional verb of a kind
// other than in, as in "remova 2 e mantenha o 4".
func mixedIntents(words []string, in intent) bool {
	for _, w := range words {
		switch v := verbs[w]; v {
		case intentRemove, intentReplace, intentKeep:
			if v != in {
				return true
			}
		}
	}
	return false
}

func findSegments(folded string) []segment {
	var out []segment
	for _, m := range segmentRe.FindAllStringSubmatch(folded, -1) {
		switch {
		case m[1] != "":
			out = append(out, newSegment(m[1], m[2]))
		case m[3] != "":
			out = append(out, newSegment(m[3], m[4]))
		default:
			out = append(out, newSegment(m[5], m[5]))
		}
	}
	return out
}

// newSegment orders the bounds so "do 4 ao 2" means 2..4. Numbers too
// large for an int become -1 and fail range validation.
func newSegment(a, b string) segment {
	x, y := atoi(a), atoi(b)
	if x > y && y >= 0 {
		x, y = y, x
	}
	return segment{start: x, end: y}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

func expand(segments []segment) []int {
	seen := make(map[int]struct{})
	for _, s := range segments {
		for p := s.start; p <= s.end; p++ {
			seen[p] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
