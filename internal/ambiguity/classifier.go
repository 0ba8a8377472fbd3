// Package ambiguity decides whether a stated necessity resolves to one
// acquisition path (compra, locação, comodato, serviço) or has to be split
// into alternative option paths for the operator to pick from.
package ambiguity

import (
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/citation"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/requirements"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/retriever"
)

const DefaultMinSupport = 0.25

// Decision is either Resolved, with a single list, or ambiguous, with two
// or more Options.
type Decision struct {
	// Framing is the resolved acquisition path, empty when none could be
	// told apart or the decision is ambiguous.
	Framing    string
	ObjectType string
	Resolved   *requirements.List
	Options    []requirements.OptionPath
}

func (d Decision) Ambiguous() bool {
	return d.Resolved == nil
}

type Classifier struct {
	MinSupport float64
	MaxItems   int
	Tracker    citation.Tracker
	logger     *slog.Logger
}

func New(minSupport float64, maxItems int, tracker citation.Tracker) *Classifier {
	if minSupport <= 0 || minSupport > 1 {
		minSupport = DefaultMinSupport
	}
	return &Classifier{
		MinSupport: minSupport,
		MaxItems:   maxItems,
		Tracker:    tracker,
		logger:     slog.Default().With("component", "ambiguity-classifier"),
	}
}

// Classify attributes each candidate to the framing its text names most
// often. A necessity that itself names one framing resolves to it. If two
// or more framings reach MinSupport the decision is ambiguous and every
// such framing becomes an option built from its own candidates plus the
// neutral ones. Otherwise the best-supported framing is resolved. The
// result depends only on the inputs.
func (c *Classifier) Classify(necessity string, candidates []retriever.Result) Decision {
	objectType := DetectObjectType(necessity)
	attributed, counts := attribute(candidates)

	if framing := DetectFraming(necessity); framing != "" {
		c.logger.Debug("framing named by necessity", "framing", framing)
		return c.resolved(framing, objectType, pick(candidates, attributed, framing))
	}

	support := make(map[string]float64, len(framingOrder))
	var qualifying []string
	if len(candidates) > 0 {
		for _, f := range framingOrder {
			support[f] = float64(counts[f]) / float64(len(candidates))
			if support[f] < c.MinSupport {
				continue
			}
			if f == FramingComodato && !comodatoApplies(objectType) {
				continue
			}
			qualifying = append(qualifying, f)
		}
	}

	if len(qualifying) >= 2 {
		options := make([]requirements.OptionPath, 0, len(qualifying))
		for _, f := range qualifying {
			list := c.list(pick(candidates, attributed, f))
			options = append(options, optionPath(f, objectType, support[f], list))
		}
		c.logger.Info("necessity is ambiguous", "options", len(options), "object_type", objectType)
		return Decision{ObjectType: objectType, Options: options}
	}

	best := ""
	for _, f := range framingOrder {
		if f == FramingComodato && !comodatoApplies(objectType) {
			continue
		}
		if counts[f] > counts[best] {
			best = f
		}
	}
	return c.resolved(best, objectType, pick(candidates, attributed, best))
}

func (c *Classifier) resolved(framing, objectType string, cands []retriever.Result) Decision {
	list := c.list(cands)
	return Decision{Framing: framing, ObjectType: objectType, Resolved: &list}
}

func (c *Classifier) list(cands []retriever.Result) requirements.List {
	return c.Tracker.List(requirements.Drafts(retriever.Candidates(cands), c.MaxItems))
}

// attribute maps each candidate chunk to the framing its title and text
// name, "" for neutral candidates (no framing, or a tie), and counts the
// candidates per framing.
func attribute(candidates []retriever.Result) (map[string]string, map[string]int) {
	attributed := make(map[string]string, len(candidates))
	counts := make(map[string]int, len(framingOrder))
	for _, cand := range candidates {
		f := DetectFraming(cand.DocumentTitle + "\n" + cand.Chunk.Text)
		attributed[cand.Chunk.ID] = f
		if f != "" {
			counts[f]++
		}
	}
	return attributed, counts
}

// pick returns, in retrieval order, the candidates attributed to framing
// plus the neutral ones. An empty framing, or a selection that would be
// empty, keeps every candidate.
func pick(candidates []retriever.Result, attributed map[string]string, framing string) []retriever.Result {
	if framing == "" {
		return candidates
	}
	out := make([]retriever.Result, 0, len(candidates))
	for _, cand := range candidates {
		if f := attributed[cand.Chunk.ID]; f == framing || f == "" {
			out = append(out, cand)
		}
	}
	if len(out) == 0 {
		return candidates
	}
	return out
}
