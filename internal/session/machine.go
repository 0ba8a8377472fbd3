package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/ambiguity"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/citation"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/command"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/requirements"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/retriever"
	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/metrics"
)

// Retriever is the part of the hybrid retriever sessions need.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retriever.Result, error)
}

// Machine applies state transitions. Every transition works on a clone of
// the session and returns it only on success, so a rejected transition
// leaves the caller's session untouched.
type Machine struct {
	retriever  Retriever
	classifier *ambiguity.Classifier
	tracker    citation.Tracker
	topK       int
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *slog.Logger
}

type MachineOption func(*Machine)

func WithMachineMetrics(m *metrics.Metrics) MachineOption {
	return func(ma *Machine) { ma.metrics = m }
}

// WithClock overrides time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) MachineOption {
	return func(ma *Machine) { ma.now = now }
}

func NewMachine(r Retriever, c *ambiguity.Classifier, topK int, opts ...MachineOption) *Machine {
	m := &Machine{
		retriever:  r,
		classifier: c,
		tracker:    c.Tracker,
		topK:       topK,
		now:        time.Now,
		logger:     slog.Default().With("component", "session-machine"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start moves a new session to AwaitingNecessity.
func (m *Machine) Start(s *Session) (*Session, error) {
	if err := expect(s, "start", StateCreated); err != nil {
		return nil, err
	}
	next := s.Clone()
	m.transition(next, StateAwaitingNecessity)
	return next, nil
}

// Suggest retrieves evidence for necessity and either resolves a cited
// requirement list (Suggested) or offers option paths (Ambiguous).
func (m *Machine) Suggest(ctx context.Context, s *Session, necessity string) (*Session, error) {
	if err := expect(s, "suggest", StateAwaitingNecessity); err != nil {
		return nil, err
	}
	necessity = strings.TrimSpace(necessity)
	if necessity == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "necessity must not be empty")
	}

	results, err := m.retriever.Retrieve(ctx, necessity, m.topK)
	if err != nil {
		return nil, err
	}
	decision := m.classifier.Classify(necessity, results)

	next := s.Clone()
	next.Necessity = necessity
	next.ObjectType = decision.ObjectType
	if decision.Ambiguous() {
		next.Options = make([]requirements.OptionPath, len(decision.Options))
		for i, o := range decision.Options {
			o = o.Clone()
			o.List.Bump()
			next.Options[i] = o
		}
		m.transition(next, StateAmbiguous)
	} else {
		next.Framing = decision.Framing
		next.List = decision.Resolved.Clone()
		next.List.Bump()
		next.Options = nil
		m.transition(next, StateSuggested)
	}
	logger.FromContext(ctx).Info("requirements suggested",
		"state", next.State,
		"results", len(results),
		"items", next.List.Len(),
		"options", len(next.Options),
	)
	return next, nil
}

// PickOption adopts the list of the named option path and discards the
// others. An unknown id leaves the session Ambiguous.
func (m *Machine) PickOption(s *Session, optionID string) (*Session, error) {
	if err := expect(s, "pick option", StateAmbiguous); err != nil {
		return nil, err
	}
	opt, ok := requirements.FindOption(s.Options, optionID)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrInvalidSelection,
			"unknown option %q, expected one of %s", optionID, strings.Join(requirements.OptionIDs(s.Options), ", "))
	}
	next := s.Clone()
	next.Framing = opt.Framing
	next.List = opt.List.Clone()
	next.Options = nil
	m.transition(next, StateSuggested)
	return next, nil
}

// Review parses utterance against the current list and applies it. An
// unrecognized instruction fails with ErrUnrecognizedCommand and changes
// nothing; a confirm instruction behaves like Confirm.
func (m *Machine) Review(ctx context.Context, s *Session, utterance string) (*Session, command.Command, error) {
	if err := expect(s, "review", StateSuggested, StateUnderReview); err != nil {
		return nil, nil, err
	}
	cmd := command.Parse(utterance, s.List.Len())
	if m.metrics != nil {
		m.metrics.CommandsParsedTotal.WithLabelValues(string(cmd.Kind())).Inc()
	}
	logger.FromContext(ctx).Debug("review command parsed", "command", cmd.String())

	if _, ok := cmd.(command.Confirm); ok {
		next, err := m.Confirm(s)
		return next, cmd, err
	}

	next := s.Clone()
	var err error
	switch c := cmd.(type) {
	case command.Remove:
		err = next.List.Remove(c.Positions)
	case command.RemoveRange:
		err = next.List.RemoveRange(c.Start, c.End)
	case command.KeepOnly:
		err = next.List.KeepOnly(c.Positions)
	case command.Replace:
		err = m.replace(ctx, next, c.Positions)
	case command.Unrecognized:
		err = apperrors.New(apperrors.ErrUnrecognizedCommand, c.Reason)
	}
	if err != nil {
		return nil, cmd, err
	}
	next.List.Bump()
	m.transition(next, StateUnderReview)
	return next, cmd, nil
}

// Confirm closes the editing phase. An empty list cannot be confirmed.
func (m *Machine) Confirm(s *Session) (*Session, error) {
	if err := expect(s, "confirm", StateSuggested, StateUnderReview); err != nil {
		return nil, err
	}
	if s.List.Len() == 0 {
		return nil, apperrors.New(apperrors.ErrEmptyList, "cannot confirm an empty requirement list")
	}
	next := s.Clone()
	m.transition(next, StateConfirmed)
	return next, nil
}

// replace regenerates each named item in place from a fresh retrieval for
// the item text plus the necessity. The first drafted statement that is not
// already on the list wins; when there is none the item keeps its text and
// is flagged UnableToRefine.
func (m *Machine) replace(ctx context.Context, s *Session, positions []int) error {
	for _, pos := range positions {
		current, ok := s.List.Item(pos)
		if !ok {
			return apperrors.Newf(apperrors.ErrInvalidInput, "position %d out of range 1..%d", pos, s.List.Len())
		}
		results, err := m.retriever.Retrieve(ctx, current.Description+" "+s.Necessity, m.topK)
		if err != nil {
			return err
		}

		existing := descriptionKeys(s.List)
		replacement := current
		replacement.UnableToRefine = true
		for _, d := range requirements.Drafts(retriever.Candidates(results), 0) {
			if _, dup := existing[descriptionKey(d.Item.Description)]; dup {
				continue
			}
			replacement = m.tracker.Attach(d.Item, d.Support)
			break
		}
		if replacement.UnableToRefine {
			m.logger.Info("item could not be refined", "position", pos)
		}
		if err := s.List.Set(pos, replacement); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) transition(s *Session, to State) {
	s.State = to
	s.UpdatedAt = m.now()
}

func expect(s *Session, op string, allowed ...State) error {
	for _, st := range allowed {
		if s.State == st {
			return nil
		}
	}
	if s.State == StateConfirmed {
		return apperrors.Newf(apperrors.ErrSessionClosed, "cannot %s: session %s is confirmed", op, s.ID)
	}
	return apperrors.Newf(apperrors.ErrInvalidSessionState, "cannot %s in state %s", op, s.State)
}

func descriptionKey(description string) string {
	return strings.Join(tokenizer.Words(description), " ")
}

func descriptionKeys(l requirements.List) map[string]struct{} {
	keys := make(map[string]struct{}, l.Len())
	for _, it := range l.Items {
		keys[descriptionKey(it.Description)] = struct{}{}
	}
	return keys
}
