package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/command"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/requirements"
	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/metrics"
)

// Service is the session API. Operations on one session run one at a
// time; operations on different sessions run in parallel and share only
// the read-only index behind the retriever.
//
// When an operation is rejected after the session was loaded, the
// unchanged session is returned together with the error so callers can
// show the current list next to the clarification.
type Service struct {
	machine *Machine
	store   Store
	locks   *lockTable
	metrics *metrics.Metrics
	newID   func() string
	now     func() time.Time
	logger  *slog.Logger
}

type ServiceOption func(*Service)

func WithServiceMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithIDGenerator overrides the uuid session identifiers.
func WithIDGenerator(f func() string) ServiceOption {
	return func(s *Service) { s.newID = f }
}

func NewService(machine *Machine, store Store, opts ...ServiceOption) *Service {
	s := &Service{
		machine: machine,
		store:   store,
		locks:   newLockTable(),
		newID:   uuid.NewString,
		now:     machine.now,
		logger:  slog.Default().With("component", "session-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) StartSession(ctx context.Context) (sess *Session, err error) {
	defer func() { s.observe("start", err) }()

	created := New(s.newID(), s.now())
	started, err := s.machine.Start(created)
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, started); err != nil {
		return nil, err
	}
	logger.FromContext(logger.WithSessionID(ctx, started.ID)).Info("session started")
	return started, nil
}

func (s *Service) SuggestRequirements(ctx context.Context, id, necessity string) (*Session, error) {
	return s.update(ctx, "suggest", id, func(ctx context.Context, cur *Session) (*Session, error) {
		return s.machine.Suggest(ctx, cur, necessity)
	})
}

// ReviewRequirements applies one edit instruction. The parsed command is
// returned even when it was rejected.
func (s *Service) ReviewRequirements(ctx context.Context, id, utterance string) (*Session, command.Command, error) {
	var cmd command.Command
	sess, err := s.update(ctx, "review", id, func(ctx context.Context, cur *Session) (*Session, error) {
		next, c, err := s.machine.Review(ctx, cur, utterance)
		cmd = c
		return next, err
	})
	return sess, cmd, err
}

// ListOptions returns the pending option paths, none outside Ambiguous.
func (s *Service) ListOptions(ctx context.Context, id string) (opts []requirements.OptionPath, err error) {
	defer func() { s.observe("list_options", err) }()

	unlock := s.locks.Lock(id)
	defer unlock()
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Options, nil
}

func (s *Service) PickOption(ctx context.Context, id, optionID string) (*Session, error) {
	return s.update(ctx, "pick_option", id, func(_ context.Context, cur *Session) (*Session, error) {
		return s.machine.PickOption(cur, optionID)
	})
}

func (s *Service) ConfirmSession(ctx context.Context, id string) (*Session, error) {
	return s.update(ctx, "confirm", id, func(_ context.Context, cur *Session) (*Session, error) {
		return s.machine.Confirm(cur)
	})
}

func (s *Service) GetSession(ctx context.Context, id string) (sess *Session, err error) {
	defer func() { s.observe("get", err) }()

	unlock := s.locks.Lock(id)
	defer unlock()
	return s.store.Get(ctx, id)
}

// update loads the session under its lock, applies op and stores the
// result only when op succeeds.
func (s *Service) update(ctx context.Context, op, id string, apply func(context.Context, *Session) (*Session, error)) (sess *Session, err error) {
	defer func() { s.observe(op, err) }()
	ctx = logger.WithSessionID(ctx, id)

	unlock := s.locks.Lock(id)
	defer unlock()

	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := apply(ctx, cur)
	if err != nil {
		logger.FromContext(ctx).Info("session operation rejected", "operation", op, "state", cur.State, "code", apperrors.Code(err), "error", err)
		return cur, err
	}
	if err := s.store.Put(ctx, next); err != nil {
		return cur, err
	}
	logger.FromContext(ctx).Info("session updated", "operation", op, "from", cur.State, "to", next.State, "revision", next.List.Revision)
	return next, nil
}

func (s *Service) observe(op string, err error) {
	if s.metrics != nil {
		s.metrics.SessionTransitions.WithLabelValues(op, apperrors.Code(err)).Inc()
	}
}
