package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/ambiguity"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/citation"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/searcher/retriever"
	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/metrics"
)

// componentResults yields ten distinct, framing-neutral statements.
func componentResults() []retriever.Result {
	out := make([]retriever.Result, 5)
	for i := range out {
		n := i + 1
		out[i] = result(n, fmt.Sprintf("Componente %d deve ser certificado. Componente %d possui manual técnico.", n, n))
	}
	return out
}

func newService(t *testing.T, r Retriever) (*Service, *metrics.Metrics) {
	t.Helper()
	store := NewMemoryStore(0)
	t.Cleanup(store.Close)
	met := metrics.New(nil)
	classifier := ambiguity.New(0.25, 10, citation.New(3, 120))
	machine := NewMachine(r, classifier, 5, WithMachineMetrics(met))
	return NewService(machine, store, WithServiceMetrics(met)), met
}

func TestService_FullFlow(t *testing.T) {
	svc, met := newService(t, &fakeRetriever{respond: fixed(componentResults()...)})
	ctx := context.Background()

	s, err := svc.StartSession(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateAwaitingNecessity, s.State)

	s, err = svc.SuggestRequirements(ctx, s.ID, "componentes para manutenção predial")
	require.NoError(t, err)
	assert.Equal(t, StateSuggested, s.State)
	require.Equal(t, 10, s.List.Len())

	s, cmd, err := svc.ReviewRequirements(ctx, s.ID, "remova 2 e 4")
	require.NoError(t, err)
	assert.Equal(t, "Remove([2 4])", cmd.String())
	assert.Equal(t, 8, s.List.Len())
	assert.Equal(t, 2, s.List.Revision)

	s, err = svc.ConfirmSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, s.State)

	stored, err := svc.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, stored.State)
	assert.Equal(t, 8, stored.List.Len())

	_, _, err = svc.ReviewRequirements(ctx, s.ID, "remova 1")
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)

	assert.Equal(t, 1.0, testutil.ToFloat64(met.SessionTransitions.WithLabelValues("start", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.SessionTransitions.WithLabelValues("review", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.SessionTransitions.WithLabelValues("review", "closed")))
}

func TestService_RejectedOperationReturnsUnchangedSession(t *testing.T) {
	svc, _ := newService(t, &fakeRetriever{respond: fixed(componentResults()...)})
	ctx := context.Background()
	s, _ := svc.StartSession(ctx)
	s, err := svc.SuggestRequirements(ctx, s.ID, "componentes")
	require.NoError(t, err)

	got, cmd, err := svc.ReviewRequirements(ctx, s.ID, "faça algo estranho")
	assert.Equal(t, apperrors.CodeClarification, apperrors.Code(err))
	assert.Equal(t, "unrecognized", string(cmd.Kind()))
	require.NotNil(t, got)
	assert.Equal(t, s.List, got.List)
	assert.Equal(t, StateSuggested, got.State)

	stored, err := svc.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.List.Revision)
}

func TestService_AmbiguousOptions(t *testing.T) {
	svc, _ := newService(t, &fakeRetriever{respond: fixed(vehicleResults...)})
	ctx := context.Background()
	s, _ := svc.StartSession(ctx)

	s, err := svc.SuggestRequirements(ctx, s.ID, "veículos para a fiscalização")
	require.NoError(t, err)
	require.Equal(t, StateAmbiguous, s.State)

	opts, err := svc.ListOptions(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = svc.PickOption(ctx, s.ID, "opt_nada")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSelection)
	opts, err = svc.ListOptions(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	s, err = svc.PickOption(ctx, s.ID, "opt_compra")
	require.NoError(t, err)
	assert.Equal(t, StateSuggested, s.State)
	opts, err = svc.ListOptions(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestService_UnknownSession(t *testing.T) {
	svc, met := newService(t, &fakeRetriever{})
	ctx := context.Background()

	_, err := svc.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	s, err := svc.SuggestRequirements(ctx, "nope", "notebooks")
	assert.Nil(t, s)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(met.SessionTransitions.WithLabelValues("suggest", "not_found")))
}

func TestService_ConcurrentSessionsAreIsolated(t *testing.T) {
	svc, _ := newService(t, &fakeRetriever{respond: fixed(componentResults()...)})
	ctx := context.Background()

	const sessions = 8
	ids := make([]string, sessions)
	var wg sync.WaitGroup
	errs := make(chan error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := svc.StartSession(ctx)
			if err != nil {
				errs <- err
				return
			}
			ids[i] = s.ID
			if _, err := svc.SuggestRequirements(ctx, s.ID, "componentes"); err != nil {
				errs <- err
				return
			}
			// Session i keeps only item i+1.
			if _, _, err := svc.ReviewRequirements(ctx, s.ID, fmt.Sprintf("mantém apenas %d", i+1)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	reference := svc.machine.classifier.Classify("componentes", componentResults())
	require.False(t, reference.Ambiguous())
	for i, id := range ids {
		s, err := svc.GetSession(ctx, id)
		require.NoError(t, err)
		require.Equal(t, 1, s.List.Len())
		assert.Equal(t, reference.Resolved.Items[i].Description, s.List.Items[0].Description)
		assert.Equal(t, 2, s.List.Revision)
	}
}

func TestService_EditsOnOneSessionAreSerialized(t *testing.T) {
	svc, _ := newService(t, &fakeRetriever{respond: fixed(componentResults()...)})
	ctx := context.Background()
	s, _ := svc.StartSession(ctx)
	s, err := svc.SuggestRequirements(ctx, s.ID, "componentes")
	require.NoError(t, err)
	require.Equal(t, 10, s.List.Len())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = svc.ReviewRequirements(ctx, s.ID, "remova 1")
		}()
	}
	wg.Wait()

	final, err := svc.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, final.List.Len())
	assert.Equal(t, 6, final.List.Revision)
	assertContiguous(t, final.List)
	assert.Equal(t, 0, svc.locks.len())
}
