package indexer

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/metrics"
)

// Holder publishes the active Snapshot. Readers call Current once per query
// and use that pointer throughout; Reload swaps in a new generation
// atomically, so no reader ever sees a partially loaded index.
type Holder struct {
	current atomic.Pointer[Snapshot]
	dataDir string
	reload  sync.Mutex
	hooksMu sync.Mutex
	hooks   []func(*Snapshot)
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHolder creates a Holder serving initial and reloading from dataDir.
func NewHolder(dataDir string, initial *Snapshot, m *metrics.Metrics) *Holder {
	if initial == nil {
		initial = EmptySnapshot()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	h := &Holder{
		dataDir: dataDir,
		metrics: m,
		logger:  slog.Default().With("component", "index-holder"),
	}
	h.publish(initial)
	return h
}

// OpenHolder loads the current generation of dataDir into a new Holder.
func OpenHolder(dataDir string, m *metrics.Metrics) (*Holder, error) {
	snap, err := Open(dataDir)
	if err != nil {
		return nil, err
	}
	return NewHolder(dataDir, snap, m), nil
}

// Current returns the active snapshot.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// OnSwap registers fn to run after every swap, e.g. to purge caches.
func (h *Holder) OnSwap(fn func(*Snapshot)) {
	h.hooksMu.Lock()
	defer h.hooksMu.Unlock()
	h.hooks = append(h.hooks, fn)
}

// Swap installs snap and returns the previous snapshot.
func (h *Holder) Swap(snap *Snapshot) *Snapshot {
	h.reload.Lock()
	defer h.reload.Unlock()
	return h.swapLocked(snap)
}

func (h *Holder) swapLocked(snap *Snapshot) *Snapshot {
	old := h.current.Swap(snap)
	h.recordGauges(snap)
	h.hooksMu.Lock()
	hooks := slices.Clone(h.hooks)
	h.hooksMu.Unlock()
	for _, fn := range hooks {
		fn(snap)
	}
	return old
}

func (h *Holder) publish(snap *Snapshot) {
	h.current.Store(snap)
	h.recordGauges(snap)
}

func (h *Holder) recordGauges(snap *Snapshot) {
	h.metrics.IndexGeneration.Set(float64(snap.Generation))
	h.metrics.IndexChunks.Set(float64(snap.Chunks.Len()))
}

// Reload loads the generation named by CURRENT and swaps it in if it
// differs from the active one. It reports whether a swap happened.
func (h *Holder) Reload(ctx context.Context) (bool, error) {
	h.reload.Lock()
	defer h.reload.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}
	gen, err := readCurrent(h.dataDir)
	if err != nil {
		h.metrics.IndexRebuildsTotal.WithLabelValues("reload", "error").Inc()
		return false, err
	}
	if gen == h.Current().Generation {
		h.logger.Debug("index already current", "generation", gen)
		return false, nil
	}
	snap, err := Open(h.dataDir)
	if err != nil {
		h.metrics.IndexRebuildsTotal.WithLabelValues("reload", "error").Inc()
		h.logger.Error("index reload failed, keeping active snapshot",
			"generation", gen,
			"active", h.Current().Generation,
			"error", err,
		)
		return false, err
	}
	old := h.swapLocked(snap)
	h.metrics.IndexRebuildsTotal.WithLabelValues("reload", "success").Inc()
	h.logger.Info("index snapshot swapped",
		"from", old.Generation,
		"to", snap.Generation,
		"dense", snap.DenseAvailable(),
	)
	return true, nil
}
