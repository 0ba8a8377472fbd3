package kafka

import "time"

// IndexRebuilt announces that a new index generation has been committed
// under DataDir. Consumers reload the generation named by CURRENT rather
// than trusting Generation, so replayed or reordered events are harmless.
type IndexRebuilt struct {
	Generation     uint64    `json:"generation"`
	DataDir        string    `json:"dataDir"`
	Documents      int       `json:"documents"`
	Chunks         int       `json:"chunks"`
	DenseAvailable bool      `json:"denseAvailable"`
	BuiltAt        time.Time `json:"builtAt"`
}

// IndexRebuiltEvent wraps e for publishing, keyed by data directory so all
// events for one index land on the same partition.
func IndexRebuiltEvent(e IndexRebuilt) Event {
	return Event{Key: e.DataDir, Value: e}
}
