// Package proto defines the message types of the curator's RPC API.
//
// The types use JSON struct tags for serialization over the lightweight
// JSON-over-TCP RPC layer (see pkg/grpc). Method names:
//
//	SessionService.Start        StartRequest        -> SessionResponse
//	SessionService.Suggest      SuggestRequest      -> SessionResponse
//	SessionService.Review       ReviewRequest       -> SessionResponse
//	SessionService.ListOptions  SessionRequest      -> OptionsResponse
//	SessionService.PickOption   PickOptionRequest   -> SessionResponse
//	SessionService.Confirm      SessionRequest      -> SessionResponse
//	SessionService.Get          SessionRequest      -> SessionResponse
//	RetrievalService.Retrieve   RetrieveRequest     -> RetrieveResponse
//	RetrievalService.Status     StatusRequest       -> StatusResponse
//	RetrievalService.Invalidate StatusRequest       -> StatusResponse
package proto

// NextActionPickOption tells the caller to choose one of Options.
const NextActionPickOption = "pick_option"

// ---------- Session ----------

// StartRequest opens a session. A non-empty Necessity is suggested right
// away, saving one round trip.
type StartRequest struct {
	Necessity string `json:"necessity,omitempty"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type SuggestRequest struct {
	SessionID string `json:"session_id"`
	Necessity string `json:"necessity"`
}

type ReviewRequest struct {
	SessionID string `json:"session_id"`
	Utterance string `json:"utterance"`
}

type PickOptionRequest struct {
	SessionID string `json:"session_id"`
	OptionID  string `json:"option_id"`
}

// SessionResponse is the session after an operation. When the operation was
// rejected it is the unchanged session and Clarification says why.
type SessionResponse struct {
	SessionID     string   `json:"session_id"`
	State         string   `json:"state"`
	Necessity     string   `json:"necessity,omitempty"`
	Framing       string   `json:"framing,omitempty"`
	Revision      int      `json:"revision"`
	Items         []Item   `json:"items"`
	Options       []Option `json:"options,omitempty"`
	NextAction    string   `json:"next_action,omitempty"`
	Message       string   `json:"message,omitempty"`
	Command       string   `json:"command,omitempty"`
	Clarification string   `json:"clarification,omitempty"`
}

type Item struct {
	Position       int        `json:"position"`
	Description    string     `json:"description"`
	Unit           string     `json:"unit,omitempty"`
	Quantity       float64    `json:"quantity,omitempty"`
	UnableToRefine bool       `json:"unable_to_refine,omitempty"`
	Citations      []Citation `json:"citations"`
}

type Citation struct {
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title,omitempty"`
	ChunkID       string  `json:"chunk_id"`
	Excerpt       string  `json:"excerpt"`
	Score         float64 `json:"score"`
}

type Option struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Framing  string   `json:"framing"`
	Pros     []string `json:"pros"`
	Cons     []string `json:"cons"`
	Guidance string   `json:"guidance"`
	Notes    string   `json:"notes,omitempty"`
	Support  float64  `json:"support"`
	Items    []Item   `json:"items"`
}

type OptionsResponse struct {
	SessionID  string   `json:"session_id"`
	Options    []Option `json:"options"`
	NextAction string   `json:"next_action,omitempty"`
	Message    string   `json:"message,omitempty"`
}

// ---------- Retrieval ----------

type RetrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type RetrieveResponse struct {
	Query     string           `json:"query"`
	Results   []RetrievedChunk `json:"results"`
	LatencyMs int64            `json:"latency_ms"`
}

type RetrievedChunk struct {
	ChunkID       string   `json:"chunk_id"`
	DocumentID    string   `json:"document_id"`
	DocumentTitle string   `json:"document_title,omitempty"`
	SectionType   string   `json:"section_type,omitempty"`
	Text          string   `json:"text"`
	Score         float64  `json:"score"`
	Citation      Citation `json:"citation"`
}

type StatusRequest struct{}

// StatusResponse reports the retriever's internal state, including whether
// it is serving lexical-only.
type StatusResponse struct {
	Mode           string `json:"mode"`
	Degraded       bool   `json:"degraded"`
	Generation     uint64 `json:"generation"`
	Chunks         int    `json:"chunks"`
	DenseAvailable bool   `json:"dense_available"`
	DenseError     string `json:"dense_error,omitempty"`
	Fallbacks      int64  `json:"fallbacks"`
	LastFallback   string `json:"last_fallback,omitempty"`
	CircuitState   string `json:"circuit_state"`
	CacheEntries   int    `json:"cache_entries"`
	CacheHits      int64  `json:"cache_hits"`
	CacheMisses    int64  `json:"cache_misses"`
	CacheHitRate   string `json:"cache_hit_rate"`
}
