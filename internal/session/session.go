// Package session drives a curation session through its states, from the
// stated necessity to a confirmed requirement list, and exposes the
// session API on top of a pluggable store.
package session

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/requirements"
)

type State string

const (
	StateCreated           State = "created"
	StateAwaitingNecessity State = "awaiting_necessity"
	StateSuggested         State = "suggested"
	StateAmbiguous         State = "ambiguous"
	StateUnderReview       State = "under_review"
	StateConfirmed         State = "confirmed"
)

// Session is the curation context of one user. Options is empty outside
// StateAmbiguous.
type Session struct {
	ID         string                    `json:"id"`
	State      State                     `json:"state"`
	Necessity  string                    `json:"necessity,omitempty"`
	Framing    string                    `json:"framing,omitempty"`
	ObjectType string                    `json:"object_type,omitempty"`
	List       requirements.List         `json:"list"`
	Options    []requirements.OptionPath `json:"options,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		State:     StateCreated,
		List:      requirements.NewList(nil),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy sharing no slices with s.
func (s *Session) Clone() *Session {
	out := *s
	out.List = s.List.Clone()
	if s.Options != nil {
		out.Options = make([]requirements.OptionPath, len(s.Options))
		for i, o := range s.Options {
			out.Options[i] = o.Clone()
		}
	}
	return &out
}
