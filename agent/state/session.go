package state

import (
	"slices"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ricmunrom/botAtencionClientes/agent/catalog"
	"github.com/ricmunrom/botAtencionClientes/agent/finance"
	"github.com/ricmunrom/botAtencionClientes/agent/search"
)

// Conversation is the per-user source of truth for follow-up resolution.
// - ACTIVE:  LastFilters + LastResults set
// - FOCUSED: SelectedVehicle set (member of LastResults or a direct pick)
type Conversation struct {
	// Identity
	UserID string `json:"user_id"`

	// Context
	LastFilters     *search.Criteria `json:"last_filters,omitempty"`
	LastResults     *search.Result   `json:"last_results,omitempty"`
	SelectedVehicle *catalog.Vehicle `json:"selected_vehicle,omitempty"`
	LastPlan        *finance.Plan    `json:"last_plan,omitempty"`

	History []Action `json:"history,omitempty"` // append-only

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type ActionType string

const (
	ActionSearch    ActionType = "search"
	ActionSelect    ActionType = "select"
	ActionFinancing ActionType = "financing"
	ActionInfo      ActionType = "company_info"
	ActionReset     ActionType = "reset"
)

type Action struct {
	ID      string     `json:"id"`
	At      time.Time  `json:"at"`
	Type    ActionType `json:"type"`
	Details string     `json:"details,omitempty"`
}

// Phase is the conceptual lifecycle position of a conversation.
type Phase string

const (
	PhaseNew     Phase = "new"
	PhaseActive  Phase = "active"
	PhaseFocused Phase = "focused"
)

// Summary is a lightweight projection used for introspection.
type Summary struct {
	UserID         string    `json:"user_id"`
	LastActivityAt time.Time `json:"last_activity_at"`
	HasSelection   bool      `json:"has_selection"`
	HistoryLen     int       `json:"history_len"`
}

const maxDetailsLen = 100

func NewConversation(userID string, now time.Time) *Conversation {
	return &Conversation{
		UserID:         userID,
		CreatedAt:      now.UTC(),
		LastActivityAt: now.UTC(),
	}
}

func (c *Conversation) Touch(now time.Time) {
	c.LastActivityAt = now.UTC()
}

func (c *Conversation) Phase() Phase {
	switch {
	case c.SelectedVehicle != nil:
		return PhaseFocused
	case c.LastResults != nil:
		return PhaseActive
	default:
		return PhaseNew
	}
}

// Record appends a history entry and refreshes activity.
func (c *Conversation) Record(kind ActionType, details string, now time.Time) {
	details = truncate(details, maxDetailsLen)
	c.History = append(c.History, Action{
		ID:      uuid.NewString(),
		At:      now.UTC(),
		Type:    kind,
		Details: details,
	})
	c.Touch(now)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Clear drops filters, results, selection, plan and history.
func (c *Conversation) Clear(now time.Time) {
	c.LastFilters = nil
	c.LastResults = nil
	c.SelectedVehicle = nil
	c.LastPlan = nil
	c.History = nil
	c.Touch(now)
}

func (c *Conversation) Summary() Summary {
	return Summary{
		UserID:         c.UserID,
		LastActivityAt: c.LastActivityAt,
		HasSelection:   c.SelectedVehicle != nil,
		HistoryLen:     len(c.History),
	}
}

// Clone returns a deep copy safe to hand out of the store.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	if c.LastFilters != nil {
		f := *c.LastFilters
		out.LastFilters = &f
	}
	if c.LastResults != nil {
		r := search.Result{
			Criteria: c.LastResults.Criteria,
			Vehicles: slices.Clone(c.LastResults.Vehicles),
		}
		out.LastResults = &r
	}
	if c.SelectedVehicle != nil {
		v := *c.SelectedVehicle
		out.SelectedVehicle = &v
	}
	if c.LastPlan != nil {
		p := *c.LastPlan
		out.LastPlan = &p
	}
	out.History = slices.Clone(c.History)
	return &out
}
