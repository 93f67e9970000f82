package contract

import (
	"context"
	"time"

	"github.com/ricmunrom/botAtencionClientes/agent/catalog"
	"github.com/ricmunrom/botAtencionClientes/agent/finance"
	"github.com/ricmunrom/botAtencionClientes/agent/knowledge"
	"github.com/ricmunrom/botAtencionClientes/agent/search"
	"github.com/ricmunrom/botAtencionClientes/agent/state"
)

// Business is the call surface the orchestration layer uses.
type Business interface {
	CompanyInfo(ctx context.Context, userID, query string) (knowledge.Match, error)
	SearchVehicles(ctx context.Context, userID string, criteria search.Criteria) (search.Result, error)
	SelectVehicle(ctx context.Context, userID string, sel Selection) (catalog.Vehicle, error)
	GetFinancingOptions(ctx context.Context, userID string, req FinancingRequest) ([]finance.Plan, error)
	GetUserState(ctx context.Context, userID string) (*state.Conversation, error)
	ResetUser(ctx context.Context, userID string) error
	DeleteUser(ctx context.Context, userID string) error
	ListActiveUsers(ctx context.Context) []state.Summary
	SweepInactiveUsers(ctx context.Context, maxAge time.Duration) int
	CatalogStats(ctx context.Context) catalog.Stats
	Capabilities(ctx context.Context) Capabilities
}

// Capabilities describes what the assistant can offer: the financing terms
// and down-payment fractions it quotes and the company topics it knows.
type Capabilities struct {
	AnnualRate      float64   `json:"annual_rate"`
	TermYears       []int     `json:"term_years"`
	DownPaymentPcts []float64 `json:"down_payment_pcts"`
	Topics          []string  `json:"topics"`
}

// Selection refers to a vehicle either by 1-based position in the user's
// last results or by stock id. Exactly one must be set.
type Selection struct {
	Position *int   `json:"position,omitempty"`
	StockID  *int64 `json:"stock_id,omitempty"`
}

// FinancingRequest narrows the plans computed for the selected vehicle.
// DownPayment (absolute) takes precedence over DownPaymentPct.
type FinancingRequest struct {
	TermYears      *int     `json:"term_years,omitempty"`
	DownPaymentPct *float64 `json:"down_payment_pct,omitempty"`
	DownPayment    *float64 `json:"down_payment,omitempty"`
}
