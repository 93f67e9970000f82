package business

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ricmunrom/botAtencionClientes/agent/catalog"
	contractx "github.com/ricmunrom/botAtencionClientes/agent/contract"
	"github.com/ricmunrom/botAtencionClientes/agent/finance"
	"github.com/ricmunrom/botAtencionClientes/agent/knowledge"
	"github.com/ricmunrom/botAtencionClientes/agent/search"
	statex "github.com/ricmunrom/botAtencionClientes/agent/state"
)

var (
	ErrNoSearch          = errors.New("no previous search to select from")
	ErrNoVehicleSelected = errors.New("no vehicle selected")
	ErrVehicleNotFound   = errors.New("vehicle not found in catalog")
)

var _ contractx.Business = (*Service)(nil)

type Config struct {
	// MaxResults caps results when the criteria carry no limit; zero keeps all.
	MaxResults int `split_words:"true" default:"0"`
}

type Service struct {
	engine     *search.Engine
	calculator *finance.Calculator
	store      *statex.Store
	knowledge  *knowledge.Base

	maxResults int
}

func New(
	engine *search.Engine,
	calculator *finance.Calculator,
	store *statex.Store,
	kb *knowledge.Base,
	cfg Config,
) (*Service, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if calculator == nil {
		return nil, errors.New("financing calculator is required")
	}
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if kb == nil {
		return nil, errors.New("knowledge base is required")
	}
	if cfg.MaxResults < 0 {
		return nil, fmt.Errorf("%w: max results must be >= 0", contractx.ErrValidation)
	}

	return &Service{
		engine:     engine,
		calculator: calculator,
		store:      store,
		knowledge:  kb,
		maxResults: cfg.MaxResults,
	}, nil
}

func (s *Service) CompanyInfo(ctx context.Context, userID, query string) (knowledge.Match, error) {
	if err := ctx.Err(); err != nil {
		return knowledge.Match{}, err
	}
	match := s.knowledge.Lookup(query)
	if err := s.store.RecordAction(userID, statex.ActionInfo, match.Section.ID); err != nil {
		return knowledge.Match{}, err
	}
	return match, nil
}

// SearchVehicles runs the search and stores criteria and results for the
// user in one step, so ordinals resolve against exactly what was returned.
func (s *Service) SearchVehicles(ctx context.Context, userID string, criteria search.Criteria) (search.Result, error) {
	if err := ctx.Err(); err != nil {
		return search.Result{}, err
	}
	if criteria.Limit < 0 {
		return search.Result{}, fmt.Errorf("%w: limit must be >= 0", contractx.ErrValidation)
	}
	if criteria.Limit == 0 {
		criteria.Limit = s.maxResults
	}

	var res search.Result
	err := s.store.Do(userID, func(c *statex.Conversation, now time.Time) error {
		res = s.engine.Search(criteria)
		statex.ApplySearch(c, criteria, res, now)
		return nil
	})
	if err != nil {
		return search.Result{}, err
	}

	log.Debug().
		Str("user_id", userID).
		Bool("unfiltered", criteria.IsEmpty()).
		Int("matches", res.Len()).
		Msg("vehicle search")
	return res, nil
}

func (s *Service) SelectVehicle(ctx context.Context, userID string, sel contractx.Selection) (catalog.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Vehicle{}, err
	}
	if (sel.Position == nil) == (sel.StockID == nil) {
		return catalog.Vehicle{}, fmt.Errorf("%w: exactly one of position or stock_id is required", contractx.ErrValidation)
	}

	var picked catalog.Vehicle
	err := s.store.Do(userID, func(c *statex.Conversation, now time.Time) error {
		if sel.Position != nil {
			if c.LastResults == nil {
				return ErrNoSearch
			}
			v, err := search.SelectByOrdinal(*c.LastResults, *sel.Position)
			if err != nil {
				return err
			}
			picked = v
			return statex.ApplySelect(c, v, false, now)
		}

		id := *sel.StockID
		if c.LastResults != nil {
			for _, v := range c.LastResults.Vehicles {
				if v.ID == id {
					picked = v
					return statex.ApplySelect(c, v, false, now)
				}
			}
		}
		v, ok := s.engine.Catalog().ByID(id)
		if !ok {
			return fmt.Errorf("%w: stock_id=%d", ErrVehicleNotFound, id)
		}
		picked = v
		return statex.ApplySelect(c, v, true, now)
	})
	if err != nil {
		return catalog.Vehicle{}, err
	}
	return picked, nil
}

// GetFinancingOptions computes plans for the selected vehicle:
//   - no term, no down payment: full options grid
//   - down payment only: one plan per allowed term
//   - term only: one plan per standard down-payment fraction
//   - both: a single plan
func (s *Service) GetFinancingOptions(ctx context.Context, userID string, req contractx.FinancingRequest) ([]finance.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var plans []finance.Plan
	err := s.store.Do(userID, func(c *statex.Conversation, now time.Time) error {
		if c.SelectedVehicle == nil {
			return ErrNoVehicleSelected
		}
		price := c.SelectedVehicle.Price

		var err error
		plans, err = s.plansFor(price, req)
		if err != nil {
			return err
		}

		if len(plans) == 1 {
			c.LastPlan = &plans[0]
		}
		c.Record(statex.ActionFinancing, describeRequest(c.SelectedVehicle.ID, req, len(plans)), now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *Service) plansFor(price float64, req contractx.FinancingRequest) ([]finance.Plan, error) {
	hasDown := req.DownPayment != nil || req.DownPaymentPct != nil
	down := 0.0
	switch {
	case req.DownPayment != nil:
		down = *req.DownPayment
	case req.DownPaymentPct != nil:
		pct := *req.DownPaymentPct
		if !(pct >= 0 && pct < 1) {
			return nil, &finance.InvalidInputError{Field: "down_payment_pct", Value: pct, Allowed: "[0, 1)"}
		}
		down = price * pct
	}

	switch {
	case req.TermYears == nil && !hasDown:
		return s.calculator.ComputeOptionsGrid(price)
	case req.TermYears == nil:
		return s.calculator.PlansForTerms(price, down)
	case !hasDown:
		return s.calculator.PlansForPcts(price, *req.TermYears)
	default:
		p, err := s.calculator.ComputePlan(price, down, *req.TermYears)
		if err != nil {
			return nil, err
		}
		return []finance.Plan{p}, nil
	}
}

func (s *Service) GetUserState(ctx context.Context, userID string) (*statex.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.Get(userID)
}

func (s *Service) ResetUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Reset(userID); err != nil {
		return err
	}
	log.Info().Str("user_id", userID).Msg("conversation reset")
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Remove(userID); err != nil {
		return err
	}
	log.Info().Str("user_id", userID).Msg("conversation deleted")
	return nil
}

func (s *Service) ListActiveUsers(context.Context) []statex.Summary {
	return s.store.Summary()
}

func (s *Service) SweepInactiveUsers(_ context.Context, maxAge time.Duration) int {
	return s.store.SweepInactive(maxAge)
}

func (s *Service) CatalogStats(context.Context) catalog.Stats {
	return s.engine.Catalog().Stats()
}

func (s *Service) Capabilities(context.Context) contractx.Capabilities {
	return contractx.Capabilities{
		AnnualRate:      finance.AnnualRate,
		TermYears:       s.calculator.Terms(),
		DownPaymentPcts: s.calculator.DownPaymentPcts(),
		Topics:          s.knowledge.Topics(),
	}
}

func describeRequest(stockID int64, req contractx.FinancingRequest, n int) string {
	parts := []string{fmt.Sprintf("stock_id=%d", stockID)}
	if req.TermYears != nil {
		parts = append(parts, fmt.Sprintf("term=%d", *req.TermYears))
	}
	if req.DownPayment != nil {
		parts = append(parts, fmt.Sprintf("down=%.2f", *req.DownPayment))
	} else if req.DownPaymentPct != nil {
		parts = append(parts, fmt.Sprintf("down_pct=%.2f", *req.DownPaymentPct))
	}
	parts = append(parts, fmt.Sprintf("plans=%d", n))
	return strings.Join(parts, " ")
}
