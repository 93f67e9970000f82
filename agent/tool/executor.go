package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ricmunrom/botAtencionClientes/agent/business"
	"github.com/ricmunrom/botAtencionClientes/agent/catalog"
	contractx "github.com/ricmunrom/botAtencionClientes/agent/contract"
	"github.com/ricmunrom/botAtencionClientes/agent/finance"
	"github.com/ricmunrom/botAtencionClientes/agent/search"
	statex "github.com/ricmunrom/botAtencionClientes/agent/state"
)

// Executor runs one tool call for a user. Recoverable failures are reported
// in the result with a code; the error return is reserved for cancellation
// and unexpected faults.
type Executor func(ctx context.Context, userID, tool string, args map[string]any) (contractx.ToolResult, error)

type CompanyInfoOutput struct {
	Topic   string `json:"topic"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ListedVehicle struct {
	Position int `json:"position"`
	catalog.Vehicle
}

type SearchOutput struct {
	Count    int             `json:"count"`
	Vehicles []ListedVehicle `json:"vehicles"`
}

type FinancingOutput struct {
	Plans []finance.Plan `json:"plans"`
}

func NewExecutor(biz contractx.Business) Executor {
	return func(ctx context.Context, userID, tool string, args map[string]any) (contractx.ToolResult, error) {
		out, err := dispatch(ctx, biz, userID, tool, args)
		if err == nil {
			return contractx.ToolResult{Tool: tool, Result: out}, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return contractx.ToolResult{}, err
		}

		code, detail := Classify(err)
		if code == contractx.CodeInternal {
			log.Error().Err(err).Str("tool", tool).Str("user_id", userID).Msg("tool execution failed")
			return contractx.ToolResult{}, fmt.Errorf("tool %s: %w", tool, err)
		}
		log.Debug().Err(err).Str("tool", tool).Str("code", string(code)).Msg("tool rejected")
		return contractx.ToolResult{Tool: tool, Error: err.Error(), Code: code, Detail: detail}, nil
	}
}

// Execute is a convenience for callers holding a ToolRequest.
func (e Executor) Execute(ctx context.Context, userID string, req contractx.ToolRequest) (contractx.ToolResult, error) {
	return e(ctx, userID, req.Tool, req.Args)
}

func dispatch(ctx context.Context, biz contractx.Business, userID, tool string, args map[string]any) (any, error) {
	switch tool {
	case contractx.ToolCompanyInfo:
		query, err := stringArg(args, "query")
		if err != nil {
			return nil, err
		}
		if query == nil || strings.TrimSpace(*query) == "" {
			return nil, fmt.Errorf("%w: query is required", contractx.ErrValidation)
		}
		m, err := biz.CompanyInfo(ctx, userID, *query)
		if err != nil {
			return nil, err
		}
		return CompanyInfoOutput{Topic: m.Section.ID, Title: m.Section.Title, Content: m.Section.Content}, nil

	case contractx.ToolSearchVehicles:
		criteria, err := criteriaFromArgs(args)
		if err != nil {
			return nil, err
		}
		res, err := biz.SearchVehicles(ctx, userID, criteria)
		if err != nil {
			return nil, err
		}
		out := SearchOutput{Count: res.Len(), Vehicles: make([]ListedVehicle, 0, res.Len())}
		for i, v := range res.Vehicles {
			out.Vehicles = append(out.Vehicles, ListedVehicle{Position: i + 1, Vehicle: v})
		}
		return out, nil

	case contractx.ToolSelectVehicle:
		var sel contractx.Selection
		var err error
		if sel.Position, err = intArg(args, "position"); err != nil {
			return nil, err
		}
		stockID, err := intArg(args, "stock_id")
		if err != nil {
			return nil, err
		}
		if stockID != nil {
			id := int64(*stockID)
			sel.StockID = &id
		}
		return biz.SelectVehicle(ctx, userID, sel)

	case contractx.ToolFinancingOptions:
		var req contractx.FinancingRequest
		var err error
		if req.TermYears, err = intArg(args, "term_years"); err != nil {
			return nil, err
		}
		if req.DownPayment, err = floatArg(args, "down_payment"); err != nil {
			return nil, err
		}
		if req.DownPaymentPct, err = floatArg(args, "down_payment_pct"); err != nil {
			return nil, err
		}
		plans, err := biz.GetFinancingOptions(ctx, userID, req)
		if err != nil {
			return nil, err
		}
		out := FinancingOutput{Plans: make([]finance.Plan, len(plans))}
		for i, p := range plans {
			out.Plans[i] = p.Rounded()
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownTool, tool)
	}
}

func criteriaFromArgs(args map[string]any) (search.Criteria, error) {
	var c search.Criteria
	var err error
	if c.Brand, err = stringArg(args, "brand"); err != nil {
		return c, err
	}
	if c.Model, err = stringArg(args, "model"); err != nil {
		return c, err
	}
	if c.YearMin, err = intArg(args, "year_min"); err != nil {
		return c, err
	}
	if c.YearMax, err = intArg(args, "year_max"); err != nil {
		return c, err
	}
	if c.PriceMin, err = floatArg(args, "price_min"); err != nil {
		return c, err
	}
	if c.PriceMax, err = floatArg(args, "price_max"); err != nil {
		return c, err
	}
	if c.MileageMin, err = intArg(args, "km_min"); err != nil {
		return c, err
	}
	if c.MileageMax, err = intArg(args, "km_max"); err != nil {
		return c, err
	}
	if c.Bluetooth, err = boolArg(args, "bluetooth"); err != nil {
		return c, err
	}
	if c.CarPlay, err = boolArg(args, "car_play"); err != nil {
		return c, err
	}
	limit, err := intArg(args, "limit")
	if err != nil {
		return c, err
	}
	if limit != nil {
		c.Limit = *limit
	}
	return c, nil
}

// Classify maps a facade error to its code and structured detail.
func Classify(err error) (contractx.ErrorCode, map[string]any) {
	var (
		oor      *search.OutOfRangeError
		invalid  *finance.InvalidInputError
		mismatch *statex.SelectionMismatchError
	)
	switch {
	case errors.As(err, &oor):
		if oor.Empty() {
			return contractx.CodeEmptyResults, map[string]any{"position": oor.Position}
		}
		return contractx.CodeOutOfRange, map[string]any{"position": oor.Position, "available": oor.Available}
	case errors.As(err, &invalid):
		return contractx.CodeInvalidFinancing, map[string]any{"field": invalid.Field, "value": invalid.Value, "allowed": invalid.Allowed}
	case errors.As(err, &mismatch):
		return contractx.CodeSelectionMismatch, map[string]any{"stock_id": mismatch.VehicleID}
	case errors.Is(err, business.ErrNoSearch):
		return contractx.CodeNoSearch, nil
	case errors.Is(err, business.ErrNoVehicleSelected):
		return contractx.CodeNoSelection, nil
	case errors.Is(err, business.ErrVehicleNotFound):
		return contractx.CodeVehicleNotFound, nil
	case errors.Is(err, contractx.ErrUnknownTool):
		return contractx.CodeUnknownTool, map[string]any{"available": Names()}
	case errors.Is(err, contractx.ErrValidation), errors.Is(err, statex.ErrInvalidUser):
		return contractx.CodeValidation, nil
	default:
		return contractx.CodeInternal, nil
	}
}

func stringArg(args map[string]any, key string) (*string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string", contractx.ErrValidation, key)
	}
	return &s, nil
}

func floatArg(args map[string]any, key string) (*float64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", contractx.ErrValidation, key)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", contractx.ErrValidation, key)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("%w: %s must be a number", contractx.ErrValidation, key)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s must be finite", contractx.ErrValidation, key)
	}
	return &f, nil
}

func intArg(args map[string]any, key string) (*int, error) {
	f, err := floatArg(args, key)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
	}
	n := int(*f)
	return &n, nil
}

func boolArg(args map[string]any, key string) (*bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case bool:
		return &v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a boolean", contractx.ErrValidation, key)
		}
		return &b, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a boolean", contractx.ErrValidation, key)
	}
}
