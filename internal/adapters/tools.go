// Package adapters exposes budget figures to an external assistant as named
// tools with JSON results.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	applog "pocketbook/internal/log"
	"pocketbook/internal/services"
)

// ToolSpendDetails reports the weekly budget and the trailing week's spend.
const ToolSpendDetails = "get_spend_details"

var ErrUnknownTool = errors.New("unknown tool")

// SpendReporter is the slice of the budget service the tools read from.
type SpendReporter interface {
	SpendStatus(ctx context.Context, userID int64) (services.SpendStatus, error)
}

// Tool describes one callable tool.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SpendDetails is the result of get_spend_details.
type SpendDetails struct {
	WeeklyMaxBudget decimal.Decimal `json:"weekly_max_budget"`
	WeeklySpend     decimal.Decimal `json:"weekly_spend"`
}

type toolFunc func(ctx context.Context, userID int64, args json.RawMessage) (any, error)

// ToolAdapter dispatches tool calls by name for an authenticated user.
type ToolAdapter struct {
	tools map[string]toolFunc
	docs  map[string]string
}

func NewToolAdapter(budget SpendReporter) *ToolAdapter {
	a := &ToolAdapter{
		tools: map[string]toolFunc{},
		docs:  map[string]string{},
	}
	a.register(ToolSpendDetails,
		"Weekly spending budget and the amount spent in the last seven days.",
		func(ctx context.Context, userID int64, _ json.RawMessage) (any, error) {
			st, err := budget.SpendStatus(ctx, userID)
			if err != nil {
				return nil, err
			}
			return SpendDetails{
				WeeklyMaxBudget: st.WeeklyBudget.Round(2),
				WeeklySpend:     st.WeeklySpend.Round(2),
			}, nil
		})
	return a
}

func (a *ToolAdapter) register(name, doc string, fn toolFunc) {
	a.tools[name] = fn
	a.docs[name] = doc
}

// Tools lists the registered tools sorted by name.
func (a *ToolAdapter) Tools() []Tool {
	out := make([]Tool, 0, len(a.tools))
	for name := range a.tools {
		out = append(out, Tool{Name: name, Description: a.docs[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs the named tool. An unregistered name yields ErrUnknownTool.
func (a *ToolAdapter) Call(ctx context.Context, userID int64, name string, args json.RawMessage) (any, error) {
	fn, ok := a.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	res, err := fn(ctx, userID, args)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	slog.DebugContext(ctx, "Tool call served",
		applog.FieldComponent, applog.ComponentHTTP,
		"tool", name,
		applog.FieldUserID, userID)
	return res, nil
}
