package resultshttp

import (
	"encoding/json"

	"github.com/Gfz-arka/MFE-5250/internal/store/model"
)

type runView struct {
	ID               string          `json:"id"`
	BatchID          string          `json:"batch_id"`
	Layer            int             `json:"layer"`
	Strategy         string          `json:"strategy"`
	Factor           string          `json:"factor"`
	Status           string          `json:"status"`
	InitialCapital   float64         `json:"initial_capital"`
	FinalValue       float64         `json:"final_value"`
	TotalReturn      float64         `json:"total_return"`
	Sharpe           float64         `json:"sharpe"`
	MaxDrawdown      float64         `json:"max_drawdown"`
	DrawdownDuration int             `json:"drawdown_duration"`
	Ticks            int             `json:"ticks"`
	Signals          int             `json:"signals"`
	Orders           int             `json:"orders"`
	Fills            int             `json:"fills"`
	Rejected         int             `json:"rejected"`
	FactorNA         int             `json:"factor_na"`
	Config           json.RawMessage `json:"config,omitempty"`
	Stats            json.RawMessage `json:"stats,omitempty"`
	Message          string          `json:"message,omitempty"`
	CreatedAt        int64           `json:"created_at"`
	CompletedAt      *int64          `json:"completed_at,omitempty"`
}

func newRunView(r *model.RunModel) runView {
	v := runView{
		ID:               r.ID,
		BatchID:          r.BatchID,
		Layer:            r.Layer,
		Strategy:         r.Strategy,
		Factor:           r.Factor,
		Status:           r.Status,
		InitialCapital:   r.InitialCapital,
		FinalValue:       r.FinalValue,
		TotalReturn:      r.TotalReturn,
		Sharpe:           r.Sharpe,
		MaxDrawdown:      r.MaxDrawdown,
		DrawdownDuration: r.DrawdownDuration,
		Ticks:            r.Ticks,
		Signals:          r.Signals,
		Orders:           r.Orders,
		Fills:            r.Fills,
		Rejected:         r.Rejected,
		FactorNA:         r.FactorNA,
		Message:          r.Message,
		CreatedAt:        r.CreatedAtUnix,
		CompletedAt:      r.CompletedAtUnix,
	}
	if len(r.ConfigJSON) > 0 {
		v.Config = json.RawMessage(r.ConfigJSON)
	}
	if len(r.StatsJSON) > 0 {
		v.Stats = json.RawMessage(r.StatsJSON)
	}
	return v
}

type equityView struct {
	Date       string             `json:"date"`
	Cash       float64            `json:"cash"`
	Commission float64            `json:"commission"`
	Total      float64            `json:"total"`
	Returns    float64            `json:"returns"`
	Equity     float64            `json:"equity_curve"`
	Holdings   map[string]float64 `json:"holdings,omitempty"`
}

func newEquityView(p model.EquityPointModel) equityView {
	v := equityView{
		Date:       p.Date,
		Cash:       p.Cash,
		Commission: p.Commission,
		Total:      p.Total,
		Returns:    p.Returns,
		Equity:     p.Equity,
	}
	if len(p.HoldingsJSON) > 0 {
		_ = json.Unmarshal(p.HoldingsJSON, &v.Holdings)
	}
	return v
}

type executionView struct {
	Date       string  `json:"date"`
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Side       string  `json:"side"`
	Quantity   int64   `json:"quantity"`
	Price      float64 `json:"price"`
	Commission float64 `json:"commission"`
	SignalID   int64   `json:"signal_id"`
	OrderID    int64   `json:"order_id"`
}

func newExecutionView(r model.ExecutionModel) executionView {
	return executionView{
		Date:       r.Date,
		Symbol:     r.Symbol,
		Direction:  r.Direction,
		Side:       r.Side,
		Quantity:   r.Quantity,
		Price:      r.Price,
		Commission: r.Commission,
		SignalID:   r.SignalID,
		OrderID:    r.OrderID,
	}
}
