package model

import "gorm.io/datatypes"

const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// RunModel 对应一次分层回测（一个 layer 一行），同一次调用的各层共享 BatchID。
type RunModel struct {
	ID               string         `gorm:"column:id;primaryKey"`
	BatchID          string         `gorm:"column:batch_id;index"`
	Layer            int            `gorm:"column:layer"`
	Strategy         string         `gorm:"column:strategy"`
	Factor           string         `gorm:"column:factor"`
	Status           string         `gorm:"column:status"`
	InitialCapital   float64        `gorm:"column:initial_capital"`
	FinalValue       float64        `gorm:"column:final_value"`
	TotalReturn      float64        `gorm:"column:total_return"`
	Sharpe           float64        `gorm:"column:sharpe"`
	MaxDrawdown      float64        `gorm:"column:max_drawdown"`
	DrawdownDuration int            `gorm:"column:drawdown_duration"`
	Ticks            int            `gorm:"column:ticks"`
	Signals          int            `gorm:"column:signals"`
	Orders           int            `gorm:"column:orders"`
	Fills            int            `gorm:"column:fills"`
	Rejected         int            `gorm:"column:rejected"`
	FactorNA         int            `gorm:"column:factor_na"`
	ConfigJSON       datatypes.JSON `gorm:"column:config_json;type:TEXT"`
	StatsJSON        datatypes.JSON `gorm:"column:stats_json;type:TEXT"`
	Message          string         `gorm:"column:message"`
	CreatedAtUnix    int64          `gorm:"column:created_at"`
	UpdatedAtUnix    int64          `gorm:"column:updated_at"`
	CompletedAtUnix  *int64         `gorm:"column:completed_at"`
}

func (RunModel) TableName() string { return "backtest_runs" }

// EquityPointModel 是权益曲线上的一个点。
type EquityPointModel struct {
	ID           int64          `gorm:"column:id;primaryKey;autoIncrement"`
	RunID        string         `gorm:"column:run_id;index:idx_equity_run,priority:1"`
	Seq          int            `gorm:"column:seq;index:idx_equity_run,priority:2"`
	Date         string         `gorm:"column:date"`
	Cash         float64        `gorm:"column:cash"`
	Commission   float64        `gorm:"column:commission"`
	Total        float64        `gorm:"column:total"`
	Returns      float64        `gorm:"column:returns"`
	Equity       float64        `gorm:"column:equity_curve"`
	HoldingsJSON datatypes.JSON `gorm:"column:holdings_json;type:TEXT"`
}

func (EquityPointModel) TableName() string { return "backtest_equity" }
