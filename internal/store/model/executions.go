package model

// ExecutionModel maps to 'backtest_executions' table, one row per fill.
type ExecutionModel struct {
	ID         int64   `gorm:"column:id;primaryKey;autoIncrement"`
	RunID      string  `gorm:"column:run_id;index:idx_exec_run,priority:1"`
	Seq        int     `gorm:"column:seq;index:idx_exec_run,priority:2"`
	Date       string  `gorm:"column:date"`
	Symbol     string  `gorm:"column:symbol"`
	Direction  string  `gorm:"column:direction"`
	Side       string  `gorm:"column:side"`
	Quantity   int64   `gorm:"column:quantity"`
	Price      float64 `gorm:"column:price"`
	Commission float64 `gorm:"column:commission"`
	SignalID   int64   `gorm:"column:signal_id"`
	OrderID    int64   `gorm:"column:order_id"`
}

func (ExecutionModel) TableName() string { return "backtest_executions" }
