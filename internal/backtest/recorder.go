package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/feed"
	"github.com/Gfz-arka/MFE-5250/internal/logger"
	"github.com/Gfz-arka/MFE-5250/internal/market"
	"github.com/Gfz-arka/MFE-5250/internal/portfolio"
	"github.com/Gfz-arka/MFE-5250/internal/store"
	"github.com/Gfz-arka/MFE-5250/internal/store/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RunStats 是写入 stats_json 的汇总。
type RunStats struct {
	Summary     portfolio.Summary `json:"summary"`
	Counters    Counters          `json:"counters"`
	Diagnostics feed.Diagnostics  `json:"diagnostics"`
	Positions   map[string]int64  `json:"positions"`
	Cash        float64           `json:"cash"`
	Basket      []string          `json:"basket,omitempty"`
}

// ResultRecorder 把分层结果写入结果库：runs + equity + executions 在同一事务内。
type ResultRecorder struct {
	store store.Store
	now   func() time.Time
}

func NewResultRecorder(s store.Store) *ResultRecorder {
	return &ResultRecorder{store: s, now: time.Now}
}

// NewBatchID 为一次多层回测生成批次号。
func NewBatchID() string { return uuid.NewString() }

// Record 返回新 run 的 ID。
func (r *ResultRecorder) Record(ctx context.Context, batchID string, cfg RunnerConfig, res *LayerResult) (string, error) {
	if r == nil || r.store == nil {
		return "", fmt.Errorf("result recorder 未初始化")
	}
	if res == nil {
		return "", fmt.Errorf("layer result 不能为空")
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	statsJSON, err := json.Marshal(RunStats{
		Summary:     res.Summary,
		Counters:    res.Counters,
		Diagnostics: res.Diagnostics,
		Positions:   res.Positions,
		Cash:        res.Cash,
		Basket:      res.Basket,
	})
	if err != nil {
		return "", err
	}
	now := r.now().UnixMilli()
	run := &model.RunModel{
		ID:               uuid.NewString(),
		BatchID:          batchID,
		Layer:            res.Layer,
		Strategy:         res.Strategy,
		Factor:           res.Factor,
		Status:           model.RunStatusDone,
		InitialCapital:   cfg.InitialCapital,
		FinalValue:       res.Summary.FinalValue,
		TotalReturn:      res.Summary.TotalReturn,
		Sharpe:           res.Summary.Sharpe,
		MaxDrawdown:      res.Summary.MaxDrawdown,
		DrawdownDuration: res.Summary.DrawdownDuration,
		Ticks:            res.Counters.Ticks,
		Signals:          res.Counters.Signals,
		Orders:           res.Counters.Orders,
		Fills:            res.Counters.Fills,
		Rejected:         res.Counters.Rejected,
		FactorNA:         res.Diagnostics.FactorNA,
		ConfigJSON:       datatypes.JSON(cfgJSON),
		StatsJSON:        datatypes.JSON(statsJSON),
		Message:          "完成",
		CreatedAtUnix:    now,
		UpdatedAtUnix:    now,
		CompletedAtUnix:  &now,
	}

	points := make([]model.EquityPointModel, 0, len(res.Equity))
	for i, p := range res.Equity {
		holdings, err := json.Marshal(p.Holdings)
		if err != nil {
			return "", err
		}
		points = append(points, model.EquityPointModel{
			RunID:        run.ID,
			Seq:          i,
			Date:         p.Date.Format(market.DateLayout),
			Cash:         p.Cash,
			Commission:   p.Commission,
			Total:        p.Total,
			Returns:      p.Returns,
			Equity:       p.Equity,
			HoldingsJSON: datatypes.JSON(holdings),
		})
	}
	rows := make([]model.ExecutionModel, 0, len(res.Executions))
	for i, e := range res.Executions {
		rows = append(rows, model.ExecutionModel{
			RunID:      run.ID,
			Seq:        i,
			Date:       e.Date.Format(market.DateLayout),
			Symbol:     e.Symbol,
			Direction:  string(e.Direction),
			Side:       string(e.Side),
			Quantity:   e.Quantity,
			Price:      e.Price,
			Commission: e.Commission,
			SignalID:   e.SignalID,
			OrderID:    e.OrderID,
		})
	}

	uow, err := r.store.Begin(ctx)
	if err != nil {
		return "", err
	}
	if err := uow.Runs().Save(ctx, run); err != nil {
		_ = uow.Rollback()
		return "", fmt.Errorf("写入 run 失败: %w", err)
	}
	if err := uow.Equity().InsertBatch(ctx, points); err != nil {
		_ = uow.Rollback()
		return "", fmt.Errorf("写入权益曲线失败: %w", err)
	}
	if err := uow.Executions().InsertBatch(ctx, rows); err != nil {
		_ = uow.Rollback()
		return "", fmt.Errorf("写入执行记录失败: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return "", err
	}
	logger.Infof("[backtest] run %s (batch=%s layer=%d) 已保存: points=%d executions=%d", run.ID, batchID, res.Layer, len(points), len(rows))
	return run.ID, nil
}

// RecordFailure 记录失败的分层，便于在结果浏览中看到原因。
func (r *ResultRecorder) RecordFailure(ctx context.Context, batchID string, cfg RunnerConfig, layer int, cause error) (string, error) {
	if r == nil || r.store == nil {
		return "", fmt.Errorf("result recorder 未初始化")
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	now := r.now().UnixMilli()
	run := &model.RunModel{
		ID:              uuid.NewString(),
		BatchID:         batchID,
		Layer:           layer,
		Strategy:        cfg.Strategy,
		Factor:          cfg.Factor,
		Status:          model.RunStatusFailed,
		InitialCapital:  cfg.InitialCapital,
		ConfigJSON:      datatypes.JSON(cfgJSON),
		Message:         cause.Error(),
		CreatedAtUnix:   now,
		UpdatedAtUnix:   now,
		CompletedAtUnix: &now,
	}
	if err := r.store.Runs().Save(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}
