package app

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	brcfg "github.com/Gfz-arka/MFE-5250/internal/config"
	cfgloader "github.com/Gfz-arka/MFE-5250/internal/config/loader"
	"github.com/Gfz-arka/MFE-5250/internal/logger"
	"github.com/Gfz-arka/MFE-5250/internal/market"
	"github.com/Gfz-arka/MFE-5250/internal/store"
	resultshttp "github.com/Gfz-arka/MFE-5250/internal/transport/http/results"
)

// App 负责应用级编排：加载配置→初始化依赖→运行分层回测，serve 模式下常驻提供结果 API。
type App struct {
	cfg      *brcfg.Config
	universe *cfgloader.UniverseLoader
	store    store.Store
	cache    *market.Cache
	pipeline *Pipeline
	server   *resultshttp.Server
	Summary  *StartupSummary

	closeOnce sync.Once
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Symbols 返回当前股票池：有清单时取清单，否则取 data.symbols。
func (a *App) Symbols() []string {
	if a.universe != nil {
		return a.universe.Symbols()
	}
	return append([]string(nil), a.cfg.Data.Symbols...)
}

// Pipeline 暴露回测流水线。
func (a *App) Pipeline() *Pipeline { return a.pipeline }

// RunOnce 跑一轮完整的分层回测。
func (a *App) RunOnce(ctx context.Context) (*Outcome, error) {
	if a == nil || a.pipeline == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return a.pipeline.Execute(ctx, a.Symbols())
}

// Run 先跑一轮回测；配置了 HTTP 地址时继续常驻，清单变更会触发重跑。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()
	if a.Summary != nil {
		a.Summary.Print()
	}
	if _, err := a.RunOnce(ctx); err != nil {
		return err
	}
	if a.server == nil {
		return nil
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("results http server error: %w", err)
		}
		return nil
	})
	if a.universe != nil {
		rerun := make(chan struct{}, 1)
		a.universe.Subscribe(func(cfgloader.UniverseSnapshot) {
			select {
			case rerun <- struct{}{}:
			default:
			}
		})
		group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-rerun:
					logger.Infof("[app] 股票池已变更，重新回测")
					if _, err := a.RunOnce(ctx); err != nil && ctx.Err() == nil {
						logger.Errorf("[app] 重新回测失败: %v", err)
					}
				}
			}
		})
	}
	return group.Wait()
}

// Close 释放存储与缓存。
func (a *App) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() {
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				logger.Warnf("[app] 关闭结果库失败: %v", err)
			}
		}
		if a.cache != nil {
			if err := a.cache.Close(); err != nil {
				logger.Warnf("[app] 关闭行情缓存失败: %v", err)
			}
		}
	})
}
