// Package resultshttp 以只读 HTTP API 暴露已持久化的回测结果与报告页面。
package resultshttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gfz-arka/MFE-5250/internal/logger"
	"github.com/Gfz-arka/MFE-5250/internal/report"
	"github.com/Gfz-arka/MFE-5250/internal/store"
	"github.com/Gfz-arka/MFE-5250/internal/store/model"
)

// Server 提供回测结果查询 API。
type Server struct {
	addr   string
	repos  store.Repositories
	router *gin.Engine
}

// Config 描述结果 HTTP Server 的依赖。
type Config struct {
	Addr  string
	Store store.Repositories
	// RatePerSec <= 0 时不限流
	RatePerSec float64
	Burst      int
}

// NewServer 构建结果 HTTP Server。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	if cfg.RatePerSec > 0 {
		router.Use(newClientLimiter(cfg.RatePerSec, cfg.Burst).middleware())
	}
	s := &Server{addr: cfg.Addr, repos: cfg.Store, router: router}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := s.router.Group("/api")
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/equity", s.handleRunEquity)
	api.GET("/runs/:id/executions", s.handleRunExecutions)
	s.router.GET("/report/:id", s.handleReport)
}

// Handler 返回底层路由，供测试或嵌入其他服务使用。
func (s *Server) Handler() http.Handler { return s.router }

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

func (s *Server) handleRunList(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		runs []model.RunModel
		err  error
	)
	if batch := c.Query("batch"); batch != "" {
		runs, err = s.repos.Runs().ListByBatch(ctx, batch)
	} else {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		runs, err = s.repos.Runs().ListRecent(ctx, limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]runView, 0, len(runs))
	for i := range runs {
		views = append(views, newRunView(&runs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"runs": views})
}

// lookupRun 找不到时已写出 404，调用方直接返回。
func (s *Server) lookupRun(c *gin.Context) (*model.RunModel, bool) {
	run, err := s.repos.Runs().FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return nil, false
	}
	return run, true
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, ok := s.lookupRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": newRunView(run)})
}

func (s *Server) handleRunEquity(c *gin.Context) {
	run, ok := s.lookupRun(c)
	if !ok {
		return
	}
	points, err := s.repos.Equity().ListByRun(c.Request.Context(), run.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]equityView, 0, len(points))
	for _, p := range points {
		views = append(views, newEquityView(p))
	}
	c.JSON(http.StatusOK, gin.H{"equity": views})
}

func (s *Server) handleRunExecutions(c *gin.Context) {
	run, ok := s.lookupRun(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "500"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit 非法"})
		return
	}
	rows, err := s.repos.Executions().ListByRun(c.Request.Context(), run.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]executionView, 0, len(rows))
	for _, r := range rows {
		views = append(views, newExecutionView(r))
	}
	c.JSON(http.StatusOK, gin.H{"executions": views})
}

// handleReport 渲染该 run 所在批次的全部分层净值曲线。
func (s *Server) handleReport(c *gin.Context) {
	run, ok := s.lookupRun(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	batch, err := s.repos.Runs().ListByBatch(ctx, run.BatchID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	input := report.PageInput{
		Title:    fmt.Sprintf("%s · %s", run.Factor, run.Strategy),
		Subtitle: fmt.Sprintf("batch %s", run.BatchID),
	}
	for _, r := range batch {
		points, err := s.repos.Equity().ListByRun(ctx, r.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		series := report.Series{Name: fmt.Sprintf("layer %d", r.Layer)}
		for _, p := range points {
			series.Dates = append(series.Dates, p.Date)
			series.Values = append(series.Values, p.Equity)
		}
		input.Layers = append(input.Layers, series)
	}
	html, err := report.BuildPage(input)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("[http] %s %s status=%d ip=%s dur=%s", c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("[http] 结果 API 已启动: %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
