package market

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Manifest 记录某个标的缓存文件的统计信息。
type Manifest struct {
	Symbol     string `json:"symbol"`
	Factor     string `json:"factor"`
	MinDate    string `json:"min_date"`
	MaxDate    string `json:"max_date"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
	Path       string `json:"path"`
}

// Cache 把加载好的日线按标的落到 sqlite 文件，便于重复回测时跳过 CSV 解析。
type Cache struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewCache(root string) (*Cache, error) {
	if root == "" {
		return nil, fmt.Errorf("cache root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Cache{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for k, db := range c.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.dbs, k)
	}
	return firstErr
}

func (c *Cache) db(symbol string) (*sql.DB, string, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, "", fmt.Errorf("symbol 不能为空")
	}
	key := strings.ToUpper(symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	path := c.dbPath(symbol)
	if db, ok := c.dbs[key]; ok && db != nil {
		return db, path, nil
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureBarSchema(db, symbol); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	c.dbs[key] = db
	return db, path, nil
}

func (c *Cache) dbPath(symbol string) string {
	return filepath.Join(c.root, strings.ToUpper(symbol)+".db")
}

func ensureBarSchema(db *sql.DB, symbol string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			date       TEXT PRIMARY KEY,
			open       REAL NOT NULL,
			high       REAL NOT NULL,
			low        REAL NOT NULL,
			close      REAL NOT NULL,
			factor     REAL,
			pct_change REAL
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			id INTEGER PRIMARY KEY CHECK (id=1),
			symbol TEXT NOT NULL,
			factor TEXT NOT NULL DEFAULT '',
			min_date TEXT,
			max_date TEXT,
			rows INTEGER DEFAULT 0,
			last_sync_at INTEGER
		);`,
		`INSERT INTO manifest (id, symbol) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET symbol=excluded.symbol;`,
	}
	for i, stmt := range stmts {
		var err error
		if i == len(stmts)-1 {
			_, err = db.Exec(stmt, strings.ToUpper(symbol))
		} else {
			_, err = db.Exec(stmt)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// InsertBars 覆盖写入某标的的全部日线（旧数据整体替换，保证与因子列一致）。
func (c *Cache) InsertBars(ctx context.Context, symbol, factor string, bars []Bar) (int, error) {
	db, _, err := c.db(symbol)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bars`); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (date, open, high, low, close, factor, pct_change)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Date.Format(DateLayout), b.Open, b.High, b.Low, b.Close, b.Factor, b.PctChange); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE manifest
		SET factor = ?,
		    min_date = (SELECT MIN(date) FROM bars),
		    max_date = (SELECT MAX(date) FROM bars),
		    rows = (SELECT COUNT(1) FROM bars),
		    last_sync_at = ?
		WHERE id = 1`, factor, time.Now().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// LoadBars 读取某标的 start 及之后的全部日线（按日期升序）。
func (c *Cache) LoadBars(ctx context.Context, symbol string, start time.Time) ([]Bar, error) {
	db, _, err := c.db(symbol)
	if err != nil {
		return nil, err
	}
	from := ""
	if !start.IsZero() {
		from = start.Format(DateLayout)
	}
	rows, err := db.QueryContext(ctx, `
		SELECT date, open, high, low, close, factor, pct_change
		FROM bars WHERE date >= ? ORDER BY date ASC`, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Bar
	for rows.Next() {
		var (
			b    Bar
			date string
		)
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &b.Factor, &b.PctChange); err != nil {
			return nil, err
		}
		if b.Date, err = time.ParseInLocation(DateLayout, date, time.UTC); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

func (c *Cache) Manifest(ctx context.Context, symbol string) (Manifest, error) {
	db, path, err := c.db(symbol)
	if err != nil {
		return Manifest{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT symbol, factor, COALESCE(min_date,''), COALESCE(max_date,''), rows, COALESCE(last_sync_at,0) FROM manifest WHERE id=1`)
	var m Manifest
	if err := row.Scan(&m.Symbol, &m.Factor, &m.MinDate, &m.MaxDate, &m.Rows, &m.LastSyncAt); err != nil {
		return Manifest{}, err
	}
	m.Path = path
	return m, nil
}

// SaveTable 将整张行情表写入缓存。
func (c *Cache) SaveTable(ctx context.Context, t *Table) error {
	for _, sym := range t.Symbols() {
		bars, _ := t.Bars(sym)
		if _, err := c.InsertBars(ctx, sym, t.Factor(), bars); err != nil {
			return fmt.Errorf("cache %s: %w", sym, err)
		}
	}
	return nil
}

// LoadTable 从缓存恢复行情表；缓存的因子与请求不一致时报错。
func (c *Cache) LoadTable(ctx context.Context, symbols []string, factor string, start time.Time) (*Table, error) {
	series := make(map[string][]Bar, len(symbols))
	for _, sym := range symbols {
		m, err := c.Manifest(ctx, sym)
		if err != nil {
			return nil, err
		}
		if m.Rows > 0 && !strings.EqualFold(m.Factor, factor) {
			return nil, fmt.Errorf("cache %s 因子为 %q，与请求的 %q 不一致", sym, m.Factor, factor)
		}
		bars, err := c.LoadBars(ctx, sym, start)
		if err != nil {
			return nil, fmt.Errorf("cache %s: %w", sym, err)
		}
		series[sym] = bars
	}
	return NewTable(factor, symbols, series)
}
