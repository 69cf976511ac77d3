package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"
)

// Repo 本地事件日志：只追加，不在启动时回读
type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  type TEXT NOT NULL,
  exchange TEXT NOT NULL,
  symbol TEXT NOT NULL,
  strategy TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts_ms);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);

CREATE TABLE IF NOT EXISTS trades (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  strategy TEXT NOT NULL,
  exchange TEXT NOT NULL,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  entry_price REAL NOT NULL,
  exit_price REAL NOT NULL,
  pnl REAL NOT NULL,
  reason TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy);
CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts_ms);

CREATE TABLE IF NOT EXISTS latest_books (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  exchange TEXT NOT NULL,
  symbol TEXT NOT NULL,
  bid TEXT NOT NULL,
  ask TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  UNIQUE(exchange, symbol)
);
`)
	return err
}

// Emit 写入事件；平仓事件同时写入 trades，快照事件更新 latest_books
func (r *Repo) Emit(ctx context.Context, ev model.Event) error {
	payload, err := json.Marshal(ev.Fields)
	if err != nil {
		return err
	}
	ts := ev.Time.UnixMilli()
	now := time.Now().UnixMilli()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO events(ts_ms, type, exchange, symbol, strategy, payload, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, ts, string(ev.Type), ev.Exchange, ev.Symbol, ev.Strategy, string(payload), now); err != nil {
		return err
	}

	switch ev.Type {
	case model.EventPositionClosed:
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO trades(strategy, exchange, symbol, side, entry_price, exit_price, pnl, reason, ts_ms, created_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, ev.Strategy, ev.Exchange, ev.Symbol,
			fieldString(ev, "side"), fieldFloat(ev, "entry_price"), fieldFloat(ev, "exit_price"),
			fieldFloat(ev, "pnl"), fieldString(ev, "reason"), ts, now)
	case model.EventBookSnapshot:
		_, err = r.db.ExecContext(ctx, `
			INSERT INTO latest_books(exchange, symbol, bid, ask, ts_ms)
			VALUES(?, ?, ?, ?, ?)
			ON CONFLICT(exchange, symbol) DO UPDATE SET
			bid=excluded.bid, ask=excluded.ask, ts_ms=excluded.ts_ms
		`, ev.Exchange, ev.Symbol, fieldString(ev, "bid"), fieldString(ev, "ask"), ts)
	}
	return err
}

// RecentEvents 最新的在前
func (r *Repo) RecentEvents(ctx context.Context, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT ts_ms, type, exchange, symbol, strategy, payload
		FROM events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ts int64
		var typ, exchange, symbol, strategy, payload string
		if err := rows.Scan(&ts, &typ, &exchange, &symbol, &strategy, &payload); err != nil {
			return nil, err
		}
		ev := model.Event{
			Type:     model.EventType(typ),
			Time:     time.UnixMilli(ts),
			Exchange: exchange,
			Symbol:   symbol,
			Strategy: strategy,
		}
		if payload != "" && payload != "null" {
			_ = json.Unmarshal([]byte(payload), &ev.Fields)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// TradeRow trades 表的一行
type TradeRow struct {
	Strategy   string  `json:"strategy"`
	Exchange   string  `json:"exchange"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	PnL        float64 `json:"pnl"`
	Reason     string  `json:"reason"`
	Ts         int64   `json:"ts_ms"`
}

func (r *Repo) ListTrades(ctx context.Context, strategy string) ([]TradeRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strategy, exchange, symbol, side, entry_price, exit_price, pnl, reason, ts_ms
		FROM trades WHERE strategy = ? ORDER BY id
	`, strategy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRow
	for rows.Next() {
		var t TradeRow
		if err := rows.Scan(&t.Strategy, &t.Exchange, &t.Symbol, &t.Side, &t.EntryPrice, &t.ExitPrice, &t.PnL, &t.Reason, &t.Ts); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LatestBook 最近一次快照的最优买卖价
func (r *Repo) LatestBook(ctx context.Context, exchange, symbol string) (bid, ask string, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT bid, ask FROM latest_books WHERE exchange=? AND symbol=?`, exchange, symbol).
		Scan(&bid, &ask)
	return
}

func fieldString(ev model.Event, key string) string {
	if v, ok := ev.Fields[key].(string); ok {
		return v
	}
	return ""
}

func fieldFloat(ev model.Event, key string) float64 {
	switch v := ev.Fields[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

var (
	_ port.TelemetryCloser = (*Repo)(nil)
	_ port.EventReader     = (*Repo)(nil)
)
