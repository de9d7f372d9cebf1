package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"FlowSentinel/internal/model"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists snapshots to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.SugaredLogger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.SugaredLogger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the service writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Infow("sqlite recorder opened", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS flow_snapshots (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp       INTEGER NOT NULL,
			group_name      TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			price           REAL,
			daily_shares    INTEGER,
			daily_dollars   INTEGER,
			weekly_shares   INTEGER,
			weekly_dollars  INTEGER,
			monthly_shares  INTEGER,
			monthly_dollars INTEGER,
			yearly_shares   INTEGER,
			yearly_dollars  INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flow_symbol_ts ON flow_snapshots(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS snapshot_errors (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			message   TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS burn_periods (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			ledger_index   INTEGER NOT NULL,
			current_supply INTEGER NOT NULL,
			total_burned   INTEGER NOT NULL,
			period         TEXT NOT NULL,
			burned         INTEGER,
			resolved_index INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_burn_ts ON burn_periods(timestamp)`,

		`CREATE TABLE IF NOT EXISTS richlist_stats (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			account_count  INTEGER,
			whale_count    INTEGER,
			total_balance  REAL,
			mean_balance   REAL,
			median_balance REAL,
			gini           REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_richlist_ts ON richlist_stats(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSnapshot(ctx context.Context, res *model.FetchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, row := range flowRows(res) {
		_, err := tx.ExecContext(ctx, `INSERT INTO flow_snapshots
			(timestamp, group_name, symbol, price,
			 daily_shares, daily_dollars, weekly_shares, weekly_dollars,
			 monthly_shares, monthly_dollars, yearly_shares, yearly_dollars)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			row.Timestamp.Unix(), row.Group, row.Symbol, row.Price,
			row.DailyShares, row.DailyDollars, row.WeeklyShares, row.WeeklyDollars,
			row.MonthlyShares, row.MonthlyDollars, row.YearlyShares, row.YearlyDollars,
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", row.Symbol, err)
		}
	}
	for _, msg := range res.Errors {
		if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_errors (timestamp, message) VALUES (?,?)`,
			res.Timestamp.Unix(), msg); err != nil {
			return fmt.Errorf("insert error row: %w", err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordBurn(ctx context.Context, rep *model.BurnReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, row := range burnRows(rep) {
		_, err := tx.ExecContext(ctx, `INSERT INTO burn_periods
			(timestamp, ledger_index, current_supply, total_burned, period, burned, resolved_index)
			VALUES (?,?,?,?,?,?,?)`,
			row.Timestamp.Unix(), row.LedgerIndex, row.CurrentSupply, row.TotalBurned,
			row.Period, row.Burned, row.ResolvedIndex,
		)
		if err != nil {
			return fmt.Errorf("insert period %s: %w", row.Period, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordRichList(ctx context.Context, list *model.RichList) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := richListRowFrom(list)
	_, err := r.db.ExecContext(ctx, `INSERT INTO richlist_stats
		(timestamp, account_count, whale_count, total_balance, mean_balance, median_balance, gini)
		VALUES (?,?,?,?,?,?,?)`,
		row.Timestamp.Unix(), row.AccountCount, row.WhaleCount,
		row.TotalBalance, row.MeanBalance, row.Median, row.Gini,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
