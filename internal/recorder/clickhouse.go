package recorder

import (
	"context"
	"fmt"
	"time"

	"FlowSentinel/internal/model"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

var clickHouseTables = []string{
	`CREATE TABLE IF NOT EXISTS flow_snapshots (
		timestamp       DateTime,
		group_name      String,
		symbol          String,
		price           Float64,
		daily_shares    Nullable(Int64),
		daily_dollars   Nullable(Int64),
		weekly_shares   Nullable(Int64),
		weekly_dollars  Nullable(Int64),
		monthly_shares  Nullable(Int64),
		monthly_dollars Nullable(Int64),
		yearly_shares   Nullable(Int64),
		yearly_dollars  Nullable(Int64)
	) ENGINE = MergeTree()
	ORDER BY (symbol, timestamp)`,
	`CREATE TABLE IF NOT EXISTS burn_periods (
		timestamp      DateTime,
		ledger_index   Int64,
		current_supply Int64,
		total_burned   Int64,
		period         String,
		burned         Nullable(Int64),
		resolved_index Nullable(Int64)
	) ENGINE = MergeTree()
	ORDER BY (period, timestamp)`,
	`CREATE TABLE IF NOT EXISTS richlist_stats (
		timestamp      DateTime,
		account_count  Int64,
		whale_count    Int64,
		total_balance  Float64,
		mean_balance   Float64,
		median_balance Float64,
		gini           Float64
	) ENGINE = MergeTree()
	ORDER BY timestamp`,
}

// ClickHouseOptions locates the analytics database.
type ClickHouseOptions struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseRecorder appends snapshots to ClickHouse in batches.
type ClickHouseRecorder struct {
	conn   driver.Conn
	logger *zap.SugaredLogger
}

// NewClickHouseRecorder connects and creates the tables if needed.
func NewClickHouseRecorder(ctx context.Context, opts ClickHouseOptions, logger *zap.SugaredLogger) (*ClickHouseRecorder, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Protocol:    clickhouse.Native,
		DialTimeout: 10 * time.Second,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	for _, stmt := range clickHouseTables {
		if err := conn.Exec(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("create table: %w", err)
		}
	}

	logger.Infow("clickhouse recorder opened", "addr", opts.Addr, "database", opts.Database)
	return &ClickHouseRecorder{conn: conn, logger: logger}, nil
}

func (r *ClickHouseRecorder) RecordSnapshot(ctx context.Context, res *model.FetchResult) error {
	rows := flowRows(res)
	if len(rows) == 0 {
		return nil
	}
	return r.insert(ctx, "flow_snapshots", len(rows), func(b driver.Batch) error {
		for i := range rows {
			if err := b.AppendStruct(&rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ClickHouseRecorder) RecordBurn(ctx context.Context, rep *model.BurnReport) error {
	rows := burnRows(rep)
	if len(rows) == 0 {
		return nil
	}
	return r.insert(ctx, "burn_periods", len(rows), func(b driver.Batch) error {
		for i := range rows {
			if err := b.AppendStruct(&rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ClickHouseRecorder) RecordRichList(ctx context.Context, list *model.RichList) error {
	row := richListRowFrom(list)
	return r.insert(ctx, "richlist_stats", 1, func(b driver.Batch) error {
		return b.AppendStruct(&row)
	})
}

func (r *ClickHouseRecorder) insert(ctx context.Context, table string, n int, fill func(driver.Batch) error) error {
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", table, err)
	}
	if err := fill(batch); err != nil {
		_ = batch.Abort()
		return fmt.Errorf("append %s: %w", table, err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send %s: %w", table, err)
	}
	r.logger.Debugw("clickhouse batch sent", "table", table, "rows", n)
	return nil
}

func (r *ClickHouseRecorder) Close() error {
	r.logger.Info("closing clickhouse recorder")
	return r.conn.Close()
}
