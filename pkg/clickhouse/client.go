package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Client owns the ClickHouse connection pool. Repositories reach the pool
// through DB(); the Client itself only handles lifecycle and schema setup.
type Client struct {
	db *sql.DB
}

// NewClient opens a pool against ClickHouse and verifies it with a ping.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := clientConfig{
		port:        9000,
		user:        "default",
		maxOpen:     10,
		maxIdle:     5,
		maxLifetime: 5 * time.Minute,
		dialTimeout: 5 * time.Second,
		readTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.host == "" {
		return nil, fmt.Errorf("clickhouse: host is required")
	}

	db, err := sql.Open("clickhouse", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(cfg.maxOpen)
	db.SetMaxIdleConns(cfg.maxIdle)
	db.SetConnMaxLifetime(cfg.maxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.dialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	return &Client{db: db}, nil
}

// dsn renders the config as a clickhouse-go connection URL.
func (c clientConfig) dsn() string {
	u := url.URL{
		Scheme: "clickhouse",
		User:   url.UserPassword(c.user, c.password),
		Host:   fmt.Sprintf("%s:%d", c.host, c.port),
		Path:   "/" + c.database,
	}
	if c.useHTTP {
		u.Scheme = "clickhouse+http"
	}

	q := url.Values{}
	if c.dialTimeout > 0 {
		q.Set("dial_timeout", c.dialTimeout.String())
	}
	if c.readTimeout > 0 {
		q.Set("read_timeout", c.readTimeout.String())
	}
	if c.maxExecTime > 0 {
		q.Set("max_execution_time", strconv.Itoa(int(c.maxExecTime.Seconds())))
	}
	if c.asyncInsert {
		q.Set("async_insert", "1")
		if c.waitForAsync {
			q.Set("wait_for_async_insert", "1")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// DB exposes the pool for query execution.
func (c *Client) DB() *sql.DB { return c.db }

// Health pings the server, for readiness probes.
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close drains the pool.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// InitSchema executes DDL statements in order. All statements are expected
// to be IF NOT EXISTS so repeated startups are harmless.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
