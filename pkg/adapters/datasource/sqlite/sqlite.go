// Package sqlite implements the SQLite data source adapter. Besides
// opening existing database files it backs in-memory sessions where callers
// register ad-hoc tables and query them like any other source.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/dataquay/pkg/adapters/datasource"
	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/config"
	"github.com/ekaya-inc/dataquay/pkg/logging"
	"github.com/ekaya-inc/dataquay/pkg/schema"
)

func init() {
	datasource.Register(config.SourceTypeSQLite, New)
}

// Source is a SQLite-backed DataSource.
type Source struct {
	name    string
	db      *sql.DB
	sem     *datasource.Semaphore
	limit   int
	timeout time.Duration
	logger  *zap.Logger
	closed  chan struct{}
}

// New opens a SQLite database. Path ":memory:" gives an empty in-memory
// database intended for RegisterTable.
func New(ctx context.Context, cfg *config.SourceConfig, logger *zap.Logger) (datasource.DataSource, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", cfg.Path)
	if cfg.Path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids table-lock errors.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Path, err)
	}

	logger.Info("opened sqlite source",
		zap.String("source", cfg.Name),
		zap.String("path", cfg.Path))

	return &Source{
		name:    cfg.Name,
		db:      db,
		sem:     datasource.NewSemaphore(cfg.MaxConcurrentRequests),
		limit:   cfg.LimitMaxRows,
		timeout: time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
		logger:  logger.Named("sqlite"),
		closed:  make(chan struct{}),
	}, nil
}

// NewInMemory builds an in-memory source for ad-hoc tables with default
// limits.
func NewInMemory(ctx context.Context, name string, logger *zap.Logger) (*Source, error) {
	src, err := New(ctx, &config.SourceConfig{
		SourceType:            config.SourceTypeSQLite,
		Name:                  name,
		Path:                  ":memory:",
		LimitMaxRows:          10000,
		MaxConcurrentRequests: datasource.DefaultMaxConcurrentRequests,
	}, logger)
	if err != nil {
		return nil, err
	}
	return src.(*Source), nil
}

var _ datasource.DataSource = (*Source)(nil)

// Name implements DataSource.
func (s *Source) Name() string { return s.name }

// Type implements DataSource.
func (s *Source) Type() string { return config.SourceTypeSQLite }

// QuoteIdentifier implements DataSource using double-quote doubling.
func (s *Source) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// RegisterTable creates (or replaces) a table from in-memory rows so it can
// be queried like any backend table. Column types are inferred from the
// first non-nil value in each column.
func (s *Source) RegisterTable(ctx context.Context, name string, columns []string, rows [][]any) error {
	select {
	case <-s.closed:
		return apperrors.ErrSourceClosed
	default:
	}
	if name == "" {
		return apperrors.NewConfigurationError("table", "table name is required")
	}
	if len(columns) == 0 {
		return apperrors.NewConfigurationError("columns", "at least one column is required")
	}
	for _, row := range rows {
		if len(row) != len(columns) {
			return apperrors.NewConfigurationError("rows",
				fmt.Sprintf("row has %d values, table %q has %d columns", len(row), name, len(columns)))
		}
	}

	if err := s.sem.Acquire(ctx); err != nil {
		return err
	}
	defer s.sem.Release()

	quoted := s.QuoteIdentifier(name)
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = s.QuoteIdentifier(col) + " " + inferColumnType(rows, i)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register table: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoted); err != nil {
		return fmt.Errorf("replace table %s: %w", name, err)
	}
	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoted, strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("create table %s: %w", name, err)
	}

	if len(rows) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
		stmt, err := tx.PrepareContext(ctx,
			fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoted, placeholders))
		if err != nil {
			return fmt.Errorf("prepare insert for %s: %w", name, err)
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return fmt.Errorf("insert row into %s: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit register table: %w", err)
	}

	s.logger.Debug("registered table",
		zap.String("table", name), zap.Int("rows", len(rows)))
	return nil
}

func inferColumnType(rows [][]any, col int) string {
	for _, row := range rows {
		switch row[col].(type) {
		case nil:
			continue
		case int, int8, int16, int32, int64, uint, uint32, uint64, bool:
			return "INTEGER"
		case float32, float64:
			return "REAL"
		case []byte:
			return "BLOB"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

// Execute implements DataSource.
func (s *Source) Execute(ctx context.Context, query string) (*datasource.Result, error) {
	select {
	case <-s.closed:
		return nil, apperrors.ErrSourceClosed
	default:
	}

	if err := datasource.ValidateReadOnly(query); err != nil {
		return &datasource.Result{Err: apperrors.NewExecutionError(query, err)}, nil
	}

	if err := s.sem.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release()

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	effective := query
	if s.limit > 0 && datasource.CanLimit(query) {
		effective = fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d",
			strings.TrimRight(strings.TrimSpace(query), ";"), s.limit)
	}

	s.logger.Debug("executing query", zap.String("query", logging.SanitizeQuery(effective)))

	rows, err := s.db.QueryContext(runCtx, effective)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &datasource.Result{Err: apperrors.NewExecutionError(query, err)}, nil
	}
	defer rows.Close()

	table, err := datasource.ScanRows(rows)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &datasource.Result{Err: apperrors.NewExecutionError(query, err)}, nil
	}
	return &datasource.Result{Table: table}, nil
}

// InspectRawSchema implements DataSource via sqlite_master and table_info.
func (s *Source) InspectRawSchema(ctx context.Context) (*schema.RawSchema, error) {
	select {
	case <-s.closed:
		return nil, apperrors.ErrSourceClosed
	default:
	}

	if err := s.sem.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.sem.Release()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tableNames = append(tableNames, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	raw := schema.NewRawSchema()
	for _, tableName := range tableNames {
		table := &schema.RawTable{Name: tableName}
		colRows, err := s.db.QueryContext(ctx,
			fmt.Sprintf("PRAGMA table_info(%s)", s.QuoteIdentifier(tableName)))
		if err != nil {
			return nil, fmt.Errorf("describe table %s: %w", tableName, err)
		}
		for colRows.Next() {
			var cid int
			var name, colType string
			var notNull, pk int
			var dflt sql.NullString
			if err := colRows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
				colRows.Close()
				return nil, fmt.Errorf("scan column of %s: %w", tableName, err)
			}
			table.Columns = append(table.Columns, schema.RawColumn{Name: name, DataType: colType})
		}
		if err := colRows.Err(); err != nil {
			colRows.Close()
			return nil, fmt.Errorf("iterate columns of %s: %w", tableName, err)
		}
		colRows.Close()
		raw.AddTable(table)
	}
	return raw, nil
}

// Close implements DataSource.
func (s *Source) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
		close(s.closed)
	}
	return s.db.Close()
}
