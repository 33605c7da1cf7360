// Package mssql implements the SQL Server data source adapter.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/adapters/datasource"
	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/config"
	"github.com/ekaya-inc/dataquay/pkg/logging"
	"github.com/ekaya-inc/dataquay/pkg/schema"
)

func init() {
	datasource.Register(config.SourceTypeMSSQL, New)
}

// Source is a SQL Server-backed DataSource.
type Source struct {
	name    string
	db      *sql.DB
	sem     *datasource.Semaphore
	limit   int
	timeout time.Duration
	logger  *zap.Logger
	closed  chan struct{}
}

// New connects to SQL Server and verifies the connection with a ping.
func New(ctx context.Context, cfg *config.SourceConfig, logger *zap.Logger) (datasource.DataSource, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		if cfg.Options != "" {
			dsn += "&" + cfg.Options
		}
	}

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	if cfg.MaxConcurrentRequests > 0 {
		db.SetMaxOpenConns(cfg.MaxConcurrentRequests)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", logging.SanitizeConnectionString(dsn), err)
	}

	logger.Info("connected mssql source",
		zap.String("source", cfg.Name),
		zap.String("dsn", logging.SanitizeConnectionString(dsn)))

	return &Source{
		name:    cfg.Name,
		db:      db,
		sem:     datasource.NewSemaphore(cfg.MaxConcurrentRequests),
		limit:   cfg.LimitMaxRows,
		timeout: time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
		logger:  logger.Named("mssql"),
		closed:  make(chan struct{}),
	}, nil
}

var _ datasource.DataSource = (*Source)(nil)

// Name implements DataSource.
func (s *Source) Name() string { return s.name }

// Type implements DataSource.
func (s *Source) Type() string { return config.SourceTypeMSSQL }

// QuoteIdentifier implements DataSource using bracket quoting.
func (s *Source) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
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

	// No trailing LIMIT clause in T-SQL. Subquery-safe statements get a
	// TOP wrapper; anything else is bracketed with SET ROWCOUNT.
	effective := query
	if s.limit > 0 {
		trimmed := strings.TrimRight(strings.TrimSpace(query), ";")
		// CTEs cannot appear inside a derived table in T-SQL.
		if datasource.CanLimit(query) && !strings.HasPrefix(strings.ToLower(strings.TrimSpace(query)), "with") {
			effective = fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited", s.limit, trimmed)
		} else {
			effective = fmt.Sprintf("SET ROWCOUNT %d;\n%s;\nSET ROWCOUNT 0;", s.limit, trimmed)
		}
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

// InspectRawSchema implements DataSource against INFORMATION_SCHEMA.
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

	const query = `
		SELECT c.TABLE_SCHEMA, c.TABLE_NAME, c.COLUMN_NAME, c.DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS c
		JOIN INFORMATION_SCHEMA.TABLES t
		  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
		WHERE t.TABLE_TYPE IN ('BASE TABLE', 'VIEW')
		  AND c.TABLE_SCHEMA NOT IN ('sys', 'INFORMATION_SCHEMA')
		ORDER BY c.TABLE_SCHEMA, c.TABLE_NAME, c.ORDINAL_POSITION`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	raw := schema.NewRawSchema()
	for rows.Next() {
		var schemaName, tableName, columnName, dataType string
		if err := rows.Scan(&schemaName, &tableName, &columnName, &dataType); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		table, ok := raw.Tables[tableName]
		if !ok {
			table = &schema.RawTable{Name: tableName, SchemaName: schemaName}
			raw.AddTable(table)
		}
		table.Columns = append(table.Columns, schema.RawColumn{Name: columnName, DataType: dataType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
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
