// Package postgres implements the PostgreSQL data source adapter on
// pgx connection pools.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dataquay/pkg/adapters/datasource"
	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/config"
	"github.com/ekaya-inc/dataquay/pkg/logging"
	"github.com/ekaya-inc/dataquay/pkg/schema"
)

func init() {
	datasource.Register(config.SourceTypePostgres, New)
}

// Source is a PostgreSQL-backed DataSource.
type Source struct {
	name    string
	pool    *pgxpool.Pool
	sem     *datasource.Semaphore
	typeMap *pgtype.Map
	limit   int
	timeout time.Duration
	logger  *zap.Logger
	closed  chan struct{}
}

// New connects a pgx pool for the configured source and verifies it with a
// ping, so misconfiguration fails at construction rather than first query.
func New(ctx context.Context, cfg *config.SourceConfig, logger *zap.Logger) (datasource.DataSource, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
		if cfg.Options != "" {
			dsn += "?" + cfg.Options
		}
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MaxConcurrentRequests > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConcurrentRequests)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", logging.SanitizeConnectionString(dsn), err)
	}

	logger.Info("connected postgres source",
		zap.String("source", cfg.Name),
		zap.String("dsn", logging.SanitizeConnectionString(dsn)))

	return &Source{
		name:    cfg.Name,
		pool:    pool,
		sem:     datasource.NewSemaphore(cfg.MaxConcurrentRequests),
		typeMap: pgtype.NewMap(),
		limit:   cfg.LimitMaxRows,
		timeout: time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
		logger:  logger.Named("postgres"),
		closed:  make(chan struct{}),
	}, nil
}

var _ datasource.DataSource = (*Source)(nil)

// Name implements DataSource.
func (s *Source) Name() string { return s.name }

// Type implements DataSource.
func (s *Source) Type() string { return config.SourceTypePostgres }

// QuoteIdentifier implements DataSource using double-quote doubling.
func (s *Source) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Execute implements DataSource. Row caps are applied by wrapping the query
// in a limited subselect, which works for any read statement shape.
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
			stripTrailingSemicolon(query), s.limit)
	}

	s.logger.Debug("executing query", zap.String("query", logging.SanitizeQuery(effective)))

	rows, err := s.pool.Query(runCtx, effective)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &datasource.Result{Err: apperrors.NewExecutionError(query, err)}, nil
	}
	defer rows.Close()

	table, err := s.collectRows(rows)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &datasource.Result{Err: apperrors.NewExecutionError(query, err)}, nil
	}
	return &datasource.Result{Table: table}, nil
}

func (s *Source) collectRows(rows pgx.Rows) (*datasource.Table, error) {
	fields := rows.FieldDescriptions()
	columns := make([]datasource.Column, len(fields))
	for i, fd := range fields {
		typeName := "unknown"
		if t, ok := s.typeMap.TypeForOID(fd.DataTypeOID); ok {
			typeName = t.Name
		}
		columns[i] = datasource.Column{Name: fd.Name, Type: typeName}
	}

	table := &datasource.Table{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col.Name] = normalizeValue(values[i])
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case [16]byte: // uuid
		var u strings.Builder
		for i, b := range val {
			if i == 4 || i == 6 || i == 8 || i == 10 {
				u.WriteByte('-')
			}
			fmt.Fprintf(&u, "%02x", b)
		}
		return u.String()
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}

// InspectRawSchema implements DataSource against information_schema,
// skipping system schemas.
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
		SELECT c.table_schema, c.table_name, c.column_name, c.data_type
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema NOT IN ('pg_catalog', 'information_schema')
		  AND t.table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY c.table_schema, c.table_name, c.ordinal_position`

	rows, err := s.pool.Query(ctx, query)
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
	s.pool.Close()
	return nil
}

func stripTrailingSemicolon(query string) string {
	return strings.TrimRight(strings.TrimSpace(query), ";")
}
