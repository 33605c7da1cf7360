package inspect

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/dataquay/pkg/adapters/datasource"
	"github.com/ekaya-inc/dataquay/pkg/apperrors"
	"github.com/ekaya-inc/dataquay/pkg/cache"
	"github.com/ekaya-inc/dataquay/pkg/schema"
)

// Inspector resolves a semantic dictionary against one data source and
// produces an annotated DatabaseSchema. Column profiling fans out
// concurrently; the source's own semaphore bounds total backend load, so
// table- and column-level work share one ceiling.
type Inspector struct {
	source datasource.DataSource
	cache  cache.Cache // nil disables intermediate caching
	logger *zap.Logger
}

// NewInspector binds an inspector to a source. memo may be nil when
// intermediate caching is not wanted.
func NewInspector(source datasource.DataSource, memo cache.Cache, logger *zap.Logger) *Inspector {
	return &Inspector{
		source: source,
		cache:  memo,
		logger: logger.Named("inspect"),
	}
}

// InspectionTag is the cache tag grouping all intermediate entries of one
// source's inspections, for caller-triggered invalidation.
func InspectionTag(source string) string {
	return source + "/" + cache.OpInspectSchema
}

// Invalidate drops every cached intermediate inspection entry for this
// inspector's source.
func (i *Inspector) Invalidate(ctx context.Context) error {
	if i.cache == nil {
		return nil
	}
	return i.cache.InvalidateTag(ctx, InspectionTag(i.source.Name()))
}

type selectionKind int

const (
	selExplicit    selectionKind = iota // user-listed column set
	selExplicitAll                      // user "all": columns regex does not apply
	selRegexAll                         // matched by tables regex
)

type tableSelection struct {
	kind        selectionKind
	description string
	columns     map[string]string // column -> description
}

// Inspect resolves dict against the physical schema and profiles the
// selected columns per opts. Any missing table or column, and any failed
// profiling query, aborts the whole inspection.
func (i *Inspector) Inspect(ctx context.Context, dict *SemanticDict, opts Options) (*schema.DatabaseSchema, error) {
	opts = opts.normalized()

	var tablesRe, columnsRe *regexp.Regexp
	var err error
	if opts.TablesRegex != "" {
		if tablesRe, err = regexp.Compile(opts.TablesRegex); err != nil {
			return nil, apperrors.NewConfigurationError("tables_regex", err.Error())
		}
	}
	if opts.ColumnsRegex != "" {
		if columnsRe, err = regexp.Compile(opts.ColumnsRegex); err != nil {
			return nil, apperrors.NewConfigurationError("columns_regex", err.Error())
		}
	}
	if dict == nil {
		dict = NewSemanticDict()
	}

	raw, err := i.source.InspectRawSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("inspect raw schema: %w", err)
	}

	selections, err := i.resolveSelections(dict, raw, tablesRe, columnsRe)
	if err != nil {
		return nil, err
	}

	out := schema.NewDatabaseSchema(i.source.Type(), i.source.Name())

	type columnJob struct {
		table  string
		column string
		desc   string
		dtype  string
		result *schema.ColumnSchema
	}

	var jobs []*columnJob
	tableSchemas := make(map[string]*schema.TableSchema, len(selections))
	// Physical catalog order keeps summaries stable across runs.
	for _, tableName := range raw.TableNames() {
		sel, ok := selections[tableName]
		if !ok {
			continue
		}
		rawTable := raw.Tables[tableName]
		ts := &schema.TableSchema{
			Name:        tableName,
			SchemaName:  rawTable.SchemaName,
			Description: sel.description,
		}
		tableSchemas[tableName] = ts
		out.AddTable(ts)

		for _, rawCol := range rawTable.Columns {
			desc, selected := sel.columns[rawCol.Name]
			if !selected {
				continue
			}
			jobs = append(jobs, &columnJob{
				table:  tableName,
				column: rawCol.Name,
				desc:   desc,
				dtype:  rawCol.DataType,
			})
		}
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			col, err := i.inspectColumn(groupCtx, job.table, job.column, job.desc, job.dtype, opts)
			if err != nil {
				return err
			}
			job.result = col
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		tableSchemas[job.table].AddColumn(job.result)
	}

	i.logger.Debug("inspected schema",
		zap.String("source", i.source.Name()),
		zap.Int("tables", len(out.Tables)),
		zap.Int("columns", len(jobs)))
	return out, nil
}

// resolveSelections expands the dictionary against the physical schema:
// "full" selects everything, the tables regex adds unlisted matching tables,
// the columns regex adds matching columns to non-"all" tables. Explicit
// entries always win over regex additions. Unknown identifiers fail loudly.
func (i *Inspector) resolveSelections(
	dict *SemanticDict,
	raw *schema.RawSchema,
	tablesRe, columnsRe *regexp.Regexp,
) (map[string]*tableSelection, error) {
	selections := make(map[string]*tableSelection)

	if dict.Full {
		for _, tableName := range raw.TableNames() {
			selections[tableName] = &tableSelection{kind: selExplicitAll}
		}
	} else {
		for tableName, entry := range dict.Tables {
			if entry.All {
				selections[tableName] = &tableSelection{
					kind:        selExplicitAll,
					description: entry.Description,
				}
				continue
			}
			columns := make(map[string]string, len(entry.Columns))
			for col, desc := range entry.Columns {
				columns[col] = desc
			}
			selections[tableName] = &tableSelection{
				kind:        selExplicit,
				description: entry.Description,
				columns:     columns,
			}
		}
		if tablesRe != nil {
			for _, tableName := range raw.TableNames() {
				if _, exists := selections[tableName]; exists {
					continue
				}
				if matchFull(tablesRe, tableName) {
					selections[tableName] = &tableSelection{kind: selRegexAll}
				}
			}
		}
	}

	for tableName, sel := range selections {
		rawTable, ok := raw.Tables[tableName]
		if !ok {
			return nil, apperrors.NewTableNotFound(tableName)
		}

		switch sel.kind {
		case selExplicitAll, selRegexAll:
			sel.columns = make(map[string]string, len(rawTable.Columns))
			for _, col := range rawTable.Columns {
				sel.columns[col.Name] = ""
			}
		case selExplicit:
			for col := range sel.columns {
				if _, exists := rawTable.Column(col); !exists {
					return nil, apperrors.NewColumnNotFound(tableName, col, rawTable.ColumnNames())
				}
			}
			if columnsRe != nil {
				for _, col := range rawTable.Columns {
					if _, exists := sel.columns[col.Name]; exists {
						continue
					}
					if matchFull(columnsRe, col.Name) {
						sel.columns[col.Name] = ""
					}
				}
			}
		}
	}
	return selections, nil
}

// matchFull anchors the pattern to the whole identifier.
func matchFull(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// inspectColumn profiles one column, serving and filling the intermediate
// cache when enabled.
func (i *Inspector) inspectColumn(
	ctx context.Context,
	table, column, desc, dtype string,
	opts Options,
) (*schema.ColumnSchema, error) {
	useCache := opts.CacheIntermediateResults && i.cache != nil

	var key string
	if useCache {
		var err error
		key, err = cache.Key(map[string]any{
			"op":          cache.OpInspectSchema,
			"source_type": i.source.Type(),
			"source":      i.source.Name(),
			"options":     opts.CacheDiscriminant(),
			"path":        fmt.Sprintf("%s/%s/%s/%s", i.source.Name(), cache.OpInspectSchema, table, column),
		})
		if err != nil {
			return nil, err
		}
		var cached schema.ColumnSchema
		err = cache.GetJSON(ctx, i.cache, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !cache.IsMiss(err) {
			return nil, err
		}
	}

	values, stats, err := i.inspectColumnValues(ctx, table, column, dtype, opts)
	if err != nil {
		return nil, err
	}

	col := &schema.ColumnSchema{
		Name:        column,
		DataType:    dtype,
		Description: desc,
		Values:      values,
	}
	if !stats.IsZero() {
		col.ValueStats = stats
	}

	if useCache {
		if err := cache.SetJSON(ctx, i.cache, key, col, InspectionTag(i.source.Name())); err != nil {
			return nil, err
		}
	}
	return col, nil
}

// inspectColumnValues applies the sampling strategy and statistics options
// to one column.
func (i *Inspector) inspectColumnValues(
	ctx context.Context,
	table, column, dtype string,
	opts Options,
) ([]string, *schema.ColumnValuesStats, error) {
	stats := &schema.ColumnValuesStats{}
	if opts.ValueSampling == SamplingNone && !opts.InspectColumnStats {
		return nil, stats, nil
	}

	p := &profiler{source: i.source}

	general, err := p.generalStats(ctx, table, column)
	if err != nil {
		return nil, nil, err
	}

	var values []string
	if opts.ValueSampling == SamplingCategoricalOnly {
		if isStringType(dtype) &&
			(isLowCardinalityType(dtype) || general.NUnique < int64(opts.MaxEnumValues)) {
			distinct, err := p.distinctValues(ctx, table, column, opts.MaxEnumValues+1)
			if err != nil {
				return nil, nil, err
			}
			values = schema.FormatValues(distinct, opts.MaxEnumValues)
		}
	}

	if opts.ValueSampling == SamplingTopP {
		// Identifier, datetime, array, and pre-aggregated columns carry no
		// repeatable values worth showing, and near-unique columns would
		// only surface noise. Small tables get sampled regardless.
		eligible := !isIdentifierColumn(column) &&
			!isDatetimeType(dtype) &&
			!isArrayType(dtype) &&
			!isAggregateType(dtype) &&
			general.UniqueRate <= opts.MaxUniqueRate
		if eligible || general.NUnique < int64(opts.MaxEnumValues) {
			topK, err := p.topKValues(ctx, table, column, TopKCount, general.NRows)
			if err != nil {
				return nil, nil, err
			}
			stats.TopKValues = topK
		}
	}

	if opts.InspectColumnStats {
		stats.DistinctCount = &general.NUnique
		stats.NullRate = &general.NullRate
		stats.UniqueRate = &general.UniqueRate

		if isNumericType(dtype) && !isIdentifierColumn(column) {
			if err := p.numericStats(ctx, table, column, stats); err != nil {
				return nil, nil, err
			}
		}
		if isStringType(dtype) {
			if err := p.stringLengthStats(ctx, table, column, stats); err != nil {
				return nil, nil, err
			}
		}
	}

	return values, stats, nil
}
