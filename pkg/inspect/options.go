// Package inspect turns a raw physical schema into an annotated
// DatabaseSchema by resolving a semantic dictionary against the backend and
// optionally profiling column values and statistics.
package inspect

// ValueSamplingStrategy selects how column values are sampled during
// inspection. Strategies are mutually exclusive per inspection.
type ValueSamplingStrategy string

const (
	// SamplingNone collects no values.
	SamplingNone ValueSamplingStrategy = "none"
	// SamplingCategoricalOnly collects the full value enumeration of
	// low-cardinality string columns.
	SamplingCategoricalOnly ValueSamplingStrategy = "categorical_only"
	// SamplingTopP collects most-frequent values with frequencies for
	// columns where that is informative.
	SamplingTopP ValueSamplingStrategy = "top_p"
)

// Defaults for inspection options.
const (
	DefaultMaxEnumValues = 20
	DefaultMaxUniqueRate = 0.1
	// TopKCount is how many most-frequent values TOP_P sampling keeps.
	TopKCount = 10
)

// Options controls one schema inspection.
type Options struct {
	// ValueSampling selects the sampling strategy; empty means none.
	ValueSampling ValueSamplingStrategy `json:"value_sampling_strategy" yaml:"value_sampling_strategy"`

	// InspectColumnStats additionally computes per-column statistics:
	// distinct counts, null/unique rates, numeric min/max/mean for
	// numeric non-identifier columns, length stats for string columns.
	InspectColumnStats bool `json:"inspect_column_stats" yaml:"inspect_column_stats"`

	// MaxEnumValues caps the size of collected value enumerations and
	// doubles as the small-table threshold for sampling overrides.
	MaxEnumValues int `json:"max_enum_values" yaml:"max_enum_values"`

	// MaxUniqueRate excludes near-unique columns from TOP_P sampling;
	// their frequent values are noise, not signal.
	MaxUniqueRate float64 `json:"max_unique_rate" yaml:"max_unique_rate"`

	// TablesRegex implicitly selects tables whose name fully matches,
	// in addition to the semantic dictionary. Explicit entries win.
	TablesRegex string `json:"tables_regex,omitempty" yaml:"tables_regex"`

	// ColumnsRegex implicitly selects columns whose name fully matches
	// on each selected table. Explicit "all" tables are not filtered.
	ColumnsRegex string `json:"columns_regex,omitempty" yaml:"columns_regex"`

	// CacheIntermediateResults stores each profiled column separately
	// so interrupted inspections resume instead of restarting.
	CacheIntermediateResults bool `json:"cache_intermediate_results" yaml:"cache_intermediate_results"`
}

// DefaultOptions returns Options with sampling off and defaults filled in.
func DefaultOptions() Options {
	return Options{
		ValueSampling: SamplingNone,
		MaxEnumValues: DefaultMaxEnumValues,
		MaxUniqueRate: DefaultMaxUniqueRate,
	}
}

// normalized fills zero values with defaults.
func (o Options) normalized() Options {
	if o.ValueSampling == "" {
		o.ValueSampling = SamplingNone
	}
	if o.MaxEnumValues <= 0 {
		o.MaxEnumValues = DefaultMaxEnumValues
	}
	if o.MaxUniqueRate <= 0 {
		o.MaxUniqueRate = DefaultMaxUniqueRate
	}
	return o
}

// CacheDiscriminant returns the fields of the options that change
// inspection results, for inclusion in cache keys.
func (o Options) CacheDiscriminant() map[string]any {
	o = o.normalized()
	return map[string]any{
		"value_sampling_strategy": string(o.ValueSampling),
		"inspect_column_stats":    o.InspectColumnStats,
		"max_enum_values":         o.MaxEnumValues,
		"max_unique_rate":         o.MaxUniqueRate,
		"tables_regex":            o.TablesRegex,
		"columns_regex":           o.ColumnsRegex,
	}
}
