package inspect

import "strings"

// Declared-type classification. Backends report types with varying casing
// and parameterization ("VARCHAR(255)", "Nullable(String)"), so matching is
// case-insensitive substring matching on the normalized name.

func normalizeType(dtype string) string {
	return strings.ToLower(strings.TrimSpace(dtype))
}

func containsAny(dtype string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(dtype, n) {
			return true
		}
	}
	return false
}

func isNumericType(dtype string) bool {
	d := normalizeType(dtype)
	return containsAny(d,
		"int", "serial", "decimal", "numeric", "real", "float", "double", "money")
}

func isStringType(dtype string) bool {
	d := normalizeType(dtype)
	return containsAny(d, "char", "text", "string", "clob")
}

func isDatetimeType(dtype string) bool {
	d := normalizeType(dtype)
	return containsAny(d, "date", "time", "interval")
}

func isArrayType(dtype string) bool {
	d := normalizeType(dtype)
	return strings.HasPrefix(d, "array") || strings.HasSuffix(d, "[]")
}

// isAggregateType matches pre-aggregated column types (ClickHouse
// AggregateFunction and friends) that cannot be profiled by value.
func isAggregateType(dtype string) bool {
	d := normalizeType(dtype)
	return containsAny(d, "aggregatefunction", "simpleaggregatefunction")
}

// isLowCardinalityType matches types whose domain is small by construction.
func isLowCardinalityType(dtype string) bool {
	d := normalizeType(dtype)
	return containsAny(d, "bool", "enum", "lowcardinality")
}

// isIdentifierColumn reports whether a column is a key or surrogate
// identifier by naming convention. Identifier values are opaque and only
// clutter a schema summary.
func isIdentifierColumn(name string) bool {
	n := strings.ToLower(name)
	if n == "id" || n == "uuid" || n == "guid" {
		return true
	}
	return strings.HasSuffix(n, "_id") || strings.HasSuffix(n, "_uuid") ||
		strings.HasSuffix(n, "_guid") || strings.HasSuffix(n, "_key")
}
