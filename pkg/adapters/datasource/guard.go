package datasource

import (
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// Statement keywords allowed at the start of a query. Everything the
// oracle produces must be a read.
var readOnlyKeywords = map[string]bool{
	"select":  true,
	"with":    true,
	"show":    true,
	"explain": true,
	"pragma":  true,
	"values":  true,
}

// Keywords that mutate state or escape the read-only sandbox, rejected
// anywhere they appear as a standalone token outside string literals.
var forbiddenKeywords = map[string]bool{
	"insert":   true,
	"update":   true,
	"delete":   true,
	"drop":     true,
	"alter":    true,
	"create":   true,
	"truncate": true,
	"grant":    true,
	"revoke":   true,
	"attach":   true,
	"detach":   true,
	"vacuum":   true,
	"merge":    true,
	"exec":     true,
	"execute":  true,
	"call":     true,
	"copy":     true,
	"into":     true,
}

// ValidateReadOnly rejects queries that are not plain reads. It checks the
// leading keyword, scans for mutating keywords outside string literals, and
// runs injection detection over every string literal in the query.
func ValidateReadOnly(query string) error {
	stripped, literals := stripLiterals(query)
	trimmed := strings.TrimSpace(stripped)
	if trimmed == "" {
		return fmt.Errorf("empty query")
	}

	tokens := tokenize(trimmed)
	if len(tokens) == 0 {
		return fmt.Errorf("empty query")
	}
	if !readOnlyKeywords[tokens[0]] {
		return fmt.Errorf("only read queries are allowed, got %q statement", tokens[0])
	}
	for _, tok := range tokens {
		if forbiddenKeywords[tok] {
			return fmt.Errorf("forbidden keyword %q in query", tok)
		}
	}

	for _, lit := range literals {
		if found, _ := libinjection.IsSQLi(lit); found {
			return fmt.Errorf("query literal failed injection check")
		}
	}
	return nil
}

// CanLimit reports whether a query can be wrapped in a limiting subselect.
// Introspection statements like EXPLAIN or PRAGMA cannot.
func CanLimit(query string) bool {
	tokens := tokenize(strings.TrimSpace(query))
	if len(tokens) == 0 {
		return false
	}
	switch tokens[0] {
	case "select", "with", "values":
		return true
	}
	return false
}

// stripLiterals replaces single and double quoted literal contents with
// placeholders and returns the collected literal bodies. Doubled quotes
// inside a literal are treated as escapes.
func stripLiterals(query string) (string, []string) {
	var out strings.Builder
	var literals []string
	runes := []rune(query)

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if ch != '\'' && ch != '"' {
			out.WriteRune(ch)
			continue
		}
		quote := ch
		var body strings.Builder
		i++
		for i < len(runes) {
			if runes[i] == quote {
				if i+1 < len(runes) && runes[i+1] == quote {
					body.WriteRune(quote)
					i += 2
					continue
				}
				break
			}
			body.WriteRune(runes[i])
			i++
		}
		literals = append(literals, body.String())
		out.WriteString(" ? ")
	}
	return out.String(), literals
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_'
	})
	return fields
}
