// Package prompts renders the prompt text shown to the reasoning oracle.
// Prompts are built explicitly with strings.Builder; there are no template
// files and no process-global template state.
package prompts

import (
	"strings"
	"time"
)

// SystemPromptInput carries everything the system prompt is rendered from.
type SystemPromptInput struct {
	// SchemaSummary is the rendered schema of every session source.
	SchemaSummary string
	// Date anchors relative time expressions in questions ("last month").
	Date time.Time
	// ExtraContext is optional domain knowledge supplied by the caller.
	ExtraContext string
	// Sources lists the source names the oracle can query. With a single
	// source the tool takes no source argument.
	Sources []string
}

// BuildSystemPrompt renders the system message that opens every
// conversation with the oracle.
func BuildSystemPrompt(input SystemPromptInput) string {
	var sb strings.Builder

	sb.WriteString("You are a data analyst answering questions about tabular data.\n")
	sb.WriteString("You answer by reasoning step by step and running read-only SQL queries ")
	sb.WriteString("with the run_query tool when you need to look at the data.\n\n")

	sb.WriteString("Guidelines:\n")
	sb.WriteString("- Only reference tables and columns listed in the schema below.\n")
	sb.WriteString("- Use read statements only. Data modification is rejected.\n")
	sb.WriteString("- Query results shown to you may be truncated to a row limit; ")
	sb.WriteString("aggregate in SQL instead of fetching raw rows when possible.\n")
	sb.WriteString("- If a query fails, read the error, fix the query, and try again.\n")
	sb.WriteString("- When you have the answer, reply with plain text and no tool call.\n\n")

	sb.WriteString("Today's date: ")
	sb.WriteString(input.Date.Format("2006-01-02"))
	sb.WriteString("\n\n")

	if len(input.Sources) > 1 {
		sb.WriteString("Available data sources: ")
		sb.WriteString(strings.Join(input.Sources, ", "))
		sb.WriteString(". Pass the source name in every run_query call.\n\n")
	}

	sb.WriteString("Database schema:\n")
	sb.WriteString(input.SchemaSummary)
	sb.WriteString("\n")

	if input.ExtraContext != "" {
		sb.WriteString("\nAdditional context:\n")
		sb.WriteString(input.ExtraContext)
		sb.WriteString("\n")
	}

	return sb.String()
}
