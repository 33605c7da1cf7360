package llm

// RunQueryToolName is the tool the agent loop exposes to the oracle.
const RunQueryToolName = "run_query"

// ToolDefinition defines a tool callable by the oracle.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ParameterProperty defines a parameter property in JSON Schema format.
type ParameterProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// NewToolDefinition creates a tool definition with standard JSON Schema
// parameters.
func NewToolDefinition(name, description string, properties map[string]ParameterProperty, required []string) ToolDefinition {
	props := make(map[string]any)
	for k, v := range properties {
		prop := map[string]any{
			"type":        v.Type,
			"description": v.Description,
		}
		if len(v.Enum) > 0 {
			prop["enum"] = v.Enum
		}
		props[k] = prop
	}

	return ToolDefinition{
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

// RunQueryTool builds the run_query tool. With more than one source the
// tool grows a required source argument enumerating the valid names.
func RunQueryTool(sources []string) ToolDefinition {
	properties := map[string]ParameterProperty{
		"query": {
			Type:        "string",
			Description: "The SQL query to run. Read statements only.",
		},
	}
	required := []string{"query"}

	if len(sources) > 1 {
		properties["source"] = ParameterProperty{
			Type:        "string",
			Description: "The data source to run the query against",
			Enum:        sources,
		}
		required = append(required, "source")
	}

	return NewToolDefinition(
		RunQueryToolName,
		"Run a read-only SQL query against the data and return the resulting rows",
		properties,
		required,
	)
}
