package types

import "fmt"

// SchemaViolation is returned when a constructed entity breaks its field
// contract or the scenario/detail pairing of CallData.
type SchemaViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation at %s: %s", e.Field, e.Reason)
}

func violation(field, format string, args ...any) *SchemaViolation {
	return &SchemaViolation{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InvalidScoreLevel is returned for any numeric score outside {0, 0.5, 1}.
type InvalidScoreLevel struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (e *InvalidScoreLevel) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid score level %q: want one of 0, 0.5, 1", e.Value)
	}
	return fmt.Sprintf("invalid score level %q at %s: want one of 0, 0.5, 1", e.Value, e.Field)
}

// ExtractionFailure wraps any error produced while asking the extraction
// service for a schema instance. It is fatal to the analysis run.
type ExtractionFailure struct {
	Schema string
	Err    error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extraction failed for schema %s: %v", e.Schema, e.Err)
}

func (e *ExtractionFailure) Unwrap() error { return e.Err }
