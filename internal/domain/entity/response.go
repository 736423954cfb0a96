package entity

// GeneratedResponse is the output of a response generator for one comment.
// It is created once per comment; after creation only warnings may be
// appended (during validation).
type GeneratedResponse struct {
	Text string

	// ConfidenceScore is the generator's self-assessed confidence in [0,1].
	ConfidenceScore float64

	// Reasoning is free-text explanation of why this response was produced.
	Reasoning string

	// Warnings collects validation findings (over-length, generic phrasing).
	Warnings []string
}

// AddWarning appends a validation warning to the response.
func (r *GeneratedResponse) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// HasWarnings reports whether any validation warnings were recorded.
func (r *GeneratedResponse) HasWarnings() bool {
	return len(r.Warnings) > 0
}
