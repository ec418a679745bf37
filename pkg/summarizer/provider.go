package summarizer

import "context"

// Medication is a prescription extracted from the consultation audio.
type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Instructions string `json:"instructions"`
}

// Result is the structured clinical summary returned by a provider.
type Result struct {
	Content              string       `json:"content"`
	KeyPoints            []string     `json:"keyPoints"`
	Medications          []Medication `json:"medications"`
	FollowUpInstructions string       `json:"followUpInstructions"`
}

// SourceInfo describes the merged audio handed to the provider.
type SourceInfo struct {
	MeetingId       string
	DurationSeconds float64
	Partial         bool
}

// Provider generates a clinical summary from a merged consultation
// recording. Implementations own their transport and retry policy.
type Provider interface {
	Summarize(ctx context.Context, audioPath string, mimeType string, info SourceInfo) (*Result, error)
}
