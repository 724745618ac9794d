package relevance

// Record is one disclosed item after classification. Records are ephemeral
// per run: discovered from a source, classified, redacted, handed off to
// the report writer. Nothing here survives across runs.
type Record struct {
	Date             string   `json:"date"`
	Type             string   `json:"type"`
	Category         string   `json:"category"`
	Content          string   `json:"content"`
	RelationshipTags []string `json:"data_subject_relationship"`
}

// Role is a typed structural relationship between an identity and a record,
// as carried in source metadata (author, assignee, reporter, ...). Order
// matters for tag output, so roles travel as a slice, not a map.
type Role struct {
	Kind string // e.g. "author", "assignee", "requester"
	ID   string // source-native identity id
}
