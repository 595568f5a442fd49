package models

// AssignmentRules configures how a single capture fans out into
// zero-or-more target collections. Each enabled rule is evaluated
// independently and unconditionally.
type AssignmentRules struct {
	DefaultCollection string                              `json:"defaultCollection,omitempty"` // Always fires when set
	VersionBased      bool                                `json:"versionBased,omitempty"`      // Fires when the record metadata carries a version
	PathBased         bool                                `json:"pathBased,omitempty"`         // Fires using the first path segment
	StatusBased       bool                                `json:"statusBased,omitempty"`       // Fires using the response status category
	Environment       string                              `json:"environment,omitempty"`       // Fires when an environment name is configured
	Custom            func(*CaptureRecord) []string       `json:"-"`                           // Returns zero-or-more additional targets
}

// AssignmentResult reports the outcome of routing one capture to one
// target collection. Failures are isolated per target.
type AssignmentResult struct {
	Collection string `json:"collection"`
	Saved      bool   `json:"saved"`
	Error      string `json:"error,omitempty"`
}

// CollectionStats is a read-side aggregation over one document
type CollectionStats struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Version    string `json:"version"`
	Paths      int    `json:"paths"`
	Operations int    `json:"operations"`
	Tags       int    `json:"tags"`
	Schemas    int    `json:"schemas"`
}
