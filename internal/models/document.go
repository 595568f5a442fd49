package models

// SpecDocument is an incrementally synthesized OpenAPI-style document.
// One document exists per named collection and is owned exclusively by
// one specification store instance.
type SpecDocument struct {
	OpenAPI    string                `json:"openapi"`
	Info       Info                  `json:"info"`
	Servers    []Server              `json:"servers"`
	Paths      map[string]PathItem   `json:"paths"`
	Components Components            `json:"components"`
	Tags       []Tag                 `json:"tags"`
	Security   []map[string][]string `json:"security"`
}

// PathItem maps a lowercase HTTP method to its operation
type PathItem map[string]*Operation

// Info is the document-level info block
type Info struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version"`
	Contact     *Contact `json:"contact,omitempty"`
	License     *License `json:"license,omitempty"`
}

// Contact identifies the document owner
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

// License identifies the document license
type License struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Server is one entry in the document's servers list
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Components holds reusable document objects, populated opportunistically
type Components struct {
	Schemas         map[string]interface{} `json:"schemas"`
	Responses       map[string]interface{} `json:"responses"`
	Parameters      map[string]interface{} `json:"parameters"`
	Examples        map[string]interface{} `json:"examples"`
	RequestBodies   map[string]interface{} `json:"requestBodies"`
	Headers         map[string]interface{} `json:"headers"`
	SecuritySchemes map[string]interface{} `json:"securitySchemes"`
}

// Tag is a deduplicated path-group tag
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Operation describes one observed (method, path) pair
type Operation struct {
	Summary     string                 `json:"summary,omitempty"`
	Description string                 `json:"description,omitempty"`
	OperationID string                 `json:"operationId,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Parameters  []Parameter            `json:"parameters,omitempty"`
	RequestBody *RequestBody           `json:"requestBody,omitempty"`
	Responses   map[string]*Response   `json:"responses"`
	Security    []map[string][]string  `json:"security"`
	Deprecated  bool                   `json:"deprecated,omitempty"`
	ActualData  map[string]interface{} `json:"x-actual-data,omitempty"`
}

// Parameter is one path, query, or header parameter
type Parameter struct {
	Name        string  `json:"name"`
	In          string  `json:"in"`
	Required    bool    `json:"required"`
	Description string  `json:"description,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// RequestBody describes an observed request payload
type RequestBody struct {
	Description string                `json:"description,omitempty"`
	Required    bool                  `json:"required,omitempty"`
	Content     map[string]*MediaType `json:"content"`
}

// MediaType carries the schema and examples for one content type
type MediaType struct {
	Schema   *Schema             `json:"schema,omitempty"`
	Examples map[string]*Example `json:"examples,omitempty"`
}

// Example is a named example payload
type Example struct {
	Summary string      `json:"summary,omitempty"`
	Value   interface{} `json:"value"`
}

// Response describes one response entry, keyed by status code or status class
type Response struct {
	Description string                `json:"description"`
	Content     map[string]*MediaType `json:"content,omitempty"`
}

// Schema is a best-effort draft schema synthesized from example payloads.
// It is not a strict validator.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Example     interface{}        `json:"example,omitempty"`
}

// NewSpecDocument creates an empty document with the given info block
func NewSpecDocument(title, description, version string) *SpecDocument {
	if version == "" {
		version = "1.0.0"
	}
	return &SpecDocument{
		OpenAPI: "3.0.0",
		Info: Info{
			Title:       title,
			Description: description,
			Version:     version,
		},
		Servers: make([]Server, 0),
		Paths:   make(map[string]PathItem),
		Components: Components{
			Schemas:         make(map[string]interface{}),
			Responses:       make(map[string]interface{}),
			Parameters:      make(map[string]interface{}),
			Examples:        make(map[string]interface{}),
			RequestBodies:   make(map[string]interface{}),
			Headers:         make(map[string]interface{}),
			SecuritySchemes: make(map[string]interface{}),
		},
		Tags:     make([]Tag, 0),
		Security: make([]map[string][]string, 0),
	}
}

// HasTag reports whether a tag with the given name exists
func (d *SpecDocument) HasTag(name string) bool {
	for _, t := range d.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// OperationCount returns the total number of operations across all paths
func (d *SpecDocument) OperationCount() int {
	count := 0
	for _, item := range d.Paths {
		count += len(item)
	}
	return count
}
