package types

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is sent in every request envelope
const ProtocolVersion = "1.0.0"

// Envelope is the versioned wrapper written to the engine, one per line
type Envelope struct {
	Version string  `json:"version"`
	Request Request `json:"request"`
}

// Request is a tagged union: exactly one variant is set.
// It marshals as {"Prefetch": {...}} or {"Autocomplete": {...}}.
type Request struct {
	Prefetch     *PrefetchRequest
	Autocomplete *AutocompleteRequest
}

// PrefetchRequest asks the engine to warm its index for a file
type PrefetchRequest struct {
	Filename string `json:"filename"`
}

// AutocompleteRequest carries the text windows around the primary cursor
type AutocompleteRequest struct {
	Before                  string `json:"before"`
	After                   string `json:"after"`
	Filename                string `json:"filename"`
	RegionIncludesBeginning bool   `json:"region_includes_beginning"`
	RegionIncludesEnd       bool   `json:"region_includes_end"`
	MaxNumResults           *int   `json:"max_num_results"`
}

// Kind returns the variant tag of the request
func (r Request) Kind() string {
	switch {
	case r.Prefetch != nil:
		return "Prefetch"
	case r.Autocomplete != nil:
		return "Autocomplete"
	default:
		return ""
	}
}

func (r Request) MarshalJSON() ([]byte, error) {
	switch {
	case r.Prefetch != nil && r.Autocomplete != nil:
		return nil, fmt.Errorf("request has more than one variant set")
	case r.Prefetch != nil:
		return json.Marshal(map[string]*PrefetchRequest{"Prefetch": r.Prefetch})
	case r.Autocomplete != nil:
		return json.Marshal(map[string]*AutocompleteRequest{"Autocomplete": r.Autocomplete})
	default:
		return nil, fmt.Errorf("request has no variant set")
	}
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("request must have exactly one variant, got %d", len(raw))
	}
	*r = Request{}
	for tag, body := range raw {
		switch tag {
		case "Prefetch":
			r.Prefetch = &PrefetchRequest{}
			return json.Unmarshal(body, r.Prefetch)
		case "Autocomplete":
			r.Autocomplete = &AutocompleteRequest{}
			return json.Unmarshal(body, r.Autocomplete)
		default:
			return fmt.Errorf("unknown request variant %q", tag)
		}
	}
	return nil
}

// AutocompleteResponse is the engine's answer to an Autocomplete request
type AutocompleteResponse struct {
	OldPrefix   string      `json:"old_prefix"`
	Results     []Candidate `json:"results"`
	UserMessage []string    `json:"user_message,omitempty"`
}

// Candidate is one completion suggestion.
// Applying it replaces old_prefix+OldSuffix around the cursor with NewPrefix+NewSuffix.
type Candidate struct {
	NewPrefix     string         `json:"new_prefix"`
	OldSuffix     string         `json:"old_suffix"` // text after the cursor the candidate consumes
	NewSuffix     string         `json:"new_suffix"`
	Documentation *Documentation `json:"documentation,omitempty"`
	Detail        *string        `json:"detail,omitempty"`
}

// Substitution is the text written over the substitute interval
func (c Candidate) Substitution() string {
	return c.NewPrefix + c.NewSuffix
}

// DocumentationKind distinguishes plain text from markdown documentation
type DocumentationKind int

const (
	DocumentationPlainText DocumentationKind = iota
	DocumentationMarkdown
)

func (k DocumentationKind) String() string {
	switch k {
	case DocumentationPlainText:
		return "plaintext"
	case DocumentationMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

// Documentation is resolved once at decode time from either a bare string or
// a {"kind": "markdown", "value": "..."} object. Any other shape is kept as
// plain text of its raw JSON.
type Documentation struct {
	Kind  DocumentationKind
	Value string
}

func (d *Documentation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Documentation{Kind: DocumentationPlainText, Value: s}
		return nil
	}

	var obj struct {
		Kind  string  `json:"kind"`
		Value *string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Kind == "markdown" && obj.Value != nil {
		*d = Documentation{Kind: DocumentationMarkdown, Value: *obj.Value}
		return nil
	}

	*d = Documentation{Kind: DocumentationPlainText, Value: string(data)}
	return nil
}

func (d Documentation) MarshalJSON() ([]byte, error) {
	if d.Kind == DocumentationMarkdown {
		return json.Marshal(struct {
			Kind  string `json:"kind"`
			Value string `json:"value"`
		}{"markdown", d.Value})
	}
	return json.Marshal(d.Value)
}

// IsMarkdown reports whether the documentation should be rendered as markdown
func (d *Documentation) IsMarkdown() bool {
	return d != nil && d.Kind == DocumentationMarkdown
}

// Link is a navigable span inside a popup line. Col is a byte offset.
type Link struct {
	Line int    `json:"line"`
	Col  int    `json:"col"`
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Popup is editor-agnostic popup content
type Popup struct {
	Lines    []string `json:"lines"`
	Markdown bool     `json:"markdown"`
	Links    []Link   `json:"links"`
}
