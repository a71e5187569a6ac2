package mcp

// ContentTypeText is the only content block type produced by the server.
const ContentTypeText = "text"

// ClientCapabilities advertises client features. The server does not act on
// any of them but records them for diagnostics.
type ClientCapabilities struct {
	Roots *struct {
		ListChanged bool `json:"listChanged"`
	} `json:"roots,omitempty"`
	Sampling    *struct{} `json:"sampling,omitempty"`
	Elicitation *struct{} `json:"elicitation,omitempty"`
}

// ServerCapabilities advertises server features.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability describes the tool surface. The catalog is fixed for the
// process lifetime so ListChanged is always false.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ImplementationInfo describes the implementation name and version.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitzero"`
}

// ContentBlock is a typed content part of a tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Tools
// Tool describes a callable tool and its input schema.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema ToolInputSchema `json:"inputSchema"`
}

// ToolInputSchema is a JSON-schema-like description of tool input.
type ToolInputSchema struct {
	Type                 string                    `json:"type"`
	Properties           map[string]SchemaProperty `json:"properties,omitempty"`
	Required             []string                  `json:"required,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties,omitzero"`
}

// SchemaProperty is a simplified schema node used in tool schemas. A property
// that accepts several representations lists them in OneOf and leaves Type
// empty.
type SchemaProperty struct {
	Type        string                    `json:"type,omitempty"`
	Description string                    `json:"description,omitzero"`
	Items       *SchemaProperty           `json:"items,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Enum        []any                     `json:"enum,omitempty"`
	OneOf       []SchemaProperty          `json:"oneOf,omitempty"`
	Minimum     *float64                  `json:"minimum,omitempty"`
}

// Types returns the set of JSON types the property accepts.
func (p SchemaProperty) Types() []string {
	if p.Type != "" {
		return []string{p.Type}
	}
	var out []string
	for _, alt := range p.OneOf {
		out = append(out, alt.Types()...)
	}
	return out
}

// IsIdentifier reports whether the property accepts both the text and the
// integer representation of an identifier.
func (p SchemaProperty) IsIdentifier() bool {
	var text, integer bool
	for _, t := range p.Types() {
		switch t {
		case "string":
			text = true
		case "integer":
			integer = true
		}
	}
	return text && integer
}

// LatestProtocolVersion is the newest protocol revision the server speaks.
const LatestProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists every revision accepted during
// initialization, oldest first.
var SupportedProtocolVersions = []string{"2024-11-05", "2025-03-26", LatestProtocolVersion}

// NegotiateProtocolVersion returns requested when the server supports it and
// LatestProtocolVersion otherwise.
func NegotiateProtocolVersion(requested string) string {
	for _, v := range SupportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return LatestProtocolVersion
}
