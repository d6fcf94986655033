package mcptools

import "github.com/dusk-indust/dreamffi/internal/graph"

// --- MCP Tool Input Types ---
// The MCP Go SDK generates each tool's JSON schema from these struct tags.

// ParseEnvironmentInput is the input for the parse_environment MCP tool.
type ParseEnvironmentInput struct {
	Files []string `json:"files,omitempty" jsonschema:"ordered file list; the last entry is the .dme environment, earlier entries are pushed before it"`
}

// ParseEnvironmentOutput is the result of the parse_environment MCP tool.
type ParseEnvironmentOutput struct {
	SessionID string `json:"sessionId"`
}

// SessionInput addresses one open session.
type SessionInput struct {
	SessionID string `json:"sessionId" jsonschema:"id returned by parse_environment"`
}

// CloseSessionOutput is the result of the close_session MCP tool.
type CloseSessionOutput struct {
	Closed bool `json:"closed"`
}

// DocumentOutput carries a serialized query document.
type DocumentOutput struct {
	Document string `json:"document"`
}

// TypeInfoInput is the input for the get_type_info MCP tool.
type TypeInfoInput struct {
	SessionID string `json:"sessionId" jsonschema:"id returned by parse_environment"`
	Path      string `json:"path,omitempty" jsonschema:"type path such as /obj/item; empty or / is the root"`
}

// GetHierarchyInput is the input for the get_hierarchy MCP tool.
type GetHierarchyInput struct {
	SessionID string `json:"sessionId" jsonschema:"id returned by parse_environment"`
	Path      string `json:"path,omitempty" jsonschema:"type path to start from"`
	Direction string `json:"direction,omitempty" jsonschema:"ancestors or descendants. Default: descendants"`
	MaxDepth  int    `json:"maxDepth,omitempty" jsonschema:"maximum traversal depth (default: 5)"`
}

// GetHierarchyOutput is the result of the get_hierarchy MCP tool.
type GetHierarchyOutput struct {
	Chains []graph.TypeChain `json:"chains"`
}

// AssessImpactInput is the input for the assess_impact MCP tool.
type AssessImpactInput struct {
	SessionID    string   `json:"sessionId" jsonschema:"id returned by parse_environment"`
	ChangedFiles []string `json:"changedFiles,omitempty" jsonschema:"file paths as listed by get_file_list"`
}

// AssessImpactOutput is the result of the assess_impact MCP tool.
type AssessImpactOutput struct {
	Impact graph.ImpactResult `json:"impact"`
}
