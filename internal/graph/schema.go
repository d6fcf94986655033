package graph

// --- Enums ---

// NodeKind classifies nodes in the type index.
type NodeKind string

const (
	NodeKindFile   NodeKind = "file"
	NodeKindType   NodeKind = "type"
	NodeKindMember NodeKind = "member"
	NodeKindModule NodeKind = "module"
)

// FileKind classifies files referenced by an environment.
type FileKind string

const (
	FileKindCode   FileKind = "code"
	FileKindMap    FileKind = "map"
	FileKindScript FileKind = "script"
	FileKindSkin   FileKind = "skin"
)

// MemberKind classifies members declared or overridden on a type.
type MemberKind string

const (
	MemberKindVar  MemberKind = "var"
	MemberKindProc MemberKind = "proc"
	MemberKindVerb MemberKind = "verb"
)

// EdgeKind classifies relationships between nodes.
type EdgeKind string

const (
	EdgeKindDefinedIn EdgeKind = "DEFINED_IN" // Type -> File
	EdgeKindIncludes  EdgeKind = "INCLUDES"   // File -> File
	EdgeKindChildOf   EdgeKind = "CHILD_OF"   // Type -> Type, by path
	EdgeKindExtends   EdgeKind = "EXTENDS"    // Type -> Type, by parent_type
	EdgeKindHasMember EdgeKind = "HAS_MEMBER" // Type -> Member
	EdgeKindBelongs   EdgeKind = "BELONGS"    // File -> Module
)

// hierarchyKinds are the edges followed by hierarchy traversal.
var hierarchyKinds = []EdgeKind{EdgeKindChildOf, EdgeKindExtends}

func isHierarchy(kind EdgeKind) bool {
	return kind == EdgeKindChildOf || kind == EdgeKindExtends
}

// --- Models ---

// FileNode is a file that contributed to a parse. Seq is its position in
// the parse's file list; special files are numbered after code files.
type FileNode struct {
	Path string   `json:"path"`
	Kind FileKind `json:"kind"`
	Seq  int      `json:"seq"`
}

// TypeNode is a non-root node of the declaration tree.
type TypeNode struct {
	Path string `json:"path"`
	Name string `json:"name"`
	File string `json:"file"`
	Line int    `json:"line"`
}

// MemberNode is a var, proc or verb seen on a type.
type MemberNode struct {
	TypePath string     `json:"typePath"`
	Name     string     `json:"name"`
	Kind     MemberKind `json:"kind"`
	Declared bool       `json:"declared"`
	File     string     `json:"file"`
	Line     int        `json:"line"`
}

// ID returns the member's node id, written the way DM source spells it.
func (m MemberNode) ID() string {
	return memberID(m.TypePath, m.Kind, m.Name)
}

// ModuleNode is a group of files coupled through the type hierarchy.
type ModuleNode struct {
	Name          string   `json:"name"`
	CohesionScore float64  `json:"cohesionScore"`
	Members       []string `json:"members"` // file paths
}

// Edge is a relationship between two nodes.
type Edge struct {
	SourceID string   `json:"sourceId"`
	TargetID string   `json:"targetId"`
	Kind     EdgeKind `json:"kind"`
}

// GraphStats summarizes a type index.
type GraphStats struct {
	FileCount   int `json:"fileCount"`
	TypeCount   int `json:"typeCount"`
	MemberCount int `json:"memberCount"`
	ModuleCount int `json:"moduleCount"`
	EdgeCount   int `json:"edgeCount"`
}

// TypeChain is a path through the type hierarchy starting at the queried
// type.
type TypeChain struct {
	Nodes []string `json:"nodes"`
	Depth int      `json:"depth"`
}

// ImpactResult describes which types are touched by changing a set of files.
type ImpactResult struct {
	DirectlyAffected     []string `json:"directlyAffected"`     // types defined in the files
	TransitivelyAffected []string `json:"transitivelyAffected"` // their descendants
	RiskScore            float64  `json:"riskScore"`            // 0.0-1.0, share of all types
}

func memberID(typePath string, kind MemberKind, name string) string {
	return typePath + "/" + string(kind) + "/" + name
}
