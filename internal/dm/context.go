package dm

import (
	"fmt"
	"strings"
)

// --- Enums ---

// Severity ranks a diagnostic. Lower values are more severe.
type Severity int

const (
	SeverityError   Severity = 1
	SeverityWarning Severity = 2
	SeverityInfo    Severity = 3
	SeverityHint    Severity = 4
)

// String returns the lowercase label used in serialized diagnostics.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MoreSevereThan reports whether s outranks other.
func (s Severity) MoreSevereThan(other Severity) bool {
	return s < other
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo, SeverityHint:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("dm: unknown severity %d", int(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	case "info":
		*s = SeverityInfo
	case "hint":
		*s = SeverityHint
	default:
		return fmt.Errorf("dm: unknown severity %q", text)
	}
	return nil
}

// --- Models ---

// FileID indexes the file table of a Context.
type FileID int

// Location is a 1-based position inside a registered file.
type Location struct {
	File   FileID `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// Diagnostic is a single message recorded while loading or parsing.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Location Location `json:"location"`
	Message  string   `json:"message"`
	Notes    []string `json:"notes,omitempty"`
}

// Context collects the file table and diagnostics for one parse.
// It is not safe for concurrent use.
type Context struct {
	files       []string
	index       map[string]FileID
	diagnostics []Diagnostic
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{index: make(map[string]FileID)}
}

// RegisterFile adds path to the file table and returns its ID. Registering
// the same path twice returns the ID it was first given.
func (c *Context) RegisterFile(path string) FileID {
	if id, ok := c.index[path]; ok {
		return id
	}
	id := FileID(len(c.files))
	c.files = append(c.files, path)
	c.index[path] = id
	return id
}

// FilePath returns the registered path for id, or "" if id is unknown.
func (c *Context) FilePath(id FileID) string {
	if id < 0 || int(id) >= len(c.files) {
		return ""
	}
	return c.files[id]
}

// FileList returns the file table in registration order.
func (c *Context) FileList() []string {
	out := make([]string, len(c.files))
	copy(out, c.files)
	return out
}

// Register records a diagnostic.
func (c *Context) Register(d Diagnostic) {
	c.diagnostics = append(c.diagnostics, d)
}

// Errorf records an error-severity diagnostic at loc.
func (c *Context) Errorf(loc Location, format string, args ...any) {
	c.Register(Diagnostic{Severity: SeverityError, Location: loc, Message: fmt.Sprintf(format, args...)})
}

// Warnf records a warning-severity diagnostic at loc.
func (c *Context) Warnf(loc Location, format string, args ...any) {
	c.Register(Diagnostic{Severity: SeverityWarning, Location: loc, Message: fmt.Sprintf(format, args...)})
}

// Infof records an info-severity diagnostic at loc.
func (c *Context) Infof(loc Location, format string, args ...any) {
	c.Register(Diagnostic{Severity: SeverityInfo, Location: loc, Message: fmt.Sprintf(format, args...)})
}

// Diagnostics returns every recorded diagnostic in the order reported.
func (c *Context) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(c.diagnostics))
	copy(out, c.diagnostics)
	return out
}

// CountBySeverity tallies recorded diagnostics.
func (c *Context) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, d := range c.diagnostics {
		counts[d.Severity]++
	}
	return counts
}
