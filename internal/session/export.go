package session

import "encoding/json"

// marshal is swapped in tests to exercise SerializationFailed.
var marshal = json.Marshal

// ExportBuffer is a single reusable slot holding the most recent serialized
// query result.
//
// The slice returned by Install (and by Bytes) is valid only until the next
// Install or Release on the same buffer: Install reuses the backing array, so
// a retained slice is overwritten by the next export. Copy the data out
// before exporting again.
type ExportBuffer struct {
	data []byte
	live bool
}

// Install drops the current contents and stores data.
func (b *ExportBuffer) Install(data []byte) []byte {
	b.data = append(b.data[:0], data...)
	b.live = true
	return b.data[:len(b.data):len(b.data)]
}

// Bytes returns the current contents, or nil when the slot is empty.
func (b *ExportBuffer) Bytes() []byte {
	if !b.live {
		return nil
	}
	return b.data[:len(b.data):len(b.data)]
}

// Len returns the size of the current contents.
func (b *ExportBuffer) Len() int {
	if !b.live {
		return 0
	}
	return len(b.data)
}

// Release empties the slot and frees its storage.
func (b *ExportBuffer) Release() {
	b.data = nil
	b.live = false
}

// LastExport returns the contents of the export buffer, or nil if nothing
// has been exported or the session is closed.
func (s *Session) LastExport() []byte {
	return s.buf.Bytes()
}

// ExportFileList serializes FileList into the export buffer.
func (s *Session) ExportFileList() ([]byte, error) {
	v, err := s.FileList()
	if err != nil {
		return nil, err
	}
	return s.export(v)
}

// ExportDiagnostics serializes Diagnostics into the export buffer.
func (s *Session) ExportDiagnostics() ([]byte, error) {
	v, err := s.Diagnostics()
	if err != nil {
		return nil, err
	}
	return s.export(v)
}

// ExportTypeList serializes TypeList into the export buffer.
func (s *Session) ExportTypeList() ([]byte, error) {
	v, err := s.TypeList()
	if err != nil {
		return nil, err
	}
	return s.export(v)
}

// ExportTypeInfo serializes TypeInfo(path) into the export buffer. On
// PathNotFound the buffer keeps its previous contents.
func (s *Session) ExportTypeInfo(path string) ([]byte, error) {
	v, err := s.TypeInfo(path)
	if err != nil {
		return nil, err
	}
	return s.export(v)
}

// ExportSpecialFiles serializes SpecialFiles into the export buffer.
func (s *Session) ExportSpecialFiles() ([]byte, error) {
	v, err := s.SpecialFiles()
	if err != nil {
		return nil, err
	}
	return s.export(v)
}

func (s *Session) export(v any) ([]byte, error) {
	data, err := marshal(v)
	if err != nil {
		return nil, &QueryError{Kind: SerializationFailed, Err: err}
	}
	return s.buf.Install(data), nil
}
