// Command libdreamffi builds the DreamMaker parser as a C shared library:
//
//	go build -buildmode=c-shared -o libdreamffi.so ./cmd/libdreamffi
//
// Exported functions:
//
//	uintptr_t   sdmm_parse(int32_t count, const char** files, char** error_out);
//	void        sdmm_result_free(uintptr_t handle);
//	const char* sdmm_result_get_file_list(uintptr_t handle);
//	const char* sdmm_result_get_diagnostics(uintptr_t handle);
//	const char* sdmm_result_get_type_list(uintptr_t handle);
//	const char* sdmm_result_get_type_info(uintptr_t handle, const char* path);
//	const char* sdmm_result_get_special_files(uintptr_t handle);
//	const char* sdmm_result_get_last_error(uintptr_t handle);
//	void        sdmm_string_free(char* s);
//
// The last entry of files is the environment. sdmm_parse returns 0 on
// failure and, when error_out is not NULL, stores a JSON error document
// {"kind","path","message"} the caller frees with sdmm_string_free.
//
// Strings returned by the query functions belong to the handle: each is
// valid until the next query on the same handle or sdmm_result_free. A
// failed query returns NULL and records an error document readable through
// sdmm_result_get_last_error. Calls on one handle must not overlap.
//
// Logging goes to stderr at the level named by DREAMFFI_LOG_LEVEL.
package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"unsafe"

	"github.com/dusk-indust/dreamffi/internal/config"
	"github.com/dusk-indust/dreamffi/internal/logging"
	"github.com/dusk-indust/dreamffi/internal/session"
)

// cSlot keeps a document in C memory so the host can hold the pointer
// across calls.
type cSlot struct {
	p *C.char
}

func newCSlot() docSlot {
	return &cSlot{}
}

func (s *cSlot) Store(data []byte) unsafe.Pointer {
	s.Release()
	s.p = C.CString(string(data))
	return unsafe.Pointer(s.p)
}

func (s *cSlot) Release() {
	if s.p != nil {
		C.free(unsafe.Pointer(s.p))
		s.p = nil
	}
}

var handles = func() *handleTable {
	log := logging.FromEnv()
	return newHandleTable(config.Opener{Log: &log}, newCSlot, log)
}()

//export sdmm_parse
func sdmm_parse(count C.int32_t, files **C.char, errorOut **C.char) C.uintptr_t {
	var paths []string
	if count > 0 && files != nil {
		for _, p := range unsafe.Slice(files, int(count)) {
			paths = append(paths, C.GoString(p))
		}
	}

	h, err := handles.open(context.Background(), paths)
	if err != nil {
		if errorOut != nil {
			*errorOut = C.CString(string(errorDocument(err)))
		}
		return 0
	}
	return C.uintptr_t(h)
}

//export sdmm_result_free
func sdmm_result_free(handle C.uintptr_t) {
	handles.free(uintptr(handle))
}

//export sdmm_result_get_file_list
func sdmm_result_get_file_list(handle C.uintptr_t) *C.char {
	return (*C.char)(handles.query(uintptr(handle), (*session.Session).ExportFileList))
}

//export sdmm_result_get_diagnostics
func sdmm_result_get_diagnostics(handle C.uintptr_t) *C.char {
	return (*C.char)(handles.query(uintptr(handle), (*session.Session).ExportDiagnostics))
}

//export sdmm_result_get_type_list
func sdmm_result_get_type_list(handle C.uintptr_t) *C.char {
	return (*C.char)(handles.query(uintptr(handle), (*session.Session).ExportTypeList))
}

//export sdmm_result_get_type_info
func sdmm_result_get_type_info(handle C.uintptr_t, path *C.char) *C.char {
	// NULL addresses the root, like "".
	return (*C.char)(handles.typeInfo(uintptr(handle), C.GoString(path)))
}

//export sdmm_result_get_special_files
func sdmm_result_get_special_files(handle C.uintptr_t) *C.char {
	return (*C.char)(handles.query(uintptr(handle), (*session.Session).ExportSpecialFiles))
}

//export sdmm_result_get_last_error
func sdmm_result_get_last_error(handle C.uintptr_t) *C.char {
	return (*C.char)(handles.lastError(uintptr(handle)))
}

//export sdmm_string_free
func sdmm_string_free(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func main() {}
