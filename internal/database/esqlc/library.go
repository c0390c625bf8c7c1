// Package esqlc binds the ESQL/C client through a small C shim library
// loaded at run time, so the binary builds without cgo.
//
// The shim exports:
//
//	int32_t     esqlc_connect(const char *conn, const char *dbname);
//	int32_t     esqlc_disconnect(const char *conn);
//	int32_t     esqlc_acquire(const char *conn);
//	void        esqlc_release(const char *conn);
//	const char *esqlc_errmsg(int32_t code);
//	int32_t     esqlc_prepare(const char *conn, const char *stmt, const char *sql,
//	                          const esqlc_desc *in, int32_t nin,
//	                          esqlc_desc *out, int32_t cap, int32_t *nout);
//
// where esqlc_desc is { int16_t type; int16_t pad; int32_t length; }.
package esqlc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/joacominatel/asyncprep/internal/database"
)

// maxOutputs bounds the output descriptor buffer handed to the shim.
const maxOutputs = 1024

// desc mirrors esqlc_desc.
type desc struct {
	Type   int16
	_      int16
	Length int32
}

type functions struct {
	connect    func(conn, dbname string) int32
	disconnect func(conn string) int32
	acquire    func(conn string) int32
	release    func(conn string)
	errmsg     func(code int32) string
	prepare    func(conn, stmt, sql string, in unsafe.Pointer, nin int32, out unsafe.Pointer, cap int32, nout unsafe.Pointer) int32
}

// Library implements database.Native on top of the shim found at path.
// The shared object is opened on first use.
type Library struct {
	path string

	once sync.Once
	err  error
	fn   functions
}

// New returns a library that loads the shim from path on first use.
func New(path string) *Library {
	return &Library{path: path}
}

var (
	_ database.Driver      = (*Library)(nil)
	_ database.ThreadBound = (*Library)(nil)
)

// Load opens the shim and resolves its symbols. Later calls return the
// result of the first one.
func (l *Library) Load() error {
	l.once.Do(func() {
		if l.path == "" {
			l.err = errors.New("esqlc: no library path configured")
			return
		}
		handle, err := dlopen(l.path)
		if err != nil {
			l.err = fmt.Errorf("esqlc: load %s: %w", l.path, err)
			return
		}
		purego.RegisterLibFunc(&l.fn.connect, handle, "esqlc_connect")
		purego.RegisterLibFunc(&l.fn.disconnect, handle, "esqlc_disconnect")
		purego.RegisterLibFunc(&l.fn.acquire, handle, "esqlc_acquire")
		purego.RegisterLibFunc(&l.fn.release, handle, "esqlc_release")
		purego.RegisterLibFunc(&l.fn.errmsg, handle, "esqlc_errmsg")
		purego.RegisterLibFunc(&l.fn.prepare, handle, "esqlc_prepare")
	})
	return l.err
}

// Open connects connID to the database named by dsn.
func (l *Library) Open(_ context.Context, connID, dsn string) error {
	if err := l.Load(); err != nil {
		return err
	}
	if code := l.fn.connect(connID, dsn); code < 0 {
		return errors.New(l.ErrorMessage(code))
	}
	return nil
}

// Disconnect closes connID.
func (l *Library) Disconnect(connID string) error {
	if err := l.Load(); err != nil {
		return err
	}
	if code := l.fn.disconnect(connID); code < 0 {
		return errors.New(l.ErrorMessage(code))
	}
	return nil
}

// Close is a no-op; the shim stays loaded for the life of the process.
func (l *Library) Close() error {
	return nil
}

// ThreadBound reports true: the client makes an acquired connection current
// for the calling thread only.
func (l *Library) ThreadBound() bool {
	return true
}

func (l *Library) Acquire(connID string) int32 {
	if l.Load() != nil {
		return database.CodeConnectFailed
	}
	return l.fn.acquire(connID)
}

func (l *Library) Release(connID string) {
	if l.Load() != nil {
		return
	}
	l.fn.release(connID)
}

// ErrorMessage asks the client for the text of code, falling back to the
// built-in catalog when the shim is unavailable or has nothing to say.
func (l *Library) ErrorMessage(code int32) string {
	if l.Load() != nil {
		return database.Message(code)
	}
	if msg := l.fn.errmsg(code); msg != "" {
		return msg
	}
	return database.Message(code)
}

func (l *Library) Prepare(connID, stmtID, sql string, in []database.Descriptor, out *[]database.Descriptor) int32 {
	if l.Load() != nil {
		return database.CodeConnectFailed
	}

	cin := toC(in)
	var inPtr unsafe.Pointer
	if len(cin) > 0 {
		inPtr = unsafe.Pointer(&cin[0])
	}
	cout := make([]desc, maxOutputs)
	var nout int32

	code := l.fn.prepare(connID, stmtID, sql,
		inPtr, int32(len(cin)),
		unsafe.Pointer(&cout[0]), int32(len(cout)), unsafe.Pointer(&nout))
	runtime.KeepAlive(cin)
	runtime.KeepAlive(cout)
	if code < 0 {
		return code
	}
	if nout < 0 || int(nout) > len(cout) {
		return database.CodeGeneric
	}
	*out = fromC(cout[:nout])
	return code
}

func toC(ds []database.Descriptor) []desc {
	out := make([]desc, len(ds))
	for i, d := range ds {
		out[i] = desc{Type: int16(d.Type), Length: int32(d.Length)}
	}
	return out
}

func fromC(cs []desc) []database.Descriptor {
	out := make([]database.Descriptor, len(cs))
	for i, c := range cs {
		out[i] = database.Descriptor{Type: database.TypeTag(c.Type), Length: int(c.Length)}
	}
	return out
}
