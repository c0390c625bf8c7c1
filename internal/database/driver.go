package database

import (
	"context"
	"strconv"
)

// Native is the database client library the prepare path calls into.
// Codes follow the client library convention: negative is an error, and
// ErrorMessage turns such a code into text.
//
// Implementations must be safe for concurrent use across different
// connection ids. Calls for the same connection id are serialized by the
// caller while a connection is acquired.
type Native interface {
	// Acquire claims the session named by connID for the calling thread.
	Acquire(connID string) int32

	// Release gives the session back. Called once per successful Acquire.
	Release(connID string)

	// ErrorMessage returns the text for a negative code.
	ErrorMessage(code int32) string

	// Prepare prepares sql under stmtID on the acquired session connID.
	// On success it fills out with the output column descriptors and
	// returns the statement kind (>= 0).
	Prepare(connID, stmtID, sql string, in []Descriptor, out *[]Descriptor) int32
}

// Driver is a Native that can also open and close connections.
type Driver interface {
	Native

	// Open connects connID to the database described by dsn.
	Open(ctx context.Context, connID, dsn string) error

	// Disconnect closes connID.
	Disconnect(connID string) error

	// Close releases every connection and the library itself.
	Close() error
}

// ThreadBound is implemented by natives whose sessions belong to the OS
// thread that acquired them. Acquire, Prepare and Release for one hold must
// then run on the same thread.
type ThreadBound interface {
	ThreadBound() bool
}

// Client library codes shared by the bundled adapters.
const (
	CodeOK              int32 = 0
	CodeGeneric         int32 = -1
	CodeSyntaxError     int32 = -201
	CodeTableNotFound   int32 = -206
	CodeColumnNotFound  int32 = -217
	CodeNoPermission    int32 = -329
	CodePrepareFailed   int32 = -410
	CodeConnectFailed   int32 = -908
	CodeConversion      int32 = -1260
	CodeConnectionInUse int32 = -1802
	CodeNoConnection    int32 = -1803
)

var messages = map[int32]string{
	CodeGeneric:         "Unexpected error in the client library.",
	CodeSyntaxError:     "A syntax error has occurred.",
	CodeTableNotFound:   "The specified table is not in the database.",
	CodeColumnNotFound:  "Column not found in any table in the query.",
	CodeNoPermission:    "Database not found or no system permission.",
	CodePrepareFailed:   "Prepare statement failed or was not executed.",
	CodeConnectFailed:   "Attempt to connect to database server failed.",
	CodeConversion:      "It is not possible to convert between the specified types.",
	CodeConnectionInUse: "Connection name in use.",
	CodeNoConnection:    "Connection does not exist.",
}

// Message formats code the way the client library reports it,
// e.g. "[-201] A syntax error has occurred.".
func Message(code int32) string {
	text, ok := messages[code]
	if !ok {
		text = "Unknown error."
	}
	return "[" + strconv.Itoa(int(code)) + "] " + text
}
