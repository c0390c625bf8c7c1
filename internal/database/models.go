package database

import "strconv"

// Connection names a live session on the database engine.
// Lifetime is managed by whoever opened it; statements only reference it.
type Connection struct {
	ID string
}

// Descriptor describes one input or output column.
type Descriptor struct {
	Type   TypeTag
	Length int
}

// StatementKind classifies a prepared statement.
// Values are whatever the native prepare call returned; the constants below
// are the ones the bundled adapters produce.
type StatementKind int32

const (
	KindStatement StatementKind = 0 // no result set
	KindQuery     StatementKind = 1 // returns rows
	KindInsert    StatementKind = 2
	KindUpdate    StatementKind = 3
	KindDelete    StatementKind = 4
	KindProcedure StatementKind = 5 // procedure call, may return values
)

func (k StatementKind) String() string {
	switch k {
	case KindStatement:
		return "statement"
	case KindQuery:
		return "query"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindProcedure:
		return "procedure"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Statement is one prepared SQL command.
//
// ID, Conn, Text and Inputs are set by the caller before preparation.
// Outputs, kind and buffer size are written once, when a successful
// preparation is completed on the invoking side.
type Statement struct {
	ID     string
	Conn   *Connection
	Text   string
	Inputs []Descriptor

	Outputs []Descriptor

	kind       StatementKind
	bufferSize int
	prepared   bool
}

// NewStatement creates a statement ready to be submitted for preparation.
func NewStatement(id string, conn *Connection, text string, inputs ...Descriptor) *Statement {
	return &Statement{
		ID:     id,
		Conn:   conn,
		Text:   text,
		Inputs: inputs,
	}
}

// Kind returns the statement kind. ok is false until preparation succeeded.
func (s *Statement) Kind() (StatementKind, bool) {
	return s.kind, s.prepared
}

// BufferSize returns the byte size of one output row.
// ok is false until preparation succeeded and the row layout was calculated.
func (s *Statement) BufferSize() (int, bool) {
	return s.bufferSize, s.prepared
}

// NumInputs returns the number of input parameters the statement expects.
func (s *Statement) NumInputs() int {
	return len(s.Inputs)
}

// Prepared reports whether the statement completed preparation successfully.
func (s *Statement) Prepared() bool {
	return s.prepared
}

// MarkPrepared records the results of a successful preparation.
// It is called once, by the completion side, after ownership of the native
// outputs has been handed back.
func (s *Statement) MarkPrepared(kind StatementKind, outputs []Descriptor, bufferSize int) {
	s.kind = kind
	s.Outputs = outputs
	s.bufferSize = bufferSize
	s.prepared = true
}
