package app

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joacominatel/asyncprep/internal/connlock"
	"github.com/joacominatel/asyncprep/internal/database"
	"github.com/joacominatel/asyncprep/internal/journal"
	"github.com/joacominatel/asyncprep/internal/layout"
	"github.com/joacominatel/asyncprep/internal/prepare"
)

// Deallocator is implemented by drivers that can drop a prepared statement
// from the server.
type Deallocator interface {
	Deallocate(ctx context.Context, connID, stmtID string) error
}

// Service coordinates application-level operations between the UI and the
// prepare path.
//
// Completions are delivered on whichever goroutine drives the service: Run,
// or a caller looping over Next and Dispatch. Handlers run there.
type Service struct {
	driver  database.Driver
	calc    *layout.Calculator
	sched   *prepare.Scheduler
	loop    *prepare.Loop
	journal *journal.Journal
	workers int

	mu      sync.Mutex
	conns   map[string]*database.Connection
	stmts   map[string]*database.Statement
	pending map[string]bool
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers sets the size of the background worker pool.
func WithWorkers(n int) Option {
	return func(s *Service) {
		s.workers = n
	}
}

// WithJournal records every completion in j.
func WithJournal(j *journal.Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// WithCalculator replaces the default row layout calculator.
func WithCalculator(calc *layout.Calculator) Option {
	return func(s *Service) {
		s.calc = calc
	}
}

// NewService creates a new application service over driver.
func NewService(driver database.Driver, opts ...Option) *Service {
	s := &Service{
		driver:  driver,
		conns:   make(map[string]*database.Connection),
		stmts:   make(map[string]*database.Statement),
		pending: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.calc == nil {
		s.calc = layout.NewCalculator(nil)
	}

	exec := prepare.NewExecutor(driver, connlock.New(driver))
	s.loop = prepare.NewLoop(prepare.NewDispatcher(s.calc))
	s.sched = prepare.NewScheduler(exec,
		prepare.WithWorkers(s.workers),
		prepare.WithNotify(s.loop.Notify))
	return s
}

// Workers returns the size of the background worker pool.
func (s *Service) Workers() int {
	return s.sched.Workers()
}

// Connect opens a connection named connID.
func (s *Service) Connect(ctx context.Context, connID, dsn string) (*database.Connection, error) {
	if err := s.driver.Open(ctx, connID, dsn); err != nil {
		return nil, &ErrConnection{ConnID: connID, Cause: err}
	}
	conn := &database.Connection{ID: connID}

	s.mu.Lock()
	s.conns[connID] = conn
	s.mu.Unlock()
	return conn, nil
}

// Disconnect closes connID and forgets its statements. It refuses while a
// statement on connID is still being prepared.
func (s *Service) Disconnect(connID string) error {
	s.mu.Lock()
	_, ok := s.conns[connID]
	for id := range s.pending {
		if stmt := s.stmts[id]; stmt != nil && stmt.Conn.ID == connID {
			s.mu.Unlock()
			return &ErrConnection{ConnID: connID, Cause: ErrStatementBusy}
		}
	}
	delete(s.conns, connID)
	for id, stmt := range s.stmts {
		if stmt.Conn.ID == connID && !s.pending[id] {
			delete(s.stmts, id)
		}
	}
	s.mu.Unlock()
	if !ok {
		return &ErrConnection{ConnID: connID, Cause: ErrUnknownConnection}
	}

	if err := s.driver.Disconnect(connID); err != nil {
		return &ErrConnection{ConnID: connID, Cause: err}
	}
	return nil
}

// Connection returns the open connection connID.
func (s *Service) Connection(connID string) (*database.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[connID]
	if !ok {
		return nil, &ErrConnection{ConnID: connID, Cause: ErrUnknownConnection}
	}
	return conn, nil
}

// NewStatementID generates an id for a statement the caller did not name.
func NewStatementID() string {
	return "_" + strings.ReplaceAll(uuid.NewString(), "-", "s")
}

// Submit queues sql for preparation on conn under stmtID, generating an id
// when stmtID is empty. handler runs once, from Run or Dispatch.
func (s *Service) Submit(conn *database.Connection, stmtID, sql string, inputs []database.Descriptor, handler prepare.Handler) (*prepare.Invocation, error) {
	if conn == nil {
		return nil, &ErrConnection{Cause: ErrUnknownConnection}
	}
	if _, err := s.Connection(conn.ID); err != nil {
		return nil, err
	}
	if stmtID == "" {
		stmtID = NewStatementID()
	}
	stmt := database.NewStatement(stmtID, conn, sql, inputs...)

	s.mu.Lock()
	if _, open := s.conns[conn.ID]; !open {
		// disconnected since the check above
		s.mu.Unlock()
		return nil, &ErrConnection{ConnID: conn.ID, Cause: ErrUnknownConnection}
	}
	if _, exists := s.stmts[stmtID]; exists {
		s.mu.Unlock()
		return nil, &ErrPrepare{StmtID: stmtID, Cause: ErrDuplicateStatement}
	}
	s.stmts[stmtID] = stmt
	s.pending[stmtID] = true
	s.mu.Unlock()

	inv, err := s.sched.Submit(stmt, handler)
	if err != nil {
		s.mu.Lock()
		delete(s.stmts, stmtID)
		delete(s.pending, stmtID)
		s.mu.Unlock()
		return nil, &ErrPrepare{StmtID: stmtID, Cause: err}
	}
	return inv, nil
}

// Prepare submits sql and waits for its completion. Run must be active on
// another goroutine.
func (s *Service) Prepare(ctx context.Context, conn *database.Connection, stmtID, sql string, inputs ...database.Descriptor) (*database.Statement, error) {
	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)

	_, err := s.Submit(conn, stmtID, sql, inputs, func(id string, err error) {
		done <- result{id: id, err: err}
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, &ErrPrepare{StmtID: stmtID, Cause: r.err}
		}
		return s.Statement(r.id)
	}
}

// Run completes invocations until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	for {
		inv, err := s.Next(ctx)
		if err != nil {
			return err
		}
		_ = s.Dispatch(inv)
	}
}

// Next waits for the next invocation ready to be completed.
func (s *Service) Next(ctx context.Context) (*prepare.Invocation, error) {
	return s.loop.Next(ctx)
}

// Dispatch completes inv, running its handler on the calling goroutine,
// then updates the statement registry and the journal. An invocation that
// was already completed, or is not ready yet, leaves both untouched and its
// error is returned.
func (s *Service) Dispatch(inv *prepare.Invocation) error {
	if err := s.loop.Dispatch(inv); err != nil {
		return err
	}

	stmt := inv.Statement()
	s.mu.Lock()
	if s.stmts[stmt.ID] == stmt {
		delete(s.pending, stmt.ID)
		if !stmt.Prepared() {
			// a failed id can be submitted again
			delete(s.stmts, stmt.ID)
		}
	}
	s.mu.Unlock()

	s.record(inv)
	return nil
}

func (s *Service) record(inv *prepare.Invocation) {
	if s.journal == nil {
		return
	}
	o, ok := inv.Outcome()
	if !ok {
		return
	}
	stmt := inv.Statement()

	e := &journal.Entry{
		ConnID:    stmt.Conn.ID,
		StmtID:    stmt.ID,
		SQL:       stmt.Text,
		Outputs:   len(o.Outputs),
		ElapsedUS: o.Elapsed.Microseconds(),
	}
	if kind, ok := stmt.Kind(); ok {
		k := int(kind)
		e.Kind = &k
	}
	if size, ok := stmt.BufferSize(); ok {
		e.BufferSize = &size
	} else if o.Err == nil {
		// prepared but the row layout could not be calculated
		_, err := s.calc.Size(o.Outputs)
		if err != nil {
			e.Error = err.Error()
		}
	}
	if o.Err != nil {
		e.Error = o.Err.Error()
	}
	// journal failures are logged by the journal and never fail a completion
	_ = s.journal.Record(e)
}

// Statement returns the statement registered under stmtID.
func (s *Service) Statement(stmtID string) (*database.Statement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stmt, ok := s.stmts[stmtID]
	if !ok {
		return nil, ErrInvalidStatementID
	}
	return stmt, nil
}

// Statements returns the registered statements ordered by id.
func (s *Service) Statements() []*database.Statement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*database.Statement, 0, len(s.stmts))
	for _, stmt := range s.stmts {
		out = append(out, stmt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Free forgets a prepared statement and drops it from the server when the
// driver supports it.
func (s *Service) Free(ctx context.Context, stmtID string) error {
	s.mu.Lock()
	stmt, ok := s.stmts[stmtID]
	if !ok {
		s.mu.Unlock()
		return ErrInvalidStatementID
	}
	if s.pending[stmtID] {
		s.mu.Unlock()
		return &ErrPrepare{StmtID: stmtID, Cause: ErrStatementBusy}
	}
	delete(s.stmts, stmtID)
	s.mu.Unlock()

	if d, ok := s.driver.(Deallocator); ok {
		if err := d.Deallocate(ctx, stmt.Conn.ID, stmtID); err != nil {
			return &ErrPrepare{StmtID: stmtID, Cause: err}
		}
	}
	return nil
}

// CheckArgs verifies that n arguments match the inputs of stmtID.
func (s *Service) CheckArgs(stmtID string, n int) error {
	stmt, err := s.Statement(stmtID)
	if err != nil {
		return err
	}
	if n != stmt.NumInputs() {
		return ErrHostVariables
	}
	return nil
}

// Plan returns the row layout of a prepared statement.
func (s *Service) Plan(stmtID string) (layout.Plan, error) {
	stmt, err := s.Statement(stmtID)
	if err != nil {
		return layout.Plan{}, err
	}
	if !stmt.Prepared() {
		return layout.Plan{}, &ErrPrepare{StmtID: stmtID, Cause: ErrStatementBusy}
	}
	return s.calc.Plan(stmt.Outputs)
}

// History returns up to limit journal entries, newest first. It returns
// nothing when no journal is configured.
func (s *Service) History(limit int) ([]journal.Entry, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.Recent(limit)
}

// Close stops the workers and closes every connection.
func (s *Service) Close() error {
	s.sched.Close()
	return s.driver.Close()
}
