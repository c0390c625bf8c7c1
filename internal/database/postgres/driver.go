package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joacominatel/asyncprep/internal/database"
)

// session is one opened connection profile. Prepared statements live on a
// single server backend, so one pool connection is pinned for the lifetime
// of the session and every prepare runs on it.
type session struct {
	pool   *pgxpool.Pool
	conn   *pgxpool.Conn
	dbName string
	busy   bool
}

// Driver implements database.Native for PostgreSQL.
type Driver struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a new PostgreSQL driver.
func New() *Driver {
	return &Driver{sessions: make(map[string]*session)}
}

var _ database.Driver = (*Driver)(nil)

// Open connects connID to the database at dsn.
func (d *Driver) Open(ctx context.Context, connID, dsn string) error {
	d.mu.Lock()
	_, exists := d.sessions[connID]
	d.mu.Unlock()
	if exists {
		return errors.New(database.Message(database.CodeConnectionInUse))
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 5
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return fmt.Errorf("pin session: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.sessions[connID]; exists {
		conn.Release()
		pool.Close()
		return errors.New(database.Message(database.CodeConnectionInUse))
	}
	d.sessions[connID] = &session{
		pool:   pool,
		conn:   conn,
		dbName: cfg.ConnConfig.Database,
	}
	return nil
}

// Disconnect closes the session opened under connID. A session held by
// Acquire stays open and Disconnect reports it in use.
func (d *Driver) Disconnect(connID string) error {
	d.mu.Lock()
	s, ok := d.sessions[connID]
	if !ok {
		d.mu.Unlock()
		return errors.New(database.Message(database.CodeNoConnection))
	}
	if s.busy {
		d.mu.Unlock()
		return errors.New(database.Message(database.CodeConnectionInUse))
	}
	delete(d.sessions, connID)
	d.mu.Unlock()
	s.conn.Release()
	s.pool.Close()
	return nil
}

// Close closes every open session.
func (d *Driver) Close() error {
	d.mu.Lock()
	sessions := d.sessions
	d.sessions = make(map[string]*session)
	d.mu.Unlock()

	for _, s := range sessions {
		s.conn.Release()
		s.pool.Close()
	}
	return nil
}

// Ping checks if the connection is alive.
func (d *Driver) Ping(ctx context.Context, connID string) error {
	s := d.session(connID)
	if s == nil {
		return fmt.Errorf("not connected")
	}
	return s.pool.Ping(ctx)
}

// DatabaseName returns the name of the database connID is connected to.
func (d *Driver) DatabaseName(connID string) string {
	if s := d.session(connID); s != nil {
		return s.dbName
	}
	return ""
}

func (d *Driver) session(connID string) *session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[connID]
}

// Acquire marks the pinned session busy.
func (d *Driver) Acquire(connID string) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[connID]
	if !ok {
		return database.CodeNoConnection
	}
	if s.busy {
		return database.CodeConnectionInUse
	}
	if s.conn.Conn().IsClosed() {
		return database.CodeConnectFailed
	}
	s.busy = true
	return database.CodeOK
}

// Release marks the pinned session idle again.
func (d *Driver) Release(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sessions[connID]; ok {
		s.busy = false
	}
}

// ErrorMessage returns the client message for code.
func (d *Driver) ErrorMessage(code int32) string {
	return database.Message(code)
}

// Prepare prepares sql as the named statement stmtID on the pinned session.
// Parameter types are inferred by the server; in is not sent.
func (d *Driver) Prepare(connID, stmtID, sql string, in []database.Descriptor, out *[]database.Descriptor) int32 {
	s := d.session(connID)
	if s == nil {
		return database.CodeNoConnection
	}

	sd, err := s.conn.Conn().Prepare(context.Background(), stmtID, sql)
	if err != nil {
		return codeFor(err)
	}

	outputs := make([]database.Descriptor, len(sd.Fields))
	for i, f := range sd.Fields {
		outputs[i] = descriptorFor(f.DataTypeOID, f.TypeModifier)
	}
	*out = outputs
	return int32(kindOf(sql, len(outputs)))
}

// Deallocate drops the prepared statement stmtID from the session.
func (d *Driver) Deallocate(ctx context.Context, connID, stmtID string) error {
	s := d.session(connID)
	if s == nil {
		return errors.New(database.Message(database.CodeNoConnection))
	}
	if err := s.conn.Conn().Deallocate(ctx, stmtID); err != nil {
		return fmt.Errorf("deallocate %s: %w", stmtID, err)
	}
	return nil
}
