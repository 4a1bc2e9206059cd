package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"database/sql"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// WithStoreLogger sets the logger for background insert failures.
func WithStoreLogger(logger *slog.Logger) func(*Store) {
	return func(s *Store) {
		s.logger = logger.With(slog.String("component", "metrics-store"))
	}
}

// Store persists metrics records in an SQLite database, one session
// row per engine start. Inserts happen on the caller's goroutine but
// never propagate errors into the acquisition cycle: failures are
// logged and the record is dropped.
type Store struct {
	dbPath string
	device string

	sessionID string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error

	logger *slog.Logger
}

// NewStore creates a store writing to the database at dbPath. The
// database file and schema are created lazily on first use.
func NewStore(dbPath, device string, options ...func(*Store)) *Store {
	s := Store{
		dbPath:    dbPath,
		device:    device,
		sessionID: uuid.New().String(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// SessionID returns the identity of the current metrics session.
func (s *Store) SessionID() string { return s.sessionID }

func (s *Store) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.dbErr = fmt.Errorf("opening metrics database: %w", err)
			return
		}

		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		if _, err = db.Exec(insertSessionSQL, s.sessionID, s.device); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("creating session: %w", err)
			return
		}

		s.db = db
	})

	return s.db, s.dbErr
}

func (s *Store) RecordCycle(c Cycle) {
	db, err := s.getDB()
	if err != nil {
		s.logger.Error(err.Error())
		return
	}

	_, err = db.Exec(insertCycleSQL,
		s.sessionID,
		c.Timestamp.UTC(),
		c.CenterFreqHz,
		c.SampleRateHz,
		c.Nperseg,
		c.BinCount,
		c.Scale,
		float64(c.AcquireTime.Microseconds())/1000,
		float64(c.ProcessTime.Microseconds())/1000,
		c.Overruns,
	)
	if err != nil {
		s.logger.Error(fmt.Sprintf("storing cycle record: %s", err))
	}
}

func (s *Store) RecordFault(f Fault) {
	db, err := s.getDB()
	if err != nil {
		s.logger.Error(err.Error())
		return
	}

	if _, err = db.Exec(insertFaultSQL, s.sessionID, f.Timestamp.UTC(), f.State, f.Error, f.Retry); err != nil {
		s.logger.Error(fmt.Sprintf("storing fault record: %s", err))
	}
}

// CycleCount returns the number of cycle records in the current
// session.
func (s *Store) CycleCount() (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	var count int64
	if err = db.QueryRow(selectCycleCountSQL, s.sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting cycles: %w", err)
	}
	return count, nil
}

// Close releases the database handle. Safe to call multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}
