// Package indexdb maintains a sqlite read model of session and policy
// activity: handshake outcomes, death-pipeline steps, and trust ledger
// mutations. It is a secondary index; the JSONL audit logs remain the
// source of truth, so a busy indexer drops rows rather than stalling the
// dispatch path.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"outlands.gg/internal/policy"
)

type Index struct {
	db *sql.DB

	ch   chan row
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type rowKind int

const (
	rowHandshake rowKind = iota + 1
	rowPolicy
	rowTrust
	rowSync
)

type row struct {
	kind rowKind
	at   string

	// handshake
	remote   string
	version  int
	accepted bool
	reason   string

	// policy
	step   string
	victim string
	killer string
	region string

	// trust
	op      string
	actor   string
	trustee string
	allowed bool

	done chan struct{}
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Index{
		db: db,
		// Generous buffer: death bursts and mass reconnects must not stall
		// on the indexer.
		ch: make(chan row, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; NORMAL durability is fine for a
	// secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS handshakes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			remote TEXT NOT NULL,
			version INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			reason TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_handshakes_accepted ON handshakes(accepted);`,
		`CREATE TABLE IF NOT EXISTS policy_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			step TEXT NOT NULL,
			victim TEXT NOT NULL,
			killer TEXT,
			region TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_policy_victim ON policy_steps(victim);`,
		`CREATE INDEX IF NOT EXISTS idx_policy_region ON policy_steps(region);`,
		`CREATE TABLE IF NOT EXISTS trust_mutations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			op TEXT NOT NULL,
			region TEXT NOT NULL,
			actor TEXT NOT NULL,
			trustee TEXT NOT NULL,
			allowed INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trust_region ON trust_mutations(region);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Index) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *Index) enqueue(r row) {
	if s == nil || s.closed.Load() {
		return
	}
	r.at = time.Now().UTC().Format(time.RFC3339Nano)
	select {
	case s.ch <- r:
	default:
	}
}

// RecordHandshake indexes one handshake outcome.
func (s *Index) RecordHandshake(remote string, version int, accepted bool, reason string) {
	s.enqueue(row{kind: rowHandshake, remote: remote, version: version, accepted: accepted, reason: reason})
}

// RecordPolicy satisfies policy.AuditSink.
func (s *Index) RecordPolicy(e policy.AuditEntry) {
	s.enqueue(row{kind: rowPolicy, step: e.Step, victim: e.Victim, killer: e.Killer, region: e.Region})
}

// RecordTrustMutation indexes one grant/revoke attempt.
func (s *Index) RecordTrustMutation(op, region, actor, trustee string, allowed bool) {
	s.enqueue(row{kind: rowTrust, op: op, region: region, actor: actor, trustee: trustee, allowed: allowed})
}

func (s *Index) loop() {
	for r := range s.ch {
		var err error
		switch r.kind {
		case rowHandshake:
			_, err = s.db.Exec(
				`INSERT INTO handshakes(at, remote, version, accepted, reason) VALUES(?,?,?,?,?)`,
				r.at, r.remote, r.version, boolInt(r.accepted), r.reason)
		case rowPolicy:
			_, err = s.db.Exec(
				`INSERT INTO policy_steps(at, step, victim, killer, region) VALUES(?,?,?,?,?)`,
				r.at, r.step, r.victim, r.killer, r.region)
		case rowTrust:
			_, err = s.db.Exec(
				`INSERT INTO trust_mutations(at, op, region, actor, trustee, allowed) VALUES(?,?,?,?,?,?)`,
				r.at, r.op, r.region, r.actor, r.trustee, boolInt(r.allowed))
		case rowSync:
			close(r.done)
		}
		_ = err // best-effort index; errors surface via queries, not dispatch
	}
}

// Flush blocks until previously enqueued rows are applied.
func (s *Index) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	select {
	case s.ch <- row{kind: rowSync, done: done}:
		<-done
	default:
	}
}

// HandshakeCount reports how many handshakes were indexed with the given
// outcome.
func (s *Index) HandshakeCount(accepted bool) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM handshakes WHERE accepted=?`, boolInt(accepted)).Scan(&n)
	return n, err
}

// PolicySteps lists the indexed steps for a victim in insertion order.
func (s *Index) PolicySteps(victim string) ([]string, error) {
	rows, err := s.db.Query(`SELECT step FROM policy_steps WHERE victim=? ORDER BY id`, victim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var step string
		if err := rows.Scan(&step); err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, rows.Err()
}

// TrustMutationCount reports indexed mutation attempts for a region.
func (s *Index) TrustMutationCount(region string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM trust_mutations WHERE region=?`, region).Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
