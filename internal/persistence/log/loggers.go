// Package log writes compressed JSONL audit streams: one line per policy
// outcome or trust mutation, rotated hourly.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"outlands.gg/internal/policy"
)

// jsonlWriter appends JSON lines to <dir>/<prefix>-<hour>.jsonl.zst,
// rotating when the UTC hour changes.
type jsonlWriter struct {
	dir    string
	prefix string

	mu   sync.Mutex
	hour string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func (w *jsonlWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.hour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *jsonlWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.buf = bufio.NewWriterSize(enc, 128*1024)
	w.hour = hour
	return nil
}

func (w *jsonlWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *jsonlWriter) closeLocked() error {
	var encErr error
	if w.buf != nil {
		_ = w.buf.Flush()
	}
	if w.enc != nil {
		encErr = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.buf = nil
	return encErr
}

// PolicyLogger records death-pipeline outcomes. It satisfies
// policy.AuditSink; write errors are swallowed so a full disk never feeds
// back into the pipeline.
type PolicyLogger struct{ w *jsonlWriter }

func NewPolicyLogger(dataDir string) *PolicyLogger {
	return &PolicyLogger{w: &jsonlWriter{dir: filepath.Join(dataDir, "audit"), prefix: "policy"}}
}

func (l *PolicyLogger) RecordPolicy(e policy.AuditEntry) { _ = l.w.write(e) }
func (l *PolicyLogger) Close() error                     { return l.w.close() }

// TrustMutationEntry is one grant/revoke attempt against the trust ledger.
type TrustMutationEntry struct {
	Time    time.Time `json:"time"`
	Op      string    `json:"op"` // "grant" or "revoke"
	Region  string    `json:"region"`
	Actor   string    `json:"actor"`
	Trustee string    `json:"trustee"`
	Allowed bool      `json:"allowed"`
}

// TrustLogger records trust ledger mutation attempts.
type TrustLogger struct{ w *jsonlWriter }

func NewTrustLogger(dataDir string) *TrustLogger {
	return &TrustLogger{w: &jsonlWriter{dir: filepath.Join(dataDir, "audit"), prefix: "trust"}}
}

func (l *TrustLogger) RecordMutation(e TrustMutationEntry) { _ = l.w.write(e) }
func (l *TrustLogger) Close() error                        { return l.w.close() }
