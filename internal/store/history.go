package store

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/engine"
	"github.com/rpkwiecinski/giftcard-engine/internal/selector"
	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
	"go.uber.org/zap"
)

func historyName(prefix string, ts time.Time, compress bool) string {
	name := prefix + ts.UTC().Format(constants.HistoryTimestampLayout) + ".json"
	if compress {
		name += BrotliExt
	}
	return name
}

// SessionWriter writes one session_<timestamp>.json file per pipeline run.
type SessionWriter struct {
	dir      string
	compress bool
	now      func() time.Time
}

// NewSessionWriter writes session logs into dir.
func NewSessionWriter(dir string, compress bool) *SessionWriter {
	return &SessionWriter{dir: dir, compress: compress, now: time.Now}
}

// Write implements engine.SessionSink.
func (w *SessionWriter) Write(_ context.Context, session selector.Session) error {
	path := filepath.Join(w.dir, historyName("session_", w.now(), w.compress))
	if err := writeJSON(path, session); err != nil {
		return fmt.Errorf("failed to write session log: %w", err)
	}
	return nil
}

// Job identifies the request a result belongs to.
type Job struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CataloguePath string    `json:"cataloguePath"`
	Workers       int       `json:"workers"`
	DailyLimit    int       `json:"dailyLimit"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Record is one finished job.
type Record struct {
	Job        Job            `json:"job"`
	FinishedAt time.Time      `json:"finishedAt"`
	Error      string         `json:"error,omitempty"`
	Result     *engine.Result `json:"result,omitempty"`
}

// ResultRepository keeps the most recent records in memory and archives each
// one to the history directory.
type ResultRepository struct {
	logger   *zap.Logger
	mu       sync.RWMutex
	limit    int
	dir      string
	compress bool
	records  []Record
}

// NewResultRepository keeps up to limit records. An empty dir disables the
// archive.
func NewResultRepository(logger *zap.Logger, limit int, dir string, compress bool) *ResultRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit <= 0 {
		limit = constants.DefaultResultHistory
	}
	return &ResultRepository{logger: logger, limit: limit, dir: dir, compress: compress}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Add stores rec. Archive failures are logged and do not drop the record.
func (r *ResultRepository) Add(rec Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	if over := len(r.records) - r.limit; over > 0 {
		r.records = append([]Record(nil), r.records[over:]...)
	}
	r.mu.Unlock()

	if r.dir == "" {
		return
	}
	job := unsafeName.ReplaceAllString(rec.Job.Name, "_")
	if job == "" {
		job = rec.Job.ID
	}
	path := filepath.Join(r.dir, historyName("", rec.FinishedAt, false))
	path = path[:len(path)-len(".json")] + "_" + job + ".json"
	if r.compress {
		path += BrotliExt
	}
	if err := writeJSON(path, rec); err != nil {
		r.logger.Error("failed to archive job result",
			zap.String("op", "store.ResultRepository.Add"),
			zap.String("job", rec.Job.ID),
			zap.Error(err),
		)
	}
}

// Latest returns up to n records, newest first. n <= 0 returns all.
func (r *ResultRepository) Latest(n int) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.records) {
		n = len(r.records)
	}
	out := make([]Record, 0, n)
	for i := len(r.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.records[i])
	}
	return out
}

// Len is the number of records held in memory.
func (r *ResultRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
