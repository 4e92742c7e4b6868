// Package server exposes the job queue and the trainer over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rpkwiecinski/giftcard-engine/internal/jobs"
	"github.com/rpkwiecinski/giftcard-engine/internal/store"
	"github.com/rpkwiecinski/giftcard-engine/internal/trainer"
	"github.com/rpkwiecinski/giftcard-engine/pkg/constants"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultResultLimit = 10

// JobQueue is the part of the job scheduler the handler needs.
type JobQueue interface {
	Submit(req jobs.Request) (jobs.Ack, error)
	Status() jobs.Status
	Results(n int) []store.Record
}

// TrainerSource returns the latest trainer snapshot, or nil.
type TrainerSource interface {
	Get() *trainer.Snapshot
}

type handler struct {
	logger        *zap.Logger
	queue         JobQueue
	trainer       TrainerSource
	limiter       *rate.Limiter
	maxUploadSize int64
	now           func() time.Time
}

// NewHandler constructs the HTTP handler. source and limiter may be nil.
func NewHandler(logger *zap.Logger, queue JobQueue, source TrainerSource, limiter *rate.Limiter, maxUploadSize int64) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}

	h := &handler{
		logger:        logger,
		queue:         queue,
		trainer:       source,
		limiter:       limiter,
		maxUploadSize: maxUploadSize,
		now:           time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/runjob", h.handleRunJob)
	mux.HandleFunc("/results", h.handleResults)
	mux.HandleFunc("/trainer", h.handleTrainer)
	return mux
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"ts":     h.now().UTC().Format(time.RFC3339),
	})
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	h.writeJSON(w, http.StatusOK, h.queue.Status())
}

func (h *handler) handleRunJob(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleRunJob"
	if !allow(w, r, http.MethodPost) {
		return
	}
	if !h.limiter.Allow() {
		h.respondError(w, http.StatusTooManyRequests, "too many job submissions, retry later", op)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	var req jobs.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize), op)
			return
		}
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode job request: %v", err), op)
		return
	}
	req.JobName = strings.TrimSpace(req.JobName)
	req.CataloguePath = strings.TrimSpace(req.CataloguePath)

	ack, err := h.queue.Submit(req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, jobs.ErrRejected) {
			status = http.StatusBadRequest
		}
		h.respondError(w, status, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusAccepted, ack)
}

func (h *handler) handleResults(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	limit := defaultResultLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw), "server.handleResults")
			return
		}
		limit = n
	}
	h.writeJSON(w, http.StatusOK, h.queue.Results(limit))
}

func (h *handler) handleTrainer(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.trainer == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	snap := h.trainer.Get()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	return false
}

func (h *handler) respondError(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Warn("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
