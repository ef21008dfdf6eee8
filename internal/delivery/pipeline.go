// Package delivery implements the sequential, rate-limited transmission of
// every file under a resolved catalog leaf.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/farid/maktaba/internal/catalog"
	"github.com/farid/maktaba/internal/metrics"
	"github.com/farid/maktaba/internal/session"
)

// ErrCancelled is returned when a session reset aborts an in-flight delivery
var ErrCancelled = errors.New("delivery cancelled")

// Transport is the slice of the messaging gateway the pipeline needs
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) (messageID int, err error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendDocument(ctx context.Context, chatID int64, path, filename string) error
	SendTyping(ctx context.Context, chatID int64)
}

// Recorder persists completed delivery runs; the audit log implements it
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Record is one completed (or aborted) delivery run
type Record struct {
	ID        string
	ChatID    int64
	Path      string // leaf path relative to the catalog base
	Category  string
	Sent      int
	Total     int
	Cancelled bool
	At        time.Time
}

// Leaf is the resolved delivery target, carrying the file listing taken when
// the selection was made so delivery and menu share one catalog snapshot.
type Leaf struct {
	Path     string   // absolute leaf directory
	Files    []string // listing-order file names
	Category string   // originating category label, picks the send rule
}

// Result summarizes one pipeline run
type Result struct {
	Sent      int
	Total     int
	Cancelled bool
}

// Config holds pipeline tuning
type Config struct {
	InterFileDelay   time.Duration
	FileTimeout      time.Duration
	ProgressInterval time.Duration
}

// Pipeline delivers the files of one leaf per run. A run owns the chat's
// delivery-in-flight flag from start to deferred cleanup.
type Pipeline struct {
	index    *catalog.Index
	gw       Transport
	recorder Recorder
	metrics  *metrics.Metrics
	cfg      Config
	logger   zerolog.Logger
}

// New creates a delivery pipeline. recorder and m may be nil.
func New(index *catalog.Index, gw Transport, recorder Recorder, m *metrics.Metrics, cfg Config, logger zerolog.Logger) *Pipeline {
	if cfg.InterFileDelay <= 0 {
		cfg.InterFileDelay = 400 * time.Millisecond
	}
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = 10 * time.Second
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 1500 * time.Millisecond
	}
	return &Pipeline{
		index:    index,
		gw:       gw,
		recorder: recorder,
		metrics:  m,
		cfg:      cfg,
		logger:   logger.With().Str("component", "delivery").Logger(),
	}
}

// referenceCategory reports whether a category holds link-style reference
// files whose text contents are sent as message bodies.
func referenceCategory(category string) bool {
	return strings.Contains(strings.ToLower(category), "video")
}

// Run delivers every file under the leaf to the chat. Per-file failures are
// reported and skipped; only a session reset stops the run early, in which
// case ErrCancelled is returned and nothing further is sent.
func (p *Pipeline) Run(ctx context.Context, sess *session.Session, leaf Leaf) (Result, error) {
	chatID := sess.ChatID()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	generation, err := sess.BeginDelivery(cancel)
	if err != nil {
		return Result{}, err
	}
	defer sess.EndDelivery()

	runID := uuid.NewString()
	start := time.Now()
	logger := p.logger.With().
		Str("run_id", runID).
		Int64("chat_id", chatID).
		Str("category", leaf.Category).
		Logger()

	result := Result{Total: len(leaf.Files)}

	if len(leaf.Files) == 0 {
		logger.Info().Str("path", leaf.Path).Msg("Nothing to deliver")
		p.notice(runCtx, sess, "⚠️ No files found.")
		return result, nil
	}

	logger.Info().Str("path", leaf.Path).Int("files", result.Total).Msg("Delivery started")
	p.gw.SendTyping(runCtx, chatID)

	progress := p.newProgress(runCtx, sess, result.Total)

	for i, name := range leaf.Files {
		if p.cancelled(runCtx, sess, generation) {
			result.Cancelled = true
			break
		}

		if p.sendFile(runCtx, sess, leaf, name, logger) {
			result.Sent++
		}
		progress.update(runCtx, i+1)

		if i < len(leaf.Files)-1 {
			if !p.pause(runCtx) {
				result.Cancelled = true
				break
			}
		}
	}

	progress.finish(result.Cancelled)

	p.observe(result, time.Since(start))
	p.record(runID, chatID, leaf, result)

	if result.Cancelled {
		logger.Info().Int("sent", result.Sent).Msg("Delivery cancelled")
		return result, ErrCancelled
	}

	p.notice(runCtx, sess, fmt.Sprintf("✅ %d of %d sent", result.Sent, result.Total))
	logger.Info().Int("sent", result.Sent).Dur("took", time.Since(start)).Msg("Delivery finished")
	return result, nil
}

// cancelled checks the run context and the session generation. A reset bumps
// the generation even if the context cancel raced with us.
func (p *Pipeline) cancelled(ctx context.Context, sess *session.Session, generation int) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	return sess.Generation() != generation
}

// sendFile transmits one file, classified by the leaf's category. Returns
// true when the file reached the gateway.
func (p *Pipeline) sendFile(ctx context.Context, sess *session.Session, leaf Leaf, name string, logger zerolog.Logger) bool {
	path := filepath.Join(leaf.Path, name)

	if !p.index.FileOK(path) {
		logger.Warn().Str("file", name).Msg("Skipping missing or empty file")
		p.notice(ctx, sess, fmt.Sprintf("⚠️ Skipped %s (unavailable)", name))
		p.countFile("skipped")
		return false
	}

	fileCtx, cancel := context.WithTimeout(ctx, p.cfg.FileTimeout)
	defer cancel()

	var err error
	if referenceCategory(leaf.Category) {
		body := p.index.ReadText(path)
		if body == "" {
			logger.Warn().Str("file", name).Msg("Reference file is empty, skipping")
			p.countFile("skipped")
			return false
		}
		var id int
		id, err = p.gw.SendText(fileCtx, sess.ChatID(), body)
		if err == nil {
			sess.RecordMessage(id)
		}
	} else {
		err = p.gw.SendDocument(fileCtx, sess.ChatID(), path, name)
	}

	if err != nil {
		logger.Warn().Err(err).Str("file", name).Msg("File send failed")
		p.notice(ctx, sess, fmt.Sprintf("⚠️ Could not send %s", name))
		p.countFile("failed")
		return false
	}

	p.countFile("sent")
	return true
}

// pause waits the inter-file delay without blocking a concurrent reset.
// Returns false when the run was cancelled during the wait.
func (p *Pipeline) pause(ctx context.Context) bool {
	timer := time.NewTimer(p.cfg.InterFileDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// notice sends a plain message and records it in the session history.
// Failures are logged only; a lost notice never aborts the batch.
func (p *Pipeline) notice(ctx context.Context, sess *session.Session, text string) {
	id, err := p.gw.SendText(ctx, sess.ChatID(), text)
	if err != nil {
		p.logger.Warn().Err(err).Int64("chat_id", sess.ChatID()).Msg("Failed to send delivery notice")
		return
	}
	sess.RecordMessage(id)
}

func (p *Pipeline) countFile(status string) {
	if p.metrics != nil {
		p.metrics.FilesTotal.WithLabelValues(status).Inc()
	}
}

func (p *Pipeline) observe(result Result, took time.Duration) {
	if p.metrics == nil {
		return
	}
	status := "completed"
	if result.Cancelled {
		status = "cancelled"
	}
	p.metrics.DeliveriesTotal.WithLabelValues(status).Inc()
	p.metrics.DeliveryDuration.Observe(took.Seconds())
}

func (p *Pipeline) record(runID string, chatID int64, leaf Leaf, result Result) {
	if p.recorder == nil {
		return
	}

	rel, err := filepath.Rel(p.index.Base(), leaf.Path)
	if err != nil {
		rel = leaf.Path
	}

	rec := Record{
		ID:        runID,
		ChatID:    chatID,
		Path:      rel,
		Category:  leaf.Category,
		Sent:      result.Sent,
		Total:     result.Total,
		Cancelled: result.Cancelled,
		At:        time.Now(),
	}

	// Recording runs on a background context so a cancelled delivery still
	// leaves an audit row.
	if err := p.recorder.Record(context.Background(), rec); err != nil {
		p.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to record delivery")
	}
}
