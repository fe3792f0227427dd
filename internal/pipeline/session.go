package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nsecli/internal/config"
	"nsecli/pkg/contracts/domain"
)

// heldFile is one fetched-but-unpersisted day file inside a session.
type heldFile struct {
	kind    domain.DataKind
	date    time.Time
	raw     []byte
	records []domain.DailyRecord
}

type session struct {
	info  domain.SessionInfo
	held  map[string]*heldFile
	order []string
}

// SessionManager owns the lifecycle of scrape sessions: acquisitions whose
// data is held in memory until the operator either consolidates it or
// discards it. Legal transitions are Active -> Consolidated -> Cleaned and
// Active -> Cleaned; once Cleaned a session id behaves as unknown.
type SessionManager struct {
	gate         *Gate
	consolidator *Consolidator
	acquirer     *Acquirer
	previewRows  int
	logger       *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewSessionManager creates a scrape session manager.
func NewSessionManager(gate *Gate, acquirer *Acquirer, consolidator *Consolidator, previewRows int, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	if previewRows < 1 {
		previewRows = 10
	}
	return &SessionManager{
		gate:         gate,
		consolidator: consolidator,
		acquirer:     acquirer,
		previewRows:  previewRows,
		logger:       logger.With(slog.String("component", "session_manager")),
		sessions:     make(map[string]*session),
	}
}

// CreateSessionRequest describes the acquisition backing a new session.
// A single-day session has From equal to To.
type CreateSessionRequest struct {
	From  time.Time
	To    time.Time
	Kinds []domain.DataKind
}

// Create runs an acquisition with persistence disabled and stores the raw
// results in a new active session. Creating a session never cleans up a
// prior one; stale sessions must be cleaned explicitly.
func (m *SessionManager) Create(ctx context.Context, req CreateSessionRequest) (*domain.SessionInfo, error) {
	if req.From.After(req.To) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidRange,
			req.From.Format("2006-01-02"), req.To.Format("2006-01-02"))
	}
	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = domain.AllKinds()
	}
	for _, kind := range kinds {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: unknown data kind %q", ErrInvalidRange, kind)
		}
	}

	sessionKind := domain.SessionKindRange
	if req.From.Equal(req.To) {
		sessionKind = domain.SessionKindSingle
	}

	sess := &session{
		info: domain.SessionInfo{
			ID:        uuid.New().String(),
			Kind:      sessionKind,
			Status:    domain.SessionStatusActive,
			CreatedAt: time.Now().UTC(),
		},
		held: make(map[string]*heldFile),
	}
	summary := &domain.RangeSummary{From: req.From, To: req.To}

	for _, day := range m.acquirer.TradingDays(req.From, req.To) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, kind := range kinds {
			entry := domain.DayEntry{
				Date:     day,
				Kind:     kind,
				Filename: config.CachedFilename(day, kind),
			}
			raw, records, err := m.gate.FetchHeld(ctx, day, kind)
			if err != nil {
				entry.Status = domain.DayStatusFailed
				entry.ErrorMessage = err.Error()
				summary.Add(entry)
				continue
			}
			entry.Status = domain.DayStatusFetched
			entry.RecordCount = len(records)
			summary.Add(entry)

			sess.held[entry.Filename] = &heldFile{kind: kind, date: day, raw: raw, records: records}
			sess.order = append(sess.order, entry.Filename)
			sess.info.Files = append(sess.info.Files, entry.Filename)
		}
	}
	sess.info.Summary = *summary

	m.mu.Lock()
	m.sessions[sess.info.ID] = sess
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session created",
		slog.String("session_id", sess.info.ID),
		slog.String("kind", string(sessionKind)),
		slog.Int("files", len(sess.order)),
		slog.Int("failed_days", summary.FailedCount))

	info := sess.info
	return &info, nil
}

// active looks up a session that is still Active.
func (m *SessionManager) active(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok || sess.info.Status != domain.SessionStatusActive {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Get returns the caller-visible view of an active session.
func (m *SessionManager) Get(id string) (*domain.SessionInfo, error) {
	sess, err := m.active(id)
	if err != nil {
		return nil, err
	}
	info := sess.info
	return &info, nil
}

// Preview returns a bounded sample of every held file.
func (m *SessionManager) Preview(id string) (*domain.SessionPreview, error) {
	sess, err := m.active(id)
	if err != nil {
		return nil, err
	}

	preview := &domain.SessionPreview{SessionID: id}
	for _, filename := range sess.order {
		file := sess.held[filename]
		limit := m.previewRows
		if limit > len(file.records) {
			limit = len(file.records)
		}
		preview.Files = append(preview.Files, domain.FilePreview{
			Filename:     filename,
			Kind:         file.kind,
			TotalRecords: len(file.records),
			Rows:         file.records[:limit],
		})
	}
	return preview, nil
}

// DownloadFile returns the raw bytes of one held file.
func (m *SessionManager) DownloadFile(id, filename string) ([]byte, error) {
	sess, err := m.active(id)
	if err != nil {
		return nil, err
	}
	file, ok := sess.held[filename]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
	}
	return file.raw, nil
}

// Consolidate runs the export engine against the session's held records.
// On success the session transitions to Consolidated and is then cleaned
// up automatically, releasing the held data.
func (m *SessionManager) Consolidate(ctx context.Context, id string, fastMode bool) (*ExportResult, error) {
	sess, err := m.active(id)
	if err != nil {
		return nil, err
	}

	held := make(map[domain.DataKind]map[time.Time][]domain.DailyRecord)
	for _, file := range sess.held {
		days, ok := held[file.kind]
		if !ok {
			days = make(map[time.Time][]domain.DailyRecord)
			held[file.kind] = days
		}
		days[file.date] = file.records
	}

	result, err := m.consolidator.ExportHeld(ctx, held, ExportRequest{
		From:     sess.info.Summary.From,
		To:       sess.info.Summary.To,
		FastMode: fastMode,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	sess.info.Status = domain.SessionStatusConsolidated
	m.release(sess)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session consolidated",
		slog.String("session_id", id),
		slog.String("artifact_id", result.Artifact.ID))
	return result, nil
}

// Cleanup discards an active session's held data. It is idempotent: cleaning
// an already-cleaned or unknown session succeeds without effect.
func (m *SessionManager) Cleanup(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok || sess.info.Status == domain.SessionStatusCleaned {
		return
	}
	m.release(sess)
	m.logger.Info("session cleaned", slog.String("session_id", id))
}

// release drops held data and marks the session Cleaned. Caller holds mu.
func (m *SessionManager) release(sess *session) {
	sess.info.Status = domain.SessionStatusCleaned
	sess.held = nil
	sess.order = nil
}
