// Package archive persists AI responses to PostgreSQL for auditing and for
// lookups after the hot response store has expired them.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "crm-ai-orchestrator/internal/common/errors"
	"crm-ai-orchestrator/internal/common/logger"
	"crm-ai-orchestrator/internal/orchestrator"
)

const schema = `CREATE TABLE IF NOT EXISTS ai_responses (
	request_id      TEXT PRIMARY KEY,
	response_id     TEXT NOT NULL,
	request_type    TEXT NOT NULL,
	model_id        TEXT NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	processing_ms   BIGINT NOT NULL,
	result          JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
)`

const upsertResponse = `INSERT INTO ai_responses
	(request_id, response_id, request_type, model_id, confidence, processing_ms, result, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (request_id) DO UPDATE SET
		response_id   = EXCLUDED.response_id,
		request_type  = EXCLUDED.request_type,
		model_id      = EXCLUDED.model_id,
		confidence    = EXCLUDED.confidence,
		processing_ms = EXCLUDED.processing_ms,
		result        = EXCLUDED.result,
		created_at    = EXCLUDED.created_at`

const selectResponse = `SELECT response_id, request_type, model_id, confidence, processing_ms, result, created_at
	FROM ai_responses WHERE request_id = $1`

// PostgresArchive implements orchestrator.ResponseArchive.
type PostgresArchive struct {
	db      *sql.DB
	timeout time.Duration
	logger  logger.Logger
}

func NewPostgresArchive(db *sql.DB, timeout time.Duration, log logger.Logger) *PostgresArchive {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresArchive{
		db:      db,
		timeout: timeout,
		logger:  log.With(map[string]interface{}{"component": "archive"}),
	}
}

// EnsureSchema creates the ai_responses table when missing.
func (a *PostgresArchive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return apperrors.NewArchiveWriteFailedError(fmt.Errorf("create schema: %w", err))
	}
	return nil
}

// Archive upserts resp. A resubmitted request id replaces the earlier row.
func (a *PostgresArchive) Archive(ctx context.Context, resp *orchestrator.AIResponse) error {
	result, err := json.Marshal(resp.Result)
	if err != nil {
		return apperrors.NewArchiveWriteFailedError(fmt.Errorf("encode result: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err = a.db.ExecContext(ctx, upsertResponse,
		resp.RequestID,
		resp.ID,
		string(resp.Type),
		resp.ModelID,
		resp.Confidence,
		resp.ProcessingTime,
		result,
		resp.Timestamp,
	)
	if err != nil {
		return apperrors.NewArchiveWriteFailedError(err)
	}
	a.logger.Debug("response archived", map[string]interface{}{"requestId": resp.RequestID, "responseId": resp.ID})
	return nil
}

// Lookup returns the archived response for requestID or
// orchestrator.ErrResponseNotFound.
func (a *PostgresArchive) Lookup(ctx context.Context, requestID string) (*orchestrator.AIResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var (
		resp   = orchestrator.AIResponse{RequestID: requestID}
		reqTyp string
		raw    []byte
	)
	err := a.db.QueryRowContext(ctx, selectResponse, requestID).Scan(
		&resp.ID, &reqTyp, &resp.ModelID, &resp.Confidence, &resp.ProcessingTime, &raw, &resp.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orchestrator.ErrResponseNotFound
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError("archive", err)
	}

	resp.Type = orchestrator.RequestType(reqTyp)
	result, err := orchestrator.DecodeResult(resp.Type, raw)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError("archive", err)
	}
	resp.Result = result
	return &resp, nil
}
