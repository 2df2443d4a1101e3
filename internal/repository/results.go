package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/async"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

// CachedResult is one row of the result cache.
type CachedResult struct {
	ContentHash  string
	FileName     string
	Status       constants.JobStatus
	Result       *entity.ProcessedDocumentResult
	ErrorCode    string
	ErrorMessage string
	UpdatedAt    time.Time
}

type ResultRepository interface {
	Get(ctx context.Context, hash string) (*CachedResult, error)
	MarkRunning(ctx context.Context, hash, fileName string) error
	Put(ctx context.Context, hash, fileName string, res *entity.ProcessedDocumentResult) error
	PutFailure(ctx context.Context, hash, fileName string, cause error) error
	List(ctx context.Context) ([]CachedResult, error)
	Completed(ctx context.Context, hash string) (bool, error)
	Record(ctx context.Context, out async.Outcome) error
}

type resultRepo struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ async.ResultSink = ResultRepository(nil)
	_ async.Deduper    = ResultRepository(nil)
)

func NewResultRepository(db *sql.DB, logger *slog.Logger) ResultRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &resultRepo{db: db, logger: logger, now: time.Now}
}

const upsert = `
INSERT INTO document_results (content_hash, file_name, status, result_json, error_code, error_message, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(content_hash) DO UPDATE SET
	file_name = excluded.file_name,
	status = excluded.status,
	result_json = excluded.result_json,
	error_code = excluded.error_code,
	error_message = excluded.error_message,
	updated_at = excluded.updated_at`

const selectCols = `SELECT content_hash, file_name, status, result_json, error_code, error_message, updated_at FROM document_results`

func (r *resultRepo) Get(ctx context.Context, hash string) (*CachedResult, error) {
	row := r.db.QueryRowContext(ctx, selectCols+` WHERE content_hash = ?`, hash)
	out, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", hash, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("cache.get.failed", "content_hash", hash, "err", err)
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return out, nil
}

func (r *resultRepo) MarkRunning(ctx context.Context, hash, fileName string) error {
	return r.write(ctx, hash, fileName, constants.JobStatusRunning, nil, "", "")
}

func (r *resultRepo) Put(ctx context.Context, hash, fileName string, res *entity.ProcessedDocumentResult) error {
	if res == nil {
		return fmt.Errorf("put %s: %w", hash, common.ErrInvalidInput)
	}
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	s := string(b)
	return r.write(ctx, hash, fileName, constants.JobStatusComplete, &s, "", "")
}

// PutFailure stores a terminal failure. Cancellations are stored as
// CANCELLED, everything else as FAILED.
func (r *resultRepo) PutFailure(ctx context.Context, hash, fileName string, cause error) error {
	status := constants.JobStatusFailed
	if common.IsCancelled(cause) {
		status = constants.JobStatusCancelled
	}
	code := "INTERNAL"
	if pe, ok := common.AsProcessingError(cause); ok {
		code = pe.Code
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.write(ctx, hash, fileName, status, nil, code, msg)
}

func (r *resultRepo) write(ctx context.Context, hash, fileName string, status constants.JobStatus, resultJSON *string, code, msg string) error {
	_, err := r.db.ExecContext(ctx, upsert, hash, fileName, string(status), resultJSON,
		nullable(code), nullable(msg), r.now().UnixMilli())
	if err != nil {
		r.logger.Error("cache.write.failed", "content_hash", hash, "status", status, "err", err)
		return fmt.Errorf("failed to write result: %w", err)
	}
	r.logger.Debug("cache.write.ok", "content_hash", hash, "status", status)
	return nil
}

// List returns every row, most recently updated first.
func (r *resultRepo) List(ctx context.Context) ([]CachedResult, error) {
	rows, err := r.db.QueryContext(ctx, selectCols+` ORDER BY updated_at DESC, file_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var out []CachedResult
	for rows.Next() {
		c, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Completed reports whether hash already has a COMPLETE result.
func (r *resultRepo) Completed(ctx context.Context, hash string) (bool, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM document_results WHERE content_hash = ?`, hash).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return constants.JobStatus(status) == constants.JobStatusComplete, nil
}

// Record stores a queue outcome. Outcomes without a content hash (unread or
// oversize files) have no cache key and are skipped.
func (r *resultRepo) Record(ctx context.Context, out async.Outcome) error {
	if out.HashHex == "" {
		r.logger.Debug("cache.record.skipped", "path", out.Job.Path)
		return nil
	}
	if out.Err != nil {
		return r.PutFailure(ctx, out.HashHex, out.FileName, out.Err)
	}
	return r.Put(ctx, out.HashHex, out.FileName, out.Result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(s scanner) (*CachedResult, error) {
	var (
		c          CachedResult
		status     string
		resultJSON sql.NullString
		code, msg  sql.NullString
		updated    int64
	)
	if err := s.Scan(&c.ContentHash, &c.FileName, &status, &resultJSON, &code, &msg, &updated); err != nil {
		return nil, err
	}
	c.Status = constants.JobStatus(status)
	c.ErrorCode = code.String
	c.ErrorMessage = msg.String
	c.UpdatedAt = time.UnixMilli(updated).UTC()
	if resultJSON.Valid && resultJSON.String != "" {
		var res entity.ProcessedDocumentResult
		if err := json.Unmarshal([]byte(resultJSON.String), &res); err != nil {
			return nil, fmt.Errorf("decode result %s: %w", c.ContentHash, err)
		}
		c.Result = &res
	}
	return &c, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
