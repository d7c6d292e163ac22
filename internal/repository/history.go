package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
	"github.com/joseph-ayodele/hwp-analyzer/internal/entity"
)

const (
	MinFeedbackScore = 1
	MaxFeedbackScore = 5
	DefaultListLimit = 50
	maxListLimit     = 500
)

type HistoryRepository interface {
	Save(ctx context.Context, rec *entity.AnalysisRecord) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.AnalysisRecord, error)
	List(ctx context.Context, limit int) ([]*entity.AnalysisRecord, error)
	Count(ctx context.Context) (int, error)
	RecordFeedback(ctx context.Context, id uuid.UUID, score int, comment string) error
	LearningDataset(ctx context.Context, minScore int) ([]entity.LearningExample, error)
}

type historyRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewHistoryRepository(db *DB, logger *slog.Logger) HistoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &historyRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

const historyColumns = `id, created_at, filename, file_type, text_hash, document_type, method, summary,
	reward, result, feedback_score, feedback_comment, feedback_at`

// Save inserts rec, assigning an ID and creation time when they are unset.
func (r *historyRepository) Save(ctx context.Context, rec *entity.AnalysisRecord) (uuid.UUID, error) {
	if rec == nil {
		return uuid.Nil, common.NewAppError("INVALID_INPUT", "record is nil", common.ErrInvalidInput)
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	result := string(rec.Result)
	if result == "" {
		result = "{}"
	}
	_, err := r.db.sql.ExecContext(ctx, r.db.rebind(`INSERT INTO analysis_history
		(id, created_at, filename, file_type, text_hash, document_type, method, summary, reward, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID.String(), rec.CreatedAt, rec.Filename, rec.FileType, rec.TextHash,
		rec.DocumentType, rec.Method, rec.Summary, nullFloat(rec.Reward), result,
	)
	if err != nil {
		r.logger.Error("failed to save analysis record", "filename", rec.Filename, "error", err)
		return uuid.Nil, common.NewAppError("DB_ERROR", "save analysis record", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	r.logger.Debug("analysis record saved", "id", rec.ID, "filename", rec.Filename)
	return rec.ID, nil
}

func (r *historyRepository) Get(ctx context.Context, id uuid.UUID) (*entity.AnalysisRecord, error) {
	row := r.db.sql.QueryRowContext(ctx, r.db.rebind(`SELECT `+historyColumns+` FROM analysis_history WHERE id = ?`), id.String())
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", "analysis record "+id.String()+" not found", common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get analysis record", "id", id, "error", err)
		return nil, common.NewAppError("DB_ERROR", "get analysis record", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return rec, nil
}

// List returns the newest records first.
func (r *historyRepository) List(ctx context.Context, limit int) ([]*entity.AnalysisRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, maxListLimit)
	rows, err := r.db.sql.QueryContext(ctx, r.db.rebind(`SELECT `+historyColumns+`
		FROM analysis_history ORDER BY created_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		r.logger.Error("failed to list analysis records", "error", err)
		return nil, common.NewAppError("DB_ERROR", "list analysis records", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	defer rows.Close()

	out := make([]*entity.AnalysisRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan analysis record", fmt.Errorf("%w: %w", common.ErrDatabase, err))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "list analysis records", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return out, nil
}

func (r *historyRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_history`).Scan(&n); err != nil {
		return 0, common.NewAppError("DB_ERROR", "count analysis records", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return n, nil
}

// RecordFeedback stores a 1..5 user rating; a later rating replaces the earlier one.
func (r *historyRepository) RecordFeedback(ctx context.Context, id uuid.UUID, score int, comment string) error {
	if score < MinFeedbackScore || score > MaxFeedbackScore {
		return common.NewAppError("INVALID_INPUT",
			fmt.Sprintf("feedback score must be between %d and %d", MinFeedbackScore, MaxFeedbackScore), common.ErrInvalidInput)
	}
	comment = strings.TrimSpace(comment)
	res, err := r.db.sql.ExecContext(ctx, r.db.rebind(`UPDATE analysis_history
		SET feedback_score = ?, feedback_comment = ?, feedback_at = ? WHERE id = ?`),
		score, nullString(comment), r.now(), id.String())
	if err != nil {
		r.logger.Error("failed to record feedback", "id", id, "error", err)
		return common.NewAppError("DB_ERROR", "record feedback", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError("NOT_FOUND", "analysis record "+id.String()+" not found", common.ErrNotFound)
	}
	r.logger.Info("feedback recorded", "id", id, "score", score)
	return nil
}

// LearningDataset returns rated records scoring at least minScore, best first.
func (r *historyRepository) LearningDataset(ctx context.Context, minScore int) ([]entity.LearningExample, error) {
	if minScore < MinFeedbackScore {
		minScore = MinFeedbackScore
	}
	rows, err := r.db.sql.QueryContext(ctx, r.db.rebind(`SELECT id, document_type, method, feedback_score, feedback_comment, result
		FROM analysis_history WHERE feedback_score >= ? ORDER BY feedback_score DESC, created_at DESC`), minScore)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "query learning dataset", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	defer rows.Close()

	out := []entity.LearningExample{}
	for rows.Next() {
		var (
			ex      entity.LearningExample
			id      string
			comment sql.NullString
			result  string
		)
		if err := rows.Scan(&id, &ex.DocumentType, &ex.Method, &ex.Score, &comment, &result); err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan learning example", fmt.Errorf("%w: %w", common.ErrDatabase, err))
		}
		if ex.RecordID, err = uuid.Parse(id); err != nil {
			return nil, common.NewAppError("DB_ERROR", "bad record id "+id, fmt.Errorf("%w: %w", common.ErrDatabase, err))
		}
		ex.Comment = comment.String
		ex.Result = []byte(result)
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "query learning dataset", fmt.Errorf("%w: %w", common.ErrDatabase, err))
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (*entity.AnalysisRecord, error) {
	var (
		rec        entity.AnalysisRecord
		id         string
		reward     sql.NullFloat64
		result     string
		score      sql.NullInt64
		comment    sql.NullString
		feedbackAt sql.NullTime
	)
	if err := s.Scan(&id, &rec.CreatedAt, &rec.Filename, &rec.FileType, &rec.TextHash, &rec.DocumentType,
		&rec.Method, &rec.Summary, &reward, &result, &score, &comment, &feedbackAt); err != nil {
		return nil, err
	}
	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad record id %q: %w", id, err)
	}
	rec.Result = []byte(result)
	if reward.Valid {
		rec.Reward = &reward.Float64
	}
	if score.Valid {
		s := int(score.Int64)
		rec.FeedbackScore = &s
	}
	if comment.Valid {
		rec.FeedbackComment = &comment.String
	}
	if feedbackAt.Valid {
		rec.FeedbackAt = &feedbackAt.Time
	}
	return &rec, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
