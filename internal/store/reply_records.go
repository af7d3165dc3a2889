// Package store persists reply records in PostgreSQL and caches store
// profiles in Redis.
//
// The reply_records table carries UNIQUE(platform, platform_review_id);
// exactly one record ever exists per review identity. All updates are
// guarded on the state the caller read, so a concurrent writer surfaces
// as a stale-record error instead of a silent overwrite.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"reviewdesk/internal/common/database"
	apperrors "reviewdesk/internal/common/errors"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/models"
	"reviewdesk/internal/workflow"
)

const uniqueViolation = "23505"

const replyRecordColumns = `id, platform, platform_review_id, store_id,
	generated_text, reply_text, state, requires_approval, scheduled_post_at,
	failure_reason, retry_count, approved_by, approved_at, rejected_by,
	created_at, updated_at`

type ReplyRecordStore struct {
	db  *database.PostgresClient
	log logger.Logger
}

func NewReplyRecordStore(db *database.PostgresClient, log logger.Logger) *ReplyRecordStore {
	return &ReplyRecordStore{
		db: db,
		log: log.With(map[string]interface{}{
			"component": "replyRecordStore",
		}),
	}
}

// Get loads the record for a review identity. workflow.ErrNotFound when
// none exists.
func (s *ReplyRecordStore) Get(ctx context.Context, platform models.Platform, platformReviewID string) (*models.ReplyRecord, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+replyRecordColumns+`
		 FROM reply_records
		 WHERE platform = $1 AND platform_review_id = $2`,
		string(platform), platformReviewID)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewPersistenceFailedError(err)
	}
	return record, nil
}

// Create inserts a fresh record. A concurrent insert for the same review
// identity surfaces as a duplicate-reply error, never as a second row.
func (s *ReplyRecordStore) Create(ctx context.Context, r *models.ReplyRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO reply_records (`+replyRecordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, string(r.Platform), r.PlatformReviewID, r.StoreID,
		r.GeneratedText, r.ReplyText, string(r.State), r.RequiresApproval, r.ScheduledPostAt,
		r.FailureReason, r.RetryCount, nullString(r.ApprovedBy), r.ApprovedAt, nullString(r.RejectedBy),
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return apperrors.NewDuplicateReplyError(string(r.Platform), r.PlatformReviewID)
		}
		return apperrors.NewPersistenceFailedError(err)
	}
	return nil
}

// Update writes the record guarded on the state the caller read. Zero
// rows affected means another writer transitioned the record first.
func (s *ReplyRecordStore) Update(ctx context.Context, r *models.ReplyRecord, expectedState models.LifecycleState) error {
	res, err := s.db.Exec(ctx,
		`UPDATE reply_records
		 SET generated_text = $1, reply_text = $2, state = $3, requires_approval = $4,
		     scheduled_post_at = $5, failure_reason = $6, retry_count = $7,
		     approved_by = $8, approved_at = $9, rejected_by = $10, updated_at = $11
		 WHERE id = $12 AND state = $13`,
		r.GeneratedText, r.ReplyText, string(r.State), r.RequiresApproval,
		r.ScheduledPostAt, r.FailureReason, r.RetryCount,
		nullString(r.ApprovedBy), r.ApprovedAt, nullString(r.RejectedBy), r.UpdatedAt,
		r.ID, string(expectedState))
	if err != nil {
		return apperrors.NewPersistenceFailedError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewPersistenceFailedError(err)
	}
	if n == 0 {
		return apperrors.NewStaleRecordError(r.ID)
	}
	return nil
}

// ListPendingApproval returns records awaiting a human, oldest first.
func (s *ReplyRecordStore) ListPendingApproval(ctx context.Context, storeID string, limit int) ([]*models.ReplyRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+replyRecordColumns+`
		 FROM reply_records
		 WHERE store_id = $1 AND state = $2
		 ORDER BY created_at ASC
		 LIMIT $3`,
		storeID, string(models.StatePendingApproval), limit)
	if err != nil {
		return nil, apperrors.NewPersistenceFailedError(err)
	}
	defer rows.Close()

	var records []*models.ReplyRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, apperrors.NewPersistenceFailedError(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceFailedError(err)
	}
	return records, nil
}

// ListDue returns approved records whose scheduled posting time has
// passed.
func (s *ReplyRecordStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.ReplyRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+replyRecordColumns+`
		 FROM reply_records
		 WHERE state = $1 AND scheduled_post_at <= $2
		 ORDER BY scheduled_post_at ASC
		 LIMIT $3`,
		string(models.StateApproved), now, limit)
	if err != nil {
		return nil, apperrors.NewPersistenceFailedError(err)
	}
	defer rows.Close()

	var records []*models.ReplyRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, apperrors.NewPersistenceFailedError(err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewPersistenceFailedError(err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.ReplyRecord, error) {
	var (
		r          models.ReplyRecord
		platform   string
		state      string
		approvedBy sql.NullString
		approvedAt sql.NullTime
		rejectedBy sql.NullString
	)
	err := row.Scan(
		&r.ID, &platform, &r.PlatformReviewID, &r.StoreID,
		&r.GeneratedText, &r.ReplyText, &state, &r.RequiresApproval, &r.ScheduledPostAt,
		&r.FailureReason, &r.RetryCount, &approvedBy, &approvedAt, &rejectedBy,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Platform = models.Platform(platform)
	r.State = models.LifecycleState(state)
	if approvedBy.Valid {
		r.ApprovedBy = approvedBy.String
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		r.ApprovedAt = &t
	}
	if rejectedBy.Valid {
		r.RejectedBy = rejectedBy.String
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
