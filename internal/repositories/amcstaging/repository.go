// Package amcstaging persists unresolved AMC references awaiting review.
// Rows are append-only: reviews change status, nothing deletes them.
package amcstaging

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

var columns = []string{
	"id", "source_table", "source_amc_name", "normalized_name", "source_amc_code",
	"suggested_amc_id", "match_type", "match_confidence", "status",
	"reviewed_by", "reviewed_at", "notes", "created_at", "updated_at",
}

// Repository handles amc_staging persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new staging repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// UpsertResult contains the result of an upsert operation
type UpsertResult struct {
	Candidate *models.StagingCandidate
	IsNew     bool
}

// Upsert inserts a staging candidate keyed by (source_table, normalized_name,
// source_amc_code). Re-staging an already seen reference is a no-op that
// returns the existing row, whatever its review status.
func (r *Repository) Upsert(ctx context.Context, candidate models.StagingCandidate) (*UpsertResult, error) {
	ctx, span := tracing.StartSpan(ctx, "amcstaging.Repository.Upsert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"source_table":    candidate.SourceTable,
		"normalized_name": candidate.NormalizedName,
		"source_amc_code": candidate.SourceAmcCode,
	})

	now := time.Now().UTC()
	id := uuid.New().String()

	query := `
		INSERT INTO amc_staging (
			id, source_table, source_amc_name, normalized_name, source_amc_code,
			suggested_amc_id, match_type, match_confidence, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source_table, normalized_name, source_amc_code) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		id, candidate.SourceTable, candidate.SourceAmcName, candidate.NormalizedName, candidate.SourceAmcCode,
		candidate.SuggestedAmcID, candidate.MatchType, candidate.MatchConfidence, models.StagingPending, now,
	)
	if err != nil {
		log.WithError(err).Error("Failed to upsert staging candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to stage candidate")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		existing, err := r.getByKey(ctx, candidate.SourceTable, candidate.NormalizedName, candidate.SourceAmcCode)
		if err != nil {
			return nil, err
		}
		log.WithFields(map[string]any{"id": existing.ID}).Debug("Staging candidate already exists")
		return &UpsertResult{Candidate: existing, IsNew: false}, nil
	}

	candidate.ID = id
	candidate.Status = models.StagingPending
	candidate.CreatedAt = now
	log.WithFields(map[string]any{"id": id, "match_type": candidate.MatchType}).Info("Staged candidate for review")
	return &UpsertResult{Candidate: &candidate, IsNew: true}, nil
}

func (r *Repository) getByKey(ctx context.Context, sourceTable models.Source, normalizedName, sourceAmcCode string) (*models.StagingCandidate, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("amc_staging")
	sb.Where(
		sb.Equal("source_table", sourceTable),
		sb.Equal("normalized_name", normalizedName),
		sb.Equal("source_amc_code", sourceAmcCode),
	)

	query, args := sb.Build()
	var candidate models.StagingCandidate
	if err := r.db.GetContext(ctx, &candidate, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"source_table": sourceTable, "normalized_name": normalizedName}).Error("Failed to get staging candidate by key")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get staging candidate")
	}
	return &candidate, nil
}

// Get retrieves a staging candidate by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.StagingCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "amcstaging.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("amc_staging")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var candidate models.StagingCandidate
	if err := r.db.GetContext(ctx, &candidate, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "staging candidate %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get staging candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get staging candidate")
	}
	return &candidate, nil
}

// List retrieves staging candidates filtered by status with pagination
func (r *Repository) List(ctx context.Context, status *models.StagingStatus, page, pageSize int) (*models.StagingListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "amcstaging.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("amc_staging")
	if status != nil {
		countSb.Where(countSb.Equal("status", *status))
	}

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"status": status}).Error("Failed to count staging candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count staging candidates")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("amc_staging")
	if status != nil {
		sb.Where(sb.Equal("status", *status))
	}
	sb.OrderBy("match_confidence DESC", "created_at ASC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var candidates []models.StagingCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"status": status, "page": page, "page_size": pageSize}).Error("Failed to list staging candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list staging candidates")
	}

	return &models.StagingListResponse{
		Items:      candidates,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// ListPending returns every pending candidate, highest confidence first.
func (r *Repository) ListPending(ctx context.Context) ([]models.StagingCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "amcstaging.Repository.ListPending")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("amc_staging")
	sb.Where(sb.Equal("status", models.StagingPending))
	sb.OrderBy("match_confidence DESC", "created_at ASC")

	query, args := sb.Build()
	var candidates []models.StagingCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending staging candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending candidates")
	}
	return candidates, nil
}

// UpdateStatus reviews a single candidate. Only pending candidates can be
// reviewed; reviewing a settled one returns 409.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status models.StagingStatus, amcID *string, reviewedBy string, notes *string) (*models.StagingCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "amcstaging.Repository.UpdateStatus")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":          id,
		"status":      status,
		"reviewed_by": reviewedBy,
	})

	now := time.Now().UTC()
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("amc_staging")
	assigns := []string{
		ub.Assign("status", status),
		ub.Assign("reviewed_by", reviewedBy),
		ub.Assign("reviewed_at", now),
		ub.Assign("updated_at", now),
	}
	if amcID != nil {
		assigns = append(assigns, ub.Assign("suggested_amc_id", *amcID))
	}
	if notes != nil {
		assigns = append(assigns, ub.Assign("notes", *notes))
	}
	ub.Set(assigns...)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("status", models.StagingPending),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.WithError(err).Error("Failed to update staging status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update staging candidate")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		existing, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "staging candidate %s already %s", id, existing.Status)
	}

	log.Info("Reviewed staging candidate")
	return r.Get(ctx, id)
}

// BulkApprove approves every pending candidate with a suggested match at or
// above the confidence threshold, in one set-based update.
func (r *Repository) BulkApprove(ctx context.Context, threshold float64, reviewedBy string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "amcstaging.Repository.BulkApprove")
	defer span.End()

	now := time.Now().UTC()
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("amc_staging")
	ub.Set(
		ub.Assign("status", models.StagingApproved),
		ub.Assign("reviewed_by", reviewedBy),
		ub.Assign("reviewed_at", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("status", models.StagingPending),
		ub.IsNotNull("suggested_amc_id"),
		ub.GreaterEqualThan("match_confidence", threshold),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"threshold": threshold}).Error("Failed to bulk approve staging candidates")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to bulk approve")
	}

	rows, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"threshold": threshold,
		"count":     rows,
	}).Info("Bulk approved staging candidates")
	return int(rows), nil
}

// ListApproved returns every approved candidate in review order. Callers
// re-applying codes rely on code-set merges being idempotent.
func (r *Repository) ListApproved(ctx context.Context) ([]models.StagingCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "amcstaging.Repository.ListApproved")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("amc_staging")
	sb.Where(sb.Equal("status", models.StagingApproved))
	sb.OrderBy("reviewed_at ASC")

	query, args := sb.Build()
	var candidates []models.StagingCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list approved staging candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list approved candidates")
	}
	return candidates, nil
}

// CountByStatus returns staging row counts keyed by status.
func (r *Repository) CountByStatus(ctx context.Context) (map[models.StagingStatus]int, error) {
	ctx, span := tracing.StartSpan(ctx, "amcstaging.Repository.CountByStatus")
	defer span.End()

	query := `SELECT status, COUNT(*) AS count FROM amc_staging GROUP BY status`

	var rows []struct {
		Status models.StagingStatus `db:"status"`
		Count  int                  `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count staging candidates by status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count staging candidates")
	}

	counts := make(map[models.StagingStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
