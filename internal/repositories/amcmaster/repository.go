// Package amcmaster persists canonical AMC records.
package amcmaster

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

var columns = []string{
	"amc_id", "amc_code", "amc_short_name", "amc_full_name",
	"cams_amc_codes", "kfin_amc_codes", "bse_amc_codes", "nse_amc_codes",
	"created_at", "updated_at",
}

// Repository handles amc_master persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new AMC master repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a master row. Inserting an amc_code that already exists is
// a no-op and returns the existing row, so seeding is idempotent.
func (r *Repository) Create(ctx context.Context, master models.AmcMaster) (*models.AmcMaster, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "amcmaster.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	master.CreatedAt = now

	ib := database.NewInsertBuilder()
	ib.InsertInto("amc_master")
	ib.Cols("amc_id", "amc_code", "amc_short_name", "amc_full_name", "cams_amc_codes", "kfin_amc_codes", "bse_amc_codes", "nse_amc_codes", "created_at")
	ib.Values(master.AmcID, master.AmcCode, master.AmcShortName, master.AmcFullName, master.CamsAmcCodes, master.KfinAmcCodes, master.BseAmcCodes, master.NseAmcCodes, now)
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"amc_id": master.AmcID, "amc_code": master.AmcCode}).Error("Failed to create AMC master")
		return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create amc")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		existing, err := r.GetByCode(ctx, master.AmcCode)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"amc_id": master.AmcID, "amc_code": master.AmcCode}).Info("Created AMC master")
	return &master, true, nil
}

// Get retrieves a master row by amc_id
func (r *Repository) Get(ctx context.Context, amcID string) (*models.AmcMaster, error) {
	ctx, span := tracing.StartSpan(ctx, "amcmaster.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("amc_master")
	sb.Where(sb.Equal("amc_id", amcID))

	query, args := sb.Build()
	var master models.AmcMaster
	if err := r.db.GetContext(ctx, &master, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "amc %s not found", amcID)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"amc_id": amcID}).Error("Failed to get AMC master")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get amc")
	}
	return &master, nil
}

// GetByCode retrieves a master row by its internal amc_code
func (r *Repository) GetByCode(ctx context.Context, amcCode string) (*models.AmcMaster, error) {
	ctx, span := tracing.StartSpan(ctx, "amcmaster.Repository.GetByCode")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("amc_master")
	sb.Where(sb.Equal("amc_code", amcCode))

	query, args := sb.Build()
	var master models.AmcMaster
	if err := r.db.GetContext(ctx, &master, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "amc with code %s not found", amcCode)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"amc_code": amcCode}).Error("Failed to get AMC master by code")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get amc")
	}
	return &master, nil
}

// GetByShortName retrieves a master row by its short name
func (r *Repository) GetByShortName(ctx context.Context, shortName string) (*models.AmcMaster, error) {
	ctx, span := tracing.StartSpan(ctx, "amcmaster.Repository.GetByShortName")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("amc_master")
	sb.Where(sb.Equal("amc_short_name", shortName))
	sb.Limit(1)

	query, args := sb.Build()
	var master models.AmcMaster
	if err := r.db.GetContext(ctx, &master, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"amc_short_name": shortName}).Error("Failed to get AMC master by short name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get amc")
	}
	return &master, nil
}

// ListAll returns every master row ordered by amc_id. The matcher snapshots
// the whole table; the master stays small (tens of rows, not millions).
func (r *Repository) ListAll(ctx context.Context) ([]models.AmcMaster, error) {
	ctx, span := tracing.StartSpan(ctx, "amcmaster.Repository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("amc_master")
	sb.OrderBy("amc_id")

	query, args := sb.Build()
	var masters []models.AmcMaster
	if err := r.db.SelectContext(ctx, &masters, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list AMC masters")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list amcs")
	}
	return masters, nil
}

// List retrieves master rows with pagination
func (r *Repository) List(ctx context.Context, page, pageSize int) (*models.AmcMasterListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "amcmaster.Repository.List")
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
	countSb.From("amc_master")

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count AMC masters")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count amcs")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("amc_master")
	sb.OrderBy("amc_id")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var masters []models.AmcMaster
	if err := r.db.SelectContext(ctx, &masters, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"page": page, "page_size": pageSize}).Error("Failed to list AMC masters")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list amcs")
	}

	return &models.AmcMasterListResponse{
		Items:      masters,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// AttachSourceCode adds a source code to a master row's code set. The row is
// locked for the read-modify-write so concurrent attachments to the same AMC
// serialize instead of losing codes.
func (r *Repository) AttachSourceCode(ctx context.Context, amcID string, source models.Source, code string) (*models.AmcMaster, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "amcmaster.Repository.AttachSourceCode")
	defer span.End()

	column, ok := sourceColumn(source)
	if !ok {
		return nil, false, httperror.NewHTTPErrorf(http.StatusBadRequest, "source %s does not carry amc codes", source)
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"amc_id": amcID,
		"source": source,
		"code":   code,
	})

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var master models.AmcMaster
	query := `
		SELECT amc_id, amc_code, amc_short_name, amc_full_name,
		       cams_amc_codes, kfin_amc_codes, bse_amc_codes, nse_amc_codes,
		       created_at, updated_at
		FROM amc_master
		WHERE amc_id = $1
		FOR UPDATE
	`
	if err := tx.GetContext(ctx, &master, query, amcID); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, false, httperror.NewHTTPErrorf(http.StatusNotFound, "amc %s not found", amcID)
		}
		log.WithError(err).Error("Failed to lock AMC for code attachment")
		return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to lock amc")
	}

	current := ""
	switch source {
	case models.SourceCams:
		current = master.CamsAmcCodes
	case models.SourceKfin:
		current = master.KfinAmcCodes
	case models.SourceBse:
		current = master.BseAmcCodes
	case models.SourceNse:
		current = master.NseAmcCodes
	}

	merged, changed := models.MergeCodeSet(current, code)
	if !changed {
		if err := tx.Commit(ctx); err != nil {
			return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit transaction")
		}
		return &master, false, nil
	}

	now := time.Now().UTC()
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("amc_master")
	ub.Set(ub.Assign(column, merged), ub.Assign("updated_at", now))
	ub.Where(ub.Equal("amc_id", amcID))

	updateQuery, args := ub.Build()
	if _, err := tx.ExecContext(ctx, updateQuery, args...); err != nil {
		log.WithError(err).Error("Failed to attach source code")
		return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to attach code")
	}

	if err := tx.Commit(ctx); err != nil {
		log.WithError(err).Error("Failed to commit code attachment")
		return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit transaction")
	}

	switch source {
	case models.SourceCams:
		master.CamsAmcCodes = merged
	case models.SourceKfin:
		master.KfinAmcCodes = merged
	case models.SourceBse:
		master.BseAmcCodes = merged
	case models.SourceNse:
		master.NseAmcCodes = merged
	}
	master.UpdatedAt = &now

	log.Info("Attached source code to AMC")
	return &master, true, nil
}

// UpdateCode changes a master row's internal amc_code
func (r *Repository) UpdateCode(ctx context.Context, amcID, newCode string) error {
	ctx, span := tracing.StartSpan(ctx, "amcmaster.Repository.UpdateCode")
	defer span.End()

	now := time.Now().UTC()
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("amc_master")
	ub.Set(ub.Assign("amc_code", newCode), ub.Assign("updated_at", now))
	ub.Where(ub.Equal("amc_id", amcID))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"amc_id": amcID, "amc_code": newCode}).Error("Failed to update AMC code")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update amc code")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "amc %s not found", amcID)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"amc_id": amcID, "amc_code": newCode}).Info("Updated AMC code")
	return nil
}

// ListCodes returns every assigned internal amc_code, for seeding the code
// generator.
func (r *Repository) ListCodes(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "amcmaster.Repository.ListCodes")
	defer span.End()

	var codes []string
	if err := r.db.SelectContext(ctx, &codes, `SELECT amc_code FROM amc_master ORDER BY amc_code`); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list AMC codes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list amc codes")
	}
	return codes, nil
}

// CoverageBySource counts master rows with at least one code per source.
func (r *Repository) CoverageBySource(ctx context.Context) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "amcmaster.Repository.CoverageBySource")
	defer span.End()

	query := `
		SELECT
			COUNT(*) FILTER (WHERE cams_amc_codes <> '') AS cams,
			COUNT(*) FILTER (WHERE kfin_amc_codes <> '') AS kfin,
			COUNT(*) FILTER (WHERE bse_amc_codes <> '') AS bse,
			COUNT(*) FILTER (WHERE nse_amc_codes <> '') AS nse
		FROM amc_master
	`

	var row struct {
		Cams int `db:"cams"`
		Kfin int `db:"kfin"`
		Bse  int `db:"bse"`
		Nse  int `db:"nse"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to compute source coverage")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to compute coverage")
	}

	return map[string]int{
		string(models.SourceCams): row.Cams,
		string(models.SourceKfin): row.Kfin,
		string(models.SourceBse):  row.Bse,
		string(models.SourceNse):  row.Nse,
	}, nil
}

// Count returns the number of master rows
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "amcmaster.Repository.Count")
	defer span.End()

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM amc_master`); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count AMC masters")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count amcs")
	}
	return count, nil
}

func sourceColumn(source models.Source) (string, bool) {
	switch source {
	case models.SourceCams:
		return "cams_amc_codes", true
	case models.SourceKfin:
		return "kfin_amc_codes", true
	case models.SourceBse:
		return "bse_amc_codes", true
	case models.SourceNse:
		return "nse_amc_codes", true
	}
	return "", false
}
