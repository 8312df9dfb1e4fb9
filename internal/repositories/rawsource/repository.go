// Package rawsource extracts distinct AMC references from per-source raw
// feed tables. Raw tables are loaded by upstream feed jobs; this repository
// only reads them.
package rawsource

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// sourceQueries maps each source to its raw-table extraction query. Column
// names differ per feed, so these stay hand-written.
var sourceQueries = map[models.Source]string{
	models.SourceCams: `
		SELECT DISTINCT COALESCE(amc_code, '') AS amc_code, COALESCE(amc_name, '') AS amc_name
		FROM cams_raw
		WHERE amc_name IS NOT NULL OR amc_code IS NOT NULL
	`,
	models.SourceKfin: `
		SELECT DISTINCT COALESCE(fund, '') AS amc_code, COALESCE(fund_name, '') AS amc_name
		FROM kfin_raw
		WHERE fund_name IS NOT NULL OR fund IS NOT NULL
	`,
	models.SourceAmfi: `
		SELECT DISTINCT '' AS amc_code, amc_name
		FROM amfi_raw
		WHERE amc_name IS NOT NULL
	`,
}

// Repository reads distinct AMC references from raw feed tables
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new raw source repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Sources returns the sources that have raw tables to extract from, in a
// fixed order so builds are reproducible.
func (r *Repository) Sources() []models.Source {
	return []models.Source{models.SourceCams, models.SourceKfin, models.SourceAmfi}
}

// Extract returns the distinct (code, name) pairs reported by one source.
func (r *Repository) Extract(ctx context.Context, source models.Source) ([]models.RawAmcReference, error) {
	ctx, span := tracing.StartSpan(ctx, "rawsource.Repository.Extract")
	defer span.End()

	query, ok := sourceQueries[source]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "no raw table for source %s", source)
	}

	var rows []struct {
		AmcCode string `db:"amc_code"`
		AmcName string `db:"amc_name"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"source": source}).Error("Failed to extract raw AMC references")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to extract raw references")
	}

	refs := make([]models.RawAmcReference, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, models.RawAmcReference{
			Source:  source,
			AmcCode: row.AmcCode,
			AmcName: row.AmcName,
		})
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"source": source,
		"count":  len(refs),
	}).Info("Extracted raw AMC references")
	return refs, nil
}

// ExtractAll returns distinct references from every raw table, keyed by
// source.
func (r *Repository) ExtractAll(ctx context.Context) (map[models.Source][]models.RawAmcReference, error) {
	ctx, span := tracing.StartSpan(ctx, "rawsource.Repository.ExtractAll")
	defer span.End()

	result := make(map[models.Source][]models.RawAmcReference)
	for _, source := range r.Sources() {
		refs, err := r.Extract(ctx, source)
		if err != nil {
			return nil, err
		}
		result[source] = refs
	}
	return result, nil
}
