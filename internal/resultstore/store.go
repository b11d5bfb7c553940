package resultstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	apperrors "bmdscreen/internal/errors"
	"bmdscreen/internal/screening"
	"bmdscreen/pkg/contracts/domain"
)

// Supported database/sql driver names
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

// RunRecord is the stored summary of one batch
type RunRecord struct {
	RunID             string    `json:"run_id"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Variant           string    `json:"variant"`
	TrendStrategy     string    `json:"trend_strategy"`
	BucketTable       string    `json:"bucket_table"`
	ZeroControlPolicy string    `json:"zero_control_policy"`
	Selection         string    `json:"selection"`
	Units             int       `json:"units"`
	Failed            int       `json:"failed"`
	Fitted            int       `json:"fitted"`
}

// FitRecord is the stored fit outcome of a unit routed to model fitting
type FitRecord struct {
	NoUniqueModelFound int      `json:"no_unique_model_found_flag"`
	ModelSelectFlag    int      `json:"model_select_flag"`
	SelectedModel      string   `json:"selected_model,omitempty"`
	BMD                *float64 `json:"bmd"`
	BMDL               *float64 `json:"bmdl"`
	BMDU               *float64 `json:"bmdu"`
}

// UnitRecord is the stored result of one (chemical, endpoint) unit. Flag is
// nil for units that failed; undefined statistics are stored as NULL.
type UnitRecord struct {
	RunID       string                   `json:"run_id"`
	ChemicalID  string                   `json:"chemical_id"`
	Endpoint    string                   `json:"endpoint"`
	Flag        *int                     `json:"flag"`
	FlagLabel   string                   `json:"flag_label"`
	PValue      *float64                 `json:"p_value"`
	Correlation *float64                 `json:"correlation"`
	Groups      int                      `json:"n_groups"`
	Reason      string                   `json:"reason,omitempty"`
	Error       string                   `json:"error,omitempty"`
	DurationMS  int64                    `json:"duration_ms"`
	Fit         *FitRecord               `json:"fit,omitempty"`
	Table       []domain.DoseResponseRow `json:"table,omitempty"`
}

// UnitFilter narrows ListUnits
type UnitFilter struct {
	Flag *int
}

// Store persists batches through database/sql
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open connects to the database and applies the schema. For sqlite the DSN
// is a file path and its directory is created when missing.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, apperrors.NewStorageError("create database directory", err)
			}
		}
	case DriverPgx:
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported store driver %q", driver), nil)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, apperrors.NewStorageError("open "+driver, err)
	}
	if driver == DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("ping "+driver, err)
	}
	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("apply schema", err)
	}

	return &Store{
		db:     db,
		driver: driver,
		logger: logger.With(slog.String("component", "result_store"), slog.String("driver", driver)),
	}, nil
}

// Close releases the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) q(query string) string {
	return rebind(s.driver, query)
}

// SaveBatch writes the run, every unit result and every dose-response row
// in one transaction
func (s *Store) SaveBatch(ctx context.Context, b *screening.Batch) (retErr error) {
	if b == nil || b.RunID == "" {
		return apperrors.NewAppValidationError("batch has no run id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("begin transaction", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO runs
		(run_id, started_at, finished_at, variant, trend_strategy, bucket_table,
		 zero_control_policy, selection, units, failed, fitted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		b.RunID, formatTime(b.StartedAt), formatTime(b.FinishedAt), b.Variant,
		string(b.Policy.Trend), string(b.Policy.Buckets), b.ZeroControlPolicy,
		b.Selection.String(), b.Summary.Units, b.Summary.Failed, b.Summary.Fitted,
	); err != nil {
		return apperrors.NewStorageError("insert run "+b.RunID, err)
	}

	unitStmt, err := tx.PrepareContext(ctx, s.q(`INSERT INTO unit_results
		(run_id, chemical_id, endpoint, flag, flag_label, p_value, correlation, n_groups,
		 reason, error, duration_ms, no_unique_model_found, model_select_flag,
		 selected_model, bmd, bmdl, bmdu)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return apperrors.NewStorageError("prepare unit insert", err)
	}
	defer unitStmt.Close()

	rowStmt, err := tx.PrepareContext(ctx, s.q(`INSERT INTO dose_response_rows
		(run_id, chemical_id, endpoint, idx, dose, num_affected, total_num)
		VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return apperrors.NewStorageError("prepare dose row insert", err)
	}
	defer rowStmt.Close()

	rows := 0
	for _, r := range b.Results {
		flag, label := sql.NullInt64{}, "failed"
		if !r.Failed() {
			flag = sql.NullInt64{Int64: int64(r.Flag), Valid: true}
			label = r.Flag.String()
		}

		var (
			noUnique, selectFlag sql.NullInt64
			model                sql.NullString
			bmd, bmdl, bmdu      sql.NullFloat64
		)
		if r.Fit != nil {
			noUnique = sql.NullInt64{Int64: int64(r.Fit.NoUniqueModelFound), Valid: true}
			selectFlag = sql.NullInt64{Int64: int64(r.Fit.ModelSelectFlag), Valid: true}
			model = sql.NullString{String: r.Fit.SelectedModel, Valid: r.Fit.SelectedModel != ""}
			bmd, bmdl, bmdu = optionalFloat(r.Fit.BMD), optionalFloat(r.Fit.BMDL), optionalFloat(r.Fit.BMDU)
		}

		if _, err := unitStmt.ExecContext(ctx,
			b.RunID, r.Key.ChemicalID, r.Key.Endpoint, flag, label,
			nullFloat(r.PValue), nullFloat(r.Correlation), len(r.Groups),
			r.Reason, r.ErrorMessage(), r.Duration.Milliseconds(),
			noUnique, selectFlag, model, bmd, bmdl, bmdu,
		); err != nil {
			return apperrors.NewStorageError("insert unit "+r.Key.String(), err)
		}

		for _, row := range r.Table.Rows {
			if _, err := rowStmt.ExecContext(ctx,
				b.RunID, r.Key.ChemicalID, r.Key.Endpoint,
				row.Index, row.Dose, row.NumAffected, row.TotalNum,
			); err != nil {
				return apperrors.NewStorageError("insert dose row "+r.Key.String(), err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("commit batch "+b.RunID, err)
	}

	s.logger.InfoContext(ctx, "batch stored",
		slog.String("run_id", b.RunID),
		slog.Int("units", len(b.Results)),
		slog.Int("dose_rows", rows))
	return nil
}

// ListRuns returns the most recent runs first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT run_id, started_at, finished_at, variant, trend_strategy, bucket_table,
		zero_control_policy, selection, units, failed, fitted
		FROM runs ORDER BY started_at DESC, run_id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, apperrors.NewStorageError("select runs", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate runs", err)
	}
	return runs, nil
}

// GetRun returns one run or a not-found error
func (s *Store) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT run_id, started_at, finished_at, variant,
		trend_strategy, bucket_table, zero_control_policy, selection, units, failed, fitted
		FROM runs WHERE run_id = ?`), runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, apperrors.NewNotFoundError("run " + runID)
	}
	return run, err
}

const unitColumns = `run_id, chemical_id, endpoint, flag, flag_label, p_value, correlation,
	n_groups, reason, error, duration_ms, no_unique_model_found, model_select_flag,
	selected_model, bmd, bmdl, bmdu`

// ListUnits returns the units of a run ordered by chemical then endpoint.
// Dose-response tables are not loaded.
func (s *Store) ListUnits(ctx context.Context, runID string, filter UnitFilter) ([]UnitRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	query := `SELECT ` + unitColumns + ` FROM unit_results WHERE run_id = ?`
	args := []any{runID}
	if filter.Flag != nil {
		query += ` AND flag = ?`
		args = append(args, *filter.Flag)
	}
	query += ` ORDER BY chemical_id, endpoint`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, apperrors.NewStorageError("select units", err)
	}
	defer func() { _ = rows.Close() }()

	units := []UnitRecord{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("iterate units", err)
	}
	return units, nil
}

// GetUnit returns one unit together with its dose-response table
func (s *Store) GetUnit(ctx context.Context, runID, chemicalID, endpoint string) (UnitRecord, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+unitColumns+` FROM unit_results
		WHERE run_id = ? AND chemical_id = ? AND endpoint = ?`), runID, chemicalID, endpoint)
	u, err := scanUnit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return UnitRecord{}, apperrors.NewNotFoundError(fmt.Sprintf("unit %s/%s in run %s", chemicalID, endpoint, runID))
	}
	if err != nil {
		return UnitRecord{}, err
	}

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT idx, dose, num_affected, total_num
		FROM dose_response_rows WHERE run_id = ? AND chemical_id = ? AND endpoint = ?
		ORDER BY idx`), runID, chemicalID, endpoint)
	if err != nil {
		return UnitRecord{}, apperrors.NewStorageError("select dose rows", err)
	}
	defer func() { _ = rows.Close() }()

	u.Table = []domain.DoseResponseRow{}
	for rows.Next() {
		var r domain.DoseResponseRow
		if err := rows.Scan(&r.Index, &r.Dose, &r.NumAffected, &r.TotalNum); err != nil {
			return UnitRecord{}, apperrors.NewStorageError("scan dose row", err)
		}
		u.Table = append(u.Table, r)
	}
	if err := rows.Err(); err != nil {
		return UnitRecord{}, apperrors.NewStorageError("iterate dose rows", err)
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var (
		run               RunRecord
		started, finished string
	)
	err := sc.Scan(&run.RunID, &started, &finished, &run.Variant, &run.TrendStrategy,
		&run.BucketTable, &run.ZeroControlPolicy, &run.Selection, &run.Units, &run.Failed, &run.Fitted)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, err
	}
	if err != nil {
		return RunRecord{}, apperrors.NewStorageError("scan run", err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return RunRecord{}, apperrors.NewStorageError("parse started_at", err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return RunRecord{}, apperrors.NewStorageError("parse finished_at", err)
	}
	return run, nil
}

func scanUnit(sc scanner) (UnitRecord, error) {
	var (
		u                    UnitRecord
		flag                 sql.NullInt64
		pValue, correlation  sql.NullFloat64
		noUnique, selectFlag sql.NullInt64
		model                sql.NullString
		bmd, bmdl, bmdu      sql.NullFloat64
	)
	err := sc.Scan(&u.RunID, &u.ChemicalID, &u.Endpoint, &flag, &u.FlagLabel, &pValue, &correlation,
		&u.Groups, &u.Reason, &u.Error, &u.DurationMS, &noUnique, &selectFlag, &model, &bmd, &bmdl, &bmdu)
	if errors.Is(err, sql.ErrNoRows) {
		return UnitRecord{}, err
	}
	if err != nil {
		return UnitRecord{}, apperrors.NewStorageError("scan unit", err)
	}

	if flag.Valid {
		f := int(flag.Int64)
		u.Flag = &f
	}
	u.PValue = floatPtr(pValue)
	u.Correlation = floatPtr(correlation)
	if noUnique.Valid {
		u.Fit = &FitRecord{
			NoUniqueModelFound: int(noUnique.Int64),
			ModelSelectFlag:    int(selectFlag.Int64),
			SelectedModel:      model.String,
			BMD:                floatPtr(bmd),
			BMDL:               floatPtr(bmdl),
			BMDU:               floatPtr(bmdu),
		}
	}
	return u, nil
}

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// nullFloat stores NaN and infinities as NULL
func nullFloat(f float64) sql.NullFloat64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func optionalFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return nullFloat(*f)
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}
