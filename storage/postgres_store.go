package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/charangentem-coder/rental-price-predictor/models"
)

// PostgresStore keeps the historical dataset and the training run history
// in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var (
	_ RecordReader = (*PostgresStore)(nil)
	_ RecordWriter = (*PostgresStore)(nil)
	_ RunRecorder  = (*PostgresStore)(nil)
)

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rental_records (
			id            SERIAL PRIMARY KEY,
			property_id   TEXT          UNIQUE NOT NULL,
			city          TEXT          NOT NULL,
			location      TEXT          NOT NULL,
			bhk           INTEGER       NOT NULL,
			size_sqft     DOUBLE PRECISION NOT NULL,
			bathrooms     INTEGER       NOT NULL,
			floor         INTEGER       NOT NULL,
			total_floors  INTEGER       NOT NULL,
			furnishing    TEXT          NOT NULL,
			property_age  INTEGER       NOT NULL,
			parking       INTEGER       NOT NULL,
			rent          DOUBLE PRECISION NOT NULL,
			created_at    TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_rental_records_city ON rental_records(city);

		CREATE TABLE IF NOT EXISTS model_runs (
			id                TEXT PRIMARY KEY,
			artifact_id       TEXT             NOT NULL,
			artifact_location TEXT             NOT NULL,
			mae               DOUBLE PRECISION NOT NULL,
			rmse              DOUBLE PRECISION NOT NULL,
			r2                DOUBLE PRECISION NOT NULL,
			train_size        INTEGER          NOT NULL,
			test_size         INTEGER          NOT NULL,
			n_trees           INTEGER          NOT NULL,
			seed              BIGINT           NOT NULL,
			test_fraction     DOUBLE PRECISION NOT NULL,
			created_at        TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	clearRecordsQuery = "DELETE FROM rental_records"
	recordColumns     = 12
	insertBatchSize   = 50
)

// WriteRecords appends records to the stored dataset. Records whose
// property ID is already stored are skipped. It returns the number of rows
// actually inserted.
func (ps *PostgresStore) WriteRecords(ctx context.Context, records []*models.RawRecord) (int, error) {
	return ps.write(ctx, records, false)
}

// ReplaceRecords swaps the stored dataset for records. The delete and the
// inserts share one transaction, so a failed import leaves the previous
// dataset untouched.
func (ps *PostgresStore) ReplaceRecords(ctx context.Context, records []*models.RawRecord) (int, error) {
	return ps.write(ctx, records, true)
}

func (ps *PostgresStore) write(ctx context.Context, records []*models.RawRecord, replace bool) (int, error) {
	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	inserted, err := writeRecords(ctx, tx, records, replace)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return inserted, nil
}

func writeRecords(ctx context.Context, ex execer, records []*models.RawRecord, replace bool) (int, error) {
	if replace {
		if _, err := ex.ExecContext(ctx, clearRecordsQuery); err != nil {
			return 0, fmt.Errorf("postgres: clear: %w", err)
		}
	}

	inserted := 0
	for i := 0; i < len(records); i += insertBatchSize {
		end := min(i+insertBatchSize, len(records))
		query, args := insertQuery(records[i:end])
		res, err := ex.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("postgres: insert batch at %d: %w", i, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("postgres: insert batch at %d: %w", i, err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

func insertQuery(batch []*models.RawRecord) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*recordColumns)

	for idx, r := range batch {
		base := idx * recordColumns
		placeholders := make([]string, recordColumns)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			r.PropertyID, r.City, r.Location, r.BHK, r.SizeSqft, r.Bathrooms,
			r.Floor, r.TotalFloors, r.Furnishing, r.PropertyAge, r.Parking, r.Rent)
	}

	query := fmt.Sprintf(`
		INSERT INTO rental_records (property_id, city, location, bhk, size_sqft, bathrooms,
			floor, total_floors, furnishing, property_age, parking, rent)
		VALUES %s
		ON CONFLICT (property_id) DO NOTHING
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

// ReadAll retrieves the stored dataset in insertion order.
func (ps *PostgresStore) ReadAll(ctx context.Context) ([]*models.RawRecord, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT property_id, city, location, bhk, size_sqft, bathrooms,
		       floor, total_floors, furnishing, property_age, parking, rent
		FROM rental_records
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch records: %w", err)
	}
	defer rows.Close()

	var records []*models.RawRecord
	for rows.Next() {
		r := &models.RawRecord{}
		if err := rows.Scan(
			&r.PropertyID, &r.City, &r.Location, &r.BHK, &r.SizeSqft, &r.Bathrooms,
			&r.Floor, &r.TotalFloors, &r.Furnishing, &r.PropertyAge, &r.Parking, &r.Rent,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// RecordRun stores one training run.
func (ps *PostgresStore) RecordRun(ctx context.Context, run *models.TrainingRun) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO model_runs (id, artifact_id, artifact_location, mae, rmse, r2,
			train_size, test_size, n_trees, seed, test_fraction, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		run.ID, run.ArtifactID, run.ArtifactLocation,
		run.Metrics.MeanAbsoluteError, run.Metrics.RootMeanSquaredError, run.Metrics.RSquared,
		run.Metrics.TrainSize, run.Metrics.TestSize, run.NTrees, run.Seed, run.TestFraction, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record run: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
