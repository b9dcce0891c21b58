package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"github.com/google/uuid"

	"github.com/charangentem-coder/rental-price-predictor/artifact"
	"github.com/charangentem-coder/rental-price-predictor/config"
	"github.com/charangentem-coder/rental-price-predictor/models"
	"github.com/charangentem-coder/rental-price-predictor/server"
	"github.com/charangentem-coder/rental-price-predictor/services"
	"github.com/charangentem-coder/rental-price-predictor/storage"
	"github.com/charangentem-coder/rental-price-predictor/utils"
)

// app carries what every command needs.
type app struct {
	ctx    context.Context
	cfg    *config.Config
	logger *utils.Logger
	out    io.Writer
}

func (a *app) trainCmd() *commander.Command {
	cfg := a.cfg
	cmd := &commander.Command{
		UsageLine: "train [options]",
		Short:     "fit the model on the historical dataset and save the artifact",
		Long: `
fit the preprocessing transformer and the tree ensemble, evaluate them on a
held-out partition and write the artifact, the metrics reports and the
holdout predictions

	$ ./rental-price-predictor train -data data/rental_data.csv -out artifacts/rent_model.bin
`,
		Flag: *flag.NewFlagSet("train", flag.ExitOnError),
	}
	source := cmd.Flag.String("source", cfg.DatasetSource, "dataset source: csv or postgres")
	dataset := cmd.Flag.String("data", cfg.DatasetPath, "dataset CSV path")
	out := cmd.Flag.String("out", cfg.ArtifactLocation, "artifact location (path or gs://bucket/object)")
	fraction := cmd.Flag.Float64("test-fraction", cfg.TestFraction, "share of records held out for evaluation")
	seed := cmd.Flag.Int64("seed", cfg.Seed, "seed for the split and the ensemble")
	cmd.Run = func(_ *commander.Command, _ []string) error {
		return a.train(*source, *dataset, *out, *fraction, *seed)
	}
	return cmd
}

func (a *app) train(source, dataset, out string, fraction float64, seed int64) error {
	ctx, cfg, logger := a.ctx, a.cfg, a.logger

	logger.Info("=== Rental price model training starting ===")
	logger.Info("Config: source %s | trees %d | max depth %d | test fraction %.2f | seed %d",
		source, cfg.NTrees, cfg.MaxDepth, fraction, seed)

	var pg *storage.PostgresStore
	if source == config.SourcePostgres || cfg.RecordRuns {
		var err error
		if pg, err = storage.NewPostgresStore(ctx, cfg.DSN()); err != nil {
			return err
		}
		defer pg.Close()
	}

	var reader storage.RecordReader
	switch source {
	case config.SourceCSV:
		reader = storage.NewCSVReader(dataset, logger)
	case config.SourcePostgres:
		reader = pg
	default:
		return fmt.Errorf("unknown dataset source %q", source)
	}

	raw, err := reader.ReadAll(ctx)
	if err != nil {
		return err
	}
	records := services.NewCleaner(logger).Clean(raw)
	if len(records) == 0 {
		return fmt.Errorf("no usable records: %w", models.ErrEmptyDataset)
	}

	trainer := services.NewTrainer(logger, cfg.ForestParams(), cfg.MaxConcurrency)
	outcome, err := trainer.Run(ctx, records, fraction, seed)
	if err != nil {
		return err
	}

	data, err := artifact.Serialize(outcome.Artifact)
	if err != nil {
		return err
	}
	id := outcome.Artifact.Fingerprint()

	store := storage.NewRouter(logger, cfg.MaxRetries)
	defer store.Close()
	if err := store.Write(ctx, out, data); err != nil {
		return err
	}
	logger.Info("Model %s saved to %s (%d bytes)", id, out, len(data))

	reports := services.NewReportService(logger)
	if err := reports.WriteText(cfg.MetricsPath, &outcome.Metrics); err != nil {
		return err
	}
	if err := reports.WriteJSON(cfg.MetricsJSONPath, &outcome.Metrics); err != nil {
		return err
	}
	if err := writeHoldout(cfg.HoldoutCSVPath, outcome.Holdout); err != nil {
		logger.Error("Holdout CSV write failed: %v", err)
	} else {
		logger.Info("Holdout predictions saved to %s", cfg.HoldoutCSVPath)
	}

	if cfg.RecordRuns {
		run := &models.TrainingRun{
			ID:               uuid.NewString(),
			ArtifactID:       id.String(),
			ArtifactLocation: out,
			Metrics:          outcome.Metrics,
			NTrees:           cfg.NTrees,
			Seed:             seed,
			TestFraction:     fraction,
			CreatedAt:        time.Now().UTC(),
		}
		if err := pg.RecordRun(ctx, run); err != nil {
			logger.Error("Run history write failed: %v", err)
		} else {
			logger.Info("Training run %s recorded (table: model_runs)", run.ID)
		}
	}

	reports.Print(a.out, &outcome.Metrics, id.String(), out)
	return nil
}

func writeHoldout(path string, rows []models.HoldoutPrediction) error {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteHoldout(rows); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (a *app) serveCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "serve [options]",
		Short:     "start the HTTP prediction API",
		Flag:      *flag.NewFlagSet("serve", flag.ExitOnError),
	}
	addr := cmd.Flag.String("addr", a.cfg.HTTPAddr, "listen address")
	model := cmd.Flag.String("model", a.cfg.ArtifactLocation, "artifact location")
	cmd.Run = func(_ *commander.Command, _ []string) error {
		return a.serve(*addr, *model)
	}
	return cmd
}

func (a *app) serve(addr, model string) error {
	ctx, cfg, logger := a.ctx, a.cfg, a.logger

	store := storage.NewRouter(logger, cfg.MaxRetries)
	defer store.Close()
	loader := services.NewLoader(store, logger)

	// Requests retry the load lazily, so a missing artifact only degrades
	// /predict to 503 until one is trained.
	if _, err := loader.LoadOnce(ctx, model); err != nil {
		logger.Warn("[server] Model not loaded yet: %v", err)
	}

	srv := server.NewServer(server.RouterConfig{
		HealthHandler:  server.NewHealthHandler(),
		PredictHandler: server.NewPredictHandler(loader, model, logger),
		MetricsHandler: server.NewMetricsHandler(cfg.MetricsJSONPath),
	}, logger)
	return srv.Run(ctx, addr)
}

func (a *app) predictCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "predict -record <json> [options]",
		Short:     "estimate the rent of one property",
		Long: `
estimate the rent of one property described as a JSON object keyed by
dataset column name

	$ ./rental-price-predictor predict -record '{"City":"Pune","Location":"Baner","BHK":2,"Size_sqft":950,"Bathrooms":2,"Floor":3,"Total_Floors":12,"Furnishing":"Semi-Furnished","Property_Age":5,"Parking":1}'
`,
		Flag: *flag.NewFlagSet("predict", flag.ExitOnError),
	}
	model := cmd.Flag.String("model", a.cfg.ArtifactLocation, "artifact location")
	record := cmd.Flag.String("record", "", "property as a JSON object")
	cmd.Run = func(_ *commander.Command, _ []string) error {
		if *record == "" {
			return errors.New("-record is required")
		}
		return a.predict(*model, *record)
	}
	return cmd
}

func (a *app) predict(model, record string) error {
	ctx, cfg, logger := a.ctx, a.cfg, a.logger

	var fields map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(record))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	rec, err := services.ParseRecord(fields)
	if err != nil {
		return err
	}

	store := storage.NewRouter(logger, cfg.MaxRetries)
	defer store.Close()
	handle, err := services.NewLoader(store, logger).LoadOnce(ctx, model)
	if err != nil {
		return err
	}
	est, err := handle.Estimate(&rec)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Predicted rent: %.2f\n", est.Rent)
	for _, w := range est.Warnings {
		fmt.Fprintf(a.out, "  warning: %s (encoded as all zeros)\n", w)
	}
	return nil
}

func (a *app) importCmd() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "import [options]",
		Short:     "load the dataset CSV into PostgreSQL",
		Flag:      *flag.NewFlagSet("import", flag.ExitOnError),
	}
	dataset := cmd.Flag.String("data", a.cfg.DatasetPath, "dataset CSV path")
	replace := cmd.Flag.Bool("replace", false, "replace the stored dataset instead of appending to it")
	cmd.Run = func(_ *commander.Command, _ []string) error {
		return a.importRecords(*dataset, *replace)
	}
	return cmd
}

func (a *app) importRecords(dataset string, replace bool) error {
	ctx, cfg, logger := a.ctx, a.cfg, a.logger

	raw, err := storage.NewCSVReader(dataset, logger).ReadAll(ctx)
	if err != nil {
		return err
	}
	records := services.NewCleaner(logger).Clean(raw)
	if len(records) == 0 {
		return fmt.Errorf("no usable records in %s: %w", dataset, models.ErrEmptyDataset)
	}

	pg, err := storage.NewPostgresStore(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer pg.Close()

	_, err = a.store(pg, records, replace)
	return err
}

// store writes records and reports rows the database skipped.
func (a *app) store(w storage.RecordWriter, records []*models.RawRecord, replace bool) (int, error) {
	write := w.WriteRecords
	if replace {
		write = w.ReplaceRecords
	}
	inserted, err := write(a.ctx, records)
	if err != nil {
		return 0, err
	}

	a.logger.Info("Imported %d of %d records into PostgreSQL (table: rental_records)", inserted, len(records))
	if skipped := len(records) - inserted; skipped > 0 {
		a.logger.Warn("%d records skipped: property ID already stored", skipped)
	}
	return inserted, nil
}
