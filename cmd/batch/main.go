// Command batch scores every call in a spreadsheet and writes an xlsx report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"collection-qa-go/internal/aggregator"
	"collection-qa-go/internal/config"
	"collection-qa-go/internal/dataset"
	"collection-qa-go/internal/extractor"
	"collection-qa-go/internal/logger"
	"collection-qa-go/internal/processor"
	"collection-qa-go/internal/storage"
	"collection-qa-go/internal/transcription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	in := flag.String("in", cfg.DatasetPath, "input xlsx with transcript or recording link columns")
	out := flag.String("out", "qa_report.xlsx", "output report path")
	limit := flag.Int("limit", 0, "process at most N calls (0 = all)")
	concurrency := flag.Int("concurrency", cfg.BatchConcurrency, "calls analysed in parallel")
	noStore := flag.Bool("no-store", false, "skip writing analyses to the database")
	flag.Parse()

	log := logger.NewWithOptions(logger.Options{Environment: cfg.Environment, Level: cfg.LogLevel}).
		With("service", "collection-qa-batch")
	if *in == "" {
		log.Fatal("no input: pass -in or set DATASET_PATH")
	}

	records, err := dataset.Load(*in)
	if err != nil {
		log.WithError(err).Fatal("failed to load dataset")
	}
	if *limit > 0 && *limit < len(records) {
		records = records[:*limit]
	}
	log.WithField("calls", len(records)).WithField("path", *in).Info("dataset loaded")

	engine, err := aggregator.New(aggregator.Config{Weights: cfg.Scoring.Weights, PassThreshold: cfg.Scoring.PassThreshold})
	if err != nil {
		log.WithError(err).Fatal("invalid scoring config")
	}
	svc, info, err := extractor.New(cfg.LLM, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build extraction service")
	}

	opts := processor.Options{
		Service:     svc,
		Engine:      engine,
		Transcriber: transcription.New(cfg.Transcription, log),
		ModelInfo:   info,
		CallTimeout: cfg.LLM.Timeout() * 4,
		Logger:      log,
	}
	if !*noStore {
		store, err := storage.Open(cfg.DBPath, cfg.Scoring.PassThreshold)
		if err != nil {
			log.WithError(err).Fatal("failed to open analysis store")
		}
		defer store.Close()
		opts.Store = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items := processor.New(opts).AnalyzeBatch(ctx, records, *concurrency)

	rows := make([]dataset.ReportRow, 0, len(items))
	verdicts := make([]aggregator.Verdict, 0, len(items))
	failed := 0
	for _, it := range items {
		row := dataset.ReportRow{CallID: it.Record.CallID}
		if it.Err != nil {
			failed++
			row.Error = it.Err.Error()
		} else {
			row.AnalysisID = it.Result.ID
			row.Scenario = string(it.Result.Verdict.Scenario)
			row.Score = it.Result.Verdict.TotalScore
			row.Verdict = string(it.Result.Verdict.Status)
			row.Timestamp = it.Result.Timestamp
			verdicts = append(verdicts, it.Result.Verdict)
		}
		rows = append(rows, row)
	}

	insight := aggregator.Summarize(verdicts)
	if err := dataset.WriteReport(*out, rows, insight); err != nil {
		log.WithError(err).Fatal("failed to write report")
	}
	log.WithField("scored", insight.Total).
		WithField("failed", failed).
		WithField("pass_rate", insight.PassRate).
		WithField("knockout_rate", insight.KnockoutRate).
		WithField("report", *out).
		Info("batch complete")
}
