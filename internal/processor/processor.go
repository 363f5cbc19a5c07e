// Package processor runs one call through classification, QA extraction,
// scoring and persistence.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"collection-qa-go/internal/actionable"
	"collection-qa-go/internal/aggregator"
	"collection-qa-go/internal/confidence"
	"collection-qa-go/internal/extractor"
	"collection-qa-go/internal/logger"
	"collection-qa-go/internal/transcript"
	"collection-qa-go/internal/types"
)

var (
	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrNoTranscriber   = errors.New("audio_url given but no transcription client configured")
)

// Store persists a finished analysis and returns its id.
type Store interface {
	Save(ctx context.Context, transcript string, cd types.CallData, qa types.QAScore, metadata map[string]any) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

type Processor struct {
	svc         extractor.Service
	engine      *aggregator.Engine
	store       Store
	transcriber Transcriber
	info        extractor.ModelInfo
	callTimeout time.Duration
	log         *logger.Logger
}

type Options struct {
	Service     extractor.Service
	Engine      *aggregator.Engine
	Store       Store
	Transcriber Transcriber
	ModelInfo   extractor.ModelInfo
	// CallTimeout bounds one AnalyzeRecord run. Zero means no bound.
	CallTimeout time.Duration
	Logger      *logger.Logger
}

func New(o Options) *Processor {
	log := o.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Processor{
		svc:         o.Service,
		engine:      o.Engine,
		store:       o.Store,
		transcriber: o.Transcriber,
		info:        o.ModelInfo,
		callTimeout: o.CallTimeout,
		log:         log.With("component", "processor"),
	}
}

// Result is everything produced for one call. ID is empty when no store is
// configured.
type Result struct {
	ID             string              `json:"id,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
	Transcript     string              `json:"transcript"`
	Classification types.CallData      `json:"classification"`
	QA             types.QAScore       `json:"qa_score"`
	Verdict        aggregator.Verdict  `json:"verdict"`
	Confidence     confidence.Metrics  `json:"confidence"`
	Findings       actionable.Findings `json:"findings"`
	Hints          transcript.Hints    `json:"hints"`
	DurationMs     int64               `json:"duration_ms"`
}

// Analyze classifies text, extracts and scores its QA instance, then saves
// the result. Schema violations and invalid score levels are returned as is;
// any other failure to obtain an instance is an *types.ExtractionFailure.
// On error the Result is always zero.
func (p *Processor) Analyze(ctx context.Context, text string) (Result, error) {
	start := time.Now()
	cleaned := transcript.Clean(text)
	if cleaned == "" {
		return Result{}, ErrEmptyTranscript
	}
	res := Result{Timestamp: start.UTC(), Transcript: text, Hints: transcript.ExtractHints(cleaned)}

	raw, err := p.extract(ctx, cleaned, extractor.SchemaCallData, extractor.ClassificationInstructions())
	if err != nil {
		return Result{}, err
	}
	cd, err := types.DecodeCallData(raw)
	if err != nil {
		return Result{}, asExtractionError(extractor.SchemaCallData, err)
	}
	res.Classification = cd
	log := p.log.With("scenario", string(cd.Scenario()))
	log.Info("call classified")

	raw, err = p.extract(ctx, cleaned, extractor.SchemaQAScore, extractor.QAInstructions(cd.Scenario()))
	if err != nil {
		return Result{}, err
	}
	qa, err := types.DecodeQAScore(raw, cd.Scenario())
	if err != nil {
		return Result{}, asExtractionError(extractor.SchemaQAScore, err)
	}

	res.QA, res.Verdict = p.engine.Apply(qa)
	res.Confidence = confidence.Estimate(cd)
	res.Findings = actionable.Generate(res.QA, res.Verdict)
	res.DurationMs = time.Since(start).Milliseconds()

	if p.store != nil {
		id, err := p.store.Save(ctx, text, cd, res.QA, p.metadata(res))
		if err != nil {
			return Result{}, fmt.Errorf("persist analysis: %w", err)
		}
		res.ID = id
	}
	log.WithField("total_score", res.Verdict.TotalScore).
		WithField("verdict", string(res.Verdict.Status)).
		WithField("duration_ms", res.DurationMs).
		Info("call scored")
	return res, nil
}

// AnalyzeRecord transcribes the recording first when rec has no transcript.
func (p *Processor) AnalyzeRecord(ctx context.Context, rec types.CallRecord) (Result, error) {
	if p.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}
	text := rec.Transcript
	if text == "" && rec.AudioURL != "" {
		if p.transcriber == nil {
			return Result{}, ErrNoTranscriber
		}
		var err error
		if text, err = p.transcriber.Transcribe(ctx, rec.AudioURL); err != nil {
			return Result{}, fmt.Errorf("transcription: %w", err)
		}
	}
	return p.Analyze(ctx, text)
}

type BatchItem struct {
	Record types.CallRecord
	Result Result
	Err    error
}

// AnalyzeBatch runs at most concurrency records at once. A failed record
// does not stop the others; items keep the input order.
func (p *Processor) AnalyzeBatch(ctx context.Context, recs []types.CallRecord, concurrency int) []BatchItem {
	items := make([]BatchItem, len(recs))
	var g errgroup.Group
	g.SetLimit(max(concurrency, 1))
	for i, rec := range recs {
		items[i].Record = rec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			res, err := p.AnalyzeRecord(ctx, rec)
			items[i].Result, items[i].Err = res, err
			if err != nil {
				p.log.With("call_id", rec.CallID).WithError(err).Warn("call analysis failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

func (p *Processor) extract(ctx context.Context, text string, schema extractor.Schema, instructions string) ([]byte, error) {
	raw, err := p.svc.Extract(ctx, text, schema, instructions)
	if err != nil {
		return nil, &types.ExtractionFailure{Schema: string(schema), Err: err}
	}
	return raw, nil
}

func asExtractionError(schema extractor.Schema, err error) error {
	var sv *types.SchemaViolation
	var il *types.InvalidScoreLevel
	if errors.As(err, &sv) || errors.As(err, &il) {
		return err
	}
	return &types.ExtractionFailure{Schema: string(schema), Err: err}
}

func (p *Processor) metadata(res Result) map[string]any {
	return map[string]any{
		"model_name":  p.info.Model,
		"provider":    p.info.Provider,
		"temperature": p.info.Temperature,
		"duration_ms": res.DurationMs,
		"verdict":     res.Verdict.Status,
		"degraded":    res.Verdict.Degraded,
		"confidence":  res.Confidence,
		"findings":    res.Findings,
		"hints":       res.Hints,
	}
}
