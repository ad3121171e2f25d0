// Package pipeline drives a record through prompt construction, the model
// client, sanitization, the optional rewrite, and validation.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/quarrylabs/verilim/internal/policy"
	"github.com/quarrylabs/verilim/internal/pplx"
	"github.com/quarrylabs/verilim/internal/prompt"
	"github.com/quarrylabs/verilim/internal/record"
	"github.com/quarrylabs/verilim/internal/rewrite"
	"github.com/quarrylabs/verilim/internal/sanitize"
	"github.com/quarrylabs/verilim/internal/store"
)

// Pipeline processes records. The rewriter and ledger are optional; a nil
// rewriter leaves the numbered text as the human-readable rendering, a nil
// ledger skips run accounting.
type Pipeline struct {
	client   pplx.Client
	rewriter *rewrite.Rewriter
	ledger   *store.Store
	log      *zap.Logger
	minItems int
	maxItems int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRewriter attaches the human-readable rewriter.
func WithRewriter(r *rewrite.Rewriter) Option {
	return func(p *Pipeline) { p.rewriter = r }
}

// WithLedger attaches the advisory run ledger.
func WithLedger(s *store.Store) Option {
	return func(p *Pipeline) { p.ledger = s }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithItemBounds overrides the minimum and maximum item counts.
func WithItemBounds(minItems, maxItems int) Option {
	return func(p *Pipeline) {
		if minItems > 0 {
			p.minItems = minItems
		}
		if maxItems > 0 {
			p.maxItems = maxItems
		}
	}
}

// New builds a Pipeline around the given model client.
func New(client pplx.Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:   client,
		log:      zap.NewNop(),
		minItems: policy.DefaultMinItems,
		maxItems: policy.DefaultMaxItems,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessRecord runs one record end to end and returns the validated copy.
// Model failures never abort the record: after one non-streaming retry the
// result collapses to the sentinel and validation proceeds on that.
func (p *Pipeline) ProcessRecord(ctx context.Context, rec record.Record, index, total int) record.Record {
	title := rec.StringField("Title")
	if title == "" {
		title = "Unknown"
	}
	p.log.Info("processing record",
		zap.Int("index", index),
		zap.Int("total", total),
		zap.String("title", title))

	ask := prompt.BuildRestrictive(prompt.InputsFromRecord(rec))
	description := rec.StringField("Description")

	finalText := policy.SentinelText
	validation := record.ValidationBlock{}

	raw, err := pplx.CollectStreamText(ctx, p.client, ask)
	if err != nil {
		p.log.Warn("streaming failed, attempting non-streaming fallback",
			zap.Int("index", index), zap.Error(err))
		raw, err = p.client.AskOnce(ctx, ask)
	}
	if err != nil {
		p.log.Error("non-streaming fallback failed, emitting sentinel",
			zap.Int("index", index), zap.Error(err))
	} else {
		sanitized := sanitize.Sanitize(raw, description, p.maxItems)
		if sanitized.Text != "" {
			finalText = sanitized.Text
		}
		validation = sanitized.Validation
	}

	enriched := rec.Clone()
	enriched[record.KeyResearchAnalysis] = finalText
	enriched[record.KeyValidation] = validation

	numberedOnly := sanitize.StripValidationBlock(finalText)
	if p.rewriter != nil {
		enriched[record.KeyHumanReadable] = p.rewriter.Rewrite(ctx, numberedOnly)
	} else {
		enriched[record.KeyHumanReadable] = numberedOnly
	}

	return record.Validate(enriched, p.minItems)
}

// RunMeta describes a batch run for the ledger.
type RunMeta struct {
	InputPath  string
	OutputPath string
	Model      string
}

// ProcessRecords processes up to maxRecords records sequentially and returns
// the validated outputs. Ledger failures are logged, never fatal.
func (p *Pipeline) ProcessRecords(ctx context.Context, records []record.Record, maxRecords int, meta RunMeta) []record.Record {
	if maxRecords > 0 && len(records) > maxRecords {
		records = records[:maxRecords]
	}
	total := len(records)
	p.log.Info("processing records", zap.Int("total", total))

	var runID string
	if p.ledger != nil {
		id, err := p.ledger.BeginRun(ctx, meta.InputPath, meta.OutputPath, meta.Model)
		if err != nil {
			p.log.Warn("ledger begin failed, continuing without run accounting", zap.Error(err))
		} else {
			runID = id
		}
	}

	processed := make([]record.Record, 0, total)
	okCount := 0
	for i, rec := range records {
		out := p.ProcessRecord(ctx, rec, i+1, total)
		processed = append(processed, out)

		ok, _ := out[record.KeyProcessed].(bool)
		if ok {
			okCount++
		}
		p.log.Info("record completed", zap.Int("index", i+1), zap.Bool("processed", ok))

		if runID != "" {
			p.recordResult(ctx, runID, i+1, out)
		}
	}

	if runID != "" {
		if err := p.ledger.FinishRun(ctx, runID, total, okCount); err != nil {
			p.log.Warn("ledger finish failed", zap.Error(err))
		}
	}
	return processed
}

func (p *Pipeline) recordResult(ctx context.Context, runID string, index int, out record.Record) {
	metrics, _ := out[record.KeyMetrics].(record.Metrics)
	processed, _ := out[record.KeyProcessed].(bool)
	reason, _ := out[record.KeyFailureReason].(string)
	title := out.StringField("Title")

	err := p.ledger.AddResult(ctx, &store.RecordResult{
		RunID:         runID,
		Index:         index,
		Title:         title,
		Processed:     processed,
		Items:         metrics.Items,
		Rows:          metrics.ValidationRows,
		FailureReason: reason,
	})
	if err != nil {
		p.log.Warn("ledger result insert failed", zap.Int("index", index), zap.Error(err))
	}
}
