package letters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"credit-backend/internal/jobs"
	"credit-backend/internal/llm"
	"credit-backend/internal/shared/metrics"
	"credit-backend/internal/shared/storage/object"
	"credit-backend/internal/shared/telemetry"
)

// Step names the part of letter generation an outcome stopped at.
type Step string

const (
	StepDraft   Step = "draft"
	StepRender  Step = "render"
	StepUpload  Step = "upload"
	StepPersist Step = "persist"
	StepDone    Step = "done"
)

// Input identifies the report letters are generated for.
type Input struct {
	JobID    string
	UserID   string
	ReportID string
	Findings json.RawMessage
}

// Outcome is the result for one bureau. Letter is set on success, Err otherwise.
type Outcome struct {
	Bureau string
	Letter *Letter
	Step   Step
	Err    error
}

// Batch collects per-bureau outcomes. A batch never fails a job on its own.
type Batch struct {
	Outcomes []Outcome
	// abandoned is set when the job lost its processing status mid-batch.
	abandoned bool
}

// Succeeded returns the persisted letters.
func (b Batch) Succeeded() []Letter {
	var out []Letter
	for _, o := range b.Outcomes {
		if o.Err == nil && o.Letter != nil {
			out = append(out, *o.Letter)
		}
	}
	return out
}

// Failed returns outcomes that carry an error.
func (b Batch) Failed() []Outcome {
	var out []Outcome
	for _, o := range b.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Abandoned reports whether generation stopped because the job was no longer processing.
func (b Batch) Abandoned() bool {
	return b.abandoned
}

// Generator drafts, renders, uploads and records one letter per bureau.
type Generator struct {
	Drafter  llm.LetterDrafter
	Renderer Renderer
	Store    object.ObjectStore
	Repo     Repo
	Bureaus  []string
	Now      func() time.Time
}

// Generate runs every bureau independently. A failure for one bureau is
// logged and recorded in its Outcome; the others still run.
func (g *Generator) Generate(ctx context.Context, in Input) Batch {
	bureaus := g.Bureaus
	if len(bureaus) == 0 {
		bureaus = Bureaus
	}
	findings := in.Findings
	if len(bytes.TrimSpace(findings)) == 0 {
		findings = json.RawMessage("[]")
	}

	var batch Batch
	for _, bureau := range bureaus {
		outcome := g.generateOne(ctx, in, bureau, findings)
		batch.Outcomes = append(batch.Outcomes, outcome)
		if outcome.Err != nil {
			metrics.IncLettersFailed()
			telemetry.Warn("letters.failed", map[string]any{
				"job_id":    in.JobID,
				"report_id": in.ReportID,
				"bureau":    bureau,
				"step":      string(outcome.Step),
				"error":     outcome.Err,
			})
			if errors.Is(outcome.Err, jobs.ErrNotProcessing) {
				batch.abandoned = true
				break
			}
			continue
		}
		metrics.IncLettersGenerated()
		telemetry.Info("letters.generated", map[string]any{
			"job_id":    in.JobID,
			"report_id": in.ReportID,
			"bureau":    bureau,
			"file_key":  outcome.Letter.FileKey,
		})
	}
	return batch
}

func (g *Generator) generateOne(ctx context.Context, in Input, bureau string, findings json.RawMessage) Outcome {
	out := Outcome{Bureau: bureau}
	if err := ctx.Err(); err != nil {
		out.Step, out.Err = StepDraft, err
		return out
	}

	text, err := g.Drafter.DraftLetter(ctx, bureau, findings)
	if err != nil {
		out.Step, out.Err = StepDraft, fmt.Errorf("draft %s: %w", bureau, err)
		return out
	}

	pdfBytes, err := g.Renderer.Render(text)
	if err != nil {
		out.Step, out.Err = StepRender, fmt.Errorf("render %s: %w", bureau, err)
		return out
	}

	key := object.LetterKey(in.UserID, in.ReportID, bureau)
	if _, err := g.Store.SaveWithKey(ctx, key, "application/pdf", bytes.NewReader(pdfBytes)); err != nil {
		out.Step, out.Err = StepUpload, fmt.Errorf("upload %s: %w", bureau, err)
		return out
	}

	letter := New(in.UserID, in.ReportID, bureau, key, text, g.now())
	if err := g.Repo.Insert(ctx, in.JobID, letter); err != nil {
		out.Step, out.Err = StepPersist, fmt.Errorf("persist %s: %w", bureau, err)
		return out
	}

	out.Step = StepDone
	out.Letter = &letter
	return out
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}
