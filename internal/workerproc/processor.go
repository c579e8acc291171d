package workerproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"credit-backend/internal/analyses"
	"credit-backend/internal/jobs"
	"credit-backend/internal/letters"
	"credit-backend/internal/llm"
	"credit-backend/internal/reports"
	"credit-backend/internal/shared/metrics"
	"credit-backend/internal/shared/storage/object"
	"credit-backend/internal/shared/telemetry"
)

// DefaultMaxAnalysisChars caps the text sent to the analysis engine.
const DefaultMaxAnalysisChars = 30000

// Extractor turns a downloaded report into text.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string, fileName string) (string, error)
}

// ReportLookup finds the report a job belongs to.
type ReportLookup interface {
	GetForUser(ctx context.Context, userID, reportID string) (reports.Report, error)
}

// LetterGenerator produces dispute letters on a best-effort basis.
type LetterGenerator interface {
	Generate(ctx context.Context, in letters.Input) letters.Batch
}

// Processor drives one claimed job through every stage to a terminal state.
type Processor struct {
	Jobs             jobs.Queue
	Reports          ReportLookup
	Store            object.ObjectStore
	Extractor        Extractor
	Analyzer         llm.Analyzer
	Results          analyses.Repo
	Letters          LetterGenerator
	MaxAnalysisChars int
}

// Process runs job to completion. It returns nil when the job completed, a
// *StageError when it was failed, and jobs.ErrNotProcessing when the job was
// swept or resubmitted underneath the worker and has been abandoned.
func (p *Processor) Process(ctx context.Context, job jobs.Job) (err error) {
	start := time.Now()
	stage := jobs.ProgressDownloading

	defer func() {
		if rec := recover(); rec != nil {
			err = p.finish(ctx, job, stageErr(stage, ReasonPanic, fmt.Errorf("%v", rec)), start)
		}
	}()

	runErr := p.run(ctx, job, &stage)
	return p.finish(ctx, job, runErr, start)
}

func (p *Processor) finish(ctx context.Context, job jobs.Job, runErr error, start time.Time) error {
	fields := map[string]any{
		"job_id":      job.ID,
		"report_id":   job.ReportID,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if errors.Is(runErr, jobs.ErrNotProcessing) {
		p.abandon(fields)
		return jobs.ErrNotProcessing
	}

	if runErr == nil {
		if err := p.Jobs.Complete(ctx, job.ID); err != nil {
			if errors.Is(err, jobs.ErrNotProcessing) {
				p.abandon(fields)
				return jobs.ErrNotProcessing
			}
			telemetry.Error("worker.job.complete_failed", withErr(fields, err))
			return err
		}
		metrics.IncJobsCompleted()
		metrics.ObserveJobDurationMs(float64(time.Since(start).Milliseconds()))
		telemetry.Info("worker.job.completed", fields)
		return nil
	}

	var se *StageError
	if !errors.As(runErr, &se) {
		se = stageErr("", ReasonAnalysisFailed, runErr)
	}
	fields["stage"] = se.Stage
	fields["reason"] = se.Reason
	if err := p.Jobs.Fail(ctx, job.ID, se.Reason); err != nil {
		if errors.Is(err, jobs.ErrNotProcessing) {
			p.abandon(fields)
			return jobs.ErrNotProcessing
		}
		telemetry.Error("worker.job.fail_write_failed", withErr(fields, err))
		return se
	}
	metrics.IncJobsFailed(se.Stage)
	telemetry.Error("worker.job.failed", fields)
	return se
}

func (p *Processor) abandon(fields map[string]any) {
	metrics.IncJobsAbandoned()
	telemetry.Warn("worker.job.abandoned", fields)
}

func (p *Processor) run(ctx context.Context, job jobs.Job, stage *string) error {
	// Downloading: the claim already recorded this stage.
	report, err := p.Reports.GetForUser(ctx, job.UserID, job.ReportID)
	if err != nil {
		if errors.Is(err, reports.ErrNotFound) {
			return stageErr(*stage, ReasonReportNotFound, nil)
		}
		return stageErr(*stage, ReasonReportLookupFailed, err)
	}
	data, err := p.download(ctx, report.FileKey)
	if errors.Is(err, object.ErrNotFound) {
		return stageErr(*stage, ReasonBlobNotFound, nil)
	}
	if err != nil {
		return stageErr(*stage, ReasonBlobFetchFailed, err)
	}

	if err := p.advance(ctx, job, stage, jobs.ProgressParsing); err != nil {
		return err
	}
	text, err := p.Extractor.ExtractText(ctx, data, "", report.FileName)
	if err != nil {
		return stageErr(*stage, ReasonExtractFailed, err)
	}

	if err := p.advance(ctx, job, stage, jobs.ProgressAnalyzing); err != nil {
		return err
	}
	raw, err := p.Analyzer.Analyze(ctx, llm.Truncate(text, p.maxChars()))
	if err != nil {
		return stageErr(*stage, ReasonAnalysisFailed, err)
	}
	doc, err := analyses.CheckDocument(raw)
	if err != nil {
		return &StageError{Stage: *stage, Reason: sanitizeReason(err.Error()), Err: err}
	}

	result := analyses.Result{ReportID: report.ID, UserID: report.UserID, Document: doc}
	if err := p.Results.Upsert(ctx, job.ID, result); err != nil {
		if errors.Is(err, jobs.ErrNotProcessing) {
			return err
		}
		return stageErr(*stage, ReasonPersistResultFailed, err)
	}

	if err := p.advance(ctx, job, stage, jobs.ProgressGeneratingLetters); err != nil {
		return err
	}
	if p.Letters != nil {
		batch := p.Letters.Generate(ctx, letters.Input{
			JobID:    job.ID,
			UserID:   report.UserID,
			ReportID: report.ID,
			Findings: analyses.NegativeItems(doc),
		})
		if batch.Abandoned() {
			return jobs.ErrNotProcessing
		}
		telemetry.Info("worker.job.letters", map[string]any{
			"job_id":    job.ID,
			"report_id": job.ReportID,
			"succeeded": len(batch.Succeeded()),
			"failed":    len(batch.Failed()),
		})
	}
	return nil
}

func (p *Processor) advance(ctx context.Context, job jobs.Job, stage *string, next string) error {
	if err := p.Jobs.SetProgress(ctx, job.ID, next); err != nil {
		if errors.Is(err, jobs.ErrNotProcessing) {
			return err
		}
		return stageErr(*stage, ReasonProgressFailed, err)
	}
	*stage = next
	telemetry.Info("worker.job.stage", map[string]any{
		"job_id":    job.ID,
		"report_id": job.ReportID,
		"progress":  next,
	})
	return nil
}

func (p *Processor) download(ctx context.Context, key string) ([]byte, error) {
	body, err := p.Store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Processor) maxChars() int {
	if p.MaxAnalysisChars > 0 {
		return p.MaxAnalysisChars
	}
	return DefaultMaxAnalysisChars
}

func withErr(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err
	return out
}
