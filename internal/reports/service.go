package reports

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"credit-backend/internal/analyses"
	"credit-backend/internal/jobs"
	"credit-backend/internal/letters"
	"credit-backend/internal/shared/metrics"
	"credit-backend/internal/shared/telemetry"
	"credit-backend/internal/shared/util"
)

const maxFileNameLen = 255

// Service contains the user-facing report operations.
type Service struct {
	Repo       Repo
	Jobs       jobs.Queue
	Results    analyses.Repo
	LetterRepo letters.Repo
	Now        func() time.Time
}

// Create records a report for an uploaded blob and enqueues its first job.
// fileKey must live under the caller's owner prefix.
func (s *Service) Create(ctx context.Context, userID, fileKey, fileName string) (Report, jobs.Job, error) {
	fileKey = strings.TrimSpace(fileKey)
	if userID == "" || fileKey == "" {
		return Report{}, jobs.Job{}, fmt.Errorf("%w: file key is required", ErrValidation)
	}
	if !util.KeyOwnedBy(fileKey, userID) {
		return Report{}, jobs.Job{}, ErrForbiddenKey
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		fileName = path.Base(fileKey)
	}
	if len(fileName) > maxFileNameLen {
		return Report{}, jobs.Job{}, fmt.Errorf("%w: filename too long", ErrValidation)
	}

	now := s.now()
	report := New(userID, fileKey, fileName, now)
	job := jobs.NewQueued(userID, report.ID, now)
	if err := s.Repo.CreateWithJob(ctx, report, job); err != nil {
		return Report{}, jobs.Job{}, err
	}

	metrics.IncJobsEnqueued()
	telemetry.Info("report.created", map[string]any{
		"report_id": report.ID,
		"job_id":    job.ID,
		"user_id":   userID,
	})
	return report, job, nil
}

// Resubmit discards the report's jobs, result and letters and enqueues a
// fresh job.
func (s *Service) Resubmit(ctx context.Context, userID, reportID string) (jobs.Job, error) {
	if userID == "" || reportID == "" {
		return jobs.Job{}, ErrNotFound
	}
	job := jobs.NewQueued(userID, reportID, s.now())
	if err := s.Repo.Resubmit(ctx, userID, reportID, job); err != nil {
		return jobs.Job{}, err
	}

	metrics.IncJobsEnqueued()
	telemetry.Info("report.resubmitted", map[string]any{
		"report_id": reportID,
		"job_id":    job.ID,
		"user_id":   userID,
	})
	return job, nil
}

// Get returns a report owned by userID.
func (s *Service) Get(ctx context.Context, userID, reportID string) (Report, error) {
	return s.Repo.GetForUser(ctx, userID, reportID)
}

// List returns a page of the user's reports, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Job returns the status read model of a job owned by userID.
func (s *Service) Job(ctx context.Context, userID, jobID string) (jobs.Job, error) {
	return s.Jobs.GetForUser(ctx, userID, jobID)
}

// Result returns the stored analysis for a report owned by userID.
func (s *Service) Result(ctx context.Context, userID, reportID string) (analyses.Result, error) {
	if _, err := s.Repo.GetForUser(ctx, userID, reportID); err != nil {
		return analyses.Result{}, err
	}
	return s.Results.GetForUser(ctx, userID, reportID)
}

// Letters returns the generated letters for a report owned by userID. An
// existing report with no letters yields an empty list.
func (s *Service) Letters(ctx context.Context, userID, reportID string) ([]letters.Letter, error) {
	if _, err := s.Repo.GetForUser(ctx, userID, reportID); err != nil {
		return nil, err
	}
	return s.LetterRepo.ListForUser(ctx, userID, reportID)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// IsNotFound reports whether err is any of the not-found sentinels a report
// lookup can surface.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, jobs.ErrNotFound) ||
		errors.Is(err, analyses.ErrNotFound)
}
