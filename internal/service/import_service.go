package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/repository"
	"github.com/threaded-comments-api/internal/validation"
)

// maxReportedErrors caps the line errors returned in an ImportReport. Failed
// still counts every rejected line.
const maxReportedErrors = 100

// maxLineSize is the longest NDJSON record accepted
const maxLineSize = 1024 * 1024

// importService is the concrete implementation of ImportService
type importService struct {
	repos     *repository.Repositories
	validator *validation.Validator
	batchSize int
	log       zerolog.Logger
	now       func() time.Time
}

// newImportService creates a new ImportService
func newImportService(repos *repository.Repositories, validator *validation.Validator, batchSize int, log zerolog.Logger) *importService {
	if batchSize < 1 {
		batchSize = 1
	}
	return &importService{
		repos:     repos,
		validator: validator,
		batchSize: batchSize,
		log:       log.With().Str("service", "import").Logger(),
		now:       time.Now,
	}
}

// storedComment is where an imported source comment ended up
type storedComment struct {
	id     int64
	kind   models.Kind
	target models.TargetRef
}

// importRun holds the state of one ImportComments call
type importRun struct {
	report  *models.ImportReport
	stored  map[int64]storedComment // source id -> stored comment
	pending map[int64]bool          // source ids in the unflushed batch
	targets map[models.TargetRef]bool
	batch   []*models.Comment
	sources []int64
	lines   []int
}

// ImportComments reads NDJSON comment records, one per line, in the format
// produced by the NDJSON export. Parents must appear before their replies;
// parent_id refers to the source id and is remapped to the stored id.
// Rejected lines are reported and skipped; a storage failure on lookups
// aborts the import.
func (s *importService) ImportComments(ctx context.Context, r io.Reader) (report *models.ImportReport, err error) {
	ctx, span := startSpan(ctx, "ImportService.ImportComments")
	defer func() { endSpan(span, err) }()

	startTime := time.Now()
	run := &importRun{
		report:  &models.ImportReport{},
		stored:  make(map[int64]storedComment),
		pending: make(map[int64]bool),
		targets: make(map[models.TargetRef]bool),
	}

	s.log.Info().Int("batch_size", s.batchSize).Msg("Starting comments import")

	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			continue
		}

		run.report.Total++

		// Respect context cancellation for long imports
		if lineNum%1000 == 0 {
			select {
			case <-ctx.Done():
				return run.report, ctx.Err()
			default:
			}
		}

		if err := s.importLine(ctx, run, lineNum, line); err != nil {
			return run.report, err
		}

		if len(run.batch) >= s.batchSize {
			s.flush(ctx, run)
		}
	}

	// Process remaining batch
	s.flush(ctx, run)

	duration := time.Since(startTime)
	run.report.DurationMs = duration.Milliseconds()
	if run.report.Imported > 0 && duration.Seconds() > 0 {
		run.report.RowsPerSec = float64(run.report.Imported) / duration.Seconds()
	}
	span.SetAttributes(
		attribute.Int("import.total", run.report.Total),
		attribute.Int("import.imported", run.report.Imported),
		attribute.Int("import.failed", run.report.Failed),
	)

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			s.log.Warn().Int("line", lineNum+1).Msg("Import line too long")
			return run.report, validation.Errors{{
				Field:   "line",
				Message: fmt.Sprintf("line exceeds %d bytes", maxLineSize),
				Value:   lineNum + 1,
			}}
		}
		s.log.Error().Err(err).Int("line", lineNum).Msg("Import stream failed")
		return run.report, err
	}

	s.log.Info().
		Int("total", run.report.Total).
		Int("imported", run.report.Imported).
		Int("failed", run.report.Failed).
		Int64("duration_ms", run.report.DurationMs).
		Float64("rows_per_sec", run.report.RowsPerSec).
		Msg("Import completed")

	return run.report, nil
}

// importLine decodes, validates and queues one record. It only returns an
// error when a storage lookup fails.
func (s *importService) importLine(ctx context.Context, run *importRun, lineNum int, line string) error {
	var comment models.Comment
	if err := json.Unmarshal([]byte(line), &comment); err != nil {
		s.reject(run, lineNum, validation.Errors{{Field: "json", Message: fmt.Sprintf("invalid JSON: %v", err)}})
		return nil
	}

	if errs := s.validator.ValidateImported(&comment); len(errs) > 0 {
		s.reject(run, lineNum, errs)
		return nil
	}

	sourceID := comment.ID
	if sourceID != 0 {
		if _, dup := run.stored[sourceID]; dup || run.pending[sourceID] {
			s.reject(run, lineNum, validation.Errors{{Field: "id", Message: "duplicate id", Value: sourceID}})
			return nil
		}
	}

	known, err := s.targetExists(ctx, run, comment.Target)
	if err != nil {
		return err
	}
	if !known {
		s.reject(run, lineNum, validation.Errors{{Field: "target", Message: "target is not registered", Value: comment.Target.String()}})
		return nil
	}

	if comment.ParentID != nil {
		if run.pending[*comment.ParentID] {
			s.flush(ctx, run)
		}
		parent, ok := run.stored[*comment.ParentID]
		switch {
		case !ok:
			s.reject(run, lineNum, validation.Errors{{Field: "parent_id", Message: "parent was not imported", Value: *comment.ParentID}})
			return nil
		case parent.kind != comment.Kind || parent.target != comment.Target:
			s.reject(run, lineNum, validation.Errors{{Field: "parent_id", Message: "parent belongs to another thread", Value: *comment.ParentID}})
			return nil
		}
		comment.ParentID = &parent.id
	}

	comment.ID = 0
	comment.Body = strings.TrimSpace(comment.Body)
	if comment.SubmittedAt.IsZero() {
		comment.SubmittedAt = s.now().UTC()
	}
	if comment.ModifiedAt.IsZero() {
		comment.ModifiedAt = comment.SubmittedAt
	}
	if comment.IsApproved && comment.ApprovedAt == nil {
		at := comment.ModifiedAt
		comment.ApprovedAt = &at
	}

	run.batch = append(run.batch, &comment)
	run.sources = append(run.sources, sourceID)
	run.lines = append(run.lines, lineNum)
	if sourceID != 0 {
		run.pending[sourceID] = true
	}
	return nil
}

// flush stores the pending batch. A failed batch rejects all of its lines.
func (s *importService) flush(ctx context.Context, run *importRun) {
	if len(run.batch) == 0 {
		return
	}

	inserted, err := s.repos.Comment.BatchCreate(ctx, run.batch)
	if err != nil {
		s.log.Error().Err(err).Int("batch_size", len(run.batch)).Msg("Batch insert failed")
		for _, line := range run.lines {
			s.reject(run, line, validation.Errors{{Field: "storage", Message: "batch insert failed"}})
		}
	} else {
		run.report.Imported += inserted
		for i, c := range run.batch {
			if src := run.sources[i]; src != 0 {
				run.stored[src] = storedComment{id: c.ID, kind: c.Kind, target: c.Target}
			}
		}
		s.log.Debug().Int("imported", run.report.Imported).Msg("Batch processed")
	}

	run.batch = run.batch[:0]
	run.sources = run.sources[:0]
	run.lines = run.lines[:0]
	clear(run.pending)
}

func (s *importService) targetExists(ctx context.Context, run *importRun, ref models.TargetRef) (bool, error) {
	if known, ok := run.targets[ref]; ok {
		return known, nil
	}
	target, err := s.repos.Target.GetByRef(ctx, ref)
	if err != nil {
		return false, err
	}
	run.targets[ref] = target != nil
	return target != nil, nil
}

func (s *importService) reject(run *importRun, line int, errs validation.Errors) {
	run.report.Failed++
	for _, e := range errs {
		if len(run.report.Errors) >= maxReportedErrors {
			run.report.Truncated = true
			return
		}
		run.report.Errors = append(run.report.Errors, models.LineError{
			Line:    line,
			Field:   e.Field,
			Message: e.Message,
			Value:   e.Value,
		})
	}
}
