package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sameerreddy213/certmaker-api/internal/dto"
	"github.com/sameerreddy213/certmaker-api/internal/models"
	"github.com/sameerreddy213/certmaker-api/pkg/archive"
	"github.com/sameerreddy213/certmaker-api/pkg/convert"
	"github.com/sameerreddy213/certmaker-api/pkg/docx"
	appErrors "github.com/sameerreddy213/certmaker-api/pkg/errors"
	"github.com/sameerreddy213/certmaker-api/pkg/jobs"
	"github.com/sameerreddy213/certmaker-api/pkg/tabular"
)

// JobTypeGenerate identifies queued batch generation work.
const JobTypeGenerate = "batch.generate"

type batchStore interface {
	Create(ctx context.Context, batch *models.Batch) error
	GetByID(ctx context.Context, id string) (*models.Batch, error)
	ListByOwner(ctx context.Context, ownerID, status string, limit, offset int) ([]models.Batch, error)
	MarkProcessing(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, processed, generated int) error
	MarkCompleted(ctx context.Context, id, archivePath string) error
	MarkFailed(ctx context.Context, id, message string) error
}

type certificateStore interface {
	Create(ctx context.Context, cert *models.Certificate) error
	GetByID(ctx context.Context, id string) (*models.Certificate, error)
	ListByBatch(ctx context.Context, batchID string) ([]models.Certificate, error)
}

type batchTemplateGetter interface {
	GetByID(ctx context.Context, id string) (*models.Template, error)
}

type outputStorage interface {
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	Path(filename string) string
	Workdir(name string) (string, error)
	RemoveDir(name string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type generationMetrics interface {
	RowProcessed(success bool)
	BatchFinished(status string)
	ObserveConversion(duration time.Duration)
}

type statsInvalidator interface {
	Invalidate(ctx context.Context, ownerID string)
}

// GenerateJobPayload travels with a queued generation job.
type GenerateJobPayload struct {
	BatchID  string
	DataFile string
}

// DataUpload carries the spreadsheet stream submitted with a batch.
type DataUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// BatchServiceConfig holds validation parameters for data uploads.
type BatchServiceConfig struct {
	MaxFileSize int64
}

// BatchService orchestrates certificate generation runs: it accepts a
// dataset, queues the work and walks every row through fill, convert and
// archive stages. Row failures are isolated; a bad row never aborts the
// run.
type BatchService struct {
	batches   batchStore
	certs     certificateStore
	templates batchTemplateGetter
	uploads   fileStorage
	output    outputStorage
	converter convert.Converter
	queue     jobEnqueuer
	metrics   generationMetrics
	stats     statsInvalidator
	logger    *zap.Logger
	cfg       BatchServiceConfig

	fill func(templatePath string, values map[string]string, outputPath string) error
}

// NewBatchService constructs the orchestrator. The queue is attached
// separately because its handler is this service.
func NewBatchService(batches batchStore, certs certificateStore, templates batchTemplateGetter, uploads fileStorage, output outputStorage, converter convert.Converter, logger *zap.Logger, cfg BatchServiceConfig) *BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	return &BatchService{
		batches:   batches,
		certs:     certs,
		templates: templates,
		uploads:   uploads,
		output:    output,
		converter: converter,
		logger:    logger,
		cfg:       cfg,
		fill:      docx.Fill,
	}
}

// AttachQueue wires the job queue used for asynchronous processing.
func (s *BatchService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// SetMetrics wires optional pipeline instrumentation.
func (s *BatchService) SetMetrics(m generationMetrics) {
	s.metrics = m
}

// SetStatsInvalidator wires dashboard cache invalidation; finished runs
// change the owner's aggregate counts.
func (s *BatchService) SetStatsInvalidator(inv statsInvalidator) {
	s.stats = inv
}

// Generate validates the request, persists the batch in pending state and
// queues the run. It returns before any document is produced.
func (s *BatchService) Generate(ctx context.Context, req dto.GenerateBatchRequest, upload DataUpload, actor *models.JWTClaims) (*dto.BatchAcceptedResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "generation queue unavailable")
	}
	if strings.TrimSpace(req.TemplateID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template_id is required")
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "data file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}

	mappings, err := parseMappings(req.Mappings)
	if err != nil {
		return nil, err
	}

	tpl, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if tpl.OwnerID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "template belongs to another user")
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	switch ext {
	case ".xlsx", ".xls", ".csv":
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "only .xlsx, .xls and .csv data files are supported")
	}

	dataFile := fmt.Sprintf("data_%s%s", uuid.NewString(), ext)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if _, err := s.uploads.SaveStream(dataFile, upload.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist data file")
	}

	dataset, err := tabular.Parse(s.uploads.Path(dataFile))
	if err != nil {
		_ = s.uploads.Delete(dataFile)
		if errors.Is(err, tabular.ErrUnsupportedFormat) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported data file format")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "data file could not be parsed")
	}
	if len(dataset.Rows) == 0 {
		_ = s.uploads.Delete(dataFile)
		return nil, appErrors.Clone(appErrors.ErrValidation, "data file has no rows")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = tpl.Name
	}
	batch := &models.Batch{
		OwnerID:    actor.UserID,
		TemplateID: tpl.ID,
		Name:       name,
		Status:     models.BatchStatusPending,
		TotalCount: len(dataset.Rows),
		Mappings:   models.JSONMap(mappings),
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		_ = s.uploads.Delete(dataFile)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch")
	}

	if err := s.queue.Enqueue(jobs.Job{
		ID:      batch.ID,
		Type:    JobTypeGenerate,
		Payload: GenerateJobPayload{BatchID: batch.ID, DataFile: dataFile},
	}); err != nil {
		_ = s.uploads.Delete(dataFile)
		if markErr := s.batches.MarkFailed(ctx, batch.ID, "generation queue rejected the run"); markErr != nil {
			s.logger.Sugar().Errorw("failed to mark unqueued batch", "batchId", batch.ID, "error", markErr)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue generation")
	}

	s.logger.Sugar().Infow("batch queued", "batchId", batch.ID, "ownerId", actor.UserID, "rows", batch.TotalCount)
	return &dto.BatchAcceptedResponse{
		BatchID:    batch.ID,
		Status:     batch.Status,
		TotalCount: batch.TotalCount,
	}, nil
}

// ProcessJob is the queue handler. It never returns a row-level error;
// only run-level failures propagate, and those are already recorded on
// the batch.
func (s *BatchService) ProcessJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(GenerateJobPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}
	s.processBatch(ctx, payload.BatchID, payload.DataFile)
	return nil
}

func (s *BatchService) processBatch(ctx context.Context, batchID, dataFile string) {
	log := s.logger.Sugar().With("batchId", batchID)
	defer func() {
		if err := s.uploads.Delete(dataFile); err != nil {
			log.Warnw("failed to remove data file", "error", err)
		}
	}()

	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		log.Errorw("failed to load batch", "error", err)
		return
	}
	if err := s.batches.MarkProcessing(ctx, batchID); err != nil {
		log.Warnw("batch is not pending, skipping", "error", err)
		return
	}

	if batch.TemplateID == "" {
		s.failBatch(ctx, batch, "template is no longer available", sql.ErrNoRows)
		return
	}
	tpl, err := s.templates.GetByID(ctx, batch.TemplateID)
	if err != nil {
		s.failBatch(ctx, batch, "template is no longer available", err)
		return
	}
	dataset, err := tabular.Parse(s.uploads.Path(dataFile))
	if err != nil {
		s.failBatch(ctx, batch, "data file could not be parsed", err)
		return
	}

	workdirName := "work_" + batchID
	workdir, err := s.output.Workdir(workdirName)
	if err != nil {
		s.failBatch(ctx, batch, "could not prepare working directory", err)
		return
	}
	defer func() {
		if err := s.output.RemoveDir(workdirName); err != nil {
			log.Warnw("failed to remove working directory", "error", err)
		}
	}()

	processed, generated := 0, 0
	files := make([]string, 0, len(dataset.Rows))
	for i, row := range dataset.Rows {
		pdfPath, recipient, rowErr := s.renderRow(ctx, batch, tpl, dataset, i, row, workdir)
		processed++

		cert := &models.Certificate{
			OwnerID:       batch.OwnerID,
			BatchID:       batch.ID,
			RecipientName: recipient,
			RowData:       models.JSONMap(row),
			Status:        models.CertificateStatusGenerated,
		}
		if rowErr != nil {
			msg := rowErr.Error()
			cert.Status = models.CertificateStatusFailed
			cert.ErrorMessage = &msg
			log.Warnw("row failed", "row", i, "recipient", recipient, "error", rowErr)
		} else {
			cert.FilePath = &pdfPath
			generated++
			files = append(files, pdfPath)
		}
		if err := s.certs.Create(ctx, cert); err != nil {
			log.Errorw("failed to record certificate", "row", i, "error", err)
		}
		if s.metrics != nil {
			s.metrics.RowProcessed(rowErr == nil)
		}
		if err := s.batches.UpdateProgress(ctx, batch.ID, processed, generated); err != nil {
			log.Warnw("failed to write progress", "row", i, "error", err)
		}
	}

	zipName := fmt.Sprintf("certificates_batch_%s.zip", batch.ID)
	zipPath := s.output.Path(zipName)
	if err := archive.WriteZip(zipPath, files, s.logger); err != nil {
		s.failBatch(ctx, batch, "failed to assemble archive", err)
		return
	}
	if err := s.batches.MarkCompleted(ctx, batch.ID, zipPath); err != nil {
		log.Errorw("failed to mark batch completed", "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.BatchFinished(string(models.BatchStatusCompleted))
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx, batch.OwnerID)
	}
	log.Infow("batch completed", "processed", processed, "generated", generated)
}

// renderRow fills the template for one row and converts it to PDF. The
// row ordinal keeps output names unique even when two rows share a
// recipient name. A panic anywhere in the row is converted to a row
// error so the rest of the batch keeps going.
func (s *BatchService) renderRow(ctx context.Context, batch *models.Batch, tpl *models.Template, dataset *tabular.Dataset, i int, row tabular.Row, workdir string) (pdfPath, recipient string, err error) {
	recipient = resolveRecipient(row, dataset.Headers, batch.Mappings, i)
	defer func() {
		if r := recover(); r != nil {
			pdfPath = ""
			err = fmt.Errorf("row processing panic: %v", r)
		}
	}()

	fields := resolveFields(row, batch.Mappings)

	base := safeFilename(recipient)
	if base == "" {
		base = fmt.Sprintf("certificate-%d", i+1)
	}
	stem := fmt.Sprintf("%s-%.8s-%d", base, batch.ID, i)

	nativePath := filepath.Join(workdir, stem+"."+string(tpl.TemplateType))
	if err := s.fill(tpl.FilePath, fields, nativePath); err != nil {
		return "", recipient, fmt.Errorf("fill template: %w", err)
	}

	pdfPath = s.output.Path(stem + ".pdf")
	start := time.Now()
	convertErr := s.converter.Convert(ctx, nativePath, pdfPath)
	if s.metrics != nil {
		s.metrics.ObserveConversion(time.Since(start))
	}
	if err := os.Remove(nativePath); err != nil {
		s.logger.Sugar().Warnw("failed to remove intermediate file", "path", nativePath, "error", err)
	}
	if convertErr != nil {
		return "", recipient, convertErr
	}
	return pdfPath, recipient, nil
}

func (s *BatchService) failBatch(ctx context.Context, batch *models.Batch, message string, cause error) {
	s.logger.Sugar().Errorw("batch failed", "batchId", batch.ID, "reason", message, "error", cause)
	if err := s.batches.MarkFailed(ctx, batch.ID, message); err != nil {
		s.logger.Sugar().Errorw("failed to mark batch failed", "batchId", batch.ID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.BatchFinished(string(models.BatchStatusFailed))
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx, batch.OwnerID)
	}
}

// Get returns a batch enforcing ownership.
func (s *BatchService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Batch, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	if batch.OwnerID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "batch belongs to another user")
	}
	return batch, nil
}

// List returns the actor's batches.
func (s *BatchService) List(ctx context.Context, filter dto.BatchFilter, actor *models.JWTClaims) ([]models.Batch, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	batches, err := s.batches.ListByOwner(ctx, actor.UserID, filter.Status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batches")
	}
	return batches, nil
}

// Status returns the polling payload for a batch.
func (s *BatchService) Status(ctx context.Context, id string, actor *models.JWTClaims) (*dto.BatchStatusResponse, error) {
	batch, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return &dto.BatchStatusResponse{
		ID:             batch.ID,
		Status:         batch.Status,
		TotalCount:     batch.TotalCount,
		ProcessedCount: batch.ProcessedCount,
		GeneratedCount: batch.GeneratedCount,
		ErrorMessage:   batch.ErrorMessage,
	}, nil
}

// Details returns the batch together with all per-row outcomes.
func (s *BatchService) Details(ctx context.Context, id string, actor *models.JWTClaims) (*dto.BatchDetailsResponse, error) {
	batch, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	certs, err := s.certs.ListByBatch(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return &dto.BatchDetailsResponse{
		Batch:        *batch,
		Certificates: certs,
		ArchiveReady: batch.Status == models.BatchStatusCompleted && batch.ArchivePath != nil,
	}, nil
}

// FileDownload bundles an opened file and its download name.
type FileDownload struct {
	File     *os.File
	Filename string
}

// OpenArchive opens the finished zip for streaming. Batches that have not
// completed yet report a not-ready error.
func (s *BatchService) OpenArchive(ctx context.Context, id string, actor *models.JWTClaims) (*FileDownload, error) {
	batch, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if batch.Status != models.BatchStatusCompleted || batch.ArchivePath == nil {
		return nil, appErrors.Clone(appErrors.ErrNotReady, "batch archive is not ready")
	}
	file, err := s.output.Open(filepath.Base(*batch.ArchivePath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive file no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open archive")
	}
	return &FileDownload{File: file, Filename: filepath.Base(*batch.ArchivePath)}, nil
}

// Certificate returns one per-row record enforcing ownership.
func (s *BatchService) Certificate(ctx context.Context, id string, actor *models.JWTClaims) (*models.Certificate, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	cert, err := s.certs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if cert.OwnerID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "certificate belongs to another user")
	}
	return cert, nil
}

// OpenCertificate opens a generated PDF for streaming.
func (s *BatchService) OpenCertificate(ctx context.Context, id string, actor *models.JWTClaims) (*FileDownload, error) {
	cert, err := s.Certificate(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if cert.Status != models.CertificateStatusGenerated || cert.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrNotReady, "certificate file is not available")
	}
	file, err := s.output.Open(filepath.Base(*cert.FilePath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate file no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open certificate")
	}
	return &FileDownload{File: file, Filename: filepath.Base(*cert.FilePath)}, nil
}

func parseMappings(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mappings is required")
	}
	var mappings map[string]string
	if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mappings must be a JSON object of column to placeholder")
	}
	if len(mappings) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mappings cannot be empty")
	}
	return mappings, nil
}
