package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sameerreddy213/certmaker-api/internal/dto"
	"github.com/sameerreddy213/certmaker-api/internal/models"
	appErrors "github.com/sameerreddy213/certmaker-api/pkg/errors"
	"github.com/sameerreddy213/certmaker-api/pkg/jobs"
	"github.com/sameerreddy213/certmaker-api/pkg/storage"
)

type batchStoreStub struct {
	batches  map[string]*models.Batch
	progress [][2]int
}

func newBatchStoreStub() *batchStoreStub {
	return &batchStoreStub{batches: make(map[string]*models.Batch)}
}

func (s *batchStoreStub) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = fmt.Sprintf("batch-%d", len(s.batches)+1)
	}
	if batch.Status == "" {
		batch.Status = models.BatchStatusPending
	}
	copy := *batch
	s.batches[batch.ID] = &copy
	return nil
}

func (s *batchStoreStub) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	if batch, ok := s.batches[id]; ok {
		copy := *batch
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *batchStoreStub) ListByOwner(ctx context.Context, ownerID, status string, limit, offset int) ([]models.Batch, error) {
	result := make([]models.Batch, 0, len(s.batches))
	for _, batch := range s.batches {
		if batch.OwnerID != ownerID {
			continue
		}
		if status != "" && string(batch.Status) != status {
			continue
		}
		result = append(result, *batch)
	}
	return result, nil
}

func (s *batchStoreStub) MarkProcessing(ctx context.Context, id string) error {
	batch, ok := s.batches[id]
	if !ok || batch.Status != models.BatchStatusPending {
		return sql.ErrNoRows
	}
	batch.Status = models.BatchStatusProcessing
	return nil
}

func (s *batchStoreStub) UpdateProgress(ctx context.Context, id string, processed, generated int) error {
	batch, ok := s.batches[id]
	if !ok {
		return sql.ErrNoRows
	}
	batch.ProcessedCount = processed
	batch.GeneratedCount = generated
	s.progress = append(s.progress, [2]int{processed, generated})
	return nil
}

func (s *batchStoreStub) MarkCompleted(ctx context.Context, id, archivePath string) error {
	batch, ok := s.batches[id]
	if !ok {
		return sql.ErrNoRows
	}
	batch.Status = models.BatchStatusCompleted
	batch.ArchivePath = &archivePath
	return nil
}

func (s *batchStoreStub) MarkFailed(ctx context.Context, id, message string) error {
	batch, ok := s.batches[id]
	if !ok {
		return sql.ErrNoRows
	}
	batch.Status = models.BatchStatusFailed
	batch.ErrorMessage = &message
	return nil
}

type certStoreStub struct {
	certs []*models.Certificate
}

func (s *certStoreStub) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = fmt.Sprintf("cert-%d", len(s.certs)+1)
	}
	copy := *cert
	s.certs = append(s.certs, &copy)
	return nil
}

func (s *certStoreStub) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	for _, cert := range s.certs {
		if cert.ID == id {
			copy := *cert
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *certStoreStub) ListByBatch(ctx context.Context, batchID string) ([]models.Certificate, error) {
	result := make([]models.Certificate, 0, len(s.certs))
	for _, cert := range s.certs {
		if cert.BatchID == batchID {
			result = append(result, *cert)
		}
	}
	return result, nil
}

type templateGetterStub struct {
	tpl *models.Template
	err error
}

func (s *templateGetterStub) GetByID(ctx context.Context, id string) (*models.Template, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.tpl == nil || s.tpl.ID != id {
		return nil, sql.ErrNoRows
	}
	copy := *s.tpl
	return &copy, nil
}

type converterStub struct {
	failSubstring string
	calls         []string
}

func (c *converterStub) Convert(ctx context.Context, nativePath, outputPath string) error {
	c.calls = append(c.calls, nativePath)
	if c.failSubstring != "" && strings.Contains(nativePath, c.failSubstring) {
		return fmt.Errorf("render failed for %s", nativePath)
	}
	return os.WriteFile(outputPath, []byte("%PDF-1.4 stub"), 0o644)
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type metricsStub struct {
	rows        []bool
	finished    []string
	conversions int
}

func (m *metricsStub) RowProcessed(success bool) { m.rows = append(m.rows, success) }

func (m *metricsStub) BatchFinished(status string) { m.finished = append(m.finished, status) }

func (m *metricsStub) ObserveConversion(time.Duration) { m.conversions++ }

type statsStub struct {
	owners []string
}

func (s *statsStub) Invalidate(ctx context.Context, ownerID string) {
	s.owners = append(s.owners, ownerID)
}

type batchTestEnv struct {
	svc       *BatchService
	batches   *batchStoreStub
	certs     *certStoreStub
	templates *templateGetterStub
	converter *converterStub
	queue     *queueStub
	uploads   *storage.LocalStorage
	output    *storage.LocalStorage
}

func newBatchTestEnv(t *testing.T) *batchTestEnv {
	t.Helper()
	uploads, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	output, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	batches := newBatchStoreStub()
	certs := &certStoreStub{}
	templates := &templateGetterStub{tpl: &models.Template{
		ID:           "tpl-1",
		OwnerID:      "user-1",
		Name:         "Completion",
		TemplateType: models.TemplateTypeDocx,
		FilePath:     "/templates/tpl-1.docx",
	}}
	converter := &converterStub{}
	queue := &queueStub{}

	svc := NewBatchService(batches, certs, templates, uploads, output, converter, zap.NewNop(), BatchServiceConfig{})
	svc.AttachQueue(queue)
	svc.fill = func(templatePath string, values map[string]string, outputPath string) error {
		return os.WriteFile(outputPath, []byte("filled"), 0o644)
	}

	return &batchTestEnv{
		svc:       svc,
		batches:   batches,
		certs:     certs,
		templates: templates,
		converter: converter,
		queue:     queue,
		uploads:   uploads,
		output:    output,
	}
}

func actorClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Email: userID + "@example.com"}
}

func csvUpload(rows ...string) DataUpload {
	content := strings.Join(rows, "\n")
	return DataUpload{
		Filename: "data.csv",
		Size:     int64(len(content)),
		Content:  bytes.NewReader([]byte(content)),
	}
}

func TestBatchServiceGenerateQueuesRun(t *testing.T) {
	env := newBatchTestEnv(t)

	resp, err := env.svc.Generate(context.Background(), dto.GenerateBatchRequest{
		TemplateID: "tpl-1",
		Name:       "Spring Cohort",
		Mappings:   `{"Name":"recipientName","Course":"courseName"}`,
	}, csvUpload("Name,Course", "Jane Doe,Go", "Bob Roe,SQL"), actorClaims("user-1"))
	require.NoError(t, err)
	require.Equal(t, models.BatchStatusPending, resp.Status)
	require.Equal(t, 2, resp.TotalCount)

	require.Len(t, env.queue.jobs, 1)
	job := env.queue.jobs[0]
	require.Equal(t, JobTypeGenerate, job.Type)
	payload, ok := job.Payload.(GenerateJobPayload)
	require.True(t, ok)
	require.Equal(t, resp.BatchID, payload.BatchID)

	stored, err := env.batches.GetByID(context.Background(), resp.BatchID)
	require.NoError(t, err)
	require.Equal(t, "Spring Cohort", stored.Name)
	require.Equal(t, "recipientName", stored.Mappings["Name"])
}

func TestBatchServiceGenerateValidation(t *testing.T) {
	env := newBatchTestEnv(t)
	actor := actorClaims("user-1")

	_, err := env.svc.Generate(context.Background(), dto.GenerateBatchRequest{
		Mappings: `{"Name":"recipientName"}`,
	}, csvUpload("Name", "Jane"), actor)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = env.svc.Generate(context.Background(), dto.GenerateBatchRequest{
		TemplateID: "tpl-1",
		Mappings:   `not json`,
	}, csvUpload("Name", "Jane"), actor)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	upload := csvUpload("Name", "Jane")
	upload.Filename = "data.txt"
	_, err = env.svc.Generate(context.Background(), dto.GenerateBatchRequest{
		TemplateID: "tpl-1",
		Mappings:   `{"Name":"recipientName"}`,
	}, upload, actor)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// A header-only file has nothing to generate.
	_, err = env.svc.Generate(context.Background(), dto.GenerateBatchRequest{
		TemplateID: "tpl-1",
		Mappings:   `{"Name":"recipientName"}`,
	}, csvUpload("Name"), actor)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Empty(t, env.queue.jobs)
}

func TestBatchServiceGenerateForeignTemplate(t *testing.T) {
	env := newBatchTestEnv(t)

	_, err := env.svc.Generate(context.Background(), dto.GenerateBatchRequest{
		TemplateID: "tpl-1",
		Mappings:   `{"Name":"recipientName"}`,
	}, csvUpload("Name", "Jane"), actorClaims("intruder"))
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func runBatch(t *testing.T, env *batchTestEnv, rows ...string) *models.Batch {
	t.Helper()
	resp, err := env.svc.Generate(context.Background(), dto.GenerateBatchRequest{
		TemplateID: "tpl-1",
		Mappings:   `{"Name":"recipientName","Course":"courseName"}`,
	}, csvUpload(rows...), actorClaims("user-1"))
	require.NoError(t, err)

	require.NoError(t, env.svc.ProcessJob(context.Background(), env.queue.jobs[len(env.queue.jobs)-1]))

	batch, err := env.batches.GetByID(context.Background(), resp.BatchID)
	require.NoError(t, err)
	return batch
}

func TestBatchServiceProcessHappyPath(t *testing.T) {
	env := newBatchTestEnv(t)
	batch := runBatch(t, env, "Name,Course", "Jane Doe,Go", "Bob Roe,SQL")

	require.Equal(t, models.BatchStatusCompleted, batch.Status)
	require.Equal(t, 2, batch.ProcessedCount)
	require.Equal(t, 2, batch.GeneratedCount)
	require.NotNil(t, batch.ArchivePath)
	require.FileExists(t, *batch.ArchivePath)

	certs, err := env.certs.ListByBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	require.Equal(t, "Jane Doe", certs[0].RecipientName)
	require.Equal(t, models.CertificateStatusGenerated, certs[0].Status)
	require.FileExists(t, *certs[0].FilePath)
	require.Equal(t, "Go", certs[0].RowData["Course"])
}

func TestBatchServiceProcessIsolatesRowFailures(t *testing.T) {
	env := newBatchTestEnv(t)
	// The converter rejects the second row's document.
	env.converter.failSubstring = "bob-roe"

	batch := runBatch(t, env, "Name,Course", "Jane Doe,Go", "Bob Roe,SQL", "Ann Poe,Rust")

	require.Equal(t, models.BatchStatusCompleted, batch.Status)
	require.Equal(t, 3, batch.ProcessedCount)
	require.Equal(t, 2, batch.GeneratedCount)

	certs, err := env.certs.ListByBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	require.Len(t, certs, 3)
	require.Equal(t, models.CertificateStatusFailed, certs[1].Status)
	require.NotNil(t, certs[1].ErrorMessage)
	require.Nil(t, certs[1].FilePath)
	require.Equal(t, models.CertificateStatusGenerated, certs[2].Status)
}

func TestBatchServiceProgressIsMonotonic(t *testing.T) {
	env := newBatchTestEnv(t)
	env.converter.failSubstring = "bob-roe"
	runBatch(t, env, "Name,Course", "Jane Doe,Go", "Bob Roe,SQL", "Ann Poe,Rust")

	require.Len(t, env.batches.progress, 3)
	prev := [2]int{0, 0}
	for _, step := range env.batches.progress {
		require.GreaterOrEqual(t, step[0], prev[0])
		require.GreaterOrEqual(t, step[1], prev[1])
		require.LessOrEqual(t, step[1], step[0])
		prev = step
	}
	require.Equal(t, [2]int{3, 2}, prev)
}

func TestBatchServicePanicInRowIsIsolated(t *testing.T) {
	env := newBatchTestEnv(t)
	env.svc.fill = func(templatePath string, values map[string]string, outputPath string) error {
		if strings.Contains(outputPath, "bob-roe") {
			panic("corrupt row")
		}
		return os.WriteFile(outputPath, []byte("filled"), 0o644)
	}

	batch := runBatch(t, env, "Name,Course", "Jane Doe,Go", "Bob Roe,SQL")

	require.Equal(t, models.BatchStatusCompleted, batch.Status)
	require.Equal(t, 2, batch.ProcessedCount)
	require.Equal(t, 1, batch.GeneratedCount)

	certs, err := env.certs.ListByBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	require.Equal(t, models.CertificateStatusFailed, certs[1].Status)
	require.Contains(t, *certs[1].ErrorMessage, "panic")
}

func TestBatchServiceInvalidatesStatsWhenFinished(t *testing.T) {
	env := newBatchTestEnv(t)
	stats := &statsStub{}
	env.svc.SetStatsInvalidator(stats)

	runBatch(t, env, "Name,Course", "Jane Doe,Go")

	require.Equal(t, []string{"user-1"}, stats.owners)
}

func TestBatchServiceRecordsPipelineMetrics(t *testing.T) {
	env := newBatchTestEnv(t)
	metrics := &metricsStub{}
	env.svc.SetMetrics(metrics)
	env.converter.failSubstring = "bob-roe"

	runBatch(t, env, "Name,Course", "Jane Doe,Go", "Bob Roe,SQL")

	require.Equal(t, []bool{true, false}, metrics.rows)
	require.Equal(t, []string{string(models.BatchStatusCompleted)}, metrics.finished)
	require.Equal(t, 2, metrics.conversions)
}

func TestBatchServiceProcessFailsWhenTemplateReferenceCleared(t *testing.T) {
	env := newBatchTestEnv(t)
	resp, err := env.svc.Generate(context.Background(), dto.GenerateBatchRequest{
		TemplateID: "tpl-1",
		Mappings:   `{"Name":"recipientName"}`,
	}, csvUpload("Name", "Jane Doe"), actorClaims("user-1"))
	require.NoError(t, err)

	// the template was deleted between queueing and processing; the
	// database clears the reference on the batch row
	env.batches.batches[resp.BatchID].TemplateID = ""
	require.NoError(t, env.svc.ProcessJob(context.Background(), env.queue.jobs[0]))

	batch, err := env.batches.GetByID(context.Background(), resp.BatchID)
	require.NoError(t, err)
	require.Equal(t, models.BatchStatusFailed, batch.Status)
	require.Contains(t, *batch.ErrorMessage, "template")
	require.Empty(t, env.certs.certs)
}

func TestBatchServiceProcessFailsWhenTemplateGone(t *testing.T) {
	env := newBatchTestEnv(t)
	resp, err := env.svc.Generate(context.Background(), dto.GenerateBatchRequest{
		TemplateID: "tpl-1",
		Mappings:   `{"Name":"recipientName"}`,
	}, csvUpload("Name", "Jane Doe"), actorClaims("user-1"))
	require.NoError(t, err)

	env.templates.err = fmt.Errorf("connection refused")
	require.NoError(t, env.svc.ProcessJob(context.Background(), env.queue.jobs[0]))

	batch, err := env.batches.GetByID(context.Background(), resp.BatchID)
	require.NoError(t, err)
	require.Equal(t, models.BatchStatusFailed, batch.Status)
	require.NotNil(t, batch.ErrorMessage)
	require.Empty(t, env.certs.certs)
}

func TestBatchServiceAllRowsFailedStillCompletes(t *testing.T) {
	env := newBatchTestEnv(t)
	env.converter.failSubstring = "-"

	batch := runBatch(t, env, "Name,Course", "Jane Doe,Go", "Bob Roe,SQL")

	require.Equal(t, models.BatchStatusCompleted, batch.Status)
	require.Equal(t, 2, batch.ProcessedCount)
	require.Equal(t, 0, batch.GeneratedCount)
	require.NotNil(t, batch.ArchivePath)
	require.FileExists(t, *batch.ArchivePath)
}

func TestBatchServiceDuplicateNamesGetDistinctFiles(t *testing.T) {
	env := newBatchTestEnv(t)
	batch := runBatch(t, env, "Name,Course", "Jane Doe,Go", "Jane Doe,SQL")

	certs, err := env.certs.ListByBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	require.NotEqual(t, *certs[0].FilePath, *certs[1].FilePath)
}

func TestBatchServiceOwnershipAndReadiness(t *testing.T) {
	env := newBatchTestEnv(t)
	resp, err := env.svc.Generate(context.Background(), dto.GenerateBatchRequest{
		TemplateID: "tpl-1",
		Mappings:   `{"Name":"recipientName"}`,
	}, csvUpload("Name", "Jane Doe"), actorClaims("user-1"))
	require.NoError(t, err)

	_, err = env.svc.Status(context.Background(), resp.BatchID, actorClaims("intruder"))
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = env.svc.OpenArchive(context.Background(), resp.BatchID, actorClaims("user-1"))
	require.Equal(t, appErrors.ErrNotReady.Code, appErrors.FromError(err).Code)

	require.NoError(t, env.svc.ProcessJob(context.Background(), env.queue.jobs[0]))

	status, err := env.svc.Status(context.Background(), resp.BatchID, actorClaims("user-1"))
	require.NoError(t, err)
	require.Equal(t, models.BatchStatusCompleted, status.Status)

	download, err := env.svc.OpenArchive(context.Background(), resp.BatchID, actorClaims("user-1"))
	require.NoError(t, err)
	defer download.File.Close()
	require.Equal(t, fmt.Sprintf("certificates_batch_%s.zip", resp.BatchID), download.Filename)
}

func TestBatchServiceCertificateDownloadOwnership(t *testing.T) {
	env := newBatchTestEnv(t)
	batch := runBatch(t, env, "Name,Course", "Jane Doe,Go")

	certs, err := env.certs.ListByBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	certID := certs[0].ID

	_, err = env.svc.OpenCertificate(context.Background(), certID, actorClaims("intruder"))
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	download, err := env.svc.OpenCertificate(context.Background(), certID, actorClaims("user-1"))
	require.NoError(t, err)
	defer download.File.Close()
	require.True(t, strings.HasSuffix(download.Filename, ".pdf"))
}
