package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sameerreddy213/certmaker-api/internal/models"
)

func TestCertificateRepositoryCreateAndList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificates")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	path := "/out/jane-doe-abc12345-0.pdf"
	cert := &models.Certificate{
		OwnerID:       "user-1",
		BatchID:       "batch-1",
		RecipientName: "Jane Doe",
		RowData:       models.JSONMap{"Name": "Jane Doe", "Course": "Go"},
		Status:        models.CertificateStatusGenerated,
		FilePath:      &path,
	}
	require.NoError(t, repo.Create(context.Background(), cert))
	require.NotEmpty(t, cert.ID)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "batch_id", "recipient_name", "row_data", "status", "file_path", "error_message", "created_at"}).
		AddRow(cert.ID, "user-1", "batch-1", "Jane Doe", []byte(`{"Name":"Jane Doe"}`), "generated", path, nil, time.Now()).
		AddRow("cert-2", "user-1", "batch-1", "Row 2", []byte(`{}`), "failed", nil, "convert: render failed", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM certificates WHERE batch_id = $1")).
		WithArgs("batch-1").
		WillReturnRows(rows)

	certs, err := repo.ListByBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	require.Len(t, certs, 2)
	require.Equal(t, models.CertificateStatusGenerated, certs[0].Status)
	require.Equal(t, models.CertificateStatusFailed, certs[1].Status)
	require.Nil(t, certs[1].FilePath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryCountGeneratedPerDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	rows := sqlmock.NewRows([]string{"day", "generated"}).
		AddRow("2026-08-27", 4).
		AddRow("2026-08-28", 9)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY 1 ORDER BY 1 ASC")).
		WithArgs("user-1", models.CertificateStatusGenerated, 7).
		WillReturnRows(rows)

	counts, err := repo.CountGeneratedPerDay(context.Background(), "user-1", 7)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.Equal(t, "2026-08-27", counts[0].Day)
	require.EqualValues(t, 9, counts[1].Generated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryCountByOwnerAndStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCertificateRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM certificates")).
		WithArgs("user-1", models.CertificateStatusGenerated).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	total, err := repo.CountByOwnerAndStatus(context.Background(), "user-1", models.CertificateStatusGenerated)
	require.NoError(t, err)
	require.EqualValues(t, 12, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
