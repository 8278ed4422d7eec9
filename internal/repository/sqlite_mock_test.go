package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvar-query/internal/domain"
)

func setupMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &SQLiteStore{db: db, dbPath: "mock", log: testLogger()}, mock
}

func TestSQLiteStore_UpsertAnnotation_RollsBackOnError(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO clinvar").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := store.UpsertAnnotation(context.Background(), sampleAnnotation("1-100-A-G"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Contains(t, err.Error(), "1-100-A-G")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_UpsertVariant_Commits(t *testing.T) {
	store, mock := setupMockStore(t)
	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO variants (.+) ON CONFLICT\\(patient_variant_key\\) DO UPDATE").
		WithArgs("P1:1-100-A-G", "1-100-A-G", "P1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.UpsertVariant(context.Background(), &domain.PatientVariant{
		PatientVariantKey: "P1:1-100-A-G",
		VariantID:         "1-100-A-G",
		PatientID:         "P1",
		DateAnnotated:     at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_UpsertPatient_BeginFails(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	err := store.UpsertPatient(context.Background(), "P1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_UpsertPatient_CommitFails(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO patient_information").
		WithArgs("P1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	err := store.UpsertPatient(context.Background(), "P1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ListPatientVariants_QueryError(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM variants v JOIN clinvar c").
		WithArgs("P1").
		WillReturnError(errors.New("no such table: variants"))

	_, err := store.ListPatientVariants(context.Background(), "P1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_GetAnnotation_ScanError(t *testing.T) {
	store, mock := setupMockStore(t)

	rows := sqlmock.NewRows([]string{"variant_id"}).AddRow("1-100-A-G")
	mock.ExpectQuery("SELECT (.+) FROM clinvar c WHERE c.variant_id = ?").
		WithArgs("1-100-A-G").
		WillReturnRows(rows)

	_, err := store.GetAnnotation(context.Background(), "1-100-A-G")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
