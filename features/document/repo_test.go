package document_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecdb/features/document"
)

func TestPostgresReader_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT d.id, d.name, d.status, d.upload_complete, d.created_at, d.updated_at")).
		WithArgs("lib-1", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "upload_complete", "created_at", "updated_at", "fragment_count", "total_bytes"}).
			AddRow("doc-1", "report.txt", "PROCESSING", true, now, now, 3, int64(2<<20)))

	reader := document.NewPostgresReader(db)
	summaries, err := reader.List(context.Background(), "lib-1", 50, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "report.txt", summaries[0].Name)
	assert.Equal(t, 3, summaries[0].FragmentCount)
	assert.Equal(t, int64(2<<20), summaries[0].TotalBytes)
	assert.True(t, summaries[0].UploadComplete)
	assert.NoError(t, mock.ExpectationsWereMet())
}
