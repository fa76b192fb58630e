package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var snapshotRowColumns = []string{"id", "worker_id", "company_id", "status", "payload", "snapshot_hash", "source", "created_at", "created_by_id"}

func TestQueriesGetSnapshot(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	q := NewQueries(db)

	createdAt := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM compliance_snapshots WHERE id = $1")).
		WithArgs("snap-1").
		WillReturnRows(sqlmock.NewRows(snapshotRowColumns).
			AddRow("snap-1", "worker-1", "co-1", "FAIL", []byte(`{"schemaVersion":1}`), "deadbeef", "dispatch", createdAt, "u-1"))

	snapshot, err := q.GetSnapshot(context.Background(), "snap-1")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", snapshot.SnapshotHash)
	assert.Equal(t, `{"schemaVersion":1}`, string(snapshot.Payload))
	assert.Equal(t, "dispatch", string(snapshot.Source))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueriesLatestSnapshotAtWithoutHistory(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	q := NewQueries(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at FROM compliance_snapshots")).
		WithArgs("worker-1").
		WillReturnError(sql.ErrNoRows)

	at, err := q.LatestSnapshotAt(context.Background(), "worker-1")
	require.NoError(t, err)
	assert.Nil(t, at)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueriesListSnapshotsByWorker(t *testing.T) {
	db, mock, cleanup := newStoreMock(t)
	defer cleanup()
	q := NewQueries(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT 50 OFFSET 0")).
		WithArgs("worker-1").
		WillReturnRows(sqlmock.NewRows(snapshotRowColumns).
			AddRow("snap-2", "worker-1", "co-1", "PASS", []byte(`{}`), "h2", "manual", now, "u-1").
			AddRow("snap-1", "worker-1", "co-1", "FAIL", []byte(`{}`), "h1", "manual", now.Add(-time.Hour), "u-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM compliance_snapshots")).
		WithArgs("worker-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	snapshots, total, err := q.ListSnapshotsByWorker(context.Background(), "worker-1", 0, -3)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "snap-2", snapshots[0].ID)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
