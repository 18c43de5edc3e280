package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/coursehub/liveclass/internal/domain"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cleanup := func() {
		_ = db.Close()
	}
	return gormDB, mock, cleanup
}

var callColumns = []string{
	"id", "caller_id", "receiver_id", "room_id", "media", "status",
	"started_at", "answered_at", "ended_at", "duration_sec",
	"created_at", "updated_at",
}

func callRow(id string, status domain.CallStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(callColumns).
		AddRow(id, "alice", "bob", "", "video", string(status),
			now, nil, nil, 0, now, now)
}

func TestCallStoreGetMapsNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// Record-not-found must not trigger the read retry: one query only.
	mock.ExpectQuery("SELECT \\* FROM `call_records` WHERE id = \\?").
		WithArgs("ghost", 1).
		WillReturnRows(sqlmock.NewRows(callColumns))

	_, err := NewCallStore(db).Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallStoreGetRetriesTransientError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT \\* FROM `call_records` WHERE id = \\?").
		WithArgs("c1", 1).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery("SELECT \\* FROM `call_records` WHERE id = \\?").
		WithArgs("c1", 1).
		WillReturnRows(callRow("c1", domain.CallInitiated))

	rec, err := NewCallStore(db).Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CallID("c1"), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallStoreTransitionApplies(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `call_records` WHERE id = \\?.*FOR UPDATE").
		WithArgs("c1", 1).
		WillReturnRows(callRow("c1", domain.CallInitiated))
	mock.ExpectExec("UPDATE `call_records` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	rec, applied, err := NewCallStore(db).Transition(context.Background(), "c1", domain.CallActive,
		func(r *domain.CallRecord) { r.AnsweredAt = &now })
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.CallActive, rec.Status)
	assert.NotNil(t, rec.AnsweredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallStoreTransitionRefusesTerminal(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// The guard fails inside the transaction: no UPDATE is issued.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `call_records` WHERE id = \\?.*FOR UPDATE").
		WithArgs("c1", 1).
		WillReturnRows(callRow("c1", domain.CallCompleted))
	mock.ExpectCommit()

	rec, applied, err := NewCallStore(db).Transition(context.Background(), "c1", domain.CallDeclined, nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.CallCompleted, rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallStoreTransitionUnknownCall(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `call_records` WHERE id = \\?.*FOR UPDATE").
		WithArgs("ghost", 1).
		WillReturnRows(sqlmock.NewRows(callColumns))
	mock.ExpectRollback()

	_, _, err := NewCallStore(db).Transition(context.Background(), "ghost", domain.CallActive, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallStoreOpenCallsFor(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	rows := callRow("c1", domain.CallInitiated)
	mock.ExpectQuery("SELECT \\* FROM `call_records` WHERE \\(caller_id = \\? OR receiver_id = \\?\\) AND status IN \\(\\?,\\?\\)").
		WithArgs("alice", "alice", "initiated", "active").
		WillReturnRows(rows)

	recs, err := NewCallStore(db).OpenCallsFor(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.CallInitiated, recs[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
