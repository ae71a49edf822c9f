package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/mutual-backend/internal/models"
)

const insertSignalQuery = `(?s)^INSERT\s+INTO\s+signals\s*\(relationship_key,\s*sender_token,\s*sender_user_id,\s*contact_label,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*ON\s+CONFLICT\s+\(relationship_key,\s*sender_token\)\s+DO\s+NOTHING\s+RETURNING\s+id\s*$`

func testSignal() *models.Signal {
	return &models.Signal{
		RelationshipKey: "key",
		SenderToken:     "tok",
		SenderUserID:    uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		ContactLabel:    "Sam",
		CreatedAt:       fixedNow,
	}
}

func TestSignals_InsertAccepted(t *testing.T) {
	mock, db := newMock(t)
	s := testSignal()
	id := uuid.New()

	mock.ExpectQuery(insertSignalQuery).
		WithArgs("key", "tok", s.SenderUserID, "Sam", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

	inserted, err := NewPostgresSignalRepository(db).Insert(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, id, s.ID)
}

func TestSignals_InsertConflict(t *testing.T) {
	mock, db := newMock(t)

	mock.ExpectQuery(insertSignalQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	inserted, err := NewPostgresSignalRepository(db).Insert(context.Background(), testSignal())
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestSignals_InsertError(t *testing.T) {
	mock, db := newMock(t)

	mock.ExpectQuery(insertSignalQuery).WillReturnError(errors.New("conn refused"))

	_, err := NewPostgresSignalRepository(db).Insert(context.Background(), testSignal())
	require.Error(t, err)
	assert.NotErrorIs(t, err, sql.ErrNoRows)
}

func TestSignals_ForKey(t *testing.T) {
	mock, db := newMock(t)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*relationship_key,\s*sender_token,\s*sender_user_id,\s*contact_label,\s*created_at\s+FROM\s+signals\s+WHERE\s+relationship_key\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s*$`).
		WithArgs("key").
		WillReturnRows(sqlmock.NewRows([]string{"id", "relationship_key", "sender_token", "sender_user_id", "contact_label", "created_at"}).
			AddRow(uuid.NewString(), "key", "tok-a", a.String(), "B", fixedNow).
			AddRow(uuid.NewString(), "key", "tok-b", b.String(), "", fixedNow))

	got, err := NewPostgresSignalRepository(db).ForKey(context.Background(), "key")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].SenderUserID)
	assert.Equal(t, "tok-b", got[1].SenderToken)
}

func TestSignals_ForKeyRowError(t *testing.T) {
	mock, db := newMock(t)

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "relationship_key", "sender_token", "sender_user_id", "contact_label", "created_at"}).
			AddRow(uuid.NewString(), "key", "tok-a", uuid.NewString(), "", fixedNow).
			RowError(0, errors.New("broken row")))

	_, err := NewPostgresSignalRepository(db).ForKey(context.Background(), "key")
	assert.Error(t, err)
}

func TestSignals_DeleteOlderThan(t *testing.T) {
	mock, db := newMock(t)

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+signals\s+WHERE\s+created_at\s*<\s*\$1\s*$`).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := NewPostgresSignalRepository(db).DeleteOlderThan(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
