package audit

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Save(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = mockDB.Close() }()

	store := NewStoreWithDB(mockDB)

	mock.ExpectExec(`INSERT INTO messages`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Save(AccessEvent{
		Principal: "alice",
		Path:      "/admin",
		Allowed:   false,
		Reason:    "not_admin_class",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveWithNilDB(t *testing.T) {
	store := &Store{}
	assert.NoError(t, store.Save(ResolveEvent{Principal: "alice", Role: "user"}))
}

func TestNewStore_DisabledWithoutURL(t *testing.T) {
	t.Setenv("AUDIT_DATABASE_URL", "")

	store, err := NewStore()
	assert.NoError(t, err)
	assert.Nil(t, store)
}
