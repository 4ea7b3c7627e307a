package user

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "postgres")), mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "store_id", "created_at"})
}

func TestRepositoryCreate(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("Test Cashier", "cashier@example.com", "hashed", "cashier", "store123").
		WillReturnRows(userRows().AddRow(1, "Test Cashier", "cashier@example.com", "hashed", "cashier", "store123", time.Now()))

	user, err := repo.Create(context.Background(), "Test Cashier", "cashier@example.com", "hashed", "cashier", "store123")
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.Equal(t, "store123", user.StoreID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindByEmail(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE email = $1`)).
		WithArgs("cashier@example.com").
		WillReturnRows(userRows().AddRow(1, "Test Cashier", "cashier@example.com", "hashed", "cashier", "store123", time.Now()))

	user, err := repo.FindByEmail(context.Background(), "cashier@example.com")
	require.NoError(t, err)
	assert.Equal(t, "cashier", user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindByEmailNotFound(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE email = $1`)).
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindStoreAdmin(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE store_id = $1 AND role = 'admin'`)).
		WithArgs("store123").
		WillReturnRows(userRows().AddRow(2, "Store Owner", "owner@example.com", "hashed", "admin", "store123", time.Now()))

	admin, err := repo.FindStoreAdmin(context.Background(), "store123")
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Role)
	assert.Equal(t, "owner@example.com", admin.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindStoreAdminNotFound(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE store_id = $1 AND role = 'admin'`)).
		WithArgs("store456").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindStoreAdmin(context.Background(), "store456")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryEmailExists(t *testing.T) {
	repo, mock := newRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("cashier@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "cashier@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
