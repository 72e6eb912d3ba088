package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"askbox/internal/models"
	"askbox/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		wantProfiles []string
		wantCode     string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).
						AddRow(1, "testuser", "test@example.com"))
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT "profile_id" FROM "profile_managers" WHERE user_id = $1 ORDER BY created_at ASC`)).
					WithArgs(1).
					WillReturnRows(sqlmock.NewRows([]string{"profile_id"}).AddRow("p-1").AddRow("p-2"))
			},
			wantProfiles: []string{"p-1", "p-2"},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			wantCode: models.CodeNotFound,
		},
		{
			name:   "Database Error",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
					WithArgs(2, 1).
					WillReturnError(errors.New("connection reset"))
			},
			wantCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)
			if tt.wantCode != "" {
				assert.Nil(t, user)
				assert.Equal(t, tt.wantCode, models.ErrorCode(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.userID, user.ID)
				assert.Equal(t, tt.wantProfiles, user.ProfileIDs)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateDuplicateIsConflict(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	seedUser(t, db, "alice")

	err := repo.Create(ctx, &models.User{Username: "alice", Email: "other@example.com", Password: "x"})
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
}

func TestUserRepository_LookupsReturnNilWhenAbsent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	seedUser(t, db, "alice")

	u, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice@example.com", u.Email)

	u, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepository_DeleteReleasesProfiles(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	users := NewUserRepository(db)
	profiles := NewProfileRepository(db, nil)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	p := seedProfile(t, profiles, "alice", alice.ID)

	require.NoError(t, users.Delete(ctx, alice.ID))

	exists, err := profiles.Exists(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	managers, err := profiles.ManagerIDs(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, managers)

	err = users.Delete(ctx, alice.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestUserRepository_GetByIDsCarriesProfileIDs(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	users := NewUserRepository(db)
	profiles := NewProfileRepository(db, nil)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	p := seedProfile(t, profiles, "shared", alice.ID)
	require.NoError(t, profiles.AddManager(ctx, p.ID, bob.ID))

	got, err := users.GetByIDs(ctx, []uint{bob.ID, alice.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, alice.ID, got[0].ID)
	assert.Equal(t, []string{p.ID}, got[0].ProfileIDs)
	assert.Equal(t, []string{p.ID}, got[1].ProfileIDs)

	empty, err := users.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
