package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/homegrubhub/homegrubhub-be/internal/auth"
	"github.com/homegrubhub/homegrubhub-be/internal/database"
	"github.com/homegrubhub/homegrubhub-be/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

// createUser inserts a user on the given plan with a fake identity.
func createUser(t *testing.T, db *sql.DB, tier string) models.User {
	t.Helper()
	users := NewUserService(db, NewEventService(db))
	user, err := users.CreateUser(context.Background(), gofakeit.Username()+gofakeit.DigitN(4), gofakeit.Email(), "correct-horse-battery")
	require.NoError(t, err)
	if tier != "" && tier != user.Tier {
		user, err = users.SetTier(context.Background(), user.ID, tier)
		require.NoError(t, err)
	}
	return user
}

func viewerFor(u models.User) auth.Viewer {
	return auth.Viewer{UserID: u.ID, Tier: u.Tier, IsAdmin: u.IsAdmin}
}

func adminViewer() auth.Viewer {
	return auth.Viewer{UserID: "admin", Tier: "pro", IsAdmin: true}
}

func fixedClock(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}
