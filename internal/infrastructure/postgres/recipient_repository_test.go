package postgres

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/domain/notification"
)

// fakeRow feeds fixed values into Scan destinations
type fakeRow struct {
	values []any
	err    error
}

func (f fakeRow) Scan(dest ...any) error {
	if f.err != nil {
		return f.err
	}
	if len(dest) != len(f.values) {
		return errors.New("column count mismatch")
	}
	for i, v := range f.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *sql.NullString:
			*d = v.(sql.NullString)
		case *sql.NullBool:
			*d = v.(sql.NullBool)
		default:
			return errors.New("unsupported destination")
		}
	}
	return nil
}

func TestProfileProjection(t *testing.T) {
	got := profileProjection([]string{"notify_recipe_like", "notify_direct_message"})
	assert.Equal(t, "id, push_token, display_name, notify_recipe_like, notify_direct_message", got)
}

func TestNewRecipientRepository_ProjectsEveryPreference(t *testing.T) {
	repo := NewRecipientRepository(nil)

	for _, col := range notification.PreferenceColumns() {
		assert.True(t, strings.Contains(repo.profileCols, col), "missing column %s", col)
	}
}

func TestScanProfile(t *testing.T) {
	repo := &RecipientRepository{prefColumns: []string{"notify_recipe_like", "notify_direct_message"}}

	t.Run("only present flags are recorded", func(t *testing.T) {
		row := fakeRow{values: []any{
			"u1",
			sql.NullString{String: "ExponentPushToken[x]", Valid: true},
			sql.NullString{String: "Ana", Valid: true},
			sql.NullBool{Bool: false, Valid: true},
			sql.NullBool{},
		}}

		p, err := repo.scanProfile(row)
		require.NoError(t, err)

		assert.Equal(t, "u1", p.UserID)
		assert.Equal(t, "ExponentPushToken[x]", p.PushToken)
		assert.Equal(t, "Ana", p.DisplayName)
		assert.Equal(t, map[string]bool{"notify_recipe_like": false}, p.Preferences)
		assert.False(t, p.Allows("notify_recipe_like"))
		assert.True(t, p.Allows("notify_direct_message"))
	})

	t.Run("null token", func(t *testing.T) {
		row := fakeRow{values: []any{"u2", sql.NullString{}, sql.NullString{}, sql.NullBool{}, sql.NullBool{}}}

		p, err := repo.scanProfile(row)
		require.NoError(t, err)
		assert.False(t, p.HasPushToken())
		assert.Nil(t, p.Preferences)
	})

	t.Run("scan error", func(t *testing.T) {
		_, err := repo.scanProfile(fakeRow{err: sql.ErrNoRows})
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}
