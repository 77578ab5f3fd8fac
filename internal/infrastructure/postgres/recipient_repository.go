package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"mise/internal/domain/notification"
)

// RecipientRepository implements notification.RecipientStore against the
// application schema. It only ever reads.
type RecipientRepository struct {
	db          *DB
	prefColumns []string
	profileCols string
}

func NewRecipientRepository(db *DB) *RecipientRepository {
	cols := notification.PreferenceColumns()
	return &RecipientRepository{
		db:          db,
		prefColumns: cols,
		profileCols: profileProjection(cols),
	}
}

// profileProjection builds the SELECT list for a profile row. Column names
// come from the static event table, never from input.
func profileProjection(prefColumns []string) string {
	cols := append([]string{"id", "push_token", "display_name"}, prefColumns...)
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RecipientRepository) scanProfile(row rowScanner) (*notification.Profile, error) {
	var (
		p           notification.Profile
		pushToken   sql.NullString
		displayName sql.NullString
	)
	flags := make([]sql.NullBool, len(r.prefColumns))
	dest := []any{&p.UserID, &pushToken, &displayName}
	for i := range flags {
		dest = append(dest, &flags[i])
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	p.PushToken = pushToken.String
	p.DisplayName = displayName.String
	for i, col := range r.prefColumns {
		if flags[i].Valid {
			if p.Preferences == nil {
				p.Preferences = make(map[string]bool)
			}
			p.Preferences[col] = flags[i].Bool
		}
	}
	return &p, nil
}

func (r *RecipientRepository) GetProfile(ctx context.Context, userID string) (*notification.Profile, error) {
	query := `SELECT ` + r.profileCols + ` FROM profiles WHERE id = $1`

	p, err := r.scanProfile(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notification.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

func (r *RecipientRepository) ListParticipants(ctx context.Context, conversationID, excludeUserID string) ([]notification.Participant, error) {
	query := `
		SELECT user_id, COALESCE(is_muted, false)
		FROM conversation_participants
		WHERE conversation_id = $1 AND user_id <> $2
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []notification.Participant
	for rows.Next() {
		var p notification.Participant
		if err := rows.Scan(&p.UserID, &p.IsMuted); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return participants, nil
}

func (r *RecipientRepository) GetProfilesWithTokens(ctx context.Context, userIDs []string) ([]*notification.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + r.profileCols + `
		FROM profiles
		WHERE id::text = ANY($1) AND push_token IS NOT NULL AND push_token <> ''
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles with tokens: %w", err)
	}
	defer rows.Close()

	var profiles []*notification.Profile
	for rows.Next() {
		p, err := r.scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	return profiles, nil
}

func (r *RecipientRepository) CountUnread(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1 AND is_read = false AND created_at >= $2
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *RecipientRepository) CountNewPostsFromFollowed(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM posts p
		JOIN follows f ON f.following_id = p.user_id
		WHERE f.follower_id = $1 AND p.created_at >= $2
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count new posts: %w", err)
	}
	return count, nil
}

func (r *RecipientRepository) ListDigestCandidates(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT p.id
		FROM profiles p
		JOIN notifications n ON n.user_id = p.id
		WHERE p.push_token IS NOT NULL AND p.push_token <> ''
		  AND n.is_read = false AND n.created_at >= $1
		ORDER BY p.id
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list digest candidates: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan digest candidate: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate digest candidates: %w", err)
	}

	return userIDs, nil
}
