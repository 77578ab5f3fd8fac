package notification

import (
	"context"
	"time"
)

// RecipientStore defines the read-only queries the pipeline runs against
// the backing store. Defined in the domain layer, implemented in the
// infrastructure layer. Zero matching rows is an empty result, not an error.
type RecipientStore interface {
	// GetProfile returns ErrProfileNotFound when the user has no profile.
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	// ListParticipants returns the members of a conversation except excludeUserID.
	ListParticipants(ctx context.Context, conversationID, excludeUserID string) ([]Participant, error)
	// GetProfilesWithTokens returns only profiles that carry a push token.
	GetProfilesWithTokens(ctx context.Context, userIDs []string) ([]*Profile, error)
	// CountUnread counts unread notifications created at or after since.
	CountUnread(ctx context.Context, userID string, since time.Time) (int, error)
	// CountNewPostsFromFollowed counts posts by followed accounts created at or after since.
	CountNewPostsFromFollowed(ctx context.Context, userID string, since time.Time) (int, error)
	// ListDigestCandidates returns users with a token and unread notifications since.
	ListDigestCandidates(ctx context.Context, since time.Time) ([]string, error)
}
