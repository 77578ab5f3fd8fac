package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mise/internal/domain/notification"
	"mise/internal/shared/middleware"
)

type Digester interface {
	Digest(ctx context.Context, userID string) (notification.DigestOutcome, error)
}

type DigestHandler struct {
	digester Digester
	logger   *zap.Logger
}

func NewDigestHandler(digester Digester, logger *zap.Logger) *DigestHandler {
	return &DigestHandler{digester: digester, logger: logger.Named("digest")}
}

type DigestRequest struct {
	UserID string `json:"userId"`
}

// DigestData is the body of a digest response. A push that went out is
// reported as {"sent":true,"delivered":n,"failed":m}: the delivered token
// count is named "delivered" because "sent" already holds the boolean.
// A skipped digest is {"sent":false,"reason":"no_unread"}.
type DigestData struct {
	Sent      bool   `json:"sent"`
	Reason    string `json:"reason,omitempty"`
	Delivered *int   `json:"delivered,omitempty"`
	Failed    *int   `json:"failed,omitempty"`
}

type DigestResponse struct {
	Data DigestData `json:"data"`
}

// HandleDigest handles POST /api/digest. The body is optional; userId
// defaults to the authenticated caller and may not name anyone else.
// Responses are DigestResponse on 200, or {"error":...} with 404 when the
// user has no push token.
func (h *DigestHandler) HandleDigest(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var req DigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = identity.UserID
	}
	if userID != identity.UserID {
		writeError(w, http.StatusForbidden, "Cannot request a digest for another user")
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("mise.digest.user_id", userID))

	outcome, err := h.digester.Digest(r.Context(), userID)
	if err != nil {
		if errors.Is(err, notification.ErrNoPushToken) {
			writeError(w, http.StatusNotFound, "No push token for user")
			return
		}
		h.logger.Error("digest failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to send digest")
		return
	}

	writeJSON(w, http.StatusOK, DigestResponse{Data: toDigestData(outcome)})
}

func toDigestData(o notification.DigestOutcome) DigestData {
	if !o.Sent {
		return DigestData{Sent: false, Reason: string(o.Reason)}
	}
	delivered, failed := o.Result.Sent, o.Result.Failed
	return DigestData{Sent: true, Delivered: &delivered, Failed: &failed}
}
