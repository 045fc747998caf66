package services

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/models"
)

// NotificationService reads the stored notification feed. Writing goes
// through the Notifier.
type NotificationService struct {
	db *sql.DB
}

func NewNotificationService(db *sql.DB) *NotificationService {
	return &NotificationService{db: db}
}

// ListNotifications lists a user's notifications, newest first
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Param id path string true "Account ID"
// @Param unread query bool false "Only unread"
// @Success 200 {array} models.Notification
// @Failure 403 {object} ErrorResponse
// @Router /notifications/{id} [get]
func (s *NotificationService) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if actor.ID != userID && actor.Role != models.RoleParent {
		SendServiceError(w, fmt.Errorf("%w: cannot read another user's notifications", ErrForbidden))
		return
	}

	query := `
		SELECT id, family_id, user_id, type, message, COALESCE(reference_id, ''), is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND family_id = $2`
	if r.URL.Query().Get("unread") == "true" {
		query += ` AND is_read = false`
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	rows, err := s.db.Query(query, userID, actor.FamilyID)
	if err != nil {
		SendErrorResponse(w, "Failed to list notifications", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.FamilyID, &n.UserID, &n.Type, &n.Message,
			&n.ReferenceID, &n.IsRead, &n.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to list notifications", http.StatusInternalServerError, nil)
			return
		}
		notifications = append(notifications, n)
	}

	SendJSON(w, http.StatusOK, notifications)
}

// MarkRead marks one notification as read
// @Summary Mark notification read
// @Tags notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /notifications/{id}/read [put]
func (s *NotificationService) MarkRead(w http.ResponseWriter, r *http.Request) {
	notificationID := chi.URLParam(r, "id")
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	result, err := s.db.Exec(`
		UPDATE notifications SET is_read = true
		WHERE id = $1 AND user_id = $2`, notificationID, actor.ID)
	if err != nil {
		SendErrorResponse(w, "Failed to update notification", http.StatusInternalServerError, nil)
		return
	}
	affected, err := result.RowsAffected()
	if err != nil {
		SendErrorResponse(w, "Failed to update notification", http.StatusInternalServerError, nil)
		return
	}
	if affected == 0 {
		SendServiceError(w, fmt.Errorf("%w: notification %s", ErrNotFound, notificationID))
		return
	}

	SendJSON(w, http.StatusOK, map[string]string{"status": "read", "id": notificationID})
}

// MarkAllRead marks every notification for the caller as read
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]int64
// @Router /notifications/read-all [put]
func (s *NotificationService) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	result, err := s.db.Exec(`
		UPDATE notifications SET is_read = true
		WHERE user_id = $1 AND is_read = false`, actor.ID)
	if err != nil {
		SendErrorResponse(w, "Failed to update notifications", http.StatusInternalServerError, nil)
		return
	}
	affected, _ := result.RowsAffected()

	SendJSON(w, http.StatusOK, map[string]int64{"updated": affected})
}
