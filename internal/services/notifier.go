package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/moneypots/backend/internal/models"
)

// Notifier emits an event to one family member. Emission is strictly
// best-effort: a failed notification must never roll back the ledger or
// approval operation that triggered it, so implementations swallow errors.
type Notifier interface {
	Notify(familyID, userID, eventType, message, referenceID string)
}

// QueueNotifier stores notifications and pushes them onto a Redis list for
// downstream delivery. Redis may be nil; storage alone is then the delivery.
type QueueNotifier struct {
	db    *sql.DB
	redis *redis.Client
}

const notificationQueue = "notification_queue"

func NewQueueNotifier(db *sql.DB, redisClient *redis.Client) *QueueNotifier {
	return &QueueNotifier{db: db, redis: redisClient}
}

func (n *QueueNotifier) Notify(familyID, userID, eventType, message, referenceID string) {
	notif := models.Notification{
		ID:          uuid.NewString(),
		FamilyID:    familyID,
		UserID:      userID,
		Type:        eventType,
		Message:     message,
		ReferenceID: referenceID,
		CreatedAt:   time.Now(),
	}

	_, err := n.db.Exec(`
		INSERT INTO notifications (id, family_id, user_id, type, message, reference_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)`,
		notif.ID, notif.FamilyID, notif.UserID, notif.Type, notif.Message,
		nullableString(notif.ReferenceID), notif.CreatedAt)
	if err != nil {
		log.Printf("[NOTIFY] Failed to store notification for %s: %v", userID, err)
		return
	}

	if n.redis == nil {
		return
	}
	data, err := json.Marshal(notif)
	if err != nil {
		log.Printf("[NOTIFY] Failed to encode notification %s: %v", notif.ID, err)
		return
	}
	if err := n.redis.RPush(context.Background(), notificationQueue, string(data)).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to queue notification %s: %v", notif.ID, err)
	}
}
