package analytics

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/monkey-island/yookassa-payments/app/models"
)

// SaveEventLog appends an audit entry for username within the caller's
// transaction. A username without a user row is logged and skipped rather
// than failing the surrounding payment transaction.
func SaveEventLog(tx *gorm.DB, username string, event Event) error {
	var user models.User
	if err := tx.Select("id").Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[analytics] not found user id for username %s", username)
			return nil
		}
		return err
	}

	payload, err := json.Marshal(map[string]string{"event_type": string(event)})
	if err != nil {
		return err
	}

	return tx.Create(&models.EventLog{
		UserID:       user.ID,
		EventType:    string(event),
		EventPayload: payload,
	}).Error
}
