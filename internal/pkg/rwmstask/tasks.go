package rwmstask

import (
	"encoding/json"
	"fmt"
)

// Command kinds carried by the subscription task queue. Dispatch is by
// explicit matching on the type discriminator.
const (
	TaskTypeAddTimeInterval      = "add-time-interval"
	TaskTypeSubtractTimeInterval = "subtract-time-interval"
)

// AddTimeIntervalTask instructs the consumer to extend (or create) a
// subscription in the external management system. Username identifies both
// the subscription there and the user row here; telegram id and email ride
// along for user creation.
type AddTimeIntervalTask struct {
	Type       string `json:"type"`
	Username   string `json:"username"`
	Tariff     string `json:"tariff"`
	TelegramID *int64 `json:"telegram_id,omitempty"`
	Email      string `json:"email,omitempty"`
}

// SubtractTimeIntervalTask is the symmetric reduce command. It exists in the
// schema but currently has no consumer logic.
type SubtractTimeIntervalTask struct {
	Type       string `json:"type"`
	Username   string `json:"username"`
	Tariff     string `json:"tariff"`
	TelegramID *int64 `json:"telegram_id,omitempty"`
	Email      string `json:"email,omitempty"`
}

type envelope struct {
	Type string `json:"type"`
}

// taskType extracts the command discriminator from a serialized task.
func taskType(payload []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", fmt.Errorf("failed to decode task envelope: %w", err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("task has no type discriminator")
	}
	return env.Type, nil
}
