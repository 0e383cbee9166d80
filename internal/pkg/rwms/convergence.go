package rwms

import (
	"context"
	"time"
)

// CreateFor registers a subscription whose expiry starts counting from now.
func CreateFor(ctx context.Context, api API, squadUUID, username string, telegramID *int64, email string, interval time.Duration) (*User, error) {
	return api.CreateUser(ctx, CreateUserRequest{
		Username:             username,
		TelegramID:           telegramID,
		Email:                email,
		ExpireAt:             time.Now().UTC().Add(interval),
		Status:               StatusActive,
		TrafficLimitStrategy: TrafficLimitNoReset,
		ActivateAllInbounds:  true,
		ActiveInternalSquads: []string{squadUUID},
	})
}

// ExtendExpiry converges a subscription's expiry by interval using the
// max(current, now) + interval rule: an expired subscription restarts from
// now rather than from the stale expiry. activated reports whether the call
// revived a previously expired (or expiry-less) subscription.
func ExtendExpiry(ctx context.Context, api API, squadUUID string, user *User, interval time.Duration) (updated *User, activated bool, err error) {
	now := time.Now().UTC()

	var newExpireAt time.Time
	if user.ExpireAt == nil || user.ExpireAt.Before(now) {
		newExpireAt = now.Add(interval)
		activated = true
	} else {
		newExpireAt = user.ExpireAt.Add(interval)
	}

	updated, err = api.UpdateUser(ctx, UpdateUserRequest{
		UUID:                 user.UUID,
		ExpireAt:             newExpireAt,
		Status:               StatusActive,
		TrafficLimitStrategy: TrafficLimitNoReset,
		ActiveInternalSquads: []string{squadUUID},
	})
	return updated, activated, err
}
