package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// Redis lists consumed by the bot and analytics processes.
const (
	VPNBotList = "monkey-island-vpn-bot"
	VPSBotList = "monkey-island-vps-bot"
	YMStatList = "monkey-island-ym-stat"
)

// Publisher delivers fire-and-forget messages to the three outbound channels.
// No ordering is guaranteed between VPN-bot and VPS-bot delivery of the same
// logical message.
type Publisher interface {
	PushToVPNBot(ctx context.Context, message any) error
	PushToVPSBot(ctx context.Context, message any) error
	PushToYMStat(ctx context.Context, message any) error
}

// RedisPublisher pushes JSON messages onto Redis lists.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps an existing Redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// PushToVPNBot delivers a message to the VPN bot list. Delivery errors are
// logged and swallowed: user notifications never fail a payment transaction.
func (p *RedisPublisher) PushToVPNBot(ctx context.Context, message any) error {
	if err := p.push(ctx, VPNBotList, message); err != nil {
		log.Errorf("[publisher] failed to push message to VPN bot: %v", err)
	}
	return nil
}

// PushToVPSBot delivers a message to the VPS bot list, same error policy as
// the VPN bot.
func (p *RedisPublisher) PushToVPSBot(ctx context.Context, message any) error {
	if err := p.push(ctx, VPSBotList, message); err != nil {
		log.Errorf("[publisher] failed to push message to VPS bot: %v", err)
	}
	return nil
}

// PushToYMStat delivers an analytics message to the stat list.
func (p *RedisPublisher) PushToYMStat(ctx context.Context, message any) error {
	return p.push(ctx, YMStatList, message)
}

func (p *RedisPublisher) push(ctx context.Context, list string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", list, err)
	}
	if err := p.client.RPush(ctx, list, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to push message to %s: %w", list, err)
	}
	log.Infof("[publisher] pushed message to %s", list)
	return nil
}
