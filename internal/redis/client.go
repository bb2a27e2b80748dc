package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/mossy-p/livecast/config"
	"github.com/redis/go-redis/v9"
)

const (
	peersKey  = "livecast:peers"
	peersTTL  = 24 * time.Hour
	opTimeout = 2 * time.Second
)

// Presence mirrors the IDs of connected peers into a Redis set. A nil
// *Presence is valid and does nothing.
type Presence struct {
	client *redis.Client
	key    string
}

// Connect initializes the Redis client and checks the connection
func Connect(ctx context.Context, cfg config.RedisConfig) (*Presence, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	p := &Presence{client: client, key: peersKey}
	// Peers from a previous process are gone.
	if err := client.Del(pingCtx, p.key).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reset presence set: %w", err)
	}
	return p, nil
}

// Close closes the Redis connection
func (p *Presence) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Join records a connected peer
func (p *Presence) Join(ctx context.Context, peerID string) error {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	pipe := p.client.TxPipeline()
	pipe.SAdd(ctx, p.key, peerID)
	pipe.Expire(ctx, p.key, peersTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record peer %s: %w", peerID, err)
	}
	return nil
}

// Leave removes a disconnected peer
func (p *Presence) Leave(ctx context.Context, peerID string) error {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := p.client.SRem(ctx, p.key, peerID).Err(); err != nil {
		return fmt.Errorf("failed to remove peer %s: %w", peerID, err)
	}
	return nil
}

// Count returns the number of peers in the set
func (p *Presence) Count(ctx context.Context) (int64, error) {
	if p == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := p.client.SCard(ctx, p.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count peers: %w", err)
	}
	return n, nil
}
