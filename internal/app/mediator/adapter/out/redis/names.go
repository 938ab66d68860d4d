package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/JoeShih716/go-treasury-mediator/internal/app/mediator/usecase"
)

// DefaultNamesKey 名稱目錄的 hash key
const DefaultNamesKey = "mediator:names"

// NameDirectory 以 Redis hash 保存「小寫名稱 -> 玩家 UUID」，
// 供離線玩家的名稱查詢使用
type NameDirectory struct {
	client goredis.UniversalClient
	key    string
}

func NewNameDirectory(client goredis.UniversalClient, key string) *NameDirectory {
	if key == "" {
		key = DefaultNamesKey
	}
	return &NameDirectory{client: client, key: key}
}

// Remember 記錄玩家最後使用的名稱
func (d *NameDirectory) Remember(ctx context.Context, name string, id uuid.UUID) error {
	field := normalize(name)
	if field == "" {
		return fmt.Errorf("remember %s: empty name", id)
	}
	return d.client.HSet(ctx, d.key, field, id.String()).Err()
}

// Forget 移除名稱
func (d *NameDirectory) Forget(ctx context.Context, name string) error {
	return d.client.HDel(ctx, d.key, normalize(name)).Err()
}

// LookupName implements usecase.NameSource.
func (d *NameDirectory) LookupName(ctx context.Context, name string) (uuid.UUID, bool, error) {
	field := normalize(name)
	if field == "" {
		return uuid.Nil, false, nil
	}
	raw, err := d.client.HGet(ctx, d.key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("lookup name %q: %w", name, err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("lookup name %q: bad uuid %q: %w", name, raw, err)
	}
	return id, true, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var _ usecase.NameSource = (*NameDirectory)(nil)
