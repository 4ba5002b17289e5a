package presence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/npezzotti/staffchat/internal/types"
	"github.com/redis/go-redis/v9"
)

const onlineKey = "presence:online"

// unregisterScript deletes the user's field only when the stored entry was
// written by the given connection.
var unregisterScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if not v then
	return 0
end
local entry = cjson.decode(v)
if entry.connectionId ~= ARGV[2] then
	return 0
end
return redis.call('HDEL', KEYS[1], ARGV[1])
`)

// RedisRegistry keeps presence in a Redis hash so several gateway processes
// share one view of who is online.
type RedisRegistry struct {
	client *redis.Client
	key    string
}

func NewRedisRegistry(ctx context.Context, redisURL string) (*RedisRegistry, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisRegistry{client: client, key: onlineKey}, nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

func (r *RedisRegistry) Register(ctx context.Context, entry types.OnlineUser) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return r.client.HSet(ctx, r.key, entry.UserId, data).Err()
}

func (r *RedisRegistry) Unregister(ctx context.Context, userId, connectionId string) (bool, error) {
	n, err := unregisterScript.Run(ctx, r.client, []string{r.key}, userId, connectionId).Int()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (r *RedisRegistry) Snapshot(ctx context.Context) ([]types.OnlineUser, error) {
	values, err := r.client.HVals(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}

	return decodeEntries(values)
}

func decodeEntries(values []string) ([]types.OnlineUser, error) {
	entries := make([]types.OnlineUser, 0, len(values))
	for _, v := range values {
		var e types.OnlineUser
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode presence entry: %w", err)
		}
		entries = append(entries, e)
	}
	sortEntries(entries)

	return entries, nil
}
