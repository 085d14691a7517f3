package agent

import (
	"context"
	"errors"
	"fmt"

	ikeys "github.com/UniQw/uniqw-agent/internal/keys"
	"github.com/redis/go-redis/v9"
)

// Atomic add: reserve the id in the tasks hash, then append it to the pending list.
var addScript = redis.NewScript(
	// language=Lua
	`
	if redis.call('HSETNX', KEYS[2], ARGV[1], ARGV[2]) == 0 then return 0 end
	redis.call('RPUSH', KEYS[1], ARGV[1])
	return 1
	`,
)

// Peek the oldest pending id and its record. Ids left without a record are
// dropped so the list and hash converge.
var peekScript = redis.NewScript(
	// language=Lua
	`
	while true do
		local id = redis.call('LINDEX', KEYS[1], 0)
		if not id then return false end
		local v = redis.call('HGET', KEYS[2], id)
		if v then return {id, v} end
		redis.call('LPOP', KEYS[1])
	end
	`,
)

// Move a record that failed to decode out of the pending list into the
// invalid hash, keeping the raw bytes for inspection.
var quarantineScript = redis.NewScript(
	// language=Lua
	`
	redis.call('LREM', KEYS[1], 0, ARGV[1])
	local v = redis.call('HGET', KEYS[2], ARGV[1])
	if v then
		redis.call('HSET', KEYS[3], ARGV[1], v)
		redis.call('HDEL', KEYS[2], ARGV[1])
	end
	return 1
	`,
)

// Atomic delete from both the pending list and the tasks hash.
var deleteScript = redis.NewScript(
	// language=Lua
	`
	redis.call('LREM', KEYS[1], 0, ARGV[1])
	redis.call('HDEL', KEYS[3], ARGV[1])
	return redis.call('HDEL', KEYS[2], ARGV[1])
	`,
)

// RedisStore keeps pending tasks in Redis. PeekOne returns tasks in
// insertion order.
type RedisStore struct {
	rdb     redis.UniversalClient
	keys    ikeys.Namespace
	encoder Encoder
	log     Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a task store on top of rdb.
func NewRedisStore(rdb redis.UniversalClient, opts ...StoreOption) *RedisStore {
	cfg := newStoreOptions(opts)
	return &RedisStore{rdb: rdb, keys: ikeys.For(cfg.namespace), encoder: cfg.encoder, log: cfg.log}
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// Add stores a new pending task.
// It returns ErrDuplicateTask if the task ID already exists; the stored task is left untouched.
func (s *RedisStore) Add(ctx context.Context, t Task) error {
	if t.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTask)
	}
	raw, err := encodeTask(s.encoder, t)
	if err != nil {
		return err
	}
	n, err := addScript.Run(ctx, s.rdb, []string{s.keys.Pending, s.keys.Tasks}, t.ID, raw).Int()
	if err != nil {
		return storeErr("add", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, t.ID)
	}
	return nil
}

// PeekOne returns the oldest pending task, or nil if there is none.
// Records that cannot be decoded are moved to the invalid hash and skipped.
func (s *RedisStore) PeekOne(ctx context.Context) (*Task, error) {
	for {
		res, err := peekScript.Run(ctx, s.rdb, []string{s.keys.Pending, s.keys.Tasks}).StringSlice()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, storeErr("peek", err)
		}
		if len(res) != 2 {
			return nil, storeErr("peek", fmt.Errorf("unexpected reply of %d elements", len(res)))
		}
		id, raw := res[0], res[1]
		t, err := decodeTask(s.encoder, []byte(raw))
		if err == nil {
			return t, nil
		}
		s.log.Warnf("task %s: moving undecodable record to %s: %v", id, s.keys.Invalid, err)
		if err := s.quarantine(ctx, id); err != nil {
			return nil, err
		}
	}
}

// Invalid returns the raw records PeekOne moved aside, keyed by id.
func (s *RedisStore) Invalid(ctx context.Context) (map[string]string, error) {
	m, err := s.rdb.HGetAll(ctx, s.keys.Invalid).Result()
	if err != nil {
		return nil, storeErr("invalid", err)
	}
	return m, nil
}

func (s *RedisStore) quarantine(ctx context.Context, id string) error {
	keys := []string{s.keys.Pending, s.keys.Tasks, s.keys.Invalid}
	if err := quarantineScript.Run(ctx, s.rdb, keys, id).Err(); err != nil {
		return storeErr("quarantine", err)
	}
	return nil
}

// Get returns the task with the given id.
func (s *RedisStore) Get(ctx context.Context, id string) (*Task, error) {
	raw, err := s.rdb.HGet(ctx, s.keys.Tasks, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, storeErr("get", err)
	}
	return decodeTask(s.encoder, raw)
}

// List returns all pending tasks in insertion order.
func (s *RedisStore) List(ctx context.Context) ([]*Task, error) {
	ids, err := s.rdb.LRange(ctx, s.keys.Pending, 0, -1).Result()
	if err != nil {
		return nil, storeErr("list", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	vals, err := s.rdb.HMGet(ctx, s.keys.Tasks, ids...).Result()
	if err != nil {
		return nil, storeErr("list", err)
	}
	out := make([]*Task, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		t, err := decodeTask(s.encoder, []byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Delete removes a task by id. Unknown ids are ignored.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := deleteScript.Run(ctx, s.rdb, []string{s.keys.Pending, s.keys.Tasks, s.keys.Invalid}, id).Err(); err != nil {
		return storeErr("delete", err)
	}
	return nil
}
