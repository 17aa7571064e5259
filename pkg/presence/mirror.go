package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/kayesmahmud/Speaky/pkg/model"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	OnlineKey   = "presence:online"
	LastSeenKey = "presence:last_seen"

	NodesKeyPrefix = "presence:nodes:"
)

type NopMirror struct{}

func (NopMirror) SetOnline(context.Context, int64, bool, time.Time) error { return nil }

// UserUpdater is the slice of the store StoreMirror writes through.
type UserUpdater interface {
	UpdateUser(ctx context.Context, id int64, patch model.UserPatch) error
}

// StoreMirror keeps the durable is_online and last_active user fields in step.
type StoreMirror struct {
	Users UserUpdater
}

func (m StoreMirror) SetOnline(ctx context.Context, userID int64, online bool, at time.Time) error {
	return m.Users.UpdateUser(ctx, userID, model.UserPatch{IsOnline: &online, LastActive: &at})
}

// RedisMirror publishes presence to Redis so other gateways and the API can
// read it. Each gateway records itself under presence:nodes:<user>; the user
// leaves the online set only when no gateway holds a socket for them.
type RedisMirror struct {
	rdb  *redis.Client
	node string
}

// NewRedisMirror returns a mirror writing as node. Gateways sharing a Redis
// need distinct node names; a read-only mirror may pass "".
func NewRedisMirror(rdb *redis.Client, node string) *RedisMirror {
	return &RedisMirror{rdb: rdb, node: node}
}

func nodesKey(member string) string { return NodesKeyPrefix + member }

// goOffline drops this node and clears the online flag once no node is left.
var goOffline = redis.NewScript(`
redis.call('SREM', KEYS[1], ARGV[1])
local left = redis.call('SCARD', KEYS[1])
if left == 0 then
	redis.call('SREM', KEYS[2], ARGV[2])
end
redis.call('HSET', KEYS[3], ARGV[2], ARGV[3])
return left
`)

func (m *RedisMirror) SetOnline(ctx context.Context, userID int64, online bool, at time.Time) error {
	member := strconv.FormatInt(userID, 10)
	seen := at.UTC().Format(time.RFC3339Nano)
	if !online {
		err := goOffline.Run(ctx, m.rdb, []string{nodesKey(member), OnlineKey, LastSeenKey}, m.node, member, seen).Err()
		return errors.Wrap(err, "presence: redis mirror")
	}
	pipe := m.rdb.TxPipeline()
	pipe.SAdd(ctx, nodesKey(member), m.node)
	pipe.SAdd(ctx, OnlineKey, member)
	pipe.HSet(ctx, LastSeenKey, member, seen)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "presence: redis mirror")
	}
	return nil
}

// IsOnline reads the shared online set.
func (m *RedisMirror) IsOnline(ctx context.Context, userID int64) (bool, error) {
	ok, err := m.rdb.SIsMember(ctx, OnlineKey, strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		return false, errors.Wrap(err, "presence: redis lookup")
	}
	return ok, nil
}

// LastSeen returns the last transition time recorded for userID; the zero
// time if none was.
func (m *RedisMirror) LastSeen(ctx context.Context, userID int64) (time.Time, error) {
	v, err := m.rdb.HGet(ctx, LastSeenKey, strconv.FormatInt(userID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "presence: redis last seen")
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "presence: bad last seen value")
	}
	return t, nil
}

// Mirrors fans a transition out to each mirror and returns the first error.
type Mirrors []Mirror

func (ms Mirrors) SetOnline(ctx context.Context, userID int64, online bool, at time.Time) error {
	var first error
	for _, m := range ms {
		if err := m.SetOnline(ctx, userID, online, at); err != nil && first == nil {
			first = err
		}
	}
	return first
}
