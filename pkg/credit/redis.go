package credit

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/shouni/go-story-kit/pkg/domain"
)

// DefaultKeyPrefix は残高キーの接頭辞です。
const DefaultKeyPrefix = "story:credits:"

// キーが存在しなければ初期残高で作成し、残高が正の場合のみ減算します。
var decrementScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  redis.call('SET', KEYS[1], ARGV[1])
  v = ARGV[1]
end
if tonumber(v) <= 0 then
  return -1
end
return redis.call('DECR', KEYS[1])
`)

var grantScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('SET', KEYS[1], ARGV[1])
end
return redis.call('INCRBY', KEYS[1], ARGV[2])
`)

// RedisLedger は Redis に残高を保持する Ledger です。複数インスタンスで共有できます。
type RedisLedger struct {
	rdb     redis.UniversalClient
	prefix  string
	initial int64
}

// NewRedisLedger は RedisLedger を生成します。
func NewRedisLedger(rdb redis.UniversalClient, initial int64) *RedisLedger {
	return &RedisLedger{
		rdb:     rdb,
		prefix:  DefaultKeyPrefix,
		initial: initial,
	}
}

// NewRedisClient はアドレスとパスワードから Redis クライアントを生成し、疎通を確認します。
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis への接続に失敗しました (%s): %w", addr, err)
	}
	return rdb, nil
}

func (l *RedisLedger) key(principalID string) string {
	return l.prefix + principalID
}

func (l *RedisLedger) Remaining(ctx context.Context, principalID string) (int64, error) {
	v, err := l.rdb.Get(ctx, l.key(principalID)).Result()
	if errors.Is(err, redis.Nil) {
		return l.initial, nil
	}
	if err != nil {
		return 0, fmt.Errorf("残高の取得に失敗しました: %w", err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("残高の値が不正です (%q): %w", v, err)
	}
	return n, nil
}

func (l *RedisLedger) Decrement(ctx context.Context, principalID string) (int64, error) {
	n, err := decrementScript.Run(ctx, l.rdb, []string{l.key(principalID)}, l.initial).Int64()
	if err != nil {
		return 0, fmt.Errorf("残高の減算に失敗しました: %w", err)
	}
	if n < 0 {
		return 0, domain.ErrNoCredits
	}
	return n, nil
}

func (l *RedisLedger) Grant(ctx context.Context, principalID string, n int64) (int64, error) {
	v, err := grantScript.Run(ctx, l.rdb, []string{l.key(principalID)}, l.initial, n).Int64()
	if err != nil {
		return 0, fmt.Errorf("残高の加算に失敗しました: %w", err)
	}
	return v, nil
}
