package pending

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps code requests as hashes and reset tokens as plain keys.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "pending"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) codeKey(email string) string  { return s.prefix + ":code:" + email }
func (s *RedisStore) resetKey(token string) string { return s.prefix + ":reset:" + token }

func (s *RedisStore) PutCode(ctx context.Context, req CodeRequest, keep time.Duration) error {
	key := s.codeKey(req.Email)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"email", req.Email,
			"name", req.Name,
			"tenant_name", req.TenantName,
			"tenant_phone", req.TenantPhone,
			"code_hash", req.CodeHash,
			"expires_at", strconv.FormatInt(req.ExpiresAt.UnixMilli(), 10),
		)
		p.PExpire(ctx, key, keep)
		return nil
	})
	return err
}

func (s *RedisStore) GetCode(ctx context.Context, email string) (*CodeRequest, error) {
	m, err := s.rdb.HGetAll(ctx, s.codeKey(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 || m["code_hash"] == "" {
		return nil, ErrNotFound
	}
	ms, _ := strconv.ParseInt(m["expires_at"], 10, 64)
	return &CodeRequest{
		Email:       m["email"],
		Name:        m["name"],
		TenantName:  m["tenant_name"],
		TenantPhone: m["tenant_phone"],
		CodeHash:    m["code_hash"],
		ExpiresAt:   time.UnixMilli(ms).UTC(),
		Used:        m["used"] == "1",
	}, nil
}

// The code scripts touch a hash only while it exists, so a key that expired
// between calls is never recreated without a TTL.
var (
	claimCodeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
return redis.call('HSETNX', KEYS[1], 'claimed', '1')
`)
	setCodeFieldScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)
)

func (s *RedisStore) ClaimCode(ctx context.Context, email string) (bool, error) {
	n, err := claimCodeScript.Run(ctx, s.rdb, []string{s.codeKey(email)}).Int64()
	if err != nil {
		return false, err
	}
	if n < 0 {
		return false, ErrNotFound
	}
	return n == 1, nil
}

func (s *RedisStore) ReleaseCode(ctx context.Context, email string) error {
	// HDEL never creates a key.
	return s.rdb.HDel(ctx, s.codeKey(email), "claimed").Err()
}

func (s *RedisStore) MarkCodeUsed(ctx context.Context, email string) error {
	return setCodeFieldScript.Run(ctx, s.rdb, []string{s.codeKey(email)}, "used", "1").Err()
}

func (s *RedisStore) DeleteCode(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, s.codeKey(email)).Err()
}

func (s *RedisStore) PutReset(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.resetKey(token), userID, ttl).Err()
}

func (s *RedisStore) TakeReset(ctx context.Context, token string) (string, error) {
	id, err := s.rdb.GetDel(ctx, s.resetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return id, err
}
