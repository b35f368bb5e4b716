package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"tradeengine/internal/models"
)

// json is jsoniter's encoding/json-compatible codec: every position
// and alert-config row crosses the wire into a Redis hash field on
// this path, on every tick and every config save, so it is the
// highest-volume (de)serialization point in the store.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// acquireLockScript implements AcquireLock atomically: it MUST check
// the kill switch and set-if-absent in one round trip, or a process
// could observe "no kill, no lock" and then lose the race to another
// acquirer between the two checks.
var acquireLockScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return -2
end
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return 1
end
return 0
`)

// allowAndIncrementScript implements the per-alert daily counter:
// read-then-increment must be atomic so concurrent entries for the
// same alert cannot both observe capacity and overshoot the limit.
var allowAndIncrementScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
if limit <= 0 then
	return 1
end
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= limit then
	return 0
end
local newVal = redis.call("INCR", KEYS[1])
if newVal == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

// RedisStore is the Shared Store backed by Redis, using embedded Lua
// scripts for the two operations that must be check-and-act atomic
// across processes (locks, rate limiting).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-configured *redis.Client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func wrapErr(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (s *RedisStore) AcquireLock(ctx context.Context, user, symbol, action string, killSwitchUser string, ttl time.Duration) (LockResult, error) {
	res, err := acquireLockScript.Run(ctx, s.client,
		[]string{lockKey(user, symbol, action), killKey(killSwitchUser)},
		"1", ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return LockBusy, wrapErr(err)
	}
	return LockResult(res), nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, user, symbol, action string) {
	s.client.Del(ctx, lockKey(user, symbol, action))
}

func (s *RedisStore) AllowAndIncrement(ctx context.Context, user, yyyymmdd, alert string, limit int, ttl time.Duration) (bool, error) {
	res, err := allowAndIncrementScript.Run(ctx, s.client,
		[]string{counterKey(user, yyyymmdd, alert)},
		limit, int(ttl.Seconds()),
	).Int64()
	if err != nil {
		return false, wrapErr(err)
	}
	return res == 1, nil
}

func (s *RedisStore) SetOpen(ctx context.Context, user, symbol, tradeID string, ttl time.Duration) error {
	return wrapErr(s.client.Set(ctx, openKey(user, symbol), tradeID, ttl).Err())
}

func (s *RedisStore) GetOpen(ctx context.Context, user, symbol string) (string, error) {
	val, err := s.client.Get(ctx, openKey(user, symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, wrapErr(err)
}

func (s *RedisStore) ClearOpen(ctx context.Context, user, symbol string) {
	s.client.Del(ctx, openKey(user, symbol))
}

func (s *RedisStore) UpsertPosition(ctx context.Context, user string, pos *models.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	return wrapErr(s.client.HSet(ctx, positionsKey(user), pos.Symbol, data).Err())
}

func (s *RedisStore) DeletePosition(ctx context.Context, user, symbol string) {
	s.client.HDel(ctx, positionsKey(user), symbol)
}

func (s *RedisStore) ListPositions(ctx context.Context, user string) ([]*models.Position, error) {
	rows, err := s.client.HGetAll(ctx, positionsKey(user)).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	positions := make([]*models.Position, 0, len(rows))
	for _, raw := range rows {
		var pos models.Position
		if err := json.Unmarshal([]byte(raw), &pos); err != nil {
			continue
		}
		positions = append(positions, &pos)
	}
	return positions, nil
}

func (s *RedisStore) SaveAlert(ctx context.Context, user string, record AlertRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, alertsHistoryKey(user), data)
	pipe.LTrim(ctx, alertsHistoryKey(user), 0, MaxAlertHistory-1)
	pipe.Expire(ctx, alertsHistoryKey(user), ttlToNextDay(6*time.Hour))
	_, err = pipe.Exec(ctx)
	return wrapErr(err)
}

func (s *RedisStore) GetRecentAlerts(ctx context.Context, user string, limit int) ([]AlertRecord, error) {
	if limit <= 0 || limit > MaxAlertHistory {
		limit = MaxAlertHistory
	}
	raws, err := s.client.LRange(ctx, alertsHistoryKey(user), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	records := make([]AlertRecord, 0, len(raws))
	for _, raw := range raws {
		var rec AlertRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// UpdateAlertStatus rewrites the history entry matching (alertName,
// alertTime, symbol) with a new status/reason. History is list-based
// with last-write-wins semantics on that composite key: the full list
// is read, the matching row patched in place, and written back.
func (s *RedisStore) UpdateAlertStatus(ctx context.Context, user string, alertTime time.Time, alertName, symbol, newStatus, reason string) error {
	raws, err := s.client.LRange(ctx, alertsHistoryKey(user), 0, -1).Result()
	if err != nil {
		return wrapErr(err)
	}

	for i, raw := range raws {
		var rec AlertRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		if rec.AlertName != alertName || !rec.Time.Equal(alertTime) {
			continue
		}
		changed := false
		for j := range rec.Symbols {
			if rec.Symbols[j].Symbol == symbol {
				rec.Symbols[j].Status = newStatus
				rec.Symbols[j].Reason = reason
				changed = true
				break
			}
		}
		if !changed {
			continue
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return wrapErr(s.client.LSet(ctx, alertsHistoryKey(user), int64(i), data).Err())
	}
	return nil
}

func (s *RedisStore) IsKill(ctx context.Context, user string) (bool, error) {
	n, err := s.client.Exists(ctx, killKey(user)).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return n > 0, nil
}

func (s *RedisStore) SetKill(ctx context.Context, user string, enabled bool) error {
	if !enabled {
		s.client.Del(ctx, killKey(user))
		return nil
	}
	return wrapErr(s.client.Set(ctx, killKey(user), "1", ttlToNextDay(0)).Err())
}

func (s *RedisStore) SaveAlertConfig(ctx context.Context, user, normalizedName string, cfg *models.AlertConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return wrapErr(s.client.HSet(ctx, alertConfigsKey(user), normalizedName, data).Err())
}

// GetAlertConfig tries each name variant in order and returns the
// first hit, mirroring the Alert Dispatcher's fallback lookup.
func (s *RedisStore) GetAlertConfig(ctx context.Context, user string, nameVariants []string) (*models.AlertConfig, error) {
	for _, name := range nameVariants {
		raw, err := s.client.HGet(ctx, alertConfigsKey(user), name).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, wrapErr(err)
		}
		var cfg models.AlertConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return nil, nil
}

func (s *RedisStore) ListAlertConfigs(ctx context.Context, user string) (map[string]*models.AlertConfig, error) {
	rows, err := s.client.HGetAll(ctx, alertConfigsKey(user)).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	configs := make(map[string]*models.AlertConfig, len(rows))
	for name, raw := range rows {
		var cfg models.AlertConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			continue
		}
		configs[name] = &cfg
	}
	return configs, nil
}

func (s *RedisStore) DeleteAlertConfig(ctx context.Context, user, normalizedName string) error {
	return wrapErr(s.client.HDel(ctx, alertConfigsKey(user), normalizedName).Err())
}

// ttlToNextDay returns the duration until the next midnight plus
// grace, used for keys that must expire on the trading-day rollover
// (kill switch, daily counters, alert history).
func ttlToNextDay(grace time.Duration) time.Duration {
	now := time.Now()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return nextMidnight.Sub(now) + grace
}
