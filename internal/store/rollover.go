package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RunDailyRollover sweeps the daily-counter keys (count:{user}:*) that
// belong to a trading day other than today and deletes them, plus
// trims the alert-history list back to MaxAlertHistory. The per-key
// TTLs set at write time (counterKey expires via AllowAndIncrement,
// alertsHistoryKey via SaveAlert's ttlToNextDay) are the actual source
// of truth for expiry; this is a convenience sweep so a long-lived
// process doesn't accumulate stale counter keys between TTL sweeps,
// matching original_source's daily_cleanup.py scheduled job.
func RunDailyRollover(ctx context.Context, client *redis.Client, user string) error {
	now := time.Now()
	today := fmt.Sprintf("%d%02d%02d", now.Year(), now.Month(), now.Day())

	pattern := fmt.Sprintf("count:%s:*", user)
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return wrapErr(err)
		}
		var stale []string
		for _, key := range keys {
			if !staleCounterKey(key, user, today) {
				continue
			}
			stale = append(stale, key)
		}
		if len(stale) > 0 {
			if err := client.Del(ctx, stale...).Err(); err != nil {
				return wrapErr(err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return wrapErr(client.LTrim(ctx, alertsHistoryKey(user), 0, MaxAlertHistory-1).Err())
}

// staleCounterKey reports whether key (count:{user}:{yyyymmdd}:{alert})
// belongs to a date other than today.
func staleCounterKey(key, user, today string) bool {
	prefix := fmt.Sprintf("count:%s:", user)
	if len(key) <= len(prefix) {
		return false
	}
	rest := key[len(prefix):]
	if len(rest) < 8 {
		return false
	}
	return rest[:8] != today
}
