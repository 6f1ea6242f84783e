// internal/leaderboard/leaderboard.go
//
// Daily leaderboard with an optional Redis sorted-set cache.
//
//   - kbc:daily:<date>          ZSET member=player key, score=amount*100+cleared
//   - kbc:daily:<date>:elapsed  HASH player key → elapsed ms
//   - kbc:daily:<date>:name     HASH player key → public name
//   - kbc:daily:<date>:seeded   marker: the ZSET holds every SQLite row for the date
//
// Record mirrors a result only into a seeded date (ZADD NX, first result wins,
// like the SQLite INSERT OR IGNORE). Top seeds a date from SQLite the first
// time it is read, so a cache enabled mid-day never hides older rows.
// Both backends order by amount, then questions cleared, then elapsed time.
// Player keys stay server-side; callers render DailyResult.Name.

package leaderboard

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kbcquiz/internal/results"
)

const (
	keyPrefix = "kbc:daily:"
	keyTTL    = 48 * time.Hour
)

// Source is the durable leaderboard (results.Store).
// A negative limit asks for every row of the date.
type Source interface {
	DailyLeaderboard(ctx context.Context, date string, limit int) ([]results.DailyResult, error)
}

// Board serves the daily leaderboard.
type Board struct {
	rdb      *redis.Client
	fallback Source
}

// New builds a Board. rdb may be nil.
func New(rdb *redis.Client, fallback Source) *Board {
	return &Board{rdb: rdb, fallback: fallback}
}

// NewClient parses a redis:// URL. An empty URL yields a nil client.
func NewClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func scoreKey(date string) string   { return keyPrefix + date }
func elapsedKey(date string) string { return keyPrefix + date + ":elapsed" }
func nameKey(date string) string    { return keyPrefix + date + ":name" }
func seededKey(date string) string  { return keyPrefix + date + ":seeded" }

// score packs amount and cleared count; exact in float64 for any ladder below 9e13.
func score(r results.DailyResult) float64 {
	return float64(r.FinalAmount)*100 + float64(r.Cleared)
}

func unpack(s float64) (amount, cleared int) {
	n := int64(s)
	return int(n / 100), int(n % 100)
}

// rank sorts rows the way the SQLite query does.
func rank(rows []results.DailyResult) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.FinalAmount != b.FinalAmount {
			return a.FinalAmount > b.FinalAmount
		}
		if a.Cleared != b.Cleared {
			return a.Cleared > b.Cleared
		}
		return a.ElapsedMs < b.ElapsedMs
	})
}

// add queues r on pipe with first-result-wins semantics.
func add(ctx context.Context, pipe redis.Pipeliner, r results.DailyResult) {
	pipe.ZAddNX(ctx, scoreKey(r.Date), redis.Z{Score: score(r), Member: r.PlayerID})
	pipe.HSetNX(ctx, elapsedKey(r.Date), r.PlayerID, r.ElapsedMs)
	pipe.HSetNX(ctx, nameKey(r.Date), r.PlayerID, r.Name)
}

func expire(ctx context.Context, pipe redis.Pipeliner, date string) {
	for _, k := range []string{scoreKey(date), elapsedKey(date), nameKey(date), seededKey(date)} {
		pipe.Expire(ctx, k, keyTTL)
	}
}

// Record mirrors r into Redis. Errors are logged and swallowed; SQLite stays authoritative.
// r must already be in SQLite: an unseeded date skips Redis and picks r up when seeded.
func (b *Board) Record(ctx context.Context, r results.DailyResult) {
	if b.rdb == nil {
		return
	}
	n, err := b.rdb.Exists(ctx, seededKey(r.Date)).Result()
	if err != nil {
		log.Warn().Err(err).Str("date", r.Date).Msg("leaderboard: redis record failed")
		return
	}
	if n == 0 {
		return
	}
	pipe := b.rdb.TxPipeline()
	add(ctx, pipe, r)
	expire(ctx, pipe, r.Date)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Str("date", r.Date).Msg("leaderboard: redis record failed")
	}
}

// Top returns the best limit results for date.
func (b *Board) Top(ctx context.Context, date string, limit int) ([]results.DailyResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if b.rdb != nil {
		out, err := b.fromRedis(ctx, date, limit)
		if err == nil {
			return out, nil
		}
		log.Warn().Err(err).Str("date", date).Msg("leaderboard: redis read failed, using sqlite")
	}
	return b.fallback.DailyLeaderboard(ctx, date, limit)
}

// seed copies every SQLite row for date into Redis. The marker is set before
// reading SQLite so a concurrent Record lands in one place or the other.
func (b *Board) seed(ctx context.Context, date string) error {
	ok, err := b.rdb.SetNX(ctx, seededKey(date), 1, keyTTL).Result()
	if err != nil || !ok {
		return err
	}
	rows, err := b.fallback.DailyLeaderboard(ctx, date, -1)
	if err != nil {
		b.rdb.Del(ctx, seededKey(date))
		return err
	}
	pipe := b.rdb.TxPipeline()
	for _, r := range rows {
		r.Date = date
		add(ctx, pipe, r)
	}
	expire(ctx, pipe, date)
	if _, err := pipe.Exec(ctx); err != nil {
		b.rdb.Del(ctx, seededKey(date))
		return err
	}
	log.Debug().Str("date", date).Int("rows", len(rows)).Msg("leaderboard: seeded redis")
	return nil
}

func (b *Board) fromRedis(ctx context.Context, date string, limit int) ([]results.DailyResult, error) {
	if err := b.seed(ctx, date); err != nil {
		return nil, err
	}
	key := scoreKey(date)
	zs, err := b.rdb.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(zs) == 0 {
		return []results.DailyResult{}, nil
	}
	if len(zs) == limit {
		// widen to every member tied with the last one so elapsed time can order them
		floor := strconv.FormatFloat(zs[len(zs)-1].Score, 'f', -1, 64)
		zs, err = b.rdb.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: floor, Max: "+inf"}).Result()
		if err != nil {
			return nil, err
		}
	}

	members := make([]string, len(zs))
	for i, z := range zs {
		members[i], _ = z.Member.(string)
	}
	elapsed, err := b.rdb.HMGet(ctx, elapsedKey(date), members...).Result()
	if err != nil {
		return nil, err
	}
	names, err := b.rdb.HMGet(ctx, nameKey(date), members...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]results.DailyResult, len(zs))
	for i, z := range zs {
		amount, cleared := unpack(z.Score)
		out[i] = results.DailyResult{PlayerID: members[i], Date: date, FinalAmount: amount, Cleared: cleared}
		if s, ok := elapsed[i].(string); ok {
			out[i].ElapsedMs, _ = strconv.Atoi(s)
		}
		out[i].Name, _ = names[i].(string)
	}
	rank(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
