package resolve

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DefaultSuggestionTTL is how long a cached suggestion is trusted.
	DefaultSuggestionTTL = 24 * time.Hour

	// noSuggestion is stored for tokens the suggester had no answer for.
	noSuggestion = "-"
)

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedSuggester remembers suggester answers in Redis. Keys include a hash
// of the catalog names, so answers for an old catalog are never reused.
// Redis failures are logged and the call goes through to the suggester.
type CachedSuggester struct {
	next   Suggester
	client redisKV
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedSuggester(next Suggester, client redisKV, ttl time.Duration, logger *zap.Logger) *CachedSuggester {
	if ttl <= 0 {
		ttl = DefaultSuggestionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSuggester{next: next, client: client, ttl: ttl, logger: logger}
}

func (s *CachedSuggester) Suggest(ctx context.Context, token string, names []string) (string, error) {
	key := suggestionKey(token, names)

	cached, err := s.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == noSuggestion {
			return "", nil
		}
		return cached, nil
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("suggestion cache read failed", zap.String("key", key), zap.Error(err))
	}

	answer, err := s.next.Suggest(ctx, token, names)
	if err != nil {
		return "", err
	}

	value := strings.TrimSpace(answer)
	if value == "" || strings.EqualFold(value, "none") {
		value = noSuggestion
	}
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		s.logger.Warn("suggestion cache write failed", zap.String("key", key), zap.Error(err))
	}
	if value == noSuggestion {
		return "", nil
	}
	return value, nil
}

func suggestionKey(token string, names []string) string {
	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{'\n'})
	}
	version := hex.EncodeToString(h.Sum(nil))[:12]
	return fmt.Sprintf("suggest:%s:%s", version, strings.ToLower(strings.TrimSpace(token)))
}
