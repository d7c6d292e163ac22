package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/hwp-analyzer/constants"
	"github.com/joseph-ayodele/hwp-analyzer/internal/cache"
)

// DefaultCacheTTL is how long analysis replies are reused.
const DefaultCacheTTL = time.Hour

// Store is a shared second-level cache, such as Redis.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cached memoizes a Service per operation, text hash and parameters.
// Replies are kept as JSON so the same bytes can live in the shared store.
type Cached struct {
	next   Service
	local  *cache.TTL[string, []byte]
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

type CachedOption func(*Cached)

func WithStore(s Store) CachedOption {
	return func(c *Cached) { c.store = s }
}

func WithCacheClock(clock cache.Clock) CachedOption {
	return func(c *Cached) {
		c.local = cache.New[string, []byte](c.ttl, cache.WithClock(clock), cache.WithLogger(c.logger), cache.WithName("analysis"))
	}
}

func NewCached(next Service, ttl time.Duration, logger *slog.Logger, opts ...CachedOption) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cached{next: next, ttl: ttl, logger: logger}
	c.local = cache.New[string, []byte](ttl, cache.WithLogger(logger), cache.WithName("analysis"))
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cached) Analyze(ctx context.Context, text string, method constants.AnalysisMethod) (Result, error) {
	return memo(ctx, c, cacheKey("analyze", text, string(method)), func() (Result, error) {
		return c.next.Analyze(ctx, text, method)
	})
}

func (c *Cached) KeyInsights(ctx context.Context, text string, n int) ([]string, error) {
	return memo(ctx, c, cacheKey("insights", text, fmt.Sprint(n)), func() ([]string, error) {
		return c.next.KeyInsights(ctx, text, n)
	})
}

func (c *Cached) Verify(ctx context.Context, text string, r Result) (Verification, error) {
	b, _ := json.Marshal(r)
	return memo(ctx, c, cacheKey("verify", text, string(b)), func() (Verification, error) {
		return c.next.Verify(ctx, text, r)
	})
}

func (c *Cached) AnalyzeWithVerification(ctx context.Context, text string, method constants.AnalysisMethod, rounds int) (Result, error) {
	return memo(ctx, c, cacheKey("analyze_verified", text, string(method), fmt.Sprint(rounds)), func() (Result, error) {
		return c.next.AnalyzeWithVerification(ctx, text, method, rounds)
	})
}

func (c *Cached) Ask(ctx context.Context, text, question string) (Answer, error) {
	return memo(ctx, c, cacheKey("ask", text, question), func() (Answer, error) {
		return c.next.Ask(ctx, text, question)
	})
}

func (c *Cached) Compare(ctx context.Context, a, b Subject) (Comparison, error) {
	return memo(ctx, c, cacheKey("compare", a.Text, a.Name, b.Name, b.Text), func() (Comparison, error) {
		return c.next.Compare(ctx, a, b)
	})
}

// CheckFreshness keys on the metadata too; json.Marshal sorts map keys.
func (c *Cached) CheckFreshness(ctx context.Context, text string, metadata map[string]string) (Freshness, error) {
	b, _ := json.Marshal(metadata)
	return memo(ctx, c, cacheKey("freshness", text, string(b)), func() (Freshness, error) {
		return c.next.CheckFreshness(ctx, text, metadata)
	})
}

func (c *Cached) SuggestUpdates(ctx context.Context, text string, f Freshness) (UpdateSuggestions, error) {
	b, _ := json.Marshal(f)
	return memo(ctx, c, cacheKey("suggest_updates", text, string(b)), func() (UpdateSuggestions, error) {
		return c.next.SuggestUpdates(ctx, text, f)
	})
}

// Clear drops the process-local entries; the shared store expires on its own.
func (c *Cached) Clear() { c.local.Clear() }

// Sweep evicts expired process-local entries and reports how many went.
func (c *Cached) Sweep() int { return c.local.Sweep() }

func (c *Cached) Stats() cache.Stats { return c.local.Stats() }

func memo[T any](ctx context.Context, c *Cached, key string, compute func() (T, error)) (T, error) {
	var zero T
	raw, err := c.local.GetOrCompute(key, c.ttl, func() ([]byte, error) {
		if c.store != nil {
			b, ok, err := c.store.Load(ctx, key)
			switch {
			case err != nil:
				c.logger.Warn("analysis.cache.store_load_failed", "key", key, "error", err)
			case ok:
				c.logger.Debug("analysis.cache.store_hit", "key", key)
				return b, nil
			}
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode cached reply: %w", err)
		}
		if c.store != nil {
			if err := c.store.Save(ctx, key, b, c.ttl); err != nil {
				c.logger.Warn("analysis.cache.store_save_failed", "key", key, "error", err)
			}
		}
		return b, nil
	})
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		c.local.Delete(key)
		return zero, fmt.Errorf("decode cached reply: %w", err)
	}
	return out, nil
}

// cacheKey hashes the text so keys stay short; parts are separated by a NUL.
func cacheKey(op, text string, params ...string) string {
	h := sha256.New()
	h.Write([]byte(text))
	for _, p := range params {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return "hwp:analysis:" + op + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

var _ Service = (*Cached)(nil)
var _ Service = (*Analyzer)(nil)
