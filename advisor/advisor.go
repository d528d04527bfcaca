package advisor

import (
	"context"
	"fmt"
	"log/slog"
)

// Advisor is the Advisor Bridge entry point: it consults client, caches
// the response for a short TTL keyed by a digest of the context, and
// filters out any tool call that fails schema validation rather than
// discarding the whole response.
type Advisor struct {
	client Client
	cache  *responseCache
	logger *slog.Logger
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Advisor) { a.logger = l }
}

// New builds an Advisor over client (either a live sdkClient or
// OfflineClient).
func New(c Client, opts ...Option) *Advisor {
	a := &Advisor{client: c, cache: newResponseCache(), logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze consults the Advisor for reqCtx, serving a cached response when
// available. Network/API failures from the underlying client propagate as
// ErrAdvisorUnavailable; invalid tool calls are dropped individually.
func (a *Advisor) Analyze(ctx context.Context, reqCtx Context) (*Response, error) {
	digest, err := contextDigest(reqCtx)
	if err == nil {
		if cached, ok := a.cache.get(digest); ok {
			a.logger.Debug("advisor: cache hit", "digest", digest)
			return cached, nil
		}
	}

	resp, err := a.client.Analyze(ctx, reqCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdvisorUnavailable, err)
	}

	filtered := &Response{Mock: resp.Mock}
	for _, m := range resp.Mutations {
		if err := validateMutation(m); err != nil {
			a.logger.Warn("advisor: dropping invalid mutation proposal", "gene", m.Gene, "err", err)
			continue
		}
		filtered.Mutations = append(filtered.Mutations, m)
	}
	if resp.Trust != nil {
		if err := validateTrust(*resp.Trust); err != nil {
			a.logger.Warn("advisor: dropping invalid trust evaluation", "err", err)
		} else {
			filtered.Trust = resp.Trust
		}
	}
	if resp.Strategy != nil {
		if err := validateStrategy(*resp.Strategy); err != nil {
			a.logger.Warn("advisor: dropping invalid strategy decision", "err", err)
		} else {
			filtered.Strategy = resp.Strategy
		}
	}

	if err == nil {
		a.cache.put(digest, filtered)
	}
	return filtered, nil
}
