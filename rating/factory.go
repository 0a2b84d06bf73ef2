package rating

import (
	"context"
	"lobby-autohost/applog"
	"lobby-autohost/config"
	"time"

	"go.uber.org/zap"
)

const (
	cacheSize             = 512
	defaultConnectTimeout = 10 * time.Second
)

// New builds the provider selected in info. Any misconfiguration is logged and
// results in Off, the lobby keeps running without ratings.
func New(ctx context.Context, info *config.Info) Provider {
	if err := info.RatingProviderIssue(); err != nil {
		applog.Error("Rating provider misconfigured, ratings disabled",
			zap.String("ratingProvider", info.RatingProvider),
			zap.Error(err),
		)
		return Off{}
	}

	var provider Provider
	switch info.RatingProvider {
	case config.RatingProviderHttp:
		provider = NewHttpProvider(info.RatingApiRoot, info.RatingApiKey, info.RatingTimeout)
	case config.RatingProviderSql:
		timeout := info.RatingTimeout
		if timeout <= 0 {
			timeout = defaultConnectTimeout
		}

		connectCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		sqlProvider, err := NewSqlProvider(connectCtx, info.RatingDatabaseUrl)
		if err != nil {
			applog.Error("Rating database unavailable, ratings disabled", zap.Error(err))
			return Off{}
		}
		provider = sqlProvider
	case config.RatingProviderSynthetic:
		provider = Synthetic{}
	default:
		return Off{}
	}

	applog.Info("Rating provider ready",
		zap.String("ratingProvider", provider.Name()),
		zap.Duration("cacheTtl", info.RatingCacheTTL),
	)

	if info.RatingCacheTTL <= 0 {
		return provider
	}
	return NewCached(provider, cacheSize, info.RatingCacheTTL)
}
