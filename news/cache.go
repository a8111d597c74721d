package news

import (
	"context"
	"sort"
	"time"

	"github.com/adeilh/go-newscache/cache"
)

// Default TTLs per domain. Live material goes stale far faster than article
// archives.
const (
	ArticleTTL     = 24 * time.Hour
	VideoTTL       = time.Hour
	LiveVideoTTL   = 10 * time.Minute
	LiveChannelTTL = 30 * time.Minute
)

// ArticleQuery identifies a logical article request. Zero-valued fields are
// ignored during key derivation, so an unset country and an absent one name
// the same cache slot.
type ArticleQuery struct {
	Query    string
	Country  string
	Category string
	Sources  string
	PageSize int
}

// KeyParams returns the canonical key parameters for this query.
func (q ArticleQuery) KeyParams() cache.KeyParams {
	return cache.KeyParams{
		"type":     "articles",
		"query":    q.Query,
		"country":  q.Country,
		"category": q.Category,
		"sources":  q.Sources,
		"pageSize": zeroAsAbsent(q.PageSize),
	}
}

// VideoFilters narrows a channel video search.
type VideoFilters struct {
	Query           string
	Order           string
	Duration        string
	EventType       string
	PublishedAfter  string
	PublishedBefore string
	MaxResults      int
}

func (f VideoFilters) keyParams() cache.KeyParams {
	return cache.KeyParams{
		"query":           f.Query,
		"order":           f.Order,
		"duration":        f.Duration,
		"eventType":       f.EventType,
		"publishedAfter":  f.PublishedAfter,
		"publishedBefore": f.PublishedBefore,
		"maxResults":      zeroAsAbsent(f.MaxResults),
	}
}

// VideoQuery identifies a logical video request over a set of channels.
type VideoQuery struct {
	ChannelIDs []string
	Filters    VideoFilters
	Live       bool
}

// KeyParams returns the canonical key parameters for this query. Channel IDs
// are sorted so the set, not its ordering, determines the key.
func (q VideoQuery) KeyParams() cache.KeyParams {
	channels := append([]string(nil), q.ChannelIDs...)
	sort.Strings(channels)

	tag := "youtube-videos"
	if q.Live {
		tag = "youtube-live"
	}
	return cache.KeyParams{
		"type":       tag,
		"channelIds": channels,
		"filters":    map[string]any(q.Filters.keyParams()),
	}
}

// LiveChannelKeyParams names the single live-channel-list slot.
func LiveChannelKeyParams() cache.KeyParams {
	return cache.KeyParams{"type": "live-channels"}
}

// Cache layers the news domain on top of a cache.Service: key derivation,
// provenance tagging, and per-domain TTL defaults in one place.
type Cache struct {
	svc *cache.Service
}

// NewCache wraps an existing service.
func NewCache(svc *cache.Service) *Cache {
	return &Cache{svc: svc}
}

// Service exposes the wrapped service for stats, cleanup, and clearing.
func (c *Cache) Service() *cache.Service { return c.svc }

// PutArticles caches an article list under the query's derived key.
func (c *Cache) PutArticles(ctx context.Context, query ArticleQuery, articles []Article, opts ...cache.SetOption) error {
	return putList(ctx, c.svc, query.KeyParams(), articles, "news-api", ArticleTTL, "articleCount", opts)
}

// Articles returns the cached article list for the query, or
// cache.ErrNotFound on a miss.
func (c *Cache) Articles(ctx context.Context, query ArticleQuery) ([]Article, error) {
	return getList[Article](ctx, c.svc, query.KeyParams())
}

// PutVideos caches a video list under the query's derived key. Live queries
// default to a much shorter TTL.
func (c *Cache) PutVideos(ctx context.Context, query VideoQuery, videos []Video, opts ...cache.SetOption) error {
	ttl := VideoTTL
	if query.Live {
		ttl = LiveVideoTTL
	}
	return putList(ctx, c.svc, query.KeyParams(), videos, "youtube-api", ttl, "videoCount", opts)
}

// Videos returns the cached video list for the query.
func (c *Cache) Videos(ctx context.Context, query VideoQuery) ([]Video, error) {
	return getList[Video](ctx, c.svc, query.KeyParams())
}

// PutLiveChannels caches the live-TV channel list.
func (c *Cache) PutLiveChannels(ctx context.Context, channels []LiveChannel, opts ...cache.SetOption) error {
	return putList(ctx, c.svc, LiveChannelKeyParams(), channels, "live-tv-api", LiveChannelTTL, "channelCount", opts)
}

// LiveChannels returns the cached live-TV channel list.
func (c *Cache) LiveChannels(ctx context.Context) ([]LiveChannel, error) {
	return getList[LiveChannel](ctx, c.svc, LiveChannelKeyParams())
}

// ArticleAge reports how long ago the article list for the query was cached.
func (c *Cache) ArticleAge(ctx context.Context, query ArticleQuery) (time.Duration, error) {
	return c.svc.Age(ctx, query.KeyParams())
}

// VideoAge reports how long ago the video list for the query was cached.
func (c *Cache) VideoAge(ctx context.Context, query VideoQuery) (time.Duration, error) {
	return c.svc.Age(ctx, query.KeyParams())
}

func putList[T any](ctx context.Context, svc *cache.Service, params cache.KeyParams, items []T, source string, ttl time.Duration, countField string, opts []cache.SetOption) error {
	key, err := cache.DeriveKey(params)
	if err != nil {
		return err
	}
	merged := append([]cache.SetOption{
		cache.WithTTL(ttl),
		cache.WithSource(source),
		cache.WithMetadata(map[string]any{
			countField: len(items),
			"params":   map[string]any(params),
			"cachedAt": time.Now().UTC().Format(time.RFC3339),
		}),
	}, opts...)
	return svc.Set(ctx, key, items, merged...)
}

func getList[T any](ctx context.Context, svc *cache.Service, params cache.KeyParams) ([]T, error) {
	key, err := cache.DeriveKey(params)
	if err != nil {
		return nil, err
	}
	return cache.GetJSON[[]T](ctx, svc, key)
}

func zeroAsAbsent(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
