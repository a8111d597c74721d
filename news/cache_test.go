package news_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/adeilh/go-newscache/cache"
	"github.com/adeilh/go-newscache/cache/memory"
	"github.com/adeilh/go-newscache/news"
)

func openCache(t *testing.T, opts ...cache.Option) *news.Cache {
	t.Helper()
	svc := cache.New(memory.NewStore(), opts...)
	if err := svc.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return news.NewCache(svc)
}

func TestArticlesRoundTrip(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	query := news.ArticleQuery{Country: "us", Category: "technology"}
	articles := []news.Article{
		{ID: "a1", Title: "First", Source: "news-api", PublishedAt: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)},
		{ID: "a2", Title: "Second", Source: "news-api", Tags: []string{"tech"}},
	}

	if err := c.PutArticles(ctx, query, articles); err != nil {
		t.Fatalf("PutArticles() error = %v", err)
	}

	got, err := c.Articles(ctx, query)
	if err != nil {
		t.Fatalf("Articles() error = %v", err)
	}
	if !reflect.DeepEqual(got, articles) {
		t.Fatalf("Articles() = %+v, want %+v", got, articles)
	}

	// A different query names a different slot.
	if _, err := c.Articles(ctx, news.ArticleQuery{Country: "de"}); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Articles(other) error = %v, want ErrNotFound", err)
	}
}

func TestArticleQueryZeroFieldsShareSlot(t *testing.T) {
	a := news.ArticleQuery{Country: "us"}
	b := news.ArticleQuery{Country: "us", Query: "", Sources: "", PageSize: 0}

	ka, err := cache.DeriveKey(a.KeyParams())
	if err != nil {
		t.Fatalf("DeriveKey(a) error = %v", err)
	}
	kb, err := cache.DeriveKey(b.KeyParams())
	if err != nil {
		t.Fatalf("DeriveKey(b) error = %v", err)
	}
	if ka != kb {
		t.Fatalf("keys differ: %q vs %q", ka, kb)
	}
}

func TestVideoQueryChannelOrderIrrelevant(t *testing.T) {
	a := news.VideoQuery{ChannelIDs: []string{"UC2", "UC1", "UC3"}}
	b := news.VideoQuery{ChannelIDs: []string{"UC1", "UC3", "UC2"}}

	ka, err := cache.DeriveKey(a.KeyParams())
	if err != nil {
		t.Fatalf("DeriveKey(a) error = %v", err)
	}
	kb, err := cache.DeriveKey(b.KeyParams())
	if err != nil {
		t.Fatalf("DeriveKey(b) error = %v", err)
	}
	if ka != kb {
		t.Fatalf("keys differ: %q vs %q", ka, kb)
	}

	// Live and non-live queries over the same channels are distinct slots.
	live := news.VideoQuery{ChannelIDs: []string{"UC1", "UC2", "UC3"}, Live: true}
	kl, err := cache.DeriveKey(live.KeyParams())
	if err != nil {
		t.Fatalf("DeriveKey(live) error = %v", err)
	}
	if kl == ka {
		t.Fatalf("live and non-live queries derived the same key %q", kl)
	}
}

func TestLiveVideosUseShortTTL(t *testing.T) {
	clock := &stepClock{now: time.UnixMilli(1_700_000_000_000)}
	c := openCache(t, cache.WithClock(clock.Now))
	ctx := context.Background()

	query := news.VideoQuery{ChannelIDs: []string{"UC1"}, Live: true}
	videos := []news.Video{{ID: "v1", Title: "Breaking", ChannelID: "UC1", Live: true}}

	if err := c.PutVideos(ctx, query, videos); err != nil {
		t.Fatalf("PutVideos() error = %v", err)
	}
	if _, err := c.Videos(ctx, query); err != nil {
		t.Fatalf("Videos() error = %v", err)
	}

	// Past the live TTL the entry is gone; a non-live entry written at the
	// same moment would still be valid.
	clock.now = clock.now.Add(news.LiveVideoTTL + time.Second)
	if _, err := c.Videos(ctx, query); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Videos() after live TTL error = %v, want ErrNotFound", err)
	}
}

func TestLiveChannelsRoundTrip(t *testing.T) {
	c := openCache(t)
	ctx := context.Background()
	channels := []news.LiveChannel{
		{ID: "ch1", Name: "World News 24", Country: "gb", StreamURL: "https://example.com/ch1.m3u8", Online: true},
		{ID: "ch2", Name: "Newsroom", StreamURL: "https://example.com/ch2.m3u8"},
	}

	if err := c.PutLiveChannels(ctx, channels); err != nil {
		t.Fatalf("PutLiveChannels() error = %v", err)
	}
	got, err := c.LiveChannels(ctx)
	if err != nil {
		t.Fatalf("LiveChannels() error = %v", err)
	}
	if !reflect.DeepEqual(got, channels) {
		t.Fatalf("LiveChannels() = %+v", got)
	}
}

func TestArticleAge(t *testing.T) {
	clock := &stepClock{now: time.UnixMilli(1_700_000_000_000)}
	c := openCache(t, cache.WithClock(clock.Now))
	ctx := context.Background()
	query := news.ArticleQuery{Query: "election"}

	if err := c.PutArticles(ctx, query, []news.Article{{ID: "a1", Title: "T", Source: "s"}}); err != nil {
		t.Fatalf("PutArticles() error = %v", err)
	}

	clock.now = clock.now.Add(7 * time.Minute)
	age, err := c.ArticleAge(ctx, query)
	if err != nil {
		t.Fatalf("ArticleAge() error = %v", err)
	}
	if age != 7*time.Minute {
		t.Fatalf("ArticleAge() = %v, want %v", age, 7*time.Minute)
	}
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }
