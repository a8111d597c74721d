// Package news carries the aggregation domain model and the typed cache
// wrappers used by article, video, and live-TV retrieval paths.
package news

import "time"

// Article is a normalized news article regardless of which provider it came
// from.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source"`
	Country     string    `json:"country,omitempty"`
	CountryCode string    `json:"countryCode,omitempty"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Category    string    `json:"category,omitempty"`
	Language    string    `json:"language,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Video is a news video or live stream from a channel-based provider.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ChannelID    string    `json:"channelId"`
	ChannelTitle string    `json:"channelTitle,omitempty"`
	PublishedAt  time.Time `json:"publishedAt"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Duration     string    `json:"duration,omitempty"`
	ViewCount    string    `json:"viewCount,omitempty"`
	Live         bool      `json:"live,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
}

// LiveChannel is a live-TV stream endpoint.
type LiveChannel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Country   string `json:"country,omitempty"`
	StreamURL string `json:"streamUrl"`
	Online    bool   `json:"online"`
}
