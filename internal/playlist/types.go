// Wavemix - Personalized Playlist Engine for the Echo Music Server
// Copyright 2026 Echo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/echo-music/wavemix

package playlist

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/echo-music/wavemix/internal/scoring"
)

// Type identifies a playlist variant.
type Type string

const (
	// TypeWaveMix is the library-wide daily mix.
	TypeWaveMix Type = "wave-mix"
	// TypeArtist is a single-artist mix.
	TypeArtist Type = "artist"
	// TypeGenre is a single-genre mix.
	TypeGenre Type = "genre"
	// TypeMood is reserved for mood-based mixes.
	TypeMood Type = "mood"
)

// Expiry per variant. The wave mix refreshes roughly daily; artist and
// genre mixes are stable enough to live a week.
const (
	WaveMixTTL    = 24 * time.Hour
	ArtistMixTTL  = 7 * 24 * time.Hour
	GenreMixTTL   = 7 * 24 * time.Hour
	artistMixSize = 30
	genreMixSize  = 30

	// waveMixCandidatePool caps how many top tracks seed the wave mix.
	waveMixCandidatePool = 200
)

// Bucket is a recency-of-last-play bucket.
type Bucket string

const (
	BucketLastWeek  Bucket = "last_week"  // played within 7 days
	BucketLastMonth Bucket = "last_month" // within 30 days
	BucketLastYear  Bucket = "last_year"  // within 365 days
	BucketOlder     Bucket = "older"      // anything else, or never timestamped
)

// TemporalBalance holds the target share of the wave mix drawn from each
// recency bucket. The ratios must sum to 1.0; Validate enforces this at
// config-merge time, the balancer itself trusts its input.
type TemporalBalance struct {
	LastWeek  float64 `json:"last_week" koanf:"last_week" validate:"min=0,max=1"`
	LastMonth float64 `json:"last_month" koanf:"last_month" validate:"min=0,max=1"`
	LastYear  float64 `json:"last_year" koanf:"last_year" validate:"min=0,max=1"`
	Older     float64 `json:"older" koanf:"older" validate:"min=0,max=1"`
}

// Ratio returns the configured ratio for a bucket.
func (b TemporalBalance) Ratio(bucket Bucket) float64 {
	switch bucket {
	case BucketLastWeek:
		return b.LastWeek
	case BucketLastMonth:
		return b.LastMonth
	case BucketLastYear:
		return b.LastYear
	default:
		return b.Older
	}
}

// Sum returns the total of all four ratios.
func (b TemporalBalance) Sum() float64 {
	return b.LastWeek + b.LastMonth + b.LastYear + b.Older
}

// Config tunes wave mix generation. Zero-valued fields in an override keep
// their defaults; see Merge.
type Config struct {
	MaxTracks       int             `json:"max_tracks" koanf:"max_tracks" validate:"min=0,max=500"`
	MinScore        float64         `json:"min_score" koanf:"min_score"`
	FreshnessRatio  float64         `json:"freshness_ratio" koanf:"freshness_ratio" validate:"min=0,max=1"`
	GenreDiversity  float64         `json:"genre_diversity" koanf:"genre_diversity" validate:"min=0,max=1"`
	TemporalBalance TemporalBalance `json:"temporal_balance" koanf:"temporal_balance"`
}

// DefaultConfig returns the production wave mix tuning.
func DefaultConfig() Config {
	return Config{
		MaxTracks:      50,
		MinScore:       20,
		FreshnessRatio: 0.3,
		GenreDiversity: 0.4,
		TemporalBalance: TemporalBalance{
			LastWeek:  0.4,
			LastMonth: 0.3,
			LastYear:  0.2,
			Older:     0.1,
		},
	}
}

// Merge overlays the non-zero fields of an override onto c. A nil override
// returns c unchanged.
func (c Config) Merge(override *Config) Config {
	if override == nil {
		return c
	}
	if override.MaxTracks > 0 {
		c.MaxTracks = override.MaxTracks
	}
	if override.MinScore != 0 {
		c.MinScore = override.MinScore
	}
	if override.FreshnessRatio > 0 {
		c.FreshnessRatio = override.FreshnessRatio
	}
	if override.GenreDiversity > 0 {
		c.GenreDiversity = override.GenreDiversity
	}
	if override.TemporalBalance.Sum() > 0 {
		c.TemporalBalance = override.TemporalBalance
	}
	return c
}

// Validate checks the cross-field invariants the algorithms rely on.
func (c Config) Validate() error {
	if c.MaxTracks <= 0 {
		return fmt.Errorf("max_tracks must be positive, got %d", c.MaxTracks)
	}
	if sum := c.TemporalBalance.Sum(); math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("temporal balance ratios must sum to 1.0, got %v", sum)
	}
	return nil
}

// TrackInfo is the resolved identity of a candidate track.
type TrackInfo struct {
	ID         string   `json:"id"`
	ArtistID   string   `json:"artist_id"`
	ArtistName string   `json:"artist_name"`
	AlbumID    string   `json:"album_id"`
	Title      string   `json:"title"`
	Genres     []string `json:"genres,omitempty"`
}

// TopItem is one row of a user's most-played items.
type TopItem struct {
	ItemID    string `json:"item_id"`
	PlayCount int    `json:"play_count"`
}

// PlayEvent is a single raw play-history record.
type PlayEvent struct {
	TrackID  string    `json:"track_id"`
	PlayedAt time.Time `json:"played_at"`
}

// Metadata summarizes an assembled playlist. TemporalDistribution is a
// descriptive histogram of the user's past plays of the selected tracks;
// it is not the balancer's selection quota and the two must not be
// conflated.
type Metadata struct {
	TotalTracks          int            `json:"total_tracks"`
	AvgScore             float64        `json:"avg_score"`
	TopGenres            []string       `json:"top_genres,omitempty"`
	TopArtists           []string       `json:"top_artists,omitempty"`
	TemporalDistribution map[Bucket]int `json:"temporal_distribution,omitempty"`
	ArtistID             string         `json:"artist_id,omitempty"`
	ArtistName           string         `json:"artist_name,omitempty"`
}

// Playlist is a generated, time-boxed mix. Immutable once created: a
// refresh builds a new playlist rather than mutating an old one.
type Playlist struct {
	ID          string               `json:"id"`
	Type        Type                 `json:"type"`
	UserID      string               `json:"user_id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Tracks      []scoring.TrackScore `json:"tracks"`
	CreatedAt   time.Time            `json:"created_at"`
	ExpiresAt   time.Time            `json:"expires_at"`
	Metadata    Metadata             `json:"metadata"`
	CoverColor  string               `json:"cover_color,omitempty"`
}

// IsEmpty reports whether the playlist carries no tracks.
func (p *Playlist) IsEmpty() bool {
	return p == nil || len(p.Tracks) == 0
}

// coverPalette provides deterministic cover colors per playlist identity.
var coverPalette = []string{
	"#e63946", "#f4a261", "#e9c46a", "#2a9d8f", "#264653",
	"#6d597a", "#355070", "#b56576", "#43aa8b", "#577590",
}

// coverColorFor picks a stable palette color for a playlist identity.
func coverColorFor(parts ...string) string {
	h := fnv.New32a()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return coverPalette[h.Sum32()%uint32(len(coverPalette))]
}

// Rand is the source of randomness for shuffle strategies. *lockedRand
// satisfies it for production; tests inject a seeded *rand.Rand.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// lockedRand guards a math/rand source for concurrent playlist pipelines.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSystemRand returns a time-seeded, concurrency-safe Rand.
func NewSystemRand() Rand {
	//nolint:gosec // math/rand is fine for playlist shuffling
	return &lockedRand{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}
