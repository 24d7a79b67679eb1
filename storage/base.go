package storage

import (
	"context"
	"time"
)

// Taxonomy is a category or country attached to a movie.
type Taxonomy struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Movie struct {
	ID             int64      `json:"id"`
	MovieID        string     `json:"movie_id"` // upstream _id
	Slug           string     `json:"slug"`
	Name           string     `json:"name"`
	OriginName     string     `json:"origin_name"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`   // "single", "series", "hoathinh", "tvshows"
	Status         string     `json:"status"` // "ongoing", "completed", "trailer"
	ThumbURL       string     `json:"thumb_url"`
	PosterURL      string     `json:"poster_url"`
	TrailerURL     string     `json:"trailer_url"`
	Time           string     `json:"time"`
	EpisodeCurrent string     `json:"episode_current"`
	EpisodeTotal   string     `json:"episode_total"`
	Quality        string     `json:"quality"`
	Lang           string     `json:"lang"`
	IsCopyright    bool       `json:"is_copyright"`
	SubDocquyen    bool       `json:"sub_docquyen"`
	Chieurap       bool       `json:"chieurap"`
	Year           *int       `json:"year,omitempty"`
	View           *int64     `json:"view,omitempty"`
	Actors         []string   `json:"actors"`
	Directors      []string   `json:"directors"`
	Categories     []Taxonomy `json:"categories"`
	Countries      []Taxonomy `json:"countries"`
	ModifiedAt     string     `json:"modified_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Episode struct {
	ID         int64     `json:"id"`
	MovieID    int64     `json:"movie_id"`
	MovieSlug  string    `json:"movie_slug"`
	ServerName string    `json:"server_name"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	Filename   string    `json:"filename"`
	LinkEmbed  string    `json:"link_embed"`
	LinkM3U8   string    `json:"link_m3u8"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stats summarizes what the catalog holds.
type Stats struct {
	Movies   int            `json:"movies"`
	Episodes int            `json:"episodes"`
	ByType   map[string]int `json:"by_type"`
}

// StorageInterface is everything the importer, scheduler and status API use.
type StorageInterface interface {
	Initialize() error
	MovieExists(ctx context.Context, slug string) (bool, error)
	InsertMovie(ctx context.Context, movie *Movie) (int64, error)
	InsertEpisode(ctx context.Context, episode *Episode) error
	GetMovieBySlug(ctx context.Context, slug string) (*Movie, error)
	ListEpisodes(ctx context.Context, movieID int64) ([]Episode, error)
	RecentMovies(ctx context.Context, limit int) ([]Movie, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}
