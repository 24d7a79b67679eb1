package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStorage(t *testing.T) *SQLStorage {
	t.Helper()

	storage := NewSQLiteStorage(t.TempDir())
	if err := storage.Initialize(); err != nil {
		t.Fatalf("Failed to initialize storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func testMovie(slug string) *Movie {
	year := 2023
	view := int64(1520)
	return &Movie{
		MovieID:    "id-" + slug,
		Slug:       slug,
		Name:       "Phim " + slug,
		OriginName: "Movie " + slug,
		Type:       "series",
		Status:     "completed",
		Year:       &year,
		View:       &view,
		Actors:     []string{"An", "Bình"},
		Categories: []Taxonomy{{ID: "c1", Name: "Hành Động", Slug: "hanh-dong"}},
		Chieurap:   true,
	}
}

func TestSQLStorage(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	exists, err := storage.MovieExists(ctx, "phim-mot")
	if err != nil {
		t.Fatalf("Failed to check movie: %v", err)
	}
	if exists {
		t.Fatalf("Expected movie to be absent before insert")
	}

	movie := testMovie("phim-mot")
	id, err := storage.InsertMovie(ctx, movie)
	if err != nil {
		t.Fatalf("Failed to insert movie: %v", err)
	}
	if id <= 0 || movie.ID != id {
		t.Fatalf("Expected positive id set on movie, got %d / %d", id, movie.ID)
	}

	exists, err = storage.MovieExists(ctx, "phim-mot")
	if err != nil {
		t.Fatalf("Failed to check movie: %v", err)
	}
	if !exists {
		t.Fatalf("Expected movie to exist after insert")
	}

	got, err := storage.GetMovieBySlug(ctx, "phim-mot")
	if err != nil {
		t.Fatalf("Failed to get movie: %v", err)
	}
	if got.Name != movie.Name || got.OriginName != movie.OriginName {
		t.Errorf("Unexpected movie names: %q / %q", got.Name, got.OriginName)
	}
	if got.Year == nil || *got.Year != 2023 {
		t.Errorf("Expected year 2023, got %v", got.Year)
	}
	if got.View == nil || *got.View != 1520 {
		t.Errorf("Expected view 1520, got %v", got.View)
	}
	if len(got.Actors) != 2 || got.Actors[1] != "Bình" {
		t.Errorf("Unexpected actors: %v", got.Actors)
	}
	if len(got.Directors) != 0 {
		t.Errorf("Expected no directors, got %v", got.Directors)
	}
	if len(got.Categories) != 1 || got.Categories[0].Slug != "hanh-dong" {
		t.Errorf("Unexpected categories: %v", got.Categories)
	}
	if !got.Chieurap || got.IsCopyright {
		t.Errorf("Unexpected flags: chieurap=%v is_copyright=%v", got.Chieurap, got.IsCopyright)
	}
	if got.CreatedAt.IsZero() {
		t.Errorf("Expected created_at to be set")
	}

	for _, ep := range []Episode{
		{MovieID: id, MovieSlug: "phim-mot", ServerName: "Vietsub #1", Name: "1", Slug: "tap-1", LinkEmbed: "https://e/1"},
		{MovieID: id, MovieSlug: "phim-mot", ServerName: "Vietsub #1", Name: "2", Slug: "tap-2", LinkM3U8: "https://h/2.m3u8"},
		{MovieID: id, MovieSlug: "phim-mot", ServerName: "Thuyết Minh", Name: "1", Slug: "tap-1", LinkEmbed: "https://e/tm1"},
	} {
		ep := ep
		if err := storage.InsertEpisode(ctx, &ep); err != nil {
			t.Fatalf("Failed to insert episode %s/%s: %v", ep.ServerName, ep.Slug, err)
		}
	}

	episodes, err := storage.ListEpisodes(ctx, id)
	if err != nil {
		t.Fatalf("Failed to list episodes: %v", err)
	}
	if len(episodes) != 3 {
		t.Fatalf("Expected 3 episodes, got %d", len(episodes))
	}
	if episodes[2].ServerName != "Thuyết Minh" {
		t.Errorf("Expected insertion order to be kept, got %s last", episodes[2].ServerName)
	}

	stats, err := storage.GetStats(ctx)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Movies != 1 {
		t.Errorf("Expected 1 movie, got %d", stats.Movies)
	}
	if stats.Episodes != 3 {
		t.Errorf("Expected 3 episodes, got %d", stats.Episodes)
	}
	if stats.ByType["series"] != 1 {
		t.Errorf("Expected 1 series, got %d", stats.ByType["series"])
	}
}

func TestInsertMovieConflict(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	if _, err := storage.InsertMovie(ctx, testMovie("trung-lap")); err != nil {
		t.Fatalf("Failed to insert movie: %v", err)
	}

	_, err := storage.InsertMovie(ctx, testMovie("trung-lap"))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected *ConflictError, got %T", err)
	}
	if conflict.Table != "movies" || conflict.Key != "trung-lap" {
		t.Errorf("Unexpected conflict details: %+v", conflict)
	}
}

func TestInsertEpisodeConflict(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	id, err := storage.InsertMovie(ctx, testMovie("phim-tap"))
	if err != nil {
		t.Fatalf("Failed to insert movie: %v", err)
	}

	ep := Episode{MovieID: id, MovieSlug: "phim-tap", ServerName: "Vietsub #1", Name: "1", Slug: "tap-1", LinkEmbed: "x"}
	if err := storage.InsertEpisode(ctx, &ep); err != nil {
		t.Fatalf("Failed to insert episode: %v", err)
	}

	dup := ep
	err = storage.InsertEpisode(ctx, &dup)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict for duplicate episode, got %v", err)
	}

	// same slug on another server is a different episode
	other := ep
	other.ServerName = "Thuyết Minh"
	if err := storage.InsertEpisode(ctx, &other); err != nil {
		t.Fatalf("Failed to insert episode on second server: %v", err)
	}
}

func TestInsertEpisodeForeignKeyIsNotConflict(t *testing.T) {
	storage := newTestStorage(t)

	ep := Episode{MovieID: 9999, MovieSlug: "khong-co", ServerName: "s", Name: "1", Slug: "tap-1", LinkEmbed: "x"}
	err := storage.InsertEpisode(context.Background(), &ep)
	if err == nil {
		t.Fatalf("Expected foreign key error")
	}
	if errors.Is(err, ErrConflict) {
		t.Fatalf("Foreign key violation must not be reported as conflict: %v", err)
	}
}

func TestGetMovieBySlugNotFound(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.GetMovieBySlug(context.Background(), "khong-co")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestRecentMovies(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	for _, slug := range []string{"a", "b", "c"} {
		if _, err := storage.InsertMovie(ctx, testMovie(slug)); err != nil {
			t.Fatalf("Failed to insert movie %s: %v", slug, err)
		}
	}

	movies, err := storage.RecentMovies(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to list recent movies: %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("Expected 2 movies, got %d", len(movies))
	}
	if movies[0].Slug != "c" {
		t.Errorf("Expected newest movie first, got %s", movies[0].Slug)
	}
}

func TestSQLiteStorageInit(t *testing.T) {
	tempDir := t.TempDir()

	storage := NewSQLiteStorage(tempDir)
	err := storage.Initialize()
	if err != nil {
		t.Fatalf("Failed to initialize storage: %v", err)
	}
	defer storage.Close()

	dbPath := filepath.Join(tempDir, DatabaseFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("Database file was not created")
	}
	if storage.Dialect() != DialectSQLite {
		t.Errorf("Expected sqlite dialect, got %s", storage.Dialect())
	}
}

func TestConfigDialect(t *testing.T) {
	cases := map[string]Dialect{
		"":                                  DialectSQLite,
		"file:catalog.db":                   DialectSQLite,
		"postgres://u:p@localhost/phimgg":   DialectPostgres,
		"postgresql://u:p@localhost/phimgg": DialectPostgres,
		"  POSTGRES://u@db/phimgg ":         DialectPostgres,
	}
	for url, want := range cases {
		if got := (Config{DatabaseURL: url}).dialect(); got != want {
			t.Errorf("dialect(%q) = %s, want %s", url, got, want)
		}
	}
}

func TestRebind(t *testing.T) {
	pg := New(Config{DatabaseURL: "postgres://localhost/x"})
	got := pg.rebind("SELECT * FROM movies WHERE slug = ? AND type = ?")
	if got != "SELECT * FROM movies WHERE slug = $1 AND type = $2" {
		t.Errorf("Unexpected postgres query: %s", got)
	}

	lite := NewSQLiteStorage(t.TempDir())
	if q := lite.rebind("slug = ?"); q != "slug = ?" {
		t.Errorf("SQLite query must be unchanged, got %s", q)
	}
}
