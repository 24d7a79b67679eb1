package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const DatabaseFile = "phimgg.db"

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// Config selects the database. A postgres:// or postgresql:// DatabaseURL
// wins; otherwise a SQLite file is created under DataPath.
type Config struct {
	DataPath    string
	DatabaseURL string
}

func (c Config) dialect() Dialect {
	u := strings.ToLower(strings.TrimSpace(c.DatabaseURL))
	if strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

type SQLStorage struct {
	db       *sql.DB
	dialect  Dialect
	dsn      string
	dbPath   string
	dataPath string
}

func New(cfg Config) *SQLStorage {
	s := &SQLStorage{dialect: cfg.dialect(), dataPath: cfg.DataPath}
	if s.dialect == DialectPostgres {
		s.dsn = strings.TrimSpace(cfg.DatabaseURL)
		return s
	}

	if s.dataPath == "" {
		s.dataPath = "./data"
	}
	s.dbPath = filepath.Join(s.dataPath, DatabaseFile)
	s.dsn = s.dbPath + "?_foreign_keys=on&_busy_timeout=5000"
	return s
}

func NewSQLiteStorage(dataPath string) *SQLStorage {
	return New(Config{DataPath: dataPath})
}

// Open creates the storage, connects and brings the schema up to date.
func Open(cfg Config) (*SQLStorage, error) {
	s := New(cfg)
	if err := s.Initialize(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStorage) Dialect() Dialect { return s.dialect }

// Path is the SQLite file path, empty for Postgres.
func (s *SQLStorage) Path() string { return s.dbPath }

func (s *SQLStorage) Initialize() error {
	if _, err := s.GetDB(); err != nil {
		return err
	}

	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := migrationManager.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if s.dialect == DialectSQLite {
		log.Printf("SQLite database initialized at: %s", s.dbPath)
	} else {
		log.Printf("Postgres database initialized")
	}
	return nil
}

func (s *SQLStorage) GetDB() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}

	if s.dialect == DialectSQLite {
		if err := os.MkdirAll(s.dataPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open(string(s.dialect), s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if s.dialect == DialectSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	s.db = db
	return s.db, nil
}

func (s *SQLStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStorage) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStorage) MovieExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT EXISTS(SELECT 1 FROM movies WHERE slug = ?)`), slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check if movie exists: %w", err)
	}
	return exists, nil
}

// InsertMovie inserts a new movie row and returns its id. An existing slug is
// reported as a *ConflictError; rows are never updated here.
func (s *SQLStorage) InsertMovie(ctx context.Context, movie *Movie) (int64, error) {
	actors, err := encodeList(movie.Actors)
	if err != nil {
		return 0, err
	}
	directors, err := encodeList(movie.Directors)
	if err != nil {
		return 0, err
	}
	categories, err := encodeList(movie.Categories)
	if err != nil {
		return 0, err
	}
	countries, err := encodeList(movie.Countries)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	query := `
	INSERT INTO movies (movie_id, slug, name, origin_name, content, type, status,
		thumb_url, poster_url, trailer_url, runtime, episode_current, episode_total,
		quality, lang, is_copyright, sub_docquyen, chieurap, year, view_count,
		actors, directors, categories, countries, modified_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`

	var id int64
	err = s.db.QueryRowContext(ctx, s.rebind(query),
		movie.MovieID, movie.Slug, movie.Name, movie.OriginName, movie.Content, movie.Type, movie.Status,
		movie.ThumbURL, movie.PosterURL, movie.TrailerURL, movie.Time, movie.EpisodeCurrent, movie.EpisodeTotal,
		movie.Quality, movie.Lang, movie.IsCopyright, movie.SubDocquyen, movie.Chieurap, movie.Year, movie.View,
		actors, directors, categories, countries, movie.ModifiedAt, now, now,
	).Scan(&id)
	if err != nil {
		return 0, classifyInsertError(err, "movies", movie.Slug)
	}

	movie.ID = id
	movie.CreatedAt = now
	movie.UpdatedAt = now
	return id, nil
}

// InsertEpisode inserts one episode. A repeat of (movie, server, slug) is
// reported as a *ConflictError.
func (s *SQLStorage) InsertEpisode(ctx context.Context, episode *Episode) error {
	now := time.Now().UTC()
	query := `
	INSERT INTO episodes (movie_id, movie_slug, server_name, name, slug, filename,
		link_embed, link_m3u8, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id
	`

	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(query),
		episode.MovieID, episode.MovieSlug, episode.ServerName, episode.Name, episode.Slug,
		episode.Filename, episode.LinkEmbed, episode.LinkM3U8, now,
	).Scan(&id)
	if err != nil {
		key := fmt.Sprintf("%s/%s/%s", episode.MovieSlug, episode.ServerName, episode.Slug)
		return classifyInsertError(err, "episodes", key)
	}

	episode.ID = id
	episode.CreatedAt = now
	return nil
}

const movieColumns = `id, movie_id, slug, name, origin_name, content, type, status,
	thumb_url, poster_url, trailer_url, runtime, episode_current, episode_total,
	quality, lang, is_copyright, sub_docquyen, chieurap, year, view_count,
	actors, directors, categories, countries, modified_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMovie(row rowScanner) (*Movie, error) {
	var (
		m                                        Movie
		year, view                               sql.NullInt64
		actors, directors, categories, countries []byte
	)

	err := row.Scan(&m.ID, &m.MovieID, &m.Slug, &m.Name, &m.OriginName, &m.Content, &m.Type, &m.Status,
		&m.ThumbURL, &m.PosterURL, &m.TrailerURL, &m.Time, &m.EpisodeCurrent, &m.EpisodeTotal,
		&m.Quality, &m.Lang, &m.IsCopyright, &m.SubDocquyen, &m.Chieurap, &year, &view,
		&actors, &directors, &categories, &countries, &m.ModifiedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if year.Valid {
		y := int(year.Int64)
		m.Year = &y
	}
	if view.Valid {
		v := view.Int64
		m.View = &v
	}
	if err := decodeList(actors, &m.Actors); err != nil {
		return nil, err
	}
	if err := decodeList(directors, &m.Directors); err != nil {
		return nil, err
	}
	if err := decodeList(categories, &m.Categories); err != nil {
		return nil, err
	}
	if err := decodeList(countries, &m.Countries); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLStorage) GetMovieBySlug(ctx context.Context, slug string) (*Movie, error) {
	query := `SELECT ` + movieColumns + ` FROM movies WHERE slug = ?`

	m, err := scanMovie(s.db.QueryRowContext(ctx, s.rebind(query), slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get movie %q: %w", slug, err)
	}
	return m, nil
}

func (s *SQLStorage) RecentMovies(ctx context.Context, limit int) ([]Movie, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + movieColumns + ` FROM movies ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query movies: %w", err)
	}
	defer rows.Close()

	var movies []Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		movies = append(movies, *m)
	}
	return movies, rows.Err()
}

func (s *SQLStorage) ListEpisodes(ctx context.Context, movieID int64) ([]Episode, error) {
	query := `
	SELECT id, movie_id, movie_slug, server_name, name, slug, filename, link_embed, link_m3u8, created_at
	FROM episodes
	WHERE movie_id = ?
	ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), movieID)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var e Episode
		err := rows.Scan(&e.ID, &e.MovieID, &e.MovieSlug, &e.ServerName, &e.Name, &e.Slug,
			&e.Filename, &e.LinkEmbed, &e.LinkM3U8, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

func (s *SQLStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByType: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM movies").Scan(&stats.Movies); err != nil {
		return nil, fmt.Errorf("failed to get movie count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM episodes").Scan(&stats.Episodes); err != nil {
		return nil, fmt.Errorf("failed to get episode count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM movies GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("failed to get type counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			typ   string
			count int
		)
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		stats.ByType[typ] = count
	}
	return stats, rows.Err()
}

func encodeList[T any](items []T) (string, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func decodeList[T any](raw []byte, dst *[]T) error {
	if len(raw) == 0 {
		*dst = []T{}
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode list: %w", err)
	}
	if *dst == nil {
		*dst = []T{}
	}
	return nil
}

// Migration management methods
func (s *SQLStorage) GetMigrationManager() *MigrationManager {
	return NewMigrationManager(s.db, s.dialect)
}

func (s *SQLStorage) GetDatabaseVersion() (int64, error) {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return 0, err
	}
	return migrationManager.Version()
}

func (s *SQLStorage) RunMigrations() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Up()
}

func (s *SQLStorage) RollbackMigration() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Down()
}

func (s *SQLStorage) MigrationStatus() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Status()
}

func (s *SQLStorage) ResetDatabase() error {
	migrationManager := s.GetMigrationManager()
	if err := migrationManager.Initialize(); err != nil {
		return err
	}
	return migrationManager.Reset()
}
