package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"phimgg-importer/scheduler"
	"phimgg-importer/storage"
)

// ImportJob is the scheduled import as seen by the API.
type ImportJob interface {
	// Start begins an import in the background or returns
	// scheduler.ErrJobRunning.
	Start(ctx context.Context) error
	Running() bool
	LastResult() (scheduler.Result, bool)
}

// Catalog is the read side of the store.
type Catalog interface {
	GetStats(ctx context.Context) (*storage.Stats, error)
	RecentMovies(ctx context.Context, limit int) ([]storage.Movie, error)
	GetMovieBySlug(ctx context.Context, slug string) (*storage.Movie, error)
	ListEpisodes(ctx context.Context, movieID int64) ([]storage.Episode, error)
}

// StatusResponse is the body of GET /api/import/status.
type StatusResponse struct {
	Running    bool              `json:"running"`
	LastResult *scheduler.Result `json:"last_result,omitempty"`
	NextRun    *time.Time        `json:"next_run,omitempty"`
}

// MovieResponse is a movie with its episodes.
type MovieResponse struct {
	*storage.Movie
	Episodes []storage.Episode `json:"episodes"`
}

// Server exposes health, import control and catalog endpoints.
type Server struct {
	job     ImportJob
	nextRun func() time.Time
	catalog Catalog

	// baseCtx parents imports triggered over HTTP so they outlive the request.
	baseCtx context.Context
	httpSrv *http.Server
}

// New creates a server listening on addr. nextRun may be nil.
func New(baseCtx context.Context, addr string, job ImportJob, nextRun func() time.Time, catalog Catalog) *Server {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	s := &Server{job: job, nextRun: nextRun, catalog: catalog, baseCtx: baseCtx}
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router builds the route table. Routes hang off the root router so a
// method mismatch is answered with 405.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", healthHandler).Methods("GET")

	r.HandleFunc("/api/import/status", s.importStatusHandler).Methods("GET")
	r.HandleFunc("/api/import/run", s.importRunHandler).Methods("POST")
	r.HandleFunc("/api/catalog/stats", s.catalogStatsHandler).Methods("GET")
	r.HandleFunc("/api/movies", s.recentMoviesHandler).Methods("GET")
	r.HandleFunc("/api/movies/{slug}", s.movieHandler).Methods("GET")

	return r
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	log.Printf("HTTP server listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

func (s *Server) importStatusHandler(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{Running: s.job.Running()}
	if last, ok := s.job.LastResult(); ok {
		resp.LastResult = &last
	}
	if s.nextRun != nil {
		if next := s.nextRun(); !next.IsZero() {
			resp.NextRun = &next
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) importRunHandler(w http.ResponseWriter, _ *http.Request) {
	if err := s.job.Start(s.baseCtx); err != nil {
		if errors.Is(err, scheduler.ErrJobRunning) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Printf("Failed to start import: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) catalogStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.GetStats(r.Context())
	if err != nil {
		log.Printf("Error getting catalog stats: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) recentMoviesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	movies, err := s.catalog.RecentMovies(r.Context(), limit)
	if err != nil {
		log.Printf("Error getting recent movies: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if movies == nil {
		movies = []storage.Movie{}
	}
	writeJSON(w, http.StatusOK, movies)
}

func (s *Server) movieHandler(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	movie, err := s.catalog.GetMovieBySlug(r.Context(), slug)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Movie not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Error getting movie %s: %v", slug, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	episodes, err := s.catalog.ListEpisodes(r.Context(), movie.ID)
	if err != nil {
		log.Printf("Error getting episodes for %s: %v", slug, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if episodes == nil {
		episodes = []storage.Episode{}
	}
	writeJSON(w, http.StatusOK, MovieResponse{Movie: movie, Episodes: episodes})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
