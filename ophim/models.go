package ophim

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ListResponse is the payload of the paginated "recently updated" endpoint.
type ListResponse struct {
	Status     bool            `json:"status"`
	Items      []MovieListItem `json:"items"`
	PathImage  string          `json:"pathImage"`
	Pagination Pagination      `json:"pagination"`
}

type Pagination struct {
	TotalItems        int `json:"totalItems"`
	TotalItemsPerPage int `json:"totalItemsPerPage"`
	CurrentPage       int `json:"currentPage"`
	TotalPages        int `json:"totalPages"`
}

// MovieListItem is the summary record for one title in a list page. Only the
// slug is needed to decide whether a detail fetch is worth it.
type MovieListItem struct {
	ID         string   `json:"_id"`
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	OriginName string   `json:"origin_name"`
	PosterURL  string   `json:"poster_url"`
	ThumbURL   string   `json:"thumb_url"`
	Year       FlexInt  `json:"year"`
	Modified   Modified `json:"modified"`
}

type Modified struct {
	Time string `json:"time"`
}

// ListPage is what the client hands back for one page of the catalog.
type ListPage struct {
	Page       int
	Items      []MovieListItem
	PathImage  string
	TotalItems int
	TotalPages int
}

// MovieDetail is the full payload for one title, including every streaming
// server and its ordered episode list.
type MovieDetail struct {
	Status   bool             `json:"status"`
	Msg      string           `json:"msg"`
	Movie    MovieInfo        `json:"movie"`
	Episodes []ServerEpisodes `json:"episodes"`
}

type MovieInfo struct {
	ID             string     `json:"_id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	OriginName     string     `json:"origin_name"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
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
	Year           FlexInt    `json:"year"`
	View           FlexInt    `json:"view"`
	Actor          []string   `json:"actor"`
	Director       []string   `json:"director"`
	Category       []Taxonomy `json:"category"`
	Country        []Taxonomy `json:"country"`
	Modified       Modified   `json:"modified"`
}

// Taxonomy is a category or country reference.
type Taxonomy struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ServerEpisodes groups the episodes offered by one streaming server.
type ServerEpisodes struct {
	ServerName string        `json:"server_name"`
	ServerData []EpisodeItem `json:"server_data"`
}

type EpisodeItem struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Filename  string `json:"filename"`
	LinkEmbed string `json:"link_embed"`
	LinkM3U8  string `json:"link_m3u8"`
}

// EpisodeCount is the number of episode entries across all servers.
func (d MovieDetail) EpisodeCount() int {
	n := 0
	for _, s := range d.Episodes {
		n += len(s.ServerData)
	}
	return n
}

// FlexInt decodes numbers the upstream sends either as JSON numbers or as
// strings. Anything that does not parse is treated as absent rather than
// failing the whole payload.
type FlexInt struct {
	Value int64
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	*f = FlexInt{}

	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexInt{Value: n, Valid: true}
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		*f = FlexInt{Value: int64(v), Valid: true}
	}
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Int returns the value as *int, nil when absent.
func (f FlexInt) Int() *int {
	if !f.Valid {
		return nil
	}
	v := int(f.Value)
	return &v
}

// Int64 returns the value as *int64, nil when absent.
func (f FlexInt) Int64() *int64 {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}
