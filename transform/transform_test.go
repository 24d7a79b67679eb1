package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phimgg-importer/ophim"
	"phimgg-importer/storage"
)

func sampleDetail() ophim.MovieDetail {
	return ophim.MovieDetail{
		Status: true,
		Movie: ophim.MovieInfo{
			ID:         "abc123",
			Name:       "  Cô Dâu Hào Môn ",
			Slug:       "co-dau-hao-mon",
			OriginName: "The Rich Bride",
			Content:    "<p>Đoạn một&nbsp;của   phim.</p><p>Đoạn hai<br>dòng mới</p>",
			Type:       "series",
			Status:     "ongoing",
			ThumbURL:   "co-dau-hao-mon-thumb.jpg",
			PosterURL:  "https://cdn.example.com/poster.jpg",
			Year:       ophim.FlexInt{Value: 2024, Valid: true},
			Actor:      []string{"An", " ", ""},
			Director:   []string{""},
			Category:   []ophim.Taxonomy{{ID: "1", Name: "Tình Cảm", Slug: "tinh-cam"}, {}},
			Country:    []ophim.Taxonomy{{ID: "2", Name: "Trung Quốc", Slug: "trung-quoc"}},
			Modified:   ophim.Modified{Time: "2024-05-01T10:00:00.000Z"},
		},
		Episodes: []ophim.ServerEpisodes{
			{ServerName: "Vietsub #1", ServerData: []ophim.EpisodeItem{
				{Name: "1", Slug: "tap-1", LinkEmbed: "https://e/1"},
				{Name: "2", Slug: "tap-2", LinkM3U8: "https://h/2.m3u8"},
			}},
			{ServerName: "Lồng Tiếng", ServerData: []ophim.EpisodeItem{
				{Name: "1", Slug: "tap-1", LinkEmbed: "https://e/lt1"},
			}},
			{ServerName: "Trống", ServerData: nil},
		},
	}
}

func TestTransform_MapsMovieFields(t *testing.T) {
	res := Transform(sampleDetail())
	m := res.Movie

	assert.Equal(t, "abc123", m.MovieID)
	assert.Equal(t, "Cô Dâu Hào Môn", m.Name)
	assert.Equal(t, "co-dau-hao-mon", m.Slug)
	assert.Equal(t, "series", m.Type)
	assert.Equal(t, ImageBaseURL+"co-dau-hao-mon-thumb.jpg", m.ThumbURL)
	assert.Equal(t, "https://cdn.example.com/poster.jpg", m.PosterURL)
	require.NotNil(t, m.Year)
	assert.Equal(t, 2024, *m.Year)
	assert.Nil(t, m.View)
	assert.Equal(t, []string{"An"}, m.Actors)
	assert.Empty(t, m.Directors)
	assert.Equal(t, []storage.Taxonomy{{ID: "1", Name: "Tình Cảm", Slug: "tinh-cam"}}, m.Categories)
	assert.Len(t, m.Countries, 1)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", m.ModifiedAt)
	assert.Equal(t, "Đoạn một của phim.\nĐoạn hai\ndòng mới", m.Content)
}

func TestTransform_FlattensEpisodesInOrder(t *testing.T) {
	d := sampleDetail()
	res := Transform(d)

	require.Len(t, res.Episodes, d.EpisodeCount())
	require.Len(t, res.Episodes, 3)

	assert.Equal(t, "Vietsub #1", res.Episodes[0].ServerName)
	assert.Equal(t, "tap-1", res.Episodes[0].Slug)
	assert.Equal(t, "Vietsub #1", res.Episodes[1].ServerName)
	assert.Equal(t, "tap-2", res.Episodes[1].Slug)
	assert.Equal(t, "Lồng Tiếng", res.Episodes[2].ServerName)

	for _, ep := range res.Episodes {
		assert.Equal(t, "co-dau-hao-mon", ep.MovieSlug)
		assert.Zero(t, ep.MovieID)
	}
}

func TestTransform_IsDeterministic(t *testing.T) {
	assert.Equal(t, Transform(sampleDetail()), Transform(sampleDetail()))
}

func TestTransform_NoEpisodes(t *testing.T) {
	d := sampleDetail()
	d.Episodes = nil

	res := Transform(d)
	assert.NotNil(t, res.Episodes)
	assert.Empty(t, res.Episodes)
}

func TestImageURL(t *testing.T) {
	assert.Equal(t, "", imageURL("  "))
	assert.Equal(t, ImageBaseURL+"a.jpg", imageURL("/a.jpg"))
	assert.Equal(t, "https://cdn/a.jpg", imageURL("//cdn/a.jpg"))
	assert.Equal(t, "http://x/a.jpg", imageURL("http://x/a.jpg"))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "", plainText(""))
	assert.Equal(t, "no markup", plainText("no markup"))
	assert.Equal(t, "a & b", plainText("<p>a &amp; b</p>"))
}
