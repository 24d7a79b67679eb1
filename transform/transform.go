// Package transform turns OPhim movie payloads into catalog rows and checks
// that the rows carry the fields the catalog needs.
package transform

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"phimgg-importer/ophim"
	"phimgg-importer/storage"
)

// ImageBaseURL is where OPhim serves the relative poster and thumb paths.
const ImageBaseURL = "https://img.ophim.live/uploads/movies/"

// Result is one movie and its episodes flattened across all servers.
type Result struct {
	Movie    storage.Movie
	Episodes []storage.Episode
}

// Transform maps a detail payload onto the catalog schema. It is pure: the
// same payload always yields the same result, with one episode per entry of
// every server, in source order. Episode.MovieID is left at zero for the
// caller to fill in once the movie row exists.
func Transform(detail ophim.MovieDetail) Result {
	info := detail.Movie
	slug := strings.TrimSpace(info.Slug)

	movie := storage.Movie{
		MovieID:        strings.TrimSpace(info.ID),
		Slug:           slug,
		Name:           strings.TrimSpace(info.Name),
		OriginName:     strings.TrimSpace(info.OriginName),
		Content:        plainText(info.Content),
		Type:           strings.TrimSpace(info.Type),
		Status:         strings.TrimSpace(info.Status),
		ThumbURL:       imageURL(info.ThumbURL),
		PosterURL:      imageURL(info.PosterURL),
		TrailerURL:     strings.TrimSpace(info.TrailerURL),
		Time:           strings.TrimSpace(info.Time),
		EpisodeCurrent: strings.TrimSpace(info.EpisodeCurrent),
		EpisodeTotal:   strings.TrimSpace(info.EpisodeTotal),
		Quality:        strings.TrimSpace(info.Quality),
		Lang:           strings.TrimSpace(info.Lang),
		IsCopyright:    info.IsCopyright,
		SubDocquyen:    info.SubDocquyen,
		Chieurap:       info.Chieurap,
		Year:           info.Year.Int(),
		View:           info.View.Int64(),
		Actors:         cleanNames(info.Actor),
		Directors:      cleanNames(info.Director),
		Categories:     cleanTaxonomies(info.Category),
		Countries:      cleanTaxonomies(info.Country),
		ModifiedAt:     strings.TrimSpace(info.Modified.Time),
	}

	episodes := make([]storage.Episode, 0, detail.EpisodeCount())
	for _, server := range detail.Episodes {
		serverName := strings.TrimSpace(server.ServerName)
		for _, item := range server.ServerData {
			episodes = append(episodes, storage.Episode{
				MovieSlug:  slug,
				ServerName: serverName,
				Name:       strings.TrimSpace(item.Name),
				Slug:       strings.TrimSpace(item.Slug),
				Filename:   strings.TrimSpace(item.Filename),
				LinkEmbed:  strings.TrimSpace(item.LinkEmbed),
				LinkM3U8:   strings.TrimSpace(item.LinkM3U8),
			})
		}
	}

	return Result{Movie: movie, Episodes: episodes}
}

func imageURL(p string) string {
	p = strings.TrimSpace(p)
	switch {
	case p == "":
		return ""
	case strings.HasPrefix(p, "http://"), strings.HasPrefix(p, "https://"):
		return p
	case strings.HasPrefix(p, "//"):
		return "https:" + p
	default:
		return ImageBaseURL + strings.TrimLeft(p, "/")
	}
}

// plainText strips the markup OPhim puts in descriptions, keeping one line
// per paragraph.
func plainText(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func cleanTaxonomies(items []ophim.Taxonomy) []storage.Taxonomy {
	out := make([]storage.Taxonomy, 0, len(items))
	for _, t := range items {
		name := strings.TrimSpace(t.Name)
		slug := strings.TrimSpace(t.Slug)
		if name == "" && slug == "" {
			continue
		}
		out = append(out, storage.Taxonomy{ID: strings.TrimSpace(t.ID), Name: name, Slug: slug})
	}
	return out
}
