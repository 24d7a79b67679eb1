package transform

import (
	"fmt"
	"strings"

	"phimgg-importer/storage"
)

// ValidationResult lists every missing field. Errors is never nil.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func newResult(errs []string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ValidateMovie requires a name and a slug.
func ValidateMovie(m storage.Movie) ValidationResult {
	var errs []string
	if blank(m.Name) {
		errs = append(errs, "name is required")
	}
	if blank(m.Slug) {
		errs = append(errs, "slug is required")
	}
	return newResult(errs)
}

// ValidateEpisode requires a name, a slug, a server name and at least one
// playable link.
func ValidateEpisode(e storage.Episode) ValidationResult {
	var errs []string
	if blank(e.Name) {
		errs = append(errs, "name is required")
	}
	if blank(e.Slug) {
		errs = append(errs, "slug is required")
	}
	if blank(e.ServerName) {
		errs = append(errs, "server_name is required")
	}
	if blank(e.LinkEmbed) && blank(e.LinkM3U8) {
		errs = append(errs, "link_embed or link_m3u8 is required")
	}
	return newResult(errs)
}

// ValidationError carries the field errors of a record that was rejected.
type ValidationError struct {
	Slug   string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %q: %s", e.Slug, strings.Join(e.Errors, "; "))
}
