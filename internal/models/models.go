package models

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var externalIDPattern = regexp.MustCompile(`/fiction/(\d+)`)

// Metrics holds the measured values of a story at one observation.
// A nil field means the value is unknown.
type Metrics struct {
	Rating       *float64 `db:"rating" json:"rating" yaml:"rating,omitempty"`
	Followers    *int64   `db:"followers" json:"followers" yaml:"followers,omitempty"`
	Pages        *int64   `db:"pages" json:"pages" yaml:"pages,omitempty"`
	Chapters     *int64   `db:"chapters" json:"chapters" yaml:"chapters,omitempty"`
	Views        *int64   `db:"views" json:"views" yaml:"views,omitempty"`
	Favorites    *int64   `db:"favorites" json:"favorites" yaml:"favorites,omitempty"`
	RatingsCount *int64   `db:"ratings_count" json:"ratings_count" yaml:"ratings_count,omitempty"`
}

// Merge returns m with every known field of other laid over it.
func (m Metrics) Merge(other Metrics) Metrics {
	out := m
	if other.Rating != nil {
		out.Rating = other.Rating
	}
	mergeInt(&out.Followers, other.Followers)
	mergeInt(&out.Pages, other.Pages)
	mergeInt(&out.Chapters, other.Chapters)
	mergeInt(&out.Views, other.Views)
	mergeInt(&out.Favorites, other.Favorites)
	mergeInt(&out.RatingsCount, other.RatingsCount)
	return out
}

func mergeInt(dst **int64, src *int64) {
	if src != nil {
		*dst = src
	}
}

// ChangedFrom reports whether any known field of m differs from prev.
// Unknown fields in m are never considered a change.
func (m Metrics) ChangedFrom(prev Metrics) bool {
	if m.Rating != nil && (prev.Rating == nil || *prev.Rating != *m.Rating) {
		return true
	}
	return intChanged(m.Followers, prev.Followers) ||
		intChanged(m.Pages, prev.Pages) ||
		intChanged(m.Chapters, prev.Chapters) ||
		intChanged(m.Views, prev.Views) ||
		intChanged(m.Favorites, prev.Favorites) ||
		intChanged(m.RatingsCount, prev.RatingsCount)
}

func intChanged(next, prev *int64) bool {
	if next == nil {
		return false
	}
	return prev == nil || *prev != *next
}

// LogValue implements slog.LogValuer, listing only the known fields.
func (m Metrics) LogValue() slog.Value {
	var attrs []slog.Attr
	if m.Rating != nil {
		attrs = append(attrs, slog.Float64("rating", *m.Rating))
	}
	for _, f := range []struct {
		key string
		v   *int64
	}{
		{"followers", m.Followers},
		{"pages", m.Pages},
		{"chapters", m.Chapters},
		{"views", m.Views},
		{"favorites", m.Favorites},
		{"ratings_count", m.RatingsCount},
	} {
		if f.v != nil {
			attrs = append(attrs, slog.Int64(f.key, *f.v))
		}
	}
	return slog.GroupValue(attrs...)
}

// IsEmpty reports whether no field is known.
func (m Metrics) IsEmpty() bool {
	return m == Metrics{}
}

// Observation is one sighting of a story, as scraped.
type Observation struct {
	Title   string   `json:"title" yaml:"title"`
	URL     string   `json:"url" yaml:"url"`
	Genres  []string `json:"genres" yaml:"genres,omitempty"`
	Metrics `yaml:",inline"`
}

// ExternalID returns the site-assigned id embedded in the observation's URL.
func (o Observation) ExternalID() (int64, bool) {
	return ExternalID(o.URL)
}

// GenreList returns the genres joined for storage, or "" when there are none.
func (o Observation) GenreList() string {
	return strings.Join(o.Genres, ", ")
}

// ExternalID extracts the numeric id from a URL containing /fiction/<id>.
func ExternalID(url string) (int64, bool) {
	match := externalIDPattern.FindStringSubmatch(url)
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Int returns a pointer to v.
func Int(v int64) *int64 {
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
