package parser

import (
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/johnstcn/freshfiction/internal/models"
)

var (
	ErrNoContainer   = errors.New("stats container not found")
	ErrLabelNotFound = errors.New("label not found")
	ErrUnparseable   = errors.New("value not parseable")

	listingRating = regexp.MustCompile(`([0-9.]+)\s*/\s*5`)
	decimal       = regexp.MustCompile(`[0-9.]+`)
)

// detailLabels maps the labels of the detail page stats block to metrics.
// Order matters: the first label item containing the text wins.
var detailLabels = []struct {
	label string
	field string
	set   func(m *models.Metrics, v int64)
}{
	{"Total Views", "views", func(m *models.Metrics, v int64) { m.Views = &v }},
	{"Followers", "followers", func(m *models.Metrics, v int64) { m.Followers = &v }},
	{"Favorites", "favorites", func(m *models.Metrics, v int64) { m.Favorites = &v }},
	{"Ratings", "ratings_count", func(m *models.Metrics, v int64) { m.RatingsCount = &v }},
	{"Chapters", "chapters", func(m *models.Metrics, v int64) { m.Chapters = &v }},
	{"Pages", "pages", func(m *models.Metrics, v int64) { m.Pages = &v }},
}

// Extractor pulls story fields out of listing and detail page markup.
type Extractor struct {
	base *url.URL
	log  *slog.Logger
}

type Deps struct {
	BaseURL string
	Logger  *slog.Logger
}

// NewExtractor returns an Extractor resolving links against d.BaseURL.
func NewExtractor(d Deps) (*Extractor, error) {
	base, err := url.Parse(d.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	log := d.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Extractor{
		base: base,
		log:  log.With("component", "extractor"),
	}, nil
}

// ListingFragments returns the story blocks of a listing page.
func (e *Extractor) ListingFragments(root *html.Node) []*html.Node {
	nodes, strategy := FirstMatch(root, ListingStrategies...)
	e.log.Debug("listing fragments", "count", len(nodes), "strategy", strategy)
	return nodes
}

// ListingItem extracts one story from a listing page fragment. It returns
// false when the fragment carries no title.
func (e *Extractor) ListingItem(fragment *html.Node) (models.Observation, bool) {
	item := goquery.NewDocumentFromNode(fragment).Selection

	heading := item.Find("h2.fiction-title").First()
	if heading.Length() == 0 {
		e.log.Debug("skip fragment without title element")
		return models.Observation{}, false
	}

	obs := models.Observation{Title: "Unknown"}
	if link := heading.Find("a").First(); link.Length() > 0 {
		obs.Title = cleanText(link.Text())
		if href := link.AttrOr("href", ""); href != "" {
			obs.URL = e.resolve(href)
		}
	}
	if obs.Title == "" {
		e.log.Debug("skip fragment with empty title")
		return models.Observation{}, false
	}

	item.Find("span.tags").First().Find("a.label").Each(func(_ int, tag *goquery.Selection) {
		if label := cleanText(tag.Text()); label != "" {
			obs.Genres = append(obs.Genres, label)
		}
	})

	stats := item.Find("div.stats").First()
	stats.Find("span").Each(func(_ int, span *goquery.Selection) {
		text := cleanText(span.Text())
		switch {
		case strings.Contains(text, "View"):
			e.setInt(&obs.Views, "views", text)
		case strings.Contains(text, "Chapter"):
			e.setInt(&obs.Chapters, "chapters", text)
		}
	})

	if span := stats.Find("span.font-red-sunglo").First(); span.Length() > 0 {
		rating, err := parseListingRating(cleanText(span.Text()))
		if err != nil {
			e.log.Debug("listing rating", "title", obs.Title, "err", err)
		} else {
			obs.Rating = &rating
		}
	}

	return obs, true
}

// DetailStats extracts the stats block and rating from a story page.
func (e *Extractor) DetailStats(root *html.Node) models.Metrics {
	var m models.Metrics
	doc := goquery.NewDocumentFromNode(root)

	container := doc.Find("div.portlet-body.fiction-stats").First()
	for _, l := range detailLabels {
		v, err := findStat(container, l.label)
		if err != nil {
			e.log.Debug("detail stat", "field", l.field, "err", err)
			continue
		}
		l.set(&m, v)
	}

	rating, err := parseDetailRating(doc.Find("span.font-red-sunglo").First())
	if err != nil {
		e.log.Debug("detail stat", "field", "rating", "err", err)
	} else {
		m.Rating = &rating
	}

	return m
}

func (e *Extractor) setInt(dst **int64, field, text string) {
	v, ok := ParseNumber(text)
	if !ok {
		e.log.Debug("listing stat", "field", field, "text", text, "err", ErrUnparseable)
		return
	}
	*dst = &v
}

func (e *Extractor) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return e.base.String() + href
	}
	return e.base.ResolveReference(ref).String()
}

func findStat(container *goquery.Selection, label string) (int64, error) {
	if container.Length() == 0 {
		return 0, ErrNoContainer
	}

	var value *goquery.Selection
	container.Find("li.bold, li.uppercase").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if !strings.Contains(cleanText(li.Text()), label) {
			return true
		}
		next := li.NextAllFiltered("li").First()
		if next.Length() == 0 {
			return true
		}
		value = next
		return false
	})
	if value == nil {
		return 0, errors.Wrap(ErrLabelNotFound, label)
	}

	text := cleanText(value.Text())
	v, ok := ParseNumber(text)
	if !ok {
		return 0, errors.Wrapf(ErrUnparseable, "%s: %q", label, text)
	}
	return v, nil
}

func parseListingRating(text string) (float64, error) {
	match := listingRating.FindStringSubmatch(text)
	if match == nil {
		return 0, errors.Wrapf(ErrUnparseable, "rating %q", text)
	}
	return strconv.ParseFloat(match[1], 64)
}

func parseDetailRating(span *goquery.Selection) (float64, error) {
	if span.Length() == 0 {
		return 0, errors.New("rating indicator not found")
	}
	text := span.AttrOr("aria-label", "")
	if text == "" {
		text = span.AttrOr("data-content", "")
	}
	match := decimal.FindString(text)
	if match == "" {
		return 0, errors.Wrapf(ErrUnparseable, "rating %q", text)
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrUnparseable, "rating %q", text)
	}
	return v, nil
}
