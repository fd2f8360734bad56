// Package parser turns a rendered results page into SearchResult records.
//
// Everything that depends on the engine's markup (CSS classes, query
// parameter names, the origin relative links resolve against) lives in a
// Markup value, so a markup change means a new Markup, not new code.
package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/revimg/models"
	"golang.org/x/net/html"
)

// Extractor converts the HTML of one results page into result records.
type Extractor interface {
	Extract(rawHTML string) ([]models.SearchResult, error)
}

// Markup describes where a results page keeps its data.
type Markup struct {
	// Base is the URL thumbnail hrefs are resolved against.
	Base string

	// ContainerSelector matches one result block.
	ContainerSelector string

	// ThumbSelector matches the thumbnail anchor within a block.
	// Only the first match is used.
	ThumbSelector string

	// Query parameter names on the resolved thumbnail URL.
	ImageParam  string
	PageParam   string
	WidthParam  string
	HeightParam string
}

// GoogleMarkup is the markup of Google's search-by-image results page.
var GoogleMarkup = Markup{
	Base:              "https://www.google.com/searchbyimage/upload",
	ContainerSelector: ".g .rc",
	ThumbSelector:     ".s .th a",
	ImageParam:        "imgurl",
	PageParam:         "imgrefurl",
	WidthParam:        "w",
	HeightParam:       "h",
}

type markupExtractor struct {
	markup    Markup
	base      *url.URL
	container cascadia.Selector
	thumb     cascadia.Selector
}

// NewExtractor compiles m into an Extractor. It fails on an unparsable base
// URL or selector so bad configuration is caught at startup.
func NewExtractor(m Markup) (Extractor, error) {
	base, err := url.Parse(m.Base)
	if err != nil {
		return nil, fmt.Errorf("parser: base url %q: %w", m.Base, err)
	}
	container, err := cascadia.Compile(m.ContainerSelector)
	if err != nil {
		return nil, fmt.Errorf("parser: container selector %q: %w", m.ContainerSelector, err)
	}
	thumb, err := cascadia.Compile(m.ThumbSelector)
	if err != nil {
		return nil, fmt.Errorf("parser: thumbnail selector %q: %w", m.ThumbSelector, err)
	}
	return &markupExtractor{
		markup:    m,
		base:      base,
		container: container,
		thumb:     thumb,
	}, nil
}

// Extract walks result containers in document order. Containers without a
// thumbnail anchor (or with an empty href) are not image results and are
// skipped. Malformed dimensions are kept as invalid rather than dropping the
// record.
func (e *markupExtractor) Extract(rawHTML string) ([]models.SearchResult, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parser: parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	results := []models.SearchResult{}
	doc.FindMatcher(e.container).Each(func(_ int, block *goquery.Selection) {
		href, ok := block.FindMatcher(e.thumb).First().Attr("href")
		if !ok || href == "" {
			return
		}
		link, err := e.base.Parse(href)
		if err != nil {
			return
		}
		q := queryParams(link.RawQuery)
		results = append(results, models.SearchResult{
			Image:  q[e.markup.ImageParam],
			Page:   q[e.markup.PageParam],
			Width:  models.ParseDimension(q[e.markup.WidthParam]),
			Height: models.ParseDimension(q[e.markup.HeightParam]),
		})
	})
	return results, nil
}

// queryParams splits a query string on '&' only and keeps the first value of
// each key. Pairs holding a raw ';' (url.ParseQuery rejects those) survive,
// and a pair with a bad escape keeps its raw text.
func queryParams(rawQuery string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			val = v
		}
		if _, seen := params[key]; !seen {
			params[key] = val
		}
	}
	return params
}
