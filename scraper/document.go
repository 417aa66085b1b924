package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/13g7895123/stock.warrant/warrant"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Document is a parsed snapshot of a rendered page. It answers the table
// and link lookups of warrant.Page without further browser round trips.
type Document struct {
	doc *goquery.Document
}

// NewDocument parses raw HTML.
func NewDocument(raw string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("scraper: parse html: %w", err)
	}
	return &Document{doc: goquery.NewDocumentFromNode(root)}, nil
}

// Has reports whether selector matches any element.
func (d *Document) Has(selector string) (bool, error) {
	m, err := compile(selector)
	if err != nil {
		return false, err
	}
	return d.doc.FindMatcher(m).Length() > 0, nil
}

// FindTable returns the first element matched by the earliest selector
// that matches anything.
func (d *Document) FindTable(selectors []string) (warrant.Table, bool, error) {
	for _, sel := range selectors {
		m, err := compile(sel)
		if err != nil {
			return nil, false, err
		}
		if s := d.doc.FindMatcher(m).First(); s.Length() > 0 {
			return table{s}, true, nil
		}
	}
	return nil, false, nil
}

// FindLinks returns the anchors matched by selector in document order.
func (d *Document) FindLinks(selector string) ([]warrant.Link, error) {
	m, err := compile(selector)
	if err != nil {
		return nil, err
	}
	var links []warrant.Link
	d.doc.FindMatcher(m).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		title, _ := s.Attr("title")
		links = append(links, warrant.Link{
			Href:  href,
			Text:  strings.TrimSpace(s.Text()),
			Title: title,
		})
	})
	return links, nil
}

func compile(selector string) (cascadia.Selector, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("scraper: invalid selector %q: %w", selector, err)
	}
	return m, nil
}

type table struct{ s *goquery.Selection }

func (t table) Rows(ctx context.Context) ([]warrant.Row, error) {
	trs := t.s.Find("tr")
	rows := make([]warrant.Row, 0, trs.Length())
	trs.Each(func(_ int, tr *goquery.Selection) {
		rows = append(rows, row{tr})
	})
	return rows, nil
}

type row struct{ s *goquery.Selection }

func (r row) Cells(ctx context.Context) ([]string, error) {
	tds := r.s.Find("td")
	cells := make([]string, 0, tds.Length())
	tds.Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, td.Text())
	})
	return cells, nil
}
