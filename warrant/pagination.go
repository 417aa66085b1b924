package warrant

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

// lastPageLabels are anchor texts the site uses for its "last page" control.
var lastPageLabels = []string{"末頁", "Last"}

// DiscoverLastPage inspects the pagination controls of the loaded page and
// returns the number of the final page, or nil when it cannot tell.
// An anchor marked as the last page wins when its href carries a numeric p.
// If it has none, discovery does not stop there: the highest p= among the
// page links is used instead.
// It never fails: lookup or parse errors are logged and read as unknown.
func DiscoverLastPage(ctx context.Context, page Page, log *slog.Logger) *int {
	if log == nil {
		log = slog.Default()
	}

	anchors, err := page.FindLinks(ctx, "a")
	if err != nil {
		log.Warn("listing anchors failed", "error", err)
		return nil
	}

	if n, ok := lastPageLink(anchors); ok {
		return &n
	}

	links, err := page.FindLinks(ctx, `a[href*="p="]`)
	if err != nil {
		log.Warn("listing page links failed", "error", err)
		return nil
	}
	last := 1
	for _, l := range links {
		if n, err := pageParam(l.Href); err == nil && n > last {
			last = n
		}
	}
	if last <= 1 {
		return nil
	}
	return &last
}

// lastPageLink finds the first anchor labelled as the last page and reads
// its page number.
func lastPageLink(anchors []Link) (int, bool) {
	for _, a := range anchors {
		if !isLastPageAnchor(a) {
			continue
		}
		n, err := pageParam(a.Href)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func isLastPageAnchor(a Link) bool {
	if strings.Contains(a.Title, "最後") {
		return true
	}
	for _, label := range lastPageLabels {
		if strings.Contains(a.Text, label) {
			return true
		}
	}
	return false
}

// pageParam extracts the p query parameter from a possibly relative href.
func pageParam(href string) (int, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return 0, err
	}
	v := u.Query().Get("p")
	if v == "" {
		return 0, fmt.Errorf("no page parameter in %q", href)
	}
	return strconv.Atoi(v)
}
