package warrant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linksPage struct {
	fakeSite
	links []Link
	err   error
}

func (p *linksPage) FindLinks(ctx context.Context, selector string) ([]Link, error) {
	if p.err != nil {
		return nil, p.err
	}
	if selector == "a" {
		return p.links, nil
	}
	var out []Link
	for _, l := range p.links {
		if _, err := pageParam(l.Href); err == nil {
			out = append(out, l)
		}
	}
	return out, nil
}

func TestDiscoverLastPage(t *testing.T) {
	tests := []struct {
		name  string
		links []Link
		want  *int
	}{
		{
			name: "title marks last page",
			links: []Link{
				{Href: "?no=2330&r=15&p=2&d=1", Text: "2"},
				{Href: "?no=2330&r=15&p=9&d=1", Title: "最後一頁"},
			},
			want: intPtr(9),
		},
		{
			name: "text 末頁",
			links: []Link{
				{Href: "warrant.aspx?no=2330&p=3", Text: "3"},
				{Href: "warrant.aspx?no=2330&p=6", Text: "末頁"},
			},
			want: intPtr(6),
		},
		{
			name:  "text Last",
			links: []Link{{Href: "/stock/warrant.aspx?no=2330&p=4&d=1", Text: "Last »"}},
			want:  intPtr(4),
		},
		{
			name: "falls back to highest page link",
			links: []Link{
				{Href: "?no=2330&p=2", Text: "2"},
				{Href: "?no=2330&p=5", Text: "5"},
				{Href: "?no=2330&p=3", Text: "3"},
				{Href: "?no=2330&p=x", Text: "?"},
			},
			want: intPtr(5),
		},
		{
			name: "unparsable last link falls back",
			links: []Link{
				{Href: "javascript:void(0)", Title: "最後一頁"},
				{Href: "?no=2330&p=3", Text: "3"},
			},
			want: intPtr(3),
		},
		{
			name: "last link without p falls back",
			links: []Link{
				{Href: "?no=2330&r=15&d=1", Text: "末頁"},
				{Href: "?no=2330&p=2", Text: "2"},
				{Href: "?no=2330&p=4", Text: "4"},
			},
			want: intPtr(4),
		},
		{
			name:  "unusable last link and nothing else",
			links: []Link{{Href: "?no=2330", Title: "最後一頁"}},
			want:  nil,
		},
		{
			name:  "only page one",
			links: []Link{{Href: "?no=2330&p=1", Text: "1"}},
			want:  nil,
		},
		{
			name:  "no pagination",
			links: []Link{{Href: "/index.aspx", Text: "首頁"}},
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiscoverLastPage(context.Background(), &linksPage{links: tt.links}, nil)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestDiscoverLastPage_LookupErrorIsUnknown(t *testing.T) {
	got := DiscoverLastPage(context.Background(), &linksPage{err: errors.New("cdp closed")}, nil)
	assert.Nil(t, got)
}

func intPtr(n int) *int { return &n }
