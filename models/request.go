package models

import "fmt"

// QueryKind selects one of the query presets.
type QueryKind string

const (
	// QueryQuick uses the quick-query file: a name filter and a page cap.
	QueryQuick QueryKind = "quick"
	// QueryNormal crawls every page and keeps every record.
	QueryNormal QueryKind = "normal"
	// QueryOutOfMoney keeps only out-of-the-money warrants.
	QueryOutOfMoney QueryKind = "outofmoney"
)

// Label returns the Chinese name used in chat replies.
func (k QueryKind) Label() string {
	switch k {
	case QueryQuick:
		return "快查"
	case QueryOutOfMoney:
		return "價外"
	default:
		return "查詢"
	}
}

// ParseQueryKind maps a request value to a QueryKind. Empty means normal.
func ParseQueryKind(s string) (QueryKind, error) {
	switch QueryKind(s) {
	case "", QueryNormal:
		return QueryNormal, nil
	case QueryQuick, QueryOutOfMoney:
		return QueryKind(s), nil
	}
	return "", fmt.Errorf("unknown query kind %q", s)
}

// QueryIntent is a validated request to look up warrants for one stock.
type QueryIntent struct {
	Kind         QueryKind `json:"kind"`
	StockCode    string    `json:"stock_code"`
	MaxPages     int       `json:"max_pages,omitempty"`     // 0 means preset default
	NameContains string    `json:"name_contains,omitempty"` // overrides the preset filter
}

// QueryRequest is the query-string form of GET /api/v1/warrants/:code.
type QueryRequest struct {
	Kind     string `form:"kind" binding:"omitempty,oneof=quick normal outofmoney"`
	MaxPages int    `form:"max_pages" binding:"omitempty,min=1,max=100"`
	Name     string `form:"name"`
}

// JobRequest is the payload for POST /api/v1/jobs.
type JobRequest struct {
	// StockCode is the 4-6 digit stock identifier. Required.
	StockCode string `json:"stock_code" binding:"required"`

	// Kind is one of "quick", "normal", "outofmoney". Default: "normal".
	Kind string `json:"kind,omitempty" binding:"omitempty,oneof=quick normal outofmoney"`

	// MaxPages caps the crawl. Default: the preset's value.
	MaxPages int `json:"max_pages,omitempty" binding:"omitempty,min=1,max=100"`

	// Name keeps only warrants whose name contains it.
	Name string `json:"name,omitempty"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Intent converts the request into a QueryIntent.
func (r *JobRequest) Intent() (QueryIntent, error) {
	kind, err := ParseQueryKind(r.Kind)
	if err != nil {
		return QueryIntent{}, err
	}
	return QueryIntent{
		Kind:         kind,
		StockCode:    r.StockCode,
		MaxPages:     r.MaxPages,
		NameContains: r.Name,
	}, nil
}

// ValidStockCode reports whether code is 4 to 6 ASCII digits.
func ValidStockCode(code string) bool {
	if len(code) < 4 || len(code) > 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
