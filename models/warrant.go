package models

import "time"

// Warrant is one row of the warrant listing. All fields are kept as the
// text the site displays; none of them is parsed into a number.
type Warrant struct {
	Name          string `json:"name"`
	Code          string `json:"code"`
	Price         string `json:"price"`
	Moneyness     string `json:"moneyness"` // e.g. "價外 10.65%"
	RemainingDays string `json:"remaining_days"`
}

// PageStatus tags a PageOutcome.
type PageStatus int

const (
	// PageSuccess means the page loaded and extraction ran. Records may be empty.
	PageSuccess PageStatus = iota
	// PageFailed means every attempt to load the page failed.
	PageFailed
)

func (s PageStatus) String() string {
	if s == PageFailed {
		return "failed"
	}
	return "success"
}

// EmptyReason explains why a successful page produced no records.
type EmptyReason int

const (
	EmptyNone       EmptyReason = iota // page had records
	EmptyNoRows                        // table found, no row survived
	EmptyNoTable                       // no table matched
	EmptyParseError                    // the table could not be read
)

func (r EmptyReason) String() string {
	switch r {
	case EmptyNoRows:
		return "no_rows"
	case EmptyNoTable:
		return "no_table"
	case EmptyParseError:
		return "parse_error"
	default:
		return "none"
	}
}

// Extraction is what the row extractor produced for one loaded page.
type Extraction struct {
	Records []Warrant
	Empty   EmptyReason
	Skipped int // rows dropped for having the wrong shape
}

// PageOutcome is the result of fetching one page number.
type PageOutcome struct {
	Page     int
	Status   PageStatus
	Records  []Warrant
	Empty    EmptyReason
	Attempts int
	Err      error // last error when Status is PageFailed
}

// FilterSpec narrows a crawl. MaxPages bounds how many pages are fetched;
// the other fields only select which of the fetched records are returned.
type FilterSpec struct {
	MaxPages       int    `json:"max_pages,omitempty"`     // 0 means every page
	NameContains   string `json:"name_contains,omitempty"` // empty means no name filter
	OutOfMoneyOnly bool   `json:"out_of_money_only,omitempty"`
}

// CrawlResult is the snapshot returned once a crawl finishes.
type CrawlResult struct {
	StockCode    string        `json:"stock_code"`
	Records      []Warrant     `json:"records"`
	Scanned      int           `json:"scanned"`
	FailedPages  []int         `json:"failed_pages"`
	LastPage     *int          `json:"last_page,omitempty"`
	PagesFetched int           `json:"pages_fetched"`
	Duration     time.Duration `json:"-"`
}
