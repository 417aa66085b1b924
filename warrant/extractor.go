package warrant

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/13g7895123/stock.warrant/models"
)

// TableSelectors lists the results-table hints in priority order.
var TableSelectors = []string{
	`table#GCWT1`,
	`table.tbl`,
	`table[id*="warrant"]`,
	`table`,
}

// minCells is the number of leading cells a row must carry to be a record.
const minCells = 5

// Extractor reads warrant rows from a loaded page.
type Extractor struct {
	// TableTimeout bounds the wait for the first table to attach.
	TableTimeout time.Duration
	Logger       *slog.Logger
}

// Extract waits for a table and reads every well-formed row of the results
// table. Only the table wait can fail: a timeout there is returned as a
// PAGE_TIMEOUT error so the caller can retry the page. Anything that goes
// wrong after that degrades to an empty Extraction.
func (e *Extractor) Extract(ctx context.Context, page Page) (models.Extraction, error) {
	log := e.logger()

	if err := page.WaitFor(ctx, "table", e.TableTimeout); err != nil {
		code := models.ErrCodePageLoad
		if errors.Is(err, context.DeadlineExceeded) {
			code = models.ErrCodePageTimeout
		}
		return models.Extraction{}, models.NewScrapeError(code, "results table did not appear", err)
	}

	table, ok, err := page.FindTable(ctx, TableSelectors)
	if err != nil {
		log.Error("locating results table failed", "code", models.ErrCodeStructuralParse, "error", err)
		return models.Extraction{Empty: models.EmptyParseError}, nil
	}
	if !ok {
		log.Warn("no results table on page")
		return models.Extraction{Empty: models.EmptyNoTable}, nil
	}

	rows, err := table.Rows(ctx)
	if err != nil {
		log.Error("reading table rows failed", "code", models.ErrCodeStructuralParse, "error", err)
		return models.Extraction{Empty: models.EmptyParseError}, nil
	}

	var out models.Extraction
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		w, err := parseRow(ctx, row)
		if err != nil {
			log.Debug("skipping row", "row", i, "error", err)
			out.Skipped++
			continue
		}
		out.Records = append(out.Records, w)
	}
	if len(out.Records) == 0 {
		out.Empty = models.EmptyNoRows
	}
	return out, nil
}

func parseRow(ctx context.Context, row Row) (models.Warrant, error) {
	cells, err := row.Cells(ctx)
	if err != nil {
		return models.Warrant{}, models.NewScrapeError(models.ErrCodeRowShape, "reading cells", err)
	}
	if len(cells) < minCells {
		return models.Warrant{}, models.NewScrapeError(models.ErrCodeRowShape, "too few cells", nil)
	}
	var f [minCells]string
	for i := range f {
		f[i] = strings.TrimSpace(cells[i])
		if f[i] == "" {
			return models.Warrant{}, models.NewScrapeError(models.ErrCodeRowShape, "empty cell", nil)
		}
	}
	return models.Warrant{
		Name:          f[0],
		Code:          f[1],
		Price:         f[2],
		Moneyness:     f[3],
		RemainingDays: f[4],
	}, nil
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
