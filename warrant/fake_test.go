package warrant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// pageScript describes how the fake site answers one page number.
type pageScript struct {
	navFailures int   // leading Navigate calls that fail
	navErr      error // error returned by failing navigations
	waitErr     error // returned by WaitFor on every load
	noTable     bool
	rowsErr     error
	rows        [][]string // first row is the header
	links       []Link
}

func header() []string {
	return []string{"權證名稱", "代號", "價格", "價內外", "剩餘天數"}
}

// recordsPage builds a script with n well-formed data rows.
func recordsPage(n int) *pageScript {
	rows := [][]string{header()}
	for i := 0; i < n; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("元大%02d購", i),
			fmt.Sprintf("0%05d", i),
			"1.23",
			"價外 5.2%",
			"120",
		})
	}
	return &pageScript{rows: rows}
}

type fakeSite struct {
	mu          sync.Mutex
	pages       map[int]*pageScript
	navigations []int
	navCount    map[int]int
	current     *pageScript
	released    int
}

func newFakeSite(pages map[int]*pageScript) *fakeSite {
	return &fakeSite{pages: pages, navCount: map[int]int{}}
}

// fetched returns the distinct page numbers navigated to, in order.
func (f *fakeSite) fetched() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int
	seen := map[int]bool{}
	for _, p := range f.navigations {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeSite) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := pageParam(url)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigations = append(f.navigations, n)
	f.navCount[n]++

	script, ok := f.pages[n]
	if !ok {
		script = &pageScript{rows: [][]string{header()}}
	}
	if f.navCount[n] <= script.navFailures {
		f.current = nil
		if script.navErr != nil {
			return script.navErr
		}
		return errors.New("net::ERR_CONNECTION_RESET")
	}
	f.current = script
	return nil
}

func (f *fakeSite) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return context.DeadlineExceeded
	}
	return f.current.waitErr
}

func (f *fakeSite) FindTable(ctx context.Context, selectors []string) (Table, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil || f.current.noTable {
		return nil, false, nil
	}
	return fakeTable{rows: f.current.rows, err: f.current.rowsErr}, true, nil
}

func (f *fakeSite) FindLinks(ctx context.Context, selector string) ([]Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, nil
	}
	if selector == "a" {
		return f.current.links, nil
	}
	var out []Link
	for _, l := range f.current.links {
		if strings.Contains(l.Href, "p=") {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeSite) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *fakeSite) Acquire(ctx context.Context, headless bool) (Session, error) {
	return f, nil
}

type fakeTable struct {
	rows [][]string
	err  error
}

func (t fakeTable) Rows(ctx context.Context) ([]Row, error) {
	if t.err != nil {
		return nil, t.err
	}
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = fakeRow(r)
	}
	return out, nil
}

type fakeRow []string

func (r fakeRow) Cells(ctx context.Context) ([]string, error) {
	return r, nil
}

type brokenRow struct{}

func (brokenRow) Cells(ctx context.Context) ([]string, error) {
	return nil, errors.New("node detached")
}

type failingLauncher struct{ err error }

func (l failingLauncher) Acquire(ctx context.Context, headless bool) (Session, error) {
	return nil, l.err
}

// sleepRecorder replaces real sleeps so tests run instantly.
type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestCrawler(l Launcher) (*Crawler, *sleepRecorder) {
	c := NewCrawler(l, Options{}, nil, nil)
	rec := &sleepRecorder{}
	c.sleep = rec.sleep
	c.jitter = func() float64 { return 0.5 }
	return c, rec
}
