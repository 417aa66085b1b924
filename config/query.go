package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Quick-query defaults, used when the preset file or one of its keys is absent.
const (
	DefaultQuickHeadless = true
	DefaultQuickMaxPages = 3
	DefaultQuickFilter   = "元大"
)

// QueryFile is the JSON preset file used by quick queries and the CLI:
//
//	{"headless": true, "max_pages": 3, "filter_name": "元大"}
//
// A null max_pages means every page; a null filter_name means no filter.
type QueryFile struct {
	Headless   *bool   `json:"headless"`
	MaxPages   *int    `json:"max_pages"`
	FilterName *string `json:"filter_name"`

	// set tracks which keys were present, so an explicit null differs
	// from a missing key.
	set map[string]bool
}

// UnmarshalJSON records which keys appear in the document.
func (q *QueryFile) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	type plain QueryFile
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*q = QueryFile(p)
	q.set = make(map[string]bool, len(raw))
	for k := range raw {
		q.set[k] = true
	}
	return nil
}

// LoadQueryFile reads the preset file at path. A missing file returns
// fs.ErrNotExist so callers can choose between defaults and failing.
func LoadQueryFile(path string) (*QueryFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: query file %s: %w", path, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("config: read query file: %w", err)
	}
	var q QueryFile
	if err := json.Unmarshal(b, &q); err != nil {
		return nil, fmt.Errorf("config: parse query file %s: %w", path, err)
	}
	return &q, nil
}

// HeadlessOr returns the headless flag, or fallback when absent.
func (q *QueryFile) HeadlessOr(fallback bool) bool {
	if q == nil || q.Headless == nil {
		return fallback
	}
	return *q.Headless
}

// MaxPagesOr returns the page cap (0 = every page). A missing key yields
// fallback; an explicit null yields 0.
func (q *QueryFile) MaxPagesOr(fallback int) int {
	if q == nil || !q.set["max_pages"] {
		return fallback
	}
	if q.MaxPages == nil {
		return 0
	}
	return *q.MaxPages
}

// FilterNameOr returns the name filter ("" = none). A missing key yields
// fallback; an explicit null yields "".
func (q *QueryFile) FilterNameOr(fallback string) string {
	if q == nil || !q.set["filter_name"] {
		return fallback
	}
	if q.FilterName == nil {
		return ""
	}
	return *q.FilterName
}
