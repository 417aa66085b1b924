package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/13g7895123/stock.warrant/models"
	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("-", 80)
)

func validFormat(f string) bool {
	return f == formatTable || f == formatCSV || f == formatJSON
}

func printSettings(w io.Writer, stockCode string, s settings) {
	pages := "全部"
	if s.filter.MaxPages > 0 {
		pages = fmt.Sprintf("%d 頁", s.filter.MaxPages)
	}
	filter := "無"
	if s.filter.NameContains != "" {
		filter = fmt.Sprintf("權證名稱包含 \"%s\"", s.filter.NameContains)
	}
	if s.filter.OutOfMoneyOnly {
		if filter == "無" {
			filter = "僅價外"
		} else {
			filter += "，僅價外"
		}
	}

	fmt.Fprintf(w, "\n%s\n查詢設定\n%s\n", heavyRule, heavyRule)
	fmt.Fprintf(w, "股票代號: %s\n", stockCode)
	fmt.Fprintf(w, "Headless 模式: %s\n", titleBool(s.headless))
	fmt.Fprintf(w, "爬取頁數: %s\n", pages)
	fmt.Fprintf(w, "篩選條件: %s\n", filter)
	fmt.Fprintf(w, "%s\n\n", heavyRule)
}

func printResult(w io.Writer, format string, res *models.CrawlResult) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(res)
	case formatCSV:
		printCSV(w, res)
	default:
		printTable(w, res)
	}
	printStats(w, res)
	return nil
}

func printTable(w io.Writer, res *models.CrawlResult) {
	if len(res.Records) == 0 {
		fmt.Fprintln(w, "未找到任何權證資料")
		return
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "權證名稱", "代號", "價格", "價內外", "剩餘天數"})
	for i, r := range res.Records {
		t.AppendRow(table.Row{i + 1, r.Name, r.Code, r.Price, r.Moneyness, r.RemainingDays})
	}
	t.Render()
}

func printCSV(w io.Writer, res *models.CrawlResult) {
	fmt.Fprintf(w, "\n%s\n權證資料爬取結果\n%s\n", heavyRule, heavyRule)
	if len(res.Records) == 0 {
		fmt.Fprintln(w, "未找到任何權證資料")
		return
	}
	fmt.Fprintln(w, "權證名稱,代號,價格,價內外,剩餘天數")
	fmt.Fprintln(w, lightRule)
	for _, r := range res.Records {
		fmt.Fprintf(w, "%s,%s,%s,%s,%s\n", r.Name, r.Code, r.Price, r.Moneyness, r.RemainingDays)
	}
}

func printStats(w io.Writer, res *models.CrawlResult) {
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintln(w, "統計資訊:")
	fmt.Fprintf(w, "  總筆數: %d\n", len(res.Records))
	if n := len(res.FailedPages); n > 0 {
		pages := make([]string, n)
		for i, p := range res.FailedPages {
			pages[i] = strconv.Itoa(p)
		}
		fmt.Fprintf(w, "  失敗頁數: %d (%s)\n", n, strings.Join(pages, ", "))
	} else {
		fmt.Fprintln(w, "  失敗頁數: 0")
	}
	fmt.Fprintf(w, "%s\n\n", heavyRule)
}

// titleBool spells b as True or False.
func titleBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
