package linebot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/13g7895123/stock.warrant/models"
)

// MaxTextLength is the LINE limit for one text message, in characters.
const MaxTextLength = 5000

const (
	detailLimit = 10
	listLimit   = 20
)

// FormatResult renders a query result as a chat reply: a header, the
// first ten warrants, then notes about truncation and failed pages.
func FormatResult(res *models.QueryResult) string {
	if !res.Success {
		return "❌ 查詢失敗\n錯誤訊息: " + errorText(res)
	}
	label := res.Kind.Label()
	if res.Total == 0 {
		return "🔍 " + label + "結果\n未找到任何權證資料"
	}

	var b strings.Builder
	switch res.Kind {
	case models.QueryQuick:
		fmt.Fprintf(&b, "🔍 快查結果 (%s)\n找到 %d 筆資料（%s）\n", res.Filter, res.Total, pageScope(res.MaxPages))
	case models.QueryOutOfMoney:
		fmt.Fprintf(&b, "🔍 價外結果\n找到 %d 筆價外權證（%s）\n", res.Total, pageScope(res.MaxPages))
	default:
		fmt.Fprintf(&b, "🔍 查詢結果\n找到 %d 筆資料（%s）\n", res.Total, pageScope(res.MaxPages))
	}
	b.WriteString(strings.Repeat("=", 30))
	b.WriteString("\n\n")

	shown := res.Warrants
	if len(shown) > detailLimit {
		shown = shown[:detailLimit]
	}
	for _, w := range shown {
		fmt.Fprintf(&b, "📊 %s\n代號: %s | 價格: %s\n價內外: %s\n剩餘天數: %s\n%s\n",
			w.Name, w.Code, w.Price, w.Moneyness, w.RemainingDays, strings.Repeat("─", 30))
	}

	if res.Total > detailLimit {
		fmt.Fprintf(&b, "\n⚠️ 僅顯示前 %d 筆\n總共 %d 筆資料", detailLimit, res.Total)
	}
	if len(res.FailedPages) > 0 {
		b.WriteString("\n⚠️ 部分頁面爬取失敗: ")
		b.WriteString(joinPages(res.FailedPages))
	}
	return Truncate(b.String(), MaxTextLength)
}

// FormatSimpleList renders one line per warrant, for large results.
func FormatSimpleList(res *models.QueryResult) string {
	if !res.Success {
		return "❌ 查詢失敗\n" + errorText(res)
	}
	if res.Total == 0 {
		return "🔍 未找到任何權證資料"
	}

	lines := []string{fmt.Sprintf("🔍 找到 %d 筆資料\n", res.Total)}
	shown := res.Warrants
	if len(shown) > listLimit {
		shown = shown[:listLimit]
	}
	for _, w := range shown {
		lines = append(lines, w.Name+" | "+w.Price+" | "+w.Moneyness)
	}
	if res.Total > listLimit {
		lines = append(lines, fmt.Sprintf("\n... 還有 %d 筆資料", res.Total-listLimit))
	}
	return Truncate(strings.Join(lines, "\n"), MaxTextLength)
}

// Truncate cuts s to at most n characters, marking the cut with "…".
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func pageScope(maxPages int) string {
	if maxPages <= 0 {
		return "全部頁面"
	}
	return "前" + strconv.Itoa(maxPages) + "頁"
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}

func errorText(res *models.QueryResult) string {
	if res.Error == "" {
		return "未知錯誤"
	}
	return res.Error
}
