package linebot

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/13g7895123/stock.warrant/models"
	"github.com/stretchr/testify/assert"
)

func warrants(n int) []models.Warrant {
	out := make([]models.Warrant, n)
	for i := range out {
		out[i] = models.Warrant{
			Name:          fmt.Sprintf("元大%02d購", i),
			Code:          fmt.Sprintf("03%04d", i),
			Price:         "1.05",
			Moneyness:     "價外 4.2%",
			RemainingDays: "88",
		}
	}
	return out
}

func TestFormatResult_Failure(t *testing.T) {
	got := FormatResult(&models.QueryResult{Success: false, Error: "browser gone"})
	assert.Equal(t, "❌ 查詢失敗\n錯誤訊息: browser gone", got)

	got = FormatResult(&models.QueryResult{})
	assert.Equal(t, "❌ 查詢失敗\n錯誤訊息: 未知錯誤", got)
}

func TestFormatResult_Empty(t *testing.T) {
	tests := []struct {
		kind models.QueryKind
		want string
	}{
		{models.QueryQuick, "🔍 快查結果\n未找到任何權證資料"},
		{models.QueryNormal, "🔍 查詢結果\n未找到任何權證資料"},
		{models.QueryOutOfMoney, "🔍 價外結果\n未找到任何權證資料"},
	}
	for _, tt := range tests {
		got := FormatResult(&models.QueryResult{Success: true, Kind: tt.kind})
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatResult_QuickHeaderAndBlock(t *testing.T) {
	res := &models.QueryResult{
		Success:  true,
		Kind:     models.QueryQuick,
		Filter:   "元大",
		MaxPages: 3,
		Warrants: warrants(2),
		Total:    2,
	}
	got := FormatResult(res)

	assert.True(t, strings.HasPrefix(got, "🔍 快查結果 (元大)\n找到 2 筆資料（前3頁）\n"+strings.Repeat("=", 30)+"\n\n"))
	assert.Contains(t, got, "📊 元大00購\n代號: 030000 | 價格: 1.05\n價內外: 價外 4.2%\n剩餘天數: 88\n"+strings.Repeat("─", 30)+"\n")
	assert.NotContains(t, got, "僅顯示")
	assert.NotContains(t, got, "部分頁面")
}

func TestFormatResult_TruncationAndFailedPages(t *testing.T) {
	res := &models.QueryResult{
		Success:     true,
		Kind:        models.QueryNormal,
		Warrants:    warrants(12),
		Total:       12,
		FailedPages: []int{2, 3},
	}
	got := FormatResult(res)

	assert.True(t, strings.HasPrefix(got, "🔍 查詢結果\n找到 12 筆資料（全部頁面）\n"))
	assert.Equal(t, 10, strings.Count(got, "📊 "))
	assert.Contains(t, got, "\n⚠️ 僅顯示前 10 筆\n總共 12 筆資料")
	assert.True(t, strings.HasSuffix(got, "\n⚠️ 部分頁面爬取失敗: 2, 3"))
}

func TestFormatResult_OutOfMoneyHeader(t *testing.T) {
	res := &models.QueryResult{Success: true, Kind: models.QueryOutOfMoney, MaxPages: 5, Warrants: warrants(1), Total: 1}
	assert.True(t, strings.HasPrefix(FormatResult(res), "🔍 價外結果\n找到 1 筆價外權證（前5頁）\n"))
}

func TestFormatSimpleList(t *testing.T) {
	assert.Equal(t, "❌ 查詢失敗\nboom", FormatSimpleList(&models.QueryResult{Error: "boom"}))
	assert.Equal(t, "🔍 未找到任何權證資料", FormatSimpleList(&models.QueryResult{Success: true}))

	got := FormatSimpleList(&models.QueryResult{Success: true, Warrants: warrants(25), Total: 25})
	lines := strings.Split(got, "\n")
	assert.Equal(t, "🔍 找到 25 筆資料", lines[0])
	assert.Equal(t, "元大00購 | 1.05 | 價外 4.2%", lines[2])
	assert.True(t, strings.HasSuffix(got, "\n\n... 還有 5 筆資料"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "權證", Truncate("權證", 5))
	assert.Equal(t, "權證查…", Truncate("權證查詢結果", 4))

	long := strings.Repeat("權", MaxTextLength+100)
	assert.Equal(t, MaxTextLength, utf8.RuneCountInString(Truncate(long, MaxTextLength)))
}
