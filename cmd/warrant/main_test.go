package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/13g7895123/stock.warrant/models"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) (*cobra.Command, *flags) {
	t.Helper()
	f := &flags{}
	cmd := &cobra.Command{Use: "warrant"}
	bindFlags(cmd, f)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd, f
}

func writeQueryFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestResolve(t *testing.T) {
	preset := writeQueryFile(t, `{"headless": true, "max_pages": 3, "filter_name": "元大"}`)
	nulls := writeQueryFile(t, `{"headless": false, "max_pages": null, "filter_name": null}`)

	tests := []struct {
		name string
		args []string
		want settings
	}{
		{
			name: "normal mode ignores the file",
			args: []string{"-n", "-c", "/does/not/exist.json"},
			want: settings{headless: true},
		},
		{
			name: "preset file",
			args: []string{"-c", preset},
			want: settings{headless: true, filter: models.FilterSpec{MaxPages: 3, NameContains: "元大"}},
		},
		{
			name: "nulls mean every page and no filter",
			args: []string{"-c", nulls},
			want: settings{},
		},
		{
			name: "flags override the file",
			args: []string{"-c", preset, "--headless=false", "--max-pages", "5", "--name", "凱基", "--out-of-money"},
			want: settings{filter: models.FilterSpec{MaxPages: 5, NameContains: "凱基", OutOfMoneyOnly: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, f := parseFlags(t, tt.args...)
			got, err := resolve(cmd, f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_MissingFile(t *testing.T) {
	cmd, f := parseFlags(t, "-c", filepath.Join(t.TempDir(), "missing.json"))
	_, err := resolve(cmd, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "設定檔不存在")
}

func TestPrintSettings(t *testing.T) {
	var buf bytes.Buffer
	printSettings(&buf, "6669", settings{
		headless: true,
		filter:   models.FilterSpec{MaxPages: 3, NameContains: "元大"},
	})
	out := buf.String()
	assert.Contains(t, out, "查詢設定")
	assert.Contains(t, out, "股票代號: 6669\n")
	assert.Contains(t, out, "Headless 模式: True\n")
	assert.Contains(t, out, "爬取頁數: 3 頁\n")
	assert.Contains(t, out, "篩選條件: 權證名稱包含 \"元大\"\n")

	buf.Reset()
	printSettings(&buf, "2330", settings{})
	assert.Contains(t, buf.String(), "爬取頁數: 全部\n")
	assert.Contains(t, buf.String(), "篩選條件: 無\n")
}

func sampleResult() *models.CrawlResult {
	return &models.CrawlResult{
		StockCode: "2330",
		Records: []models.Warrant{
			{Name: "台積電元大58購01", Code: "030012", Price: "1.25", Moneyness: "價外 10.65%", RemainingDays: "45"},
			{Name: "台積電凱基58購02", Code: "030013", Price: "0.88", Moneyness: "價內 3.20%", RemainingDays: "120"},
		},
		FailedPages: []int{2, 3},
	}
}

func TestPrintResult_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, formatCSV, sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "權證資料爬取結果")
	assert.Contains(t, out, "權證名稱,代號,價格,價內外,剩餘天數\n")
	assert.Contains(t, out, "台積電元大58購01,030012,1.25,價外 10.65%,45\n")
	assert.Contains(t, out, "  總筆數: 2\n")
	assert.Contains(t, out, "  失敗頁數: 2 (2, 3)\n")
}

func TestPrintResult_Table(t *testing.T) {
	var buf bytes.Buffer
	res := sampleResult()
	res.FailedPages = nil
	require.NoError(t, printResult(&buf, formatTable, res))
	out := buf.String()

	assert.Contains(t, out, "030013")
	assert.Contains(t, out, "價內 3.20%")
	assert.Contains(t, out, "  失敗頁數: 0\n")
}

func TestPrintResult_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, formatTable, &models.CrawlResult{StockCode: "2330"}))
	assert.Contains(t, buf.String(), "未找到任何權證資料")
	assert.Contains(t, buf.String(), "  總筆數: 0\n")
}

func TestPrintResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, formatJSON, sampleResult()))
	out := buf.String()
	assert.Contains(t, out, `"moneyness": "價外 10.65%"`)
	assert.NotContains(t, out, "統計資訊")
}

func TestValidFormat(t *testing.T) {
	assert.True(t, validFormat("table"))
	assert.True(t, validFormat("csv"))
	assert.True(t, validFormat("json"))
	assert.False(t, validFormat("xml"))
}
