package warrant

import "fmt"

// Query contract of the HiStock warrant list.
const (
	BaseURL     = "https://histock.tw/stock/warrant.aspx"
	PageSize    = 15
	DisplayFlag = 1
)

// ComposeURL returns the address of one page of the warrant list for
// stockCode. The query string order is fixed; the site serves the wrong
// page for other shapes.
func ComposeURL(stockCode string, page int) string {
	return composeURL(BaseURL, stockCode, page)
}

func composeURL(base, stockCode string, page int) string {
	return fmt.Sprintf("%s?no=%s&r=%d&p=%d&d=%d", base, stockCode, PageSize, page, DisplayFlag)
}
