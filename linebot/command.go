// Package linebot serves the LINE chat front end: it parses commands,
// formats query results and talks to the Messaging API.
package linebot

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/13g7895123/stock.warrant/models"
)

// CommandType classifies a chat message.
type CommandType string

const (
	CommandQuick      CommandType = "quick"
	CommandNormal     CommandType = "normal"
	CommandOutOfMoney CommandType = "outofmoney"
	CommandHelp       CommandType = "help"
	CommandUnknown    CommandType = "unknown"
)

// Command is a parsed chat message.
type Command struct {
	Type      CommandType
	StockCode string
	MaxPages  int // 0 = every page
	Raw       string
}

// IsQuery reports whether the command starts a crawl.
func (c Command) IsQuery() bool {
	switch c.Type {
	case CommandQuick, CommandNormal, CommandOutOfMoney:
		return true
	}
	return false
}

// Intent converts a query command into a models.QueryIntent.
func (c Command) Intent() models.QueryIntent {
	return models.QueryIntent{
		Kind:      models.QueryKind(c.Type),
		StockCode: c.StockCode,
		MaxPages:  c.MaxPages,
	}
}

var (
	reQuick         = regexp.MustCompile(`^快查\s+(\d{4,6})$`)
	reNormal        = regexp.MustCompile(`^查詢\s+(\d{4,6})$`)
	reOutOfMoneyCap = regexp.MustCompile(`^價外\s+(\d{4,6})\s+(\d+)$`)
	reOutOfMoney    = regexp.MustCompile(`^價外\s+(\d{4,6})$`)
)

var helpWords = map[string]bool{
	"幫助": true,
	"help": true,
	"說明": true,
	"?":    true,
	"？":    true,
}

// ParseCommand classifies text. Surrounding whitespace is ignored.
//
//	快查 6669     quick query
//	查詢 2330     every page, no filter
//	價外 6669     out-of-the-money only
//	價外 6669 5   out-of-the-money, first 5 pages
//	幫助 / help   usage text
func ParseCommand(text string) Command {
	msg := strings.TrimSpace(text)
	cmd := Command{Type: CommandUnknown, Raw: msg}

	if m := reQuick.FindStringSubmatch(msg); m != nil {
		cmd.Type, cmd.StockCode = CommandQuick, m[1]
		return cmd
	}
	if m := reNormal.FindStringSubmatch(msg); m != nil {
		cmd.Type, cmd.StockCode = CommandNormal, m[1]
		return cmd
	}
	if m := reOutOfMoneyCap.FindStringSubmatch(msg); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			cmd.Type, cmd.StockCode, cmd.MaxPages = CommandOutOfMoney, m[1], n
			return cmd
		}
	}
	if m := reOutOfMoney.FindStringSubmatch(msg); m != nil {
		cmd.Type, cmd.StockCode = CommandOutOfMoney, m[1]
		return cmd
	}
	if helpWords[strings.ToLower(msg)] {
		cmd.Type = CommandHelp
	}
	return cmd
}

// ValidateStockCode reports whether code is a 4 to 6 digit stock code.
func ValidateStockCode(code string) bool {
	return models.ValidStockCode(code)
}

const helpMessage = `
📖 權證查詢機器人使用說明

🔍 快速查詢（元大權證 + 前3頁）
指令: 快查 股票代號
範例: 快查 6669

🔎 完整查詢（全部權證 + 全部頁面）
指令: 查詢 股票代號
範例: 查詢 2330

📉 價外查詢（只顯示價外權證）
指令: 價外 股票代號 [頁數]
範例: 
• 價外 6669     （查全部頁面）
• 價外 6669 5   （只查前5頁）

💡 說明:
• 快查: 篩選元大權證，只查前3頁
• 查詢: 不篩選，查詢所有頁面的權證
• 價外: 只顯示價外權證，可自訂頁數

❓ 需要幫助？
輸入「幫助」查看此說明
`

const unknownCommandMessage = `
❌ 無法識別的指令

請使用以下格式:
• 快查 6669     （元大權證查詢）
• 查詢 2330     （完整查詢）
• 價外 6669     （價外權證查詢，全部頁面）
• 價外 6669 5   （價外權證查詢，指定頁數）
• 幫助          （查看說明）

💡 股票代號為 4-6 位數字
`

// InvalidStockCodeMessage is replied when a query names a malformed code.
const InvalidStockCodeMessage = "❌ 股票代號格式錯誤\n請輸入 4-6 位數字的股票代號"

// HelpMessage returns the usage text.
func HelpMessage() string { return helpMessage }

// UnknownCommandMessage returns the reply for unrecognized messages.
func UnknownCommandMessage() string { return unknownCommandMessage }

// ProcessingMessage is replied while a query runs.
func ProcessingMessage(stockCode string) string {
	return "🔄 正在查詢 " + stockCode + " 的權證資料...\n請稍候片刻"
}
