// Package money 金額顯示格式
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultSymbol 預設貨幣符號
const DefaultSymbol = "$"

// Formatter 把金額格式化成 "$1,234.50" 這類字串，可同時被多個 goroutine 使用
type Formatter struct {
	symbol string
	// group 千分位符號，取自語系設定
	group string
}

// NewFormatter 建立 Formatter，symbol 為空時使用 DefaultSymbol
func NewFormatter(symbol string) *Formatter {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	printer := message.NewPrinter(language.English)
	return &Formatter{
		symbol: symbol,
		group:  strings.Trim(printer.Sprintf("%d", 1000), "0123456789"),
	}
}

// Format 四捨五入到小數點後兩位，整數部分加千分位
//
// 整數部分走 big.Int，超過 int64 的金額也不會溢位。
func (f *Formatter) Format(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	whole := rounded.Truncate(0)
	cents := rounded.Sub(whole).Shift(2).IntPart()
	return fmt.Sprintf("%s%s%s.%02d", sign, f.symbol, f.groupDigits(whole.BigInt().String()), cents)
}

func (f *Formatter) groupDigits(digits string) string {
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	var b strings.Builder
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteString(f.group)
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
