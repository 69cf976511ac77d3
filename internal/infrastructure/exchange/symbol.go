package exchange

import (
	"strings"
)

// SymbolConverter 逻辑符号 <-> 交易所线上符号
// Normalize 必须幂等：Normalize(Normalize(x)) == Normalize(x)
type SymbolConverter interface {
	Normalize(logical string) string
}

var separators = []string{"_", "/", "-", " "}

// splitPair 按分隔符拆出 base/quote；没有分隔符时 quote 为空
func splitPair(s string) (base, quote string, ok bool) {
	for _, sep := range separators {
		if i := strings.Index(s, sep); i > 0 && i < len(s)-len(sep) {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}

func stripSeparators(s string) string {
	for _, sep := range separators {
		s = strings.ReplaceAll(s, sep, "")
	}
	return s
}

// QuoteAliasConverter 拼接式交易对（Binance 现货）
// 例: BTC_USD -> BTCUSDT, btc/usdt -> BTCUSDT, BTCUSDT -> BTCUSDT
type QuoteAliasConverter struct {
	aliases map[string]string // quote 别名，USD -> USDT
}

// NewQuoteAliasConverter 创建转换器
func NewQuoteAliasConverter(aliases map[string]string) *QuoteAliasConverter {
	m := make(map[string]string, len(aliases))
	for k, v := range aliases {
		m[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	return &QuoteAliasConverter{aliases: m}
}

// Normalize 只有在分隔符明确给出 quote 时才做别名替换，输出不含分隔符，所以再次调用不会变化
func (c *QuoteAliasConverter) Normalize(logical string) string {
	s := strings.ToUpper(strings.TrimSpace(logical))
	if s == "" {
		return ""
	}
	base, quote, ok := splitPair(s)
	if !ok {
		return stripSeparators(s)
	}
	if alias, found := c.aliases[quote]; found {
		quote = alias
	}
	return stripSeparators(base) + stripSeparators(quote)
}

// PerpetualConverter 永续合约命名（Deribit）
// 例: BTC_USD -> BTC-PERPETUAL, SOL_USDC -> SOL_USDC-PERPETUAL
type PerpetualConverter struct {
	suffix       string // -PERPETUAL
	inverseQuote string // 反向合约的计价币，省略 quote
}

// NewPerpetualConverter 创建转换器
func NewPerpetualConverter(suffix, inverseQuote string) *PerpetualConverter {
	return &PerpetualConverter{
		suffix:       strings.ToUpper(strings.TrimSpace(suffix)),
		inverseQuote: strings.ToUpper(strings.TrimSpace(inverseQuote)),
	}
}

// Normalize 已带后缀的输入只做大写
func (c *PerpetualConverter) Normalize(logical string) string {
	s := strings.ToUpper(strings.TrimSpace(logical))
	if s == "" {
		return ""
	}
	if strings.HasSuffix(s, c.suffix) {
		return s
	}
	base, quote, ok := splitPair(s)
	if !ok || quote == c.inverseQuote {
		return stripSeparators(base) + c.suffix
	}
	return stripSeparators(base) + "_" + stripSeparators(quote) + c.suffix
}
