package monitor

import (
	"fmt"
	"strings"

	"xbook/internal/domain"
	dsvc "xbook/internal/domain/service"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

// Formatter 价差颜色区间：<= MinSpreadPct 绿，>= MaxSpreadPct 红
type Formatter struct {
	MinSpreadPct float64
	MaxSpreadPct float64
}

func NewFormatter(minPct, maxPct float64) *Formatter {
	return &Formatter{MinSpreadPct: minPct, MaxSpreadPct: maxPct}
}

type RenderMode int

const (
	RenderLive RenderMode = iota
	RenderSnapshot
)

func dirColor(ps domain.PriceState) string {
	switch ps.Direction {
	case domain.DirectionUp:
		return ansiGreen
	case domain.DirectionDown:
		return ansiRed
	default:
		return ansiYellow
	}
}

func (f *Formatter) Render(st *State, mode RenderMode) string {
	snap := st.Snapshot()

	var sb strings.Builder
	if mode == RenderLive {
		sb.WriteString("\r")
	}
	sb.WriteString(colorize("[XBOOK] ", ansiDim))

	for i, sym := range st.Symbols() {
		if i > 0 {
			sb.WriteString(colorize("  ||  ", ansiDim))
		}
		sb.WriteString(sym)

		quotes := snap[sym]
		if len(quotes) == 0 {
			sb.WriteString(" --")
			continue
		}
		for _, q := range quotes {
			sb.WriteString(" ")
			sb.WriteString(q.Exchange[:1])
			sb.WriteString(":")
			sb.WriteString(colorize(q.Bid.String(), dirColor(q.Bid)))
			sb.WriteString("/")
			sb.WriteString(colorize(q.Ask.String(), dirColor(q.Ask)))

			if q.Bid.HasValue && q.Ask.HasValue {
				bid, ask := q.Bid.Value.InexactFloat64(), q.Ask.Value.InexactFloat64()
				pct := dsvc.SpreadPct(bid, ask)
				col := ansiYellow
				switch dsvc.SpreadColor(pct, f.MinSpreadPct, f.MaxSpreadPct) {
				case +1:
					col = ansiGreen
				case -1:
					col = ansiRed
				}
				sb.WriteString(" ")
				sb.WriteString(colorize(fmt.Sprintf("s=%.4f%%", pct), col))
			}
		}
	}

	if mode == RenderLive {
		sb.WriteString(ansiClearEOL)
	}
	return sb.String()
}
