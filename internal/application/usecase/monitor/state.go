package monitor

import (
	"sort"
	"strings"
	"sync"

	"xbook/internal/domain"
	"xbook/internal/domain/model"
)

// bookState 某交易所某标的的最优买卖价
type bookState struct {
	bid domain.PriceState
	ask domain.PriceState
}

type symState struct {
	exchanges map[string]*bookState // exchange -> top of book
}

type State struct {
	mu sync.Mutex

	order []string
	syms  map[string]*symState
}

func NewState(symbols []string) *State {
	order := make([]string, 0, len(symbols))
	syms := make(map[string]*symState, len(symbols))
	for _, s := range symbols {
		u := domain.CanonicalSymbol(s)
		if u == "" {
			continue
		}
		if _, dup := syms[u]; dup {
			continue
		}
		order = append(order, u)
		syms[u] = &symState{exchanges: make(map[string]*bookState)}
	}
	return &State{order: order, syms: syms}
}

func (s *State) Symbols() []string {
	return s.order
}

// Apply 记录一次盘口的最优价，返回显示内容是否变化
func (s *State) Apply(u *model.OrderBookUpdate) bool {
	if u == nil || len(u.Bids) == 0 || len(u.Asks) == 0 {
		return false
	}
	ex := strings.ToUpper(strings.TrimSpace(u.Exchange))
	if ex == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.syms[u.Symbol()]
	if st == nil {
		return false
	}
	bs := st.exchanges[ex]
	if bs == nil {
		bs = &bookState{}
		st.exchanges[ex] = bs
	}

	bidChanged := bs.bid.Update(u.Bids[0].Price)
	askChanged := bs.ask.Update(u.Asks[0].Price)
	return bidChanged || askChanged
}

// Quote 某交易所的最优价快照
type Quote struct {
	Exchange string
	Bid      domain.PriceState
	Ask      domain.PriceState
}

// Snapshot 按标的顺序返回，每个标的下交易所按名称排序
func (s *State) Snapshot() map[string][]Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]Quote, len(s.syms))
	for sym, st := range s.syms {
		quotes := make([]Quote, 0, len(st.exchanges))
		for ex, bs := range st.exchanges {
			quotes = append(quotes, Quote{Exchange: ex, Bid: bs.bid, Ask: bs.ask})
		}
		sort.Slice(quotes, func(i, j int) bool { return quotes[i].Exchange < quotes[j].Exchange })
		out[sym] = quotes
	}
	return out
}
