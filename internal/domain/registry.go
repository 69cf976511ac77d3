package domain

import (
	"fmt"
	"strings"

	"xbook/internal/domain/model"
)

// InstrumentRegistry holds the configured instruments in declaration order.
// Built once at startup and read-only afterwards, so lookups need no lock.
type InstrumentRegistry struct {
	order   []string
	symbols map[string]*model.Instrument
}

// NewInstrumentRegistry copies the given instruments into a registry.
// Symbols are trimmed and upper-cased; duplicates are rejected.
func NewInstrumentRegistry(instruments []model.Instrument) (*InstrumentRegistry, error) {
	r := &InstrumentRegistry{
		order:   make([]string, 0, len(instruments)),
		symbols: make(map[string]*model.Instrument, len(instruments)),
	}
	for i := range instruments {
		inst := instruments[i]
		sym := CanonicalSymbol(inst.Symbol)
		if sym == "" {
			return nil, fmt.Errorf("instrument #%d: empty symbol", i)
		}
		if _, dup := r.symbols[sym]; dup {
			return nil, fmt.Errorf("instrument %s: duplicate symbol", sym)
		}
		inst.Symbol = sym
		if inst.Base == "" || inst.Quote == "" {
			inst.Base, inst.Quote = SplitSymbol(sym)
		}
		r.order = append(r.order, sym)
		r.symbols[sym] = &inst
	}
	return r, nil
}

// Get returns the instrument for a canonical symbol.
func (r *InstrumentRegistry) Get(symbol string) (*model.Instrument, bool) {
	inst, ok := r.symbols[CanonicalSymbol(symbol)]
	return inst, ok
}

// All returns instruments in configuration order.
func (r *InstrumentRegistry) All() []*model.Instrument {
	out := make([]*model.Instrument, 0, len(r.order))
	for _, s := range r.order {
		out = append(out, r.symbols[s])
	}
	return out
}

// Symbols returns the ordered symbol list.
func (r *InstrumentRegistry) Symbols() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *InstrumentRegistry) Len() int { return len(r.order) }

// CanonicalSymbol trims and upper-cases a logical symbol.
func CanonicalSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SplitSymbol splits BASE_QUOTE (also accepts "/" and "-").
func SplitSymbol(s string) (base, quote string) {
	s = CanonicalSymbol(s)
	for _, sep := range []string{"_", "/", "-"} {
		if i := strings.Index(s, sep); i > 0 {
			return s[:i], s[i+len(sep):]
		}
	}
	return s, ""
}
