package bus

import (
	"errors"
	"testing"

	"xbook/internal/domain/model"
)

type recorder struct {
	name  string
	got   []*model.OrderBookUpdate
	fail  error
	panic bool
	order *[]string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnOrderBookUpdate(u *model.OrderBookUpdate) error {
	if r.order != nil {
		*r.order = append(*r.order, r.name)
	}
	if r.panic {
		panic("observer exploded")
	}
	if r.fail != nil {
		return r.fail
	}
	r.got = append(r.got, u)
	return nil
}

func update() *model.OrderBookUpdate {
	return &model.OrderBookUpdate{
		Exchange:   "BINANCE",
		Instrument: &model.Instrument{Symbol: "BTC_USD"},
		Bids:       []model.Order{{Price: 100, Quantity: 1}},
		Asks:       []model.Order{{Price: 101, Quantity: 1}},
	}
}

func TestPublishFailingObserverDoesNotBlockNext(t *testing.T) {
	b := New()
	var order []string
	a := &recorder{name: "a", fail: errors.New("boom"), order: &order}
	p := &recorder{name: "p", panic: true, order: &order}
	c := &recorder{name: "c", order: &order}
	b.AddObserver(a)
	b.AddObserver(p)
	b.AddObserver(c)

	u := update()
	if failed := b.Publish(u); failed != 2 {
		t.Fatalf("failed = %d, want 2", failed)
	}
	if len(c.got) != 1 || c.got[0] != u {
		t.Fatalf("observer c did not receive the update")
	}
	if want := []string{"a", "p", "c"}; len(order) != 3 || order[0] != want[0] || order[1] != want[1] || order[2] != want[2] {
		t.Fatalf("delivery order = %v, want %v", order, want)
	}
}

func TestDeliverWrapsObserverFailure(t *testing.T) {
	err := deliver(&recorder{name: "x", fail: errors.New("bad")}, update())
	var of *model.ObserverFailure
	if !errors.As(err, &of) || of.Observer != "x" {
		t.Fatalf("expected ObserverFailure for x, got %v", err)
	}
	if !errors.Is(err, model.ErrObserverFailure) {
		t.Fatalf("errors.Is(ErrObserverFailure) = false")
	}

	err = deliver(&recorder{name: "y", panic: true}, update())
	if !errors.Is(err, model.ErrObserverFailure) {
		t.Fatalf("panic not converted: %v", err)
	}
}

func TestAddRemoveObserver(t *testing.T) {
	b := New()
	a := &recorder{name: "a"}
	c := &recorder{name: "c"}

	b.AddObserver(a)
	b.AddObserver(a)
	b.AddObserver(nil)
	b.AddObserver(c)
	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}

	b.RemoveObserver(a)
	b.RemoveObserver(a)
	if b.Len() != 1 {
		t.Fatalf("Len after remove = %d, want 1", b.Len())
	}

	b.Publish(update())
	if len(a.got) != 0 || len(c.got) != 1 {
		t.Fatalf("removed observer still receives updates: a=%d c=%d", len(a.got), len(c.got))
	}
}

func TestPublishWithoutObservers(t *testing.T) {
	if failed := New().Publish(update()); failed != 0 {
		t.Fatalf("failed = %d", failed)
	}
}
