package monitor

import (
	"context"
	"sync"
	"time"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"

	"github.com/rs/zerolog/log"
)

type ServiceDeps struct {
	Symbols       []string
	PrintEveryMin int
	MinSpreadPct  float64
	MaxSpreadPct  float64
	Sink          port.Sink
	Telemetry     port.Telemetry // 快照行写入遥测，可为 nil
}

// Service 盘口监控：作为行情总线的观察者刷新控制台，定时输出快照
type Service struct {
	deps ServiceDeps
	st   *State
	fmt  *Formatter

	// 多个订阅协程会并发回调，控制台写入需要串行
	sinkMu sync.Mutex
}

func NewService(deps ServiceDeps) *Service {
	if deps.PrintEveryMin <= 0 {
		deps.PrintEveryMin = 5
	}
	return &Service{
		deps: deps,
		st:   NewState(deps.Symbols),
		fmt:  NewFormatter(deps.MinSpreadPct, deps.MaxSpreadPct),
	}
}

func (s *Service) Name() string { return "monitor" }

// OnOrderBookUpdate 最优价变化时刷新 live 行
func (s *Service) OnOrderBookUpdate(u *model.OrderBookUpdate) error {
	if !s.st.Apply(u) {
		return nil
	}
	line := s.fmt.Render(s.st, RenderLive)

	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	return s.deps.Sink.WriteLive(line)
}

// Run 定时输出快照行，直到 ctx 结束
func (s *Service) Run(ctx context.Context) error {
	snapTicker := time.NewTicker(time.Duration(s.deps.PrintEveryMin) * time.Minute)
	defer snapTicker.Stop()

	s.write(func() error { return s.deps.Sink.WriteLive(s.fmt.Render(s.st, RenderLive)) })

	for {
		select {
		case <-ctx.Done():
			s.write(s.deps.Sink.NewLine)
			return nil

		case now := <-snapTicker.C:
			line := s.fmt.Render(s.st, RenderSnapshot)
			s.write(func() error { return s.deps.Sink.WriteSnapshot(now, line) })
			s.persist(ctx, now)
		}
	}
}

func (s *Service) write(fn func() error) {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	if err := fn(); err != nil {
		log.Debug().Err(err).Msg("sink write failed")
	}
}

// persist 把各交易所最优价作为 book_snapshot 事件写入遥测
func (s *Service) persist(ctx context.Context, now time.Time) {
	if s.deps.Telemetry == nil {
		return
	}
	for sym, quotes := range s.st.Snapshot() {
		for _, q := range quotes {
			if !q.Bid.HasValue || !q.Ask.HasValue {
				continue
			}
			ev := model.NewEvent(model.EventBookSnapshot, q.Exchange, sym).
				With("bid", q.Bid.Value.String()).
				With("ask", q.Ask.Value.String())
			ev.Time = now
			if err := s.deps.Telemetry.Emit(ctx, ev); err != nil {
				log.Warn().Err(err).Str("symbol", sym).Msg("persist book snapshot failed")
			}
		}
	}
}
