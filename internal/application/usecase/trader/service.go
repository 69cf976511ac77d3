package trader

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"xbook/internal/application/port"
	"xbook/internal/domain/model"
)

// ErrNoFeeds 没有启用任何交易所
var ErrNoFeeds = errors.New("no exchange feeds enabled")

// Publisher 行情总线的发布端
type Publisher interface {
	Publish(u *model.OrderBookUpdate) int
}

// Feed 一个交易所适配器及其流式连接
type Feed struct {
	Exchange        port.Exchange
	Transport       port.StreamTransport
	SnapshotOnStart bool
	SnapshotDepth   int
}

// Runner 与行情流一起运行的后台任务（监控、状态接口）
type Runner func(ctx context.Context) error

type ServiceDeps struct {
	Feeds       []Feed
	Instruments []*model.Instrument
	Bus         Publisher
	Telemetry   port.Telemetry
	Runners     []Runner
}

// Service 把各交易所的流式数据接到行情总线上
type Service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) *Service {
	return &Service{deps: deps}
}

// Run 订阅、拉取初始快照、启动所有连接，任一任务返回错误即整体退出
func (s *Service) Run(ctx context.Context) error {
	if len(s.deps.Feeds) == 0 {
		return ErrNoFeeds
	}
	if len(s.deps.Instruments) == 0 {
		return errors.New("no instruments configured")
	}

	// 先全部订阅成功再启动连接，失败时不留下运行中的任务
	streams := make([][]string, len(s.deps.Feeds))
	subs := make([]port.SubscriptionID, 0, len(s.deps.Feeds))
	for i, feed := range s.deps.Feeds {
		ex := feed.Exchange
		streams[i] = ex.StreamNamesFor(s.deps.Instruments)
		id, err := feed.Transport.Subscribe(streams[i], s.HandleFrame(ex))
		if err != nil {
			for j, sub := range subs {
				s.deps.Feeds[j].Transport.Unsubscribe(sub)
			}
			return fmt.Errorf("%s subscribe: %w", ex.Name(), err)
		}
		subs = append(subs, id)
	}

	g, gctx := errgroup.WithContext(ctx)

	for i, feed := range s.deps.Feeds {
		ex := feed.Exchange
		if feed.SnapshotOnStart {
			s.loadSnapshots(gctx, ex, feed.SnapshotDepth)
		}

		tr := feed.Transport
		g.Go(func() error {
			err := tr.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Info().Str("exchange", ex.Name()).Strs("streams", streams[i]).Msg("feed started")
	}

	for _, r := range s.deps.Runners {
		run := r
		g.Go(func() error { return run(gctx) })
	}

	return g.Wait()
}

// HandleFrame 返回某交易所的订阅回调：解析后发布到总线，失败只记录
func (s *Service) HandleFrame(ex port.Exchange) port.FrameHandler {
	return func(f port.Frame) {
		u, err := ex.ParseUpdate(f)
		if err != nil {
			log.Warn().Str("exchange", ex.Name()).Str("stream", f.Stream).Err(err).Msg("parse update failed, dropped")
			s.emit(model.NewEvent(model.EventParseError, ex.Name(), "").
				With("stream", f.Stream).
				With("error", err.Error()))
			return
		}
		s.deps.Bus.Publish(u)
	}
}

func (s *Service) loadSnapshots(ctx context.Context, ex port.Exchange, depth int) {
	for _, inst := range s.deps.Instruments {
		u, err := ex.GetSnapshot(ctx, inst, depth)
		if err != nil {
			log.Warn().Str("exchange", ex.Name()).Str("symbol", inst.Symbol).Err(err).Msg("initial snapshot failed")
			continue
		}
		log.Info().
			Str("exchange", ex.Name()).
			Str("symbol", inst.Symbol).
			Int("bids", len(u.Bids)).
			Int("asks", len(u.Asks)).
			Msg("initial snapshot loaded")
		s.deps.Bus.Publish(u)
	}
}

func (s *Service) emit(ev model.Event) {
	if s.deps.Telemetry == nil {
		return
	}
	if err := s.deps.Telemetry.Emit(context.Background(), ev); err != nil {
		log.Debug().Err(err).Msg("telemetry emit failed")
	}
}
