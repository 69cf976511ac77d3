package svc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"xbook/internal/application/bus"
	"xbook/internal/application/port"
	"xbook/internal/application/usecase/decision"
	"xbook/internal/application/usecase/monitor"
	"xbook/internal/application/usecase/trader"
	"xbook/internal/domain"
	"xbook/internal/domain/model"
	domainservice "xbook/internal/domain/service"
	"xbook/internal/infrastructure/config"
	"xbook/internal/infrastructure/container"
	"xbook/internal/infrastructure/exchange"
	_ "xbook/internal/infrastructure/exchange/binance"
	_ "xbook/internal/infrastructure/exchange/deribit"
	"xbook/internal/infrastructure/logger"
	"xbook/internal/infrastructure/storage/composite"
	"xbook/internal/infrastructure/storage/memory"
	"xbook/internal/infrastructure/telemetry"
	"xbook/internal/infrastructure/websocket"
	"xbook/internal/interfaces/console"
	"xbook/internal/interfaces/httpapi"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	Instruments *domain.InstrumentRegistry
	storage     *container.Container
	events      *memory.Repo
	async       *telemetry.Async
	Telemetry   port.Telemetry

	// 输出端口
	Sink port.Sink

	// 应用业务组件（依赖基础设施）
	Bus        *bus.Bus
	Engines    []*decision.Engine
	feeds      []trader.Feed
	transports []*websocket.Transport
	monitor    *monitor.Service
	status     *httpapi.Server

	// 资源管理
	closeOnce   sync.Once
	closerChain []func() error
}

// New 创建并初始化 ServiceContext，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        console.NewSink(),
		Bus:         bus.New(),
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 按依赖顺序初始化
func (sc *ServiceContext) initializeComponents() error {
	reg, err := sc.Config.InstrumentRegistry()
	if err != nil {
		return err
	}
	sc.Instruments = reg

	// 0. 存储层
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}
	// 1. 遥测
	sc.initializeTelemetry()

	// 2. 行情源
	if err := sc.initializeFeeds(); err != nil {
		return err
	}
	if len(sc.feeds) == 0 {
		return ErrNoFeedsEnabled
	}

	// 3. 策略引擎，注册到总线
	if err := sc.initializeEngines(); err != nil {
		return err
	}

	// 4. 控制台监控 & 状态接口
	if sc.Config.App.Monitor {
		sc.monitor = monitor.NewService(monitor.ServiceDeps{
			Symbols:       reg.Symbols(),
			PrintEveryMin: sc.Config.App.PrintEveryMin,
			MinSpreadPct:  sc.spreadBand(minBand),
			MaxSpreadPct:  sc.spreadBand(maxBand),
			Sink:          sc.Sink,
			Telemetry:     sc.Telemetry,
		})
		sc.Bus.AddObserver(sc.monitor)
	}
	if sc.Config.App.StatusAddr != "" {
		sc.status = sc.buildStatusServer()
	}

	log.Info().
		Int("instruments", reg.Len()).
		Int("feeds", len(sc.feeds)).
		Int("strategies", len(sc.Engines)).
		Int("observers", sc.Bus.Len()).
		Msg("all components initialized")
	return nil
}

func (sc *ServiceContext) initializeStorage() error {
	c, err := container.New(sc.Ctx, sc.Config.Storage)
	if err != nil {
		return err
	}
	sc.storage = c
	sc.closerChain = append(sc.closerChain, c.Close)
	return nil
}

// initializeTelemetry 日志 + 内存环形缓冲同步写入，落库 sink 走异步缓冲
func (sc *ServiceContext) initializeTelemetry() {
	tc := sc.Config.Telemetry
	sc.events = memory.New(tc.MemoryEvents)

	sinks := []port.Telemetry{
		telemetry.NewLogSink(logger.ParseLevel(tc.LogLevel)),
		sc.events,
	}
	if journals := sc.storage.Journals(); len(journals) > 0 {
		sc.async = telemetry.NewAsync(
			composite.New(journals...),
			tc.AsyncBuffer,
			time.Duration(tc.AsyncTimeoutMs)*time.Millisecond,
		)
		sinks = append(sinks, sc.async)
		// 先于存储关闭：缓冲写完再断开连接
		sc.closerChain = append(sc.closerChain, sc.async.Close)
	}

	var out port.Telemetry = composite.New(sinks...)
	if !tc.RecordUpdates {
		out = telemetry.NewFilter(out, model.EventUpdateReceived)
	}
	sc.Telemetry = out
}

func (sc *ServiceContext) initializeFeeds() error {
	for _, name := range sc.Config.EnabledExchanges() {
		factory, ok := exchange.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownExchange, name)
		}
		venue, err := sc.Config.Venue(name)
		if err != nil {
			return err
		}
		ex, err := factory(venue.ExchangeConfig(), sc.Instruments)
		if err != nil {
			return fmt.Errorf("%s adapter: %w", name, err)
		}
		opts, err := sc.Config.Stream.TransportOptions(name)
		if err != nil {
			return err
		}

		tr := websocket.NewTransport(ex.Endpoint(), ex.Codec(), opts)
		sc.transports = append(sc.transports, tr)
		sc.closerChain = append(sc.closerChain, tr.Close)

		sc.feeds = append(sc.feeds, trader.Feed{
			Exchange:        ex,
			Transport:       tr,
			SnapshotOnStart: venue.SnapshotOnStart,
			SnapshotDepth:   venue.SnapshotDepth,
		})
		log.Info().Str("exchange", name).Str("endpoint", ex.Endpoint()).Msg("feed configured")
	}
	return nil
}

func (sc *ServiceContext) initializeEngines() error {
	for _, scfg := range sc.Config.Strategies {
		if !scfg.IsEnabled() {
			log.Warn().Str("strategy", scfg.Name).Msg("strategy disabled by config")
			continue
		}
		inst, ok := sc.Instruments.Get(scfg.Instrument)
		if !ok {
			return &config.ConfigError{Field: "strategies." + scfg.Name + ".instrument", Err: fmt.Errorf("unknown instrument %q", scfg.Instrument)}
		}

		var strategy domainservice.Strategy
		switch scfg.Kind {
		case domainservice.StrategyThreshold:
			strategy = domainservice.NewThresholdStrategy(scfg.Name)
		default:
			strategy = domainservice.NewSpreadStrategy(scfg.Name, scfg.MinSpreadPct, scfg.MaxSpreadPct)
		}

		eng, err := decision.New(decision.Config{
			Name:           scfg.Name,
			Exchange:       scfg.Exchange,
			Instrument:     inst,
			Strategy:       strategy,
			InitialCapital: scfg.InitialCapital,
		}, sc.Telemetry)
		if err != nil {
			return err
		}
		sc.Engines = append(sc.Engines, eng)
		sc.Bus.AddObserver(eng)

		log.Info().
			Str("strategy", scfg.Name).
			Str("kind", strategy.Kind()).
			Str("symbol", inst.Symbol).
			Str("exchange", scfg.Exchange).
			Msg("strategy engine ready")
	}
	return nil
}

func (sc *ServiceContext) buildStatusServer() *httpapi.Server {
	strategies := make([]httpapi.Strategy, 0, len(sc.Engines))
	for _, e := range sc.Engines {
		strategies = append(strategies, e)
	}
	transports := make([]httpapi.Transport, 0, len(sc.transports))
	for _, t := range sc.transports {
		transports = append(transports, t)
	}
	deps := httpapi.Deps{
		Strategies: strategies,
		Transports: transports,
		Events:     sc.events,
	}
	if repo := sc.storage.SQLiteRepo(); repo != nil {
		deps.Journal = repo
	}
	return httpapi.NewServer(deps)
}

type band int

const (
	minBand band = iota
	maxBand
)

// spreadBand 控制台着色用：取第一个价差策略的区间
func (sc *ServiceContext) spreadBand(b band) float64 {
	for _, s := range sc.Config.Strategies {
		if s.Kind != domainservice.StrategySpread || !s.IsEnabled() {
			continue
		}
		if b == minBand {
			return s.MinSpreadPct
		}
		return s.MaxSpreadPct
	}
	if b == minBand {
		return 0.1
	}
	return 0.5
}

// BuildTraderServiceDeps 构建 trader usecase 所需的依赖
func (sc *ServiceContext) BuildTraderServiceDeps() trader.ServiceDeps {
	var runners []trader.Runner
	if sc.monitor != nil {
		runners = append(runners, sc.monitor.Run)
	}
	if sc.status != nil {
		addr := sc.Config.App.StatusAddr
		runners = append(runners, func(ctx context.Context) error {
			return sc.status.Run(ctx, addr)
		})
	}
	return trader.ServiceDeps{
		Feeds:       sc.feeds,
		Instruments: sc.Instruments.All(),
		Bus:         sc.Bus,
		Telemetry:   sc.Telemetry,
		Runners:     runners,
	}
}

// Close 按相反顺序关闭所有资源
func (sc *ServiceContext) Close() error {
	var err error
	sc.closeOnce.Do(func() {
		for i := len(sc.closerChain) - 1; i >= 0; i-- {
			if e := sc.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("service context closed")
	})
	return err
}
