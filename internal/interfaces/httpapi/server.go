package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"xbook/internal/application/port"
	"xbook/internal/application/usecase/decision"
	"xbook/internal/domain/model"
	"xbook/internal/infrastructure/storage/sqlite"
	"xbook/internal/infrastructure/websocket"
)

// Strategy 状态接口需要的引擎视图
type Strategy interface {
	Name() string
	Snapshot() decision.Snapshot
	Trades() []model.Trade
}

// Transport 状态接口需要的连接视图
type Transport interface {
	Stats() websocket.Stats
}

// Journal 已落库的成交和快照（可选）
type Journal interface {
	ListTrades(ctx context.Context, strategy string) ([]sqlite.TradeRow, error)
	LatestBook(ctx context.Context, exchange, symbol string) (bid, ask string, err error)
}

type Deps struct {
	Strategies []Strategy
	Transports []Transport
	Events     port.EventReader // 可为 nil
	Journal    Journal          // 可为 nil
	Origins    []string
}

// Server 只读状态接口
type Server struct {
	deps    Deps
	router  *mux.Router
	byName  map[string]Strategy
	started time.Time
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type BookResponse struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Bid      string `json:"bid"`
	Ask      string `json:"ask"`
}

func NewServer(deps Deps) *Server {
	s := &Server{
		deps:    deps,
		router:  mux.NewRouter(),
		byName:  make(map[string]Strategy, len(deps.Strategies)),
		started: time.Now(),
	}
	for _, st := range deps.Strategies {
		s.byName[st.Name()] = st
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/strategies", s.handleStrategies).Methods("GET")
	api.HandleFunc("/strategies/{name}/trades", s.handleTrades).Methods("GET")
	api.HandleFunc("/transports", s.handleTransports).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")
	api.HandleFunc("/books/{exchange}/{symbol}", s.handleBook).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler 带 CORS 的路由
func (s *Server) Handler() http.Handler {
	origins := s.deps.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Run 阻塞直到 ctx 取消，然后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("status api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	connected := 0
	for _, t := range s.deps.Transports {
		if t.Stats().State == websocket.StateConnected.String() {
			connected++
		}
	}
	respondJSON(w, map[string]any{
		"status":     "ok",
		"uptime_sec": int64(time.Since(s.started).Seconds()),
		"transports": len(s.deps.Transports),
		"connected":  connected,
		"strategies": len(s.deps.Strategies),
	})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	out := make([]decision.Snapshot, 0, len(s.deps.Strategies))
	for _, st := range s.deps.Strategies {
		out = append(out, st.Snapshot())
	}
	respondJSON(w, out)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	st, ok := s.byName[name]
	if !ok {
		respondError(w, http.StatusNotFound, "strategy not found", name)
		return
	}

	// source=journal 读取落库的历史成交
	if r.URL.Query().Get("source") == "journal" {
		if s.deps.Journal == nil {
			respondError(w, http.StatusNotFound, "journal disabled", "")
			return
		}
		rows, err := s.deps.Journal.ListTrades(r.Context(), name)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "journal query failed", err.Error())
			return
		}
		if rows == nil {
			rows = []sqlite.TradeRow{}
		}
		respondJSON(w, rows)
		return
	}

	trades := st.Trades()
	if trades == nil {
		trades = []model.Trade{}
	}
	respondJSON(w, trades)
}

func (s *Server) handleTransports(w http.ResponseWriter, r *http.Request) {
	out := make([]websocket.Stats, 0, len(s.deps.Transports))
	for _, t := range s.deps.Transports {
		out = append(out, t.Stats())
	}
	respondJSON(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		respondJSON(w, []model.Event{})
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = min(n, 1000)
	}
	events, err := s.deps.Events.RecentEvents(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "read events failed", err.Error())
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	respondJSON(w, events)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		respondError(w, http.StatusNotFound, "journal disabled", "")
		return
	}
	vars := mux.Vars(r)
	exchange := strings.ToUpper(vars["exchange"])
	symbol := strings.ToUpper(vars["symbol"])

	bid, ask, err := s.deps.Journal.LatestBook(r.Context(), exchange, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "book not found", exchange+" "+symbol)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal query failed", err.Error())
		return
	}
	respondJSON(w, BookResponse{Exchange: exchange, Symbol: symbol, Bid: bid, Ask: ask})
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: code, Message: message})
}
