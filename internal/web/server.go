package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/infrastructure/events"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/usecase"
)

type Server struct {
	router     *http.ServeMux
	server     *http.Server
	ledger     *usecase.LedgerService
	reconciler *usecase.Reconciler
	hub        *events.Hub[domain.LedgerEvent]
	upgrader   websocket.Upgrader
	corsOrigin string
	logger     *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
}

func NewServer(
	port int,
	ledger *usecase.LedgerService,
	reconciler *usecase.Reconciler,
	hub *events.Hub[domain.LedgerEvent],
	corsOrigin string,
	logger *zap.Logger,
) *Server {
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	s := &Server{
		router:     http.NewServeMux(),
		ledger:     ledger,
		reconciler: reconciler,
		hub:        hub,
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		corsOrigin: corsOrigin,
		logger:     logger,
		done:       make(chan struct{}),
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Handler(),
	}
	return s
}

func (s *Server) routes() {
	// Orders
	s.router.HandleFunc("POST /api/orders", s.handlePlaceOrder)
	s.router.HandleFunc("GET /api/orders", s.handleListOrders)
	s.router.HandleFunc("GET /api/orders/{id}", s.handleGetOrder)
	s.router.HandleFunc("POST /api/orders/{id}/confirm", s.handleConfirmOrder)
	s.router.HandleFunc("POST /api/orders/{id}/reject", s.handleRejectOrder)
	s.router.HandleFunc("DELETE /api/orders/{id}", s.handleDeleteOrder)

	// Positions
	s.router.HandleFunc("GET /api/positions", s.handleListPositions)
	s.router.HandleFunc("GET /api/positions/{instrument}", s.handleGetPosition)
	s.router.HandleFunc("GET /api/portfolio", s.handlePortfolio)

	// Maintenance
	s.router.HandleFunc("POST /api/admin/repair/positions", s.handleRepairPositions)
	s.router.HandleFunc("POST /api/admin/repair/orders", s.handleRepairOrders)
	s.router.HandleFunc("GET /api/admin/verify", s.handleVerify)
	s.router.HandleFunc("POST /api/admin/prices/refresh", s.handleRefreshPrices)

	// Stream
	s.router.HandleFunc("GET /ws/events", s.handleEventStream)

	// Status
	s.router.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns the routed handler wrapped in CORS, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.withCORS(s.router)
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and ends open event streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	return s.server.Shutdown(ctx)
}
