// Package api exposes the bidding engine over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/bidwatch/internal/auth"
	"github.com/vietddude/bidwatch/internal/bidding"
	"github.com/vietddude/bidwatch/internal/core/domain"
	"github.com/vietddude/bidwatch/internal/indexing/health"
	"github.com/vietddude/bidwatch/internal/indexing/listener"
)

// Stable codes for failures outside the bidding service.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnknownListener = "UNKNOWN_LISTENER"
	CodeInternal        = "INTERNAL_ERROR"
)

// BidService is the bidding surface served over HTTP.
type BidService interface {
	PlaceBid(ctx context.Context, req bidding.PlaceBidRequest) (*domain.Bid, error)
	GetHighestBid(ctx context.Context, auctionID string) (*domain.HighestBid, error)
	GetBidsByAuction(ctx context.Context, auctionID string, cursor *uint32, limit int) (*domain.BidPage, error)
	GetMyBids(ctx context.Context, auctionID, bidder string) ([]*domain.Bid, error)
}

// Listeners controls the chain event listeners.
type Listeners interface {
	Health() []listener.Health
	Restart(ctx context.Context, kind domain.ListenerKind) (listener.Health, error)
}

// Sessions verifies the caller's session token.
type Sessions interface {
	VerifyRequest(r *http.Request) (auth.Claims, error)
}

// Deps wires a Server. Sessions may be nil to serve bids without a session.
type Deps struct {
	Bids      BidService
	Listeners Listeners
	Monitor   *health.Monitor
	Realtime  http.Handler
	Sessions  Sessions
}

// Server provides the HTTP endpoints of the engine.
type Server struct {
	deps   Deps
	server *http.Server
	now    func() time.Time
	log    *slog.Logger
}

// NewServer creates a new server listening on port.
func NewServer(deps Deps, port int) *Server {
	s := &Server{
		deps: deps,
		now:  time.Now,
		log:  slog.Default().With("component", "api"),
	}
	s.server = &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /bids/{auctionId}", s.handlePlaceBid)
	mux.HandleFunc("GET /bids/{auctionId}", s.handleListBids)
	mux.HandleFunc("GET /bids/{auctionId}/highest", s.handleHighestBid)
	mux.HandleFunc("GET /bids/{auctionId}/mine", s.handleMyBids)
	if s.deps.Realtime != nil {
		mux.Handle("GET /ws/bids", s.deps.Realtime)
	}

	mux.HandleFunc("GET /listeners/health", s.handleListenerHealth)
	mux.HandleFunc("POST /listeners/{kind}/restart", s.handleRestartListener)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// writeErr maps typed errors to their status and stable code.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		writeError(w, de.HTTPStatus(), de.Code, de.Message)
		return
	}
	s.log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := health.StatusHealthy
	if s.deps.Monitor != nil {
		status = s.deps.Monitor.CheckHealth(r.Context()).SystemStatus
	}

	code := http.StatusOK
	if status == health.StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	if s.deps.Monitor == nil {
		writeJSON(w, http.StatusOK, health.HealthReport{SystemStatus: health.StatusHealthy})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Monitor.CheckHealth(r.Context()))
}

// ---------------------------------------------------------------------------
// Listeners
// ---------------------------------------------------------------------------

func (s *Server) handleListenerHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Listeners.Health())
}

func (s *Server) handleRestartListener(w http.ResponseWriter, r *http.Request) {
	kind := domain.ListenerKind(r.PathValue("kind"))
	h, err := s.deps.Listeners.Restart(r.Context(), kind)
	if errors.Is(err, listener.ErrUnknownListener) {
		writeError(w, http.StatusNotFound, CodeUnknownListener, err.Error())
		return
	}
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if s.deps.Monitor != nil {
		s.deps.Monitor.Invalidate()
	}
	s.log.Info("Listener restarted", "kind", kind)
	writeJSON(w, http.StatusOK, h)
}
