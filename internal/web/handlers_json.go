package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/usecase"
)

type placeOrderRequest struct {
	Instrument string          `json:"instrument" validate:"required,max=32"`
	Quantity   int64           `json:"quantity" validate:"gt=0,max=1000000000"`
	Price      decimal.Decimal `json:"price"`
	Side       string          `json:"side" validate:"required,oneof=BUY SELL"`
	Origin     string          `json:"origin" validate:"omitempty,oneof=MANUAL VOICE ASSISTANT"`
}

type placeOrderResponse struct {
	Order             *domain.Order `json:"order"`
	NeedsConfirmation bool          `json:"needs_confirmation"`
	Warning           string        `json:"warning,omitempty"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid order payload: %w", err))
		return
	}
	req.Side = strings.ToUpper(strings.TrimSpace(req.Side))
	req.Origin = strings.ToUpper(strings.TrimSpace(req.Origin))
	if req.Origin == "" {
		req.Origin = string(domain.OriginManual)
	}
	if err := validateInput(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	result, err := s.ledger.PlaceOrder(r.Context(), usecase.PlaceOrderRequest{
		Instrument: req.Instrument,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Side:       domain.Side(req.Side),
		Origin:     domain.Origin(req.Origin),
	})
	if err != nil {
		s.fail(w, "Failed to place order", err)
		return
	}

	resp := placeOrderResponse{Order: result.Order, NeedsConfirmation: result.NeedsConfirmation}
	if result.Warning != nil {
		resp.Warning = result.Warning.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.OrderFilter{
		Instrument: q.Get("instrument"),
		Status:     domain.Status(strings.ToUpper(q.Get("status"))),
		Side:       domain.Side(strings.ToUpper(q.Get("side"))),
		Origin:     domain.Origin(strings.ToUpper(q.Get("origin"))),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("unknown status %q", filter.Status))
		return
	}
	if filter.Side != "" && !filter.Side.Valid() {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("unknown side %q", filter.Side))
		return
	}
	if filter.Origin != "" && !filter.Origin.Valid() {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("unknown origin %q", filter.Origin))
		return
	}

	pagination := getPagination[*domain.Order](r)
	filter.Limit = pagination.Size
	filter.Offset = (pagination.Page - 1) * pagination.Size

	orders, total, err := s.ledger.ListOrders(r.Context(), filter)
	if err != nil {
		s.fail(w, "Failed to list orders", err)
		return
	}
	pagination.Total = &total
	pagination.Items = orders

	writeJSON(w, http.StatusOK, pagination)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.ledger.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, "Failed to get order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleConfirmOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.ledger.ConfirmOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, "Failed to confirm order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleRejectOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.ledger.RejectOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, "Failed to reject order", err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteOrder(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, "Failed to delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.ledger.ListPositions(r.Context())
	if err != nil {
		s.fail(w, "Failed to list positions", err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := s.ledger.GetPosition(r.Context(), r.PathValue("instrument"))
	if err != nil {
		s.fail(w, "Failed to get position", err)
		return
	}
	writeJSON(w, http.StatusOK, domain.NewHolding(pos))
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.ledger.Portfolio(r.Context())
	if err != nil {
		s.fail(w, "Failed to build portfolio", err)
		return
	}
	writeJSON(w, http.StatusOK, portfolio)
}

func (s *Server) handleRepairPositions(w http.ResponseWriter, r *http.Request) {
	result, err := s.reconciler.RepairMissingPositions(r.Context())
	if err != nil {
		s.fail(w, "Failed to repair positions", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRepairOrders(w http.ResponseWriter, r *http.Request) {
	result, err := s.reconciler.RepairMissingOrders(r.Context())
	if err != nil {
		s.fail(w, "Failed to repair orders", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	drifts, err := s.reconciler.Verify(r.Context())
	if err != nil {
		s.fail(w, "Failed to verify ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"consistent": len(drifts) == 0,
		"drifts":     drifts,
	})
}

func (s *Server) handleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	n, err := s.ledger.RefreshPrices(r.Context())
	if err != nil {
		s.fail(w, "Failed to refresh prices", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail logs err and writes it with the status its kind maps to.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	writeError(w, code, err)
}
