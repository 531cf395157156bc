package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"tradesim/internal/book"
	"tradesim/internal/engine"
	"tradesim/internal/leaderboard"
	"tradesim/internal/risk"
	"tradesim/pkg/types"
)

// Version is the reported build version.
const Version = "1.0.0"

// userHeader carries the caller's identity. There is no authentication
// beyond it; the simulator trusts the header.
const userHeader = "X-User-ID"

const (
	defaultDepth = 10
	maxDepth     = 20
)

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	engine   *engine.Engine
	board    *leaderboard.Board
	hub      *Hub
	limiters *limiterPool // per-user order-submission throttle
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandlers creates a new handlers instance. An empty origins list allows
// every WebSocket origin (development default).
func NewHandlers(eng *engine.Engine, hub *Hub, limiters *limiterPool, origins []string, logger *slog.Logger) *Handlers {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &Handlers{
		engine:   eng,
		board:    leaderboard.New(eng.Ledger()),
		hub:      hub,
		limiters: limiters,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
		logger: logger.With("component", "api-handlers"),
	}
}

// limiterPool hands out one token bucket per user id, all sharing the same
// configured rate and burst.
type limiterPool struct {
	mu    sync.Mutex
	rate  rate.Limit
	burst int
	users map[string]*rate.Limiter
}

func newLimiterPool(r rate.Limit, burst int) *limiterPool {
	return &limiterPool{rate: r, burst: burst, users: make(map[string]*rate.Limiter)}
}

func (p *limiterPool) allow(userID string) bool {
	p.mu.Lock()
	lim, ok := p.users[userID]
	if !ok {
		lim = rate.NewLimiter(p.rate, p.burst)
		p.users[userID] = lim
	}
	p.mu.Unlock()
	return lim.Allow()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// userID extracts the caller identity, writing a 401 when absent.
func (h *Handlers) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(userHeader)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + userHeader + " header"})
		return "", false
	}
	return id, true
}

// HandleHealth returns a simple health check response
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Instruments: len(h.engine.Registry().Symbols()),
		SimTimeMS:   h.engine.News().SimTimeMS(),
	})
}

// HandleVersion reports the build version
func (h *Handlers) HandleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{Version: Version})
}

// HandleInstruments lists all tradable instruments
func (h *Handlers) HandleInstruments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Registry().All())
}

// HandleSubmitOrder accepts a limit or market order, runs it through the
// risk gate, and submits it to the book.
func (h *Handlers) HandleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if !h.limiters.allow(userID) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "submission rate exceeded, retry shortly"})
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	side := types.Side(req.Side)
	if !side.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "side must be buy or sell"})
		return
	}
	if req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quantity must be positive"})
		return
	}

	price := req.Price
	switch types.OrderType(req.Type) {
	case types.OrderTypeLimit:
		if price <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit orders require a positive price"})
			return
		}
	case types.OrderTypeMarket:
		// Market orders become aggressive limits priced far through the
		// opposite best, so they sweep whatever liquidity exists.
		var ref types.Order
		var haveRef bool
		if side == types.Buy {
			ref, haveRef = h.engine.Book().BestAsk(req.Symbol)
			price = ref.Price * 10
		} else {
			ref, haveRef = h.engine.Book().BestBid(req.Symbol)
			price = ref.Price * 0.1
		}
		if !haveRef {
			writeJSON(w, http.StatusBadRequest, rejectionResponse{
				Status:  "rejected",
				Reason:  "no_liquidity",
				Message: "no resting orders to trade against",
			})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "type must be market or limit"})
		return
	}

	order := types.Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		Symbol:      req.Symbol,
		Side:        side,
		Price:       price,
		OriginalQty: req.Quantity,
		CreatedAt:   time.Now(),
	}

	now := time.Now()
	if reason := h.engine.Gate().Check(order, now); reason != types.RejectNone {
		writeJSON(w, http.StatusBadRequest, rejectionResponse{
			Status:  "rejected",
			Reason:  string(reason),
			Message: risk.Message(reason),
		})
		return
	}

	result := h.engine.Book().Submit(order, false)
	h.engine.Gate().RecordAccepted(order, now)

	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:      order.ID,
		Status:       result.Status,
		UnfilledQty:  result.UnfilledQty,
		AvgFillPrice: result.AvgFillPrice,
	})
}

// HandleListOrders returns the caller's full order history
func (h *Handlers) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	views := h.engine.Book().OrdersFor(userID)
	if views == nil {
		views = []book.OrderView{}
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleCancelOrder cancels one of the caller's resting orders
func (h *Handlers) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	orderID := r.PathValue("id")

	owned := false
	for _, o := range h.engine.Book().OpenOrdersFor(userID) {
		if o.ID == orderID {
			owned = true
			break
		}
	}
	if !owned || !h.engine.Book().Cancel(orderID) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no open order with that id"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "order_id": orderID})
}

// HandleOrderbook returns top-of-book ladders for a symbol
func (h *Handlers) HandleOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if !h.engine.Registry().IsValid(symbol) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown instrument"})
		return
	}

	depth := defaultDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "depth must be an integer"})
			return
		}
		depth = min(max(d, 1), maxDepth)
	}

	bids, asks := h.engine.Book().Snapshot(symbol, depth)
	if bids == nil {
		bids = []types.PriceLevel{}
	}
	if asks == nil {
		asks = []types.PriceLevel{}
	}
	resp := orderbookResponse{Symbol: symbol, Bids: bids, Asks: asks}
	if last, ok := h.engine.Book().LastTradedPrice(symbol); ok {
		resp.LastTradedPrice = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandlePortfolio returns the caller's cash, lots, and P&L
func (h *Handlers) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	led := h.engine.Ledger()
	led.Touch(userID)
	marks := h.engine.Marks()

	cash, _ := led.Cash(userID).Float64()
	realized, _ := led.RealizedPnL(userID).Float64()
	unrealized := led.UnrealizedPnL(userID, marks)

	positions := led.Positions(userID)
	if positions == nil {
		positions = map[string][]types.Lot{}
	}

	writeJSON(w, http.StatusOK, portfolioResponse{
		UserID:        userID,
		Cash:          cash,
		Positions:     positions,
		MarketValue:   led.MarketValue(userID, marks),
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
		TotalPnL:      realized + unrealized,
	})
}

// HandleNewsStatus reports news engine counters
func (h *Handlers) HandleNewsStatus(w http.ResponseWriter, r *http.Request) {
	active, activated := h.engine.News().Counts()
	writeJSON(w, http.StatusOK, newsStatusResponse{
		SimTimeMS:      h.engine.News().SimTimeMS(),
		TotalEvents:    len(h.engine.News().All()),
		ActiveCount:    active,
		ActivatedCount: activated,
	})
}

// HandleNewsAll lists every known news event
func (h *Handlers) HandleNewsAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmptyNews(h.engine.News().All()))
}

// HandleNewsCandidates lists events eligible for activation
func (h *Handlers) HandleNewsCandidates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmptyNews(h.engine.News().Candidates()))
}

// HandleNewsActive lists events currently contributing to drift
func (h *Handlers) HandleNewsActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, orEmptyNews(h.engine.News().Active()))
}

func orEmptyNews(events []types.NewsEvent) []types.NewsEvent {
	if events == nil {
		return []types.NewsEvent{}
	}
	return events
}

// HandleAdminNews inserts an ad-hoc news event, immediately active
func (h *Handlers) HandleAdminNews(w http.ResponseWriter, r *http.Request) {
	var req adHocNewsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.DecayHalflifeS <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "decay_halflife_s must be positive"})
		return
	}

	event := types.NewsEvent{
		ID:              req.ID,
		Headline:        req.Headline,
		Description:     req.Description,
		TSReleaseMS:     h.engine.News().SimTimeMS(),
		DecayHalflifeS:  req.DecayHalflifeS,
		MagnitudeTop:    req.Magnitude,
		MagnitudeBottom: req.Magnitude,
	}
	h.engine.News().InsertAdHoc(event, req.Factors)

	writeJSON(w, http.StatusOK, map[string]any{"status": "inserted", "id": req.ID})
}

// HandleLeaderboard returns current standings
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries := h.board.Compute(h.engine.Marks())
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleWebSocket upgrades the connection and subscribes it to price pushes
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	NewClient(h.hub, conn)
}
