package httpgin

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/tixsync/internal/domain"
	redisrepo "github.com/kirinyoku/tixsync/internal/repository/redis"
	"github.com/kirinyoku/tixsync/internal/service"
	"github.com/kirinyoku/tixsync/internal/service/reservation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// NewRouter builds the HTTP API. quotes may be nil, which leaves the
// external quote endpoints unregistered.
func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	quotes *redisrepo.QuoteStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if err := svcs.Query.Ready(c.Request.Context()); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public catalog
	r.GET("/events/:id", handleGetEvent(svcs))
	r.GET("/events/:id/ticket-types", handleListTicketTypes(svcs))
	r.GET("/ticket-types/:id", handleGetTicketType(svcs))
	r.GET("/payments/rates/:asset", handlePreviewQuote(svcs))

	authed := r.Group("/", Identity())

	orders := authed.Group("/orders")
	{
		orders.POST("/reserve", handleReserve(svcs, idem))
		orders.DELETE("/:id/items/:ticketTypeId", handleRemoveItem(svcs))
		orders.POST("/:id/cancel", handleCancelOrder(svcs))
		orders.POST("/:id/confirm", handleConfirmOrder(svcs))
		orders.GET("/:id", handleGetOrder(svcs))
		orders.GET("", handleListMyOrders(svcs))
	}

	payments := authed.Group("/payments")
	{
		payments.POST("/quote", handleCreateQuote(svcs))
		payments.POST("/:id/confirm", handleConfirmSettlement(svcs, idem))
		payments.GET("/:id", handleGetPayment(svcs))
	}

	admin := authed.Group("/admin", RequireRole(RoleAdmin))
	{
		admin.POST("/events", handleCreateEvent(svcs))
		admin.POST("/events/:id/ticket-types", handleCreateTicketType(svcs))
		admin.POST("/ticket-types/:id/restock", handleRestock(svcs))
		admin.DELETE("/ticket-types/:id", handleDeleteTicketType(svcs))
		admin.GET("/orders", handleListOrdersByStatus(svcs))
	}

	if quotes != nil {
		external := authed.Group("/external/quotes", RequireRole(RoleProvider, RoleAdmin))
		{
			external.PUT("", handlePutQuotes(quotes))
			external.GET("", handleListQuotes(quotes))
			external.DELETE("/:asset", handleDeleteQuote(quotes))
		}
	}

	return r
}

// --- Catalog ---

// @Summary  Get event
// @Param    id  path  int  true  "Event ID"
// @Success  200  {object}  domain.Event
// @Failure  404  {object}  ErrorResponse
// @Router   /events/{id} [get]
func handleGetEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		e, err := svcs.Query.GetEvent(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		ttl, _ := svcs.Query.TTLs()
		writeCached(c, e, ttl)
	}
}

// @Summary  List ticket types of an event with remaining quota
// @Param    id  path  int  true  "Event ID"
// @Success  200  {array}  domain.Availability
// @Failure  404  {object} ErrorResponse
// @Router   /events/{id}/ticket-types [get]
func handleListTicketTypes(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		list, err := svcs.Query.ListAvailability(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		_, ttl := svcs.Query.TTLs()
		writeCached(c, list, ttl)
	}
}

// @Summary  Get ticket type availability
// @Param    id  path  int  true  "Ticket type ID"
// @Success  200  {object}  domain.Availability
// @Failure  404  {object}  ErrorResponse
// @Router   /ticket-types/{id} [get]
func handleGetTicketType(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		a, err := svcs.Query.GetAvailability(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		_, ttl := svcs.Query.TTLs()
		writeCached(c, a, ttl)
	}
}

// --- Orders ---

// @Summary  Reserve tickets (idempotent)
// @Param    X-User-ID        header  int     true   "Caller"
// @Param    Idempotency-Key  header  string  false  "Client key"
// @Param    req body  ReserveRequest true "payload"
// @Success  201 {object} ReserveResponse "new order"
// @Success  200 {object} ReserveResponse "existing order"
// @Failure  400 {object} ErrorResponse
// @Failure  403 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "insufficient quota / order not mutable"
// @Failure  429 {object} ErrorResponse "busy / rate limited"
// @Router   /orders/reserve [post]
func handleReserve(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReserveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		orderID := uuid.Nil
		if req.OrderID != "" {
			id, err := uuid.Parse(req.OrderID)
			if err != nil {
				badRequest(c, "invalid order_id")
				return
			}
			orderID = id
		}

		caller := callerID(c)

		runIdempotent(c, idem, "reserve", func() (handlerResult, error) {
			id, err := svcs.Reservation.Reserve(c.Request.Context(), reservation.ReserveInput{
				CallerID:     caller,
				OrderID:      orderID,
				TicketTypeID: req.TicketTypeID,
				Quantity:     req.Quantity,
				RateLimitKey: "user:" + strconv.FormatInt(caller, 10),
			})
			if err != nil {
				return handlerResult{}, err
			}

			status := http.StatusOK
			if orderID == uuid.Nil {
				status = http.StatusCreated
			}
			return handlerResult{status: status, body: ReserveResponse{OrderID: id.String()}}, nil
		})
	}
}

// @Summary  Remove a line item and restock it
// @Param    id            path  string  true  "Order ID (uuid)"
// @Param    ticketTypeId  path  int     true  "Ticket type ID"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /orders/{id}/items/{ticketTypeId} [delete]
func handleRemoveItem(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		ttID, ok := parseInt64Param(c, "ticketTypeId")
		if !ok {
			return
		}
		if err := svcs.Reservation.RemoveItem(c.Request.Context(), callerID(c), orderID, ttID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Cancel a pending order
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  204
// @Failure  409 {object} ErrorResponse
// @Router   /orders/{id}/cancel [post]
func handleCancelOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Reservation.Cancel(c.Request.Context(), callerID(c), orderID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Confirm a paid order
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  204
// @Failure  409 {object} ErrorResponse "no confirmed payment / not pending / expired"
// @Router   /orders/{id}/confirm [post]
func handleConfirmOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Orders.Confirm(c.Request.Context(), callerID(c), orderID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Get order with items
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} domain.Order
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /orders/{id} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Orders.Get(c.Request.Context(), callerID(c), orderID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary  List the caller's orders
// @Param    limit   query  int  false  "page size"
// @Param    offset  query  int  false  "offset"
// @Success  200 {array} domain.Order
// @Router   /orders [get]
func handleListMyOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Orders.ListMine(
			c.Request.Context(),
			callerID(c),
			parseIntDefault(c.Query("limit"), 0),
			parseIntDefault(c.Query("offset"), 0),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// --- Payments ---

// @Summary  Create or reuse a crypto quote for an order
// @Param    req body  CreateQuoteRequest true "payload"
// @Success  201 {object} domain.Payment
// @Failure  400 {object} ErrorResponse "unsupported asset"
// @Failure  409 {object} ErrorResponse
// @Router   /payments/quote [post]
func handleCreateQuote(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateQuoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			badRequest(c, "invalid order_id")
			return
		}
		p, err := svcs.Payments.CreateQuote(c.Request.Context(), callerID(c), orderID, req.Asset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

// @Summary  Confirm settlement of a quote (idempotent)
// @Param    id  path  string  true  "Payment ID (uuid)"
// @Param    Idempotency-Key  header  string  false  "Client key"
// @Param    req body  ConfirmSettlementRequest true "payload"
// @Success  200 {object} domain.Payment
// @Failure  409 {object} ErrorResponse "expired / proof reused / not pending"
// @Router   /payments/{id}/confirm [post]
func handleConfirmSettlement(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req ConfirmSettlementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		runIdempotent(c, idem, "settle", func() (handlerResult, error) {
			p, err := svcs.Payments.ConfirmSettlement(c.Request.Context(), callerID(c), paymentID, req.SettlementProof)
			if err != nil {
				return handlerResult{}, err
			}
			return handlerResult{status: http.StatusOK, body: p}, nil
		})
	}
}

// @Summary  Get payment
// @Param    id  path  string  true  "Payment ID (uuid)"
// @Success  200 {object} domain.Payment
// @Router   /payments/{id} [get]
func handleGetPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		p, err := svcs.Payments.Get(c.Request.Context(), callerID(c), paymentID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// @Summary  Preview the current rate of an asset
// @Param    asset  path  string  true  "Asset symbol"
// @Success  200 {object} payments.Quote
// @Failure  400 {object} ErrorResponse
// @Router   /payments/rates/{asset} [get]
func handlePreviewQuote(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := svcs.Payments.PreviewQuote(c.Request.Context(), c.Param("asset"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}

// --- Admin ---

// @Summary  Create event
// @Param    req body  CreateEventRequest true "payload"
// @Success  201 {object} CreateEventResponse
// @Router   /admin/events [post]
func handleCreateEvent(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}
		ends, err := parseRFC3339(req.EndsAt)
		if err != nil {
			badRequest(c, "invalid ends_at (RFC3339)")
			return
		}
		organizer := req.OrganizerID
		if organizer == 0 {
			organizer = callerID(c)
		}
		e := &domain.Event{
			Name:        req.Name,
			Description: req.Description,
			OrganizerID: organizer,
			StartsAt:    starts,
			EndsAt:      ends,
		}
		if err := svcs.Admin.CreateEvent(c.Request.Context(), e); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateEventResponse{EventID: e.ID})
	}
}

// @Summary  Create ticket type
// @Param    id  path  int  true  "Event ID"
// @Param    req body  CreateTicketTypeRequest true "payload"
// @Success  201 {object} domain.TicketType
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /admin/events/{id}/ticket-types [post]
func handleCreateTicketType(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CreateTicketTypeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		tt := &domain.TicketType{
			EventID: eventID,
			Name:    req.Name,
			Price:   req.Price,
			Quota:   req.Quota,
		}
		if err := svcs.Admin.CreateTicketType(c.Request.Context(), tt); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, tt)
	}
}

// @Summary  Restock a ticket type
// @Param    id  path  int  true  "Ticket type ID"
// @Param    req body  RestockRequest true "payload"
// @Success  200 {object} domain.TicketType
// @Router   /admin/ticket-types/{id}/restock [post]
func handleRestock(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req RestockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		tt, err := svcs.Admin.Restock(c.Request.Context(), id, req.Quantity)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, tt)
	}
}

// @Summary  Delete an unreferenced ticket type
// @Param    id  path  int  true  "Ticket type ID"
// @Success  204
// @Failure  409 {object} ErrorResponse "referenced by orders"
// @Router   /admin/ticket-types/{id} [delete]
func handleDeleteTicketType(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Admin.DeleteTicketType(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  List orders by status
// @Param    status  query  string  true   "PENDING_PAYMENT | CONFIRMED | CANCELLED | EXPIRED"
// @Param    limit   query  int     false  "page size"
// @Param    offset  query  int     false  "offset"
// @Success  200 {array} domain.Order
// @Router   /admin/orders [get]
func handleListOrdersByStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Orders.ListByStatus(
			c.Request.Context(),
			c.Query("status"),
			parseIntDefault(c.Query("limit"), 0),
			parseIntDefault(c.Query("offset"), 0),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// --- External quotes ---

// @Summary  Publish external quotes
// @Param    req body  PutQuotesRequest true "payload"
// @Success  204
// @Router   /external/quotes [put]
func handlePutQuotes(quotes *redisrepo.QuoteStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PutQuotesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		rates := make(map[string]decimal.Decimal, len(req.Rates))
		for asset, rate := range req.Rates {
			a, err := domain.NormalizeAsset(asset)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !rate.IsPositive() {
				badRequest(c, "rate for "+a+" must be positive")
				return
			}
			rates[a] = rate
		}
		if err := quotes.PutAll(c.Request.Context(), rates); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  List external quotes
// @Success  200 {object} QuotesResponse
// @Router   /external/quotes [get]
func handleListQuotes(quotes *redisrepo.QuoteStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		rates, err := quotes.All(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, QuotesResponse{BaseCurrency: quotes.BaseCurrency(), Rates: rates})
	}
}

// @Summary  Withdraw an external quote
// @Param    asset  path  string  true  "Asset symbol"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /external/quotes/{asset} [delete]
func handleDeleteQuote(quotes *redisrepo.QuoteStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := domain.NormalizeAsset(c.Param("asset"))
		if err != nil {
			respondErr(c, err)
			return
		}
		ok, err := quotes.Delete(c.Request.Context(), a)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "quote not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
