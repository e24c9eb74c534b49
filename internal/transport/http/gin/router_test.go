package httpgin

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/kirinyoku/tixsync/internal/domain"
	"github.com/kirinyoku/tixsync/internal/pricefeed"
	"github.com/kirinyoku/tixsync/internal/repository"
	redisrepo "github.com/kirinyoku/tixsync/internal/repository/redis"
	"github.com/kirinyoku/tixsync/internal/service"
	"github.com/kirinyoku/tixsync/internal/service/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Healthz(t *testing.T) {
	r := NewRouter(&service.Services{}, nil, nil, discardLogger())

	w := do(r, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_RequiresIdentity(t *testing.T) {
	r := NewRouter(&service.Services{}, nil, nil, discardLogger())

	for _, h := range []map[string]string{
		nil,
		{HeaderUserID: "abc"},
		{HeaderUserID: "0"},
	} {
		w := do(r, http.MethodGet, "/orders", "", h)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestRouter_AdminRequiresRole(t *testing.T) {
	r := NewRouter(&service.Services{}, nil, nil, discardLogger())

	w := do(r, http.MethodDelete, "/admin/ticket-types/1", "", map[string]string{HeaderUserID: "7"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodDelete, "/admin/ticket-types/1", "", map[string]string{
		HeaderUserID:   "7",
		HeaderUserRole: "organizer",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_RejectsMalformedInput(t *testing.T) {
	r := NewRouter(&service.Services{}, nil, nil, discardLogger())
	caller := map[string]string{HeaderUserID: "7"}

	cases := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"order id not a uuid", http.MethodGet, "/orders/42", ""},
		{"reserve without ticket type", http.MethodPost, "/orders/reserve", `{"quantity":1}`},
		{"reserve with bad order id", http.MethodPost, "/orders/reserve", `{"order_id":"nope","ticket_type_id":1,"quantity":1}`},
		{"ticket type id not numeric", http.MethodDelete, "/orders/0b8e6a2c-2f6e-4f57-9a43-0f6d3c1e9a11/items/x", ""},
		{"quote without asset", http.MethodPost, "/payments/quote", `{"order_id":"0b8e6a2c-2f6e-4f57-9a43-0f6d3c1e9a11"}`},
		{"settlement without proof", http.MethodPost, "/payments/0b8e6a2c-2f6e-4f57-9a43-0f6d3c1e9a11/confirm", `{}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.method, tc.path, tc.body, caller)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestRouter_ReserveReplaysStoredResponse(t *testing.T) {
	db, mock := redismock.NewClientMock()
	idem := redisrepo.NewIdempotencyStore(db, time.Hour)
	r := NewRouter(&service.Services{}, idem, nil, discardLogger())

	key := redisrepo.KeyIdem("reserve", 7, "k-1")
	mock.ExpectGet(key).SetVal(`RES:201:{"order_id":"0b8e6a2c-2f6e-4f57-9a43-0f6d3c1e9a11"}`)

	w := do(r, http.MethodPost, "/orders/reserve", `{"ticket_type_id":1,"quantity":2}`, map[string]string{
		HeaderUserID:      "7",
		"Idempotency-Key": "k-1",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replay"))
	assert.JSONEq(t, `{"order_id":"0b8e6a2c-2f6e-4f57-9a43-0f6d3c1e9a11"}`, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_ReserveKeyInFlight(t *testing.T) {
	db, mock := redismock.NewClientMock()
	idem := redisrepo.NewIdempotencyStore(db, time.Hour)
	r := NewRouter(&service.Services{}, idem, nil, discardLogger())

	key := redisrepo.KeyIdem("reserve", 7, "k-2")
	mock.ExpectGet(key).SetVal("LOCK")
	mock.ExpectSetNX(key, "LOCK", idemLockTTL).SetVal(false)
	mock.ExpectGet(key).SetVal("LOCK")

	w := do(r, http.MethodPost, "/orders/reserve", `{"ticket_type_id":1,"quantity":2}`, map[string]string{
		HeaderUserID:      "7",
		"Idempotency-Key": "k-2",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunIdempotent_StoreDownRunsOnce(t *testing.T) {
	db, mock := redismock.NewClientMock()
	idem := redisrepo.NewIdempotencyStore(db, time.Hour)

	key := redisrepo.KeyIdem("settle", 7, "k-3")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSetNX(key, "LOCK", idemLockTTL).SetErr(fmt.Errorf("connection refused"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/payments/x/settle", nil)
	c.Request.Header.Set("Idempotency-Key", "k-3")
	c.Set(ctxCallerID, int64(7))

	calls := 0
	runIdempotent(c, idem, "settle", func() (handlerResult, error) {
		calls++
		return handlerResult{status: http.StatusOK, body: gin.H{"status": "CONFIRMED"}}, nil
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"CONFIRMED"}`, w.Body.String())
	assert.Len(t, c.Errors, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_ExternalQuotes(t *testing.T) {
	db, mock := redismock.NewClientMock()
	quotes := redisrepo.NewQuoteStore(db, "TWD")
	r := NewRouter(&service.Services{}, nil, quotes, discardLogger())
	provider := map[string]string{HeaderUserID: "1", HeaderUserRole: RoleProvider}

	mock.ExpectHGetAll("tixsync:v1:quotes:TWD").SetVal(map[string]string{"BTC": "2600000"})
	w := do(r, http.MethodGet, "/external/quotes", "", provider)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		BaseCurrency string            `json:"base_currency"`
		Rates        map[string]string `json:"rates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "TWD", got.BaseCurrency)
	assert.Equal(t, "2600000", got.Rates["BTC"])

	mock.ExpectHDel("tixsync:v1:quotes:TWD", "ETH").SetVal(0)
	w = do(r, http.MethodDelete, "/external/quotes/eth", "", provider)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, "/external/quotes", `{"rates":{"BTC":"-1"}}`, provider)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/external/quotes", "", map[string]string{HeaderUserID: "1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRespondErr_Taxonomy(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrInvalidQuantity, http.StatusBadRequest},
		{pricefeed.ErrUnsupportedAsset, http.StatusBadRequest},
		{domain.ErrNotOwner, http.StatusForbidden},
		{domain.ErrOrderNotFound, http.StatusNotFound},
		{domain.ErrItemNotFound, http.StatusNotFound},
		{domain.ErrInsufficientQuota, http.StatusConflict},
		{domain.ErrOrderExpired, http.StatusConflict},
		{domain.ErrProofAlreadyUsed, http.StatusConflict},
		{domain.ErrTicketTypeInUse, http.StatusConflict},
		{pricefeed.ErrInvalidRate, http.StatusConflict},
		{reservation.ErrBusy, http.StatusTooManyRequests},
		{reservation.ErrTooManyAttempts, http.StatusTooManyRequests},
		{repository.ErrVersionConflict, http.StatusTooManyRequests},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondErr(c, fmt.Errorf("service.x.Y:%w", tc.err))

			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRespondErr_RateLimitedSetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondErr(c, fmt.Errorf("op:%w", reservation.RateLimitedError{RetryAfter: 2500 * time.Millisecond}))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get("Retry-After"))
}

func TestWriteCached_ConditionalGet(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		writeCached(c, gin.H{"quota": 7}, 15*time.Second)
	})

	w := do(r, http.MethodGet, "/x", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=15", w.Header().Get("Cache-Control"))

	tag := w.Header().Get("ETag")
	require.True(t, strings.HasPrefix(tag, `W/"`), tag)

	w = do(r, http.MethodGet, "/x", "", map[string]string{"If-None-Match": `"other", ` + tag})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())

	w = do(r, http.MethodGet, "/x", "", map[string]string{"If-None-Match": strings.TrimPrefix(tag, "W/")})
	assert.Equal(t, http.StatusNotModified, w.Code, "weak comparison ignores the W/ prefix")

	w = do(r, http.MethodGet, "/x", "", map[string]string{"If-None-Match": `"stale"`})
	assert.Equal(t, http.StatusOK, w.Code)
}
