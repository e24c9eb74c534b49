package httpgin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	redisrepo "github.com/kirinyoku/tixsync/internal/repository/redis"
)

const idemLockTTL = 60 * time.Second

// handlerResult is what an idempotent handler produced on success.
type handlerResult struct {
	status int
	body   any
}

// runIdempotent executes run at most once per (scope, caller, Idempotency-Key).
// A repeated key replays the stored response; a key still in flight yields 409.
// Failed runs release the key so the client may retry. Without a key or a
// store, run is executed directly.
func runIdempotent(
	c *gin.Context,
	idem *redisrepo.IdempotencyStore,
	scope string,
	run func() (handlerResult, error),
) {
	ctx := c.Request.Context()
	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))

	if idem == nil || idemKey == "" {
		runDirect(c, run)
		return
	}

	key := redisrepo.KeyIdem(scope, callerID(c), idemKey)

	if replay(c, idem, key, idemKey) {
		return
	}

	locked, err := idem.AcquireLock(ctx, key, idemLockTTL)
	if err != nil {
		// Store down: serve the request without replay protection.
		_ = c.Error(fmt.Errorf("idempotency store unavailable: %w", err))
		runDirect(c, run)
		return
	}

	if !locked {
		if replay(c, idem, key, idemKey) {
			return
		}
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
		return
	}

	res, err := run()
	if err != nil {
		_ = idem.Release(ctx, key)
		respondErr(c, err)
		return
	}

	if b, err := json.Marshal(res.body); err == nil {
		_ = idem.SaveResult(ctx, key, res.status, string(b))
	}

	c.Header("Idempotency-Key", idemKey)
	c.JSON(res.status, res.body)
}

func runDirect(c *gin.Context, run func() (handlerResult, error)) {
	res, err := run()
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(res.status, res.body)
}

func replay(c *gin.Context, idem *redisrepo.IdempotencyStore, key, idemKey string) bool {
	stored, ok, _ := idem.GetResult(c.Request.Context(), key)
	if !ok {
		return false
	}

	c.Header("Idempotency-Key", idemKey)
	c.Header("Idempotent-Replay", "true")
	c.Data(stored.Status, "application/json; charset=utf-8", []byte(stored.Body))
	return true
}
