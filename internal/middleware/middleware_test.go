package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	rediskey "order_payment/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func do(r http.Handler, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAccount(t *testing.T) {
	r := gin.New()
	r.POST("/x", RequireAccount(), func(c *gin.Context) {
		c.String(http.StatusOK, AccountID(c)+"|"+SignerID(c))
	})

	w := do(r, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, map[string]string{HeaderAccountID: "alice.test"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice.test|alice.test", w.Body.String(), "signer defaults to the caller")

	w = do(r, map[string]string{HeaderAccountID: "relay.test", HeaderSignerID: "alice.test"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "relay.test|alice.test", w.Body.String())
}

func TestRequireAdminToken(t *testing.T) {
	r := gin.New()
	r.POST("/x", RequireAdminToken("secret"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusUnauthorized, do(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, map[string]string{HeaderAdminToken: "guess"}).Code)
	assert.Equal(t, http.StatusNoContent, do(r, map[string]string{HeaderAdminToken: "secret"}).Code)
}

func TestRedisRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.POST("/x", RedisRateLimit(rdb, "pay", 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	alice := map[string]string{HeaderAccountID: "alice.test"}
	assert.Equal(t, http.StatusOK, do(r, alice).Code)
	assert.Equal(t, http.StatusOK, do(r, alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, alice).Code)

	// windows are per caller
	assert.Equal(t, http.StatusOK, do(r, map[string]string{HeaderAccountID: "bob.test"}).Code)
}

func TestRedisRateLimit_CountsConcurrentRequests(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.POST("/x", RedisRateLimit(rdb, "pay", 100, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			do(r, map[string]string{HeaderAccountID: "alice.test"})
		}()
	}
	wg.Wait()

	members, err := mr.ZMembers(rediskey.RateLimitKey("pay", "alice.test"))
	require.NoError(t, err)
	assert.Len(t, members, n, "every request holds its own slot")
	for _, m := range members {
		assert.True(t, strings.HasPrefix(m, "alice.test:"), m)
	}
}

func TestAttachedDeposit(t *testing.T) {
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		a, err := AttachedDeposit(c)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		c.String(http.StatusOK, a.String())
	})

	w := do(r, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Body.String(), "no header, nothing attached")

	w = do(r, map[string]string{HeaderAttachedDeposit: "340282366920938463463374607431768211455"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "340282366920938463463374607431768211455", w.Body.String())

	for _, bad := range []string{"-1", "1.5", "lots", "340282366920938463463374607431768211456"} {
		assert.Equal(t, http.StatusBadRequest, do(r, map[string]string{HeaderAttachedDeposit: bad}).Code, bad)
	}
}

func TestRedisRateLimit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	r := gin.New()
	r.POST("/x", RedisRateLimit(rdb, "pay", 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, do(r, nil).Code)
	assert.Equal(t, http.StatusOK, do(r, nil).Code)
}
