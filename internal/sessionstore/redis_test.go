package sessionstore

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, []byte("0123456789abcdef0123456789abcdef"))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600, HttpOnly: true})

	r := gin.New()
	r.Use(sessions.Sessions("sid", store))
	r.GET("/set", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set("user_id", c.Query("v"))
		require.NoError(t, s.Save())
		c.Status(http.StatusNoContent)
	})
	r.GET("/get", func(c *gin.Context) {
		v, _ := sessions.Default(c).Get("user_id").(string)
		c.String(http.StatusOK, v)
	})
	r.GET("/clear", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Clear()
		s.Options(sessions.Options{Path: "/", MaxAge: -1})
		require.NoError(t, s.Save())
		c.Status(http.StatusNoContent)
	})
	return r, mr
}

func do(r http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestRedisStore_RoundTrip(t *testing.T) {
	r, mr := newRouter(t)

	w := do(r, "/set?v=u-1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	cookie := sessionCookie(t, w)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], DefaultPrefix))
	assert.NotContains(t, cookie.Value, "u-1", "values stay server side")
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))

	assert.Equal(t, "u-1", do(r, "/get", cookie).Body.String())
	assert.Empty(t, do(r, "/get", nil).Body.String())
}

func TestRedisStore_Clear(t *testing.T) {
	r, mr := newRouter(t)
	cookie := sessionCookie(t, do(r, "/set?v=u-2", nil))

	w := do(r, "/clear", cookie)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, mr.Keys())
	assert.Empty(t, do(r, "/get", cookie).Body.String())
}

func TestRedisStore_TamperedCookie(t *testing.T) {
	r, _ := newRouter(t)
	cookie := sessionCookie(t, do(r, "/set?v=u-3", nil))

	forged := &http.Cookie{Name: "sid", Value: cookie.Value[:len(cookie.Value)-2] + "xx"}
	w := do(r, "/get", forged)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRedisStore_Expired(t *testing.T) {
	r, mr := newRouter(t)
	cookie := sessionCookie(t, do(r, "/set?v=u-4", nil))

	mr.FastForward(2 * time.Hour)
	assert.Empty(t, do(r, "/get", cookie).Body.String())
}

func TestDial(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Dial(t.Context(), "redis://"+mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = Dial(t.Context(), "not a url")
	assert.Error(t, err)
}
