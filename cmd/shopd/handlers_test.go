package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dreamware/shopstore/internal/collection"
	"github.com/dreamware/shopstore/internal/session"
	"github.com/dreamware/shopstore/internal/shop"
	"github.com/dreamware/shopstore/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	db     *collection.Database
	srv    *Server
	router *gin.Engine
}

func newTestEnv(t *testing.T, opts ServerOptions) *testEnv {
	t.Helper()
	db := collection.NewMemoryDatabase(collection.DefaultCollections, collection.Options{})
	sessions := session.NewFileStore(storage.NewMemoryBackend(), storage.Options{}, session.Options{})
	opts.Users.BcryptCost = bcrypt.MinCost
	srv := NewServer(db, sessions, opts)
	return &testEnv{db: db, srv: srv, router: srv.Router()}
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// TestHealthEndpoints verifies the health and metrics routes
func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, ServerOptions{})

	tests := []struct {
		path       string
		wantStatus int
	}{
		{path: "/health", wantStatus: http.StatusOK},
		{path: "/live", wantStatus: http.StatusOK},
		{path: "/ready", wantStatus: http.StatusOK},
		{path: "/metrics", wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	t.Run("not ready on corrupt storage", func(t *testing.T) {
		dir := t.TempDir()
		db, err := collection.OpenDatabase(dir, collection.DefaultCollections, collection.Options{})
		require.NoError(t, err)
		srv := NewServer(db, session.NewFileStore(storage.NewMemoryBackend(), storage.Options{}, session.Options{}), ServerOptions{})
		router := srv.Router()

		require.NoError(t, os.WriteFile(filepath.Join(dir, collection.Reviews+".json"), []byte("{"), 0o644))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

// TestCollectionRoutes covers the generic document API
func TestCollectionRoutes(t *testing.T) {
	env := newTestEnv(t, ServerOptions{})

	rec := env.do(http.MethodPost, "/collections/products", `{"name":"Apple","category":"Fruits","inStock":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	apple := decode[collection.Document](t, rec)
	require.NotEmpty(t, apple.ID())

	rec = env.do(http.MethodPost, "/collections/products", `{"name":"Carrot","category":"Vegetables","inStock":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("get", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/collections/products/"+apple.ID(), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, apple, decode[collection.Document](t, rec))
	})

	t.Run("list", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/collections/products", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]collection.Document](t, rec), 2)
	})

	t.Run("find", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/collections/products/find", `{"category":"Fruits","inStock":true}`)
		require.Equal(t, http.StatusOK, rec.Code)
		docs := decode[[]collection.Document](t, rec)
		require.Len(t, docs, 1)
		assert.Equal(t, "Apple", docs[0]["name"])
	})

	t.Run("find rejects invalid json", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/collections/products/find", `{"category":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("count", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/collections/products/count", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]int{"count": 2}, decode[map[string]int](t, rec))
	})

	t.Run("update merges", func(t *testing.T) {
		rec := env.do(http.MethodPatch, "/collections/products/"+apple.ID(), `{"price":3}`)
		require.Equal(t, http.StatusOK, rec.Code)
		doc := decode[collection.Document](t, rec)
		assert.Equal(t, float64(3), doc["price"])
		assert.Equal(t, "Apple", doc["name"])
	})

	t.Run("missing document", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/collections/products/ghost", "").Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodPatch, "/collections/products/ghost", `{"a":1}`).Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/collections/products/ghost", "").Code)
	})

	t.Run("unknown collection", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/collections/carts", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(http.MethodDelete, "/collections/products/"+apple.ID(), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/collections/products/"+apple.ID(), "").Code)
	})

	t.Run("collections summary", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/collections", "")
		require.Equal(t, http.StatusOK, rec.Code)
		info := decode[[]collection.Info](t, rec)
		assert.Len(t, info, len(collection.DefaultCollections))
	})
}

// TestCorruptCollectionReturns500 verifies corrupt storage is not hidden
func TestCorruptCollectionReturns500(t *testing.T) {
	db := collection.NewMemoryDatabase([]string{collection.Users, collection.Orders, collection.Products}, collection.Options{})
	srv := NewServer(db, session.NewFileStore(storage.NewMemoryBackendWith([]byte("[")), storage.Options{}, session.Options{}), ServerOptions{})
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

// TestOrderRoutes covers checkout and order history
func TestOrderRoutes(t *testing.T) {
	env := newTestEnv(t, ServerOptions{})
	products := env.db.MustCollection(collection.Products)
	apple, err := products.Create(map[string]any{"name": "Apple", shop.StockField: 5})
	require.NoError(t, err)

	body := `{"userId":"u1","cartItems":[{"id":"` + apple.ID() + `","quantity":1}],"total":3}`

	t.Run("concurrent orders keep stock consistent", func(t *testing.T) {
		var wg sync.WaitGroup
		codes := make([]int, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				codes[i] = env.do(http.MethodPost, "/orders", body).Code
			}(i)
		}
		wg.Wait()
		assert.Equal(t, []int{http.StatusCreated, http.StatusCreated}, codes)

		p, err := products.FindByID(apple.ID())
		require.NoError(t, err)
		assert.Equal(t, float64(3), p[shop.StockField])
	})

	t.Run("history newest first", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/users/u1/orders", "")
		require.Equal(t, http.StatusOK, rec.Code)
		orders := decode[[]collection.Document](t, rec)
		require.Len(t, orders, 2)
		for _, o := range orders {
			assert.Equal(t, "u1", o[shop.OrderUserField])
			assert.Equal(t, shop.StatusProcessing, o[shop.OrderStatusField])
		}
	})

	t.Run("status update", func(t *testing.T) {
		orders := decode[[]collection.Document](t, env.do(http.MethodGet, "/orders", ""))
		require.NotEmpty(t, orders)
		id := orders[0].ID()

		rec := env.do(http.MethodPatch, "/orders/"+id+"/status", `{"status":"Shipped"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Shipped", decode[collection.Document](t, rec)["status"])

		assert.Equal(t, http.StatusNotFound, env.do(http.MethodPatch, "/orders/ghost/status", `{"status":"Shipped"}`).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPatch, "/orders/"+id+"/status", `{}`).Code)
	})

	t.Run("oversell rejected when configured", func(t *testing.T) {
		strict := newTestEnv(t, ServerOptions{Orders: shop.OrdersOptions{RejectOversell: true}})
		p, _ := strict.db.MustCollection(collection.Products).Create(map[string]any{shop.StockField: 1})

		rec := strict.do(http.MethodPost, "/orders", `{"userId":"u1","cartItems":[{"id":"`+p.ID()+`","quantity":2}]}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing user", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/orders", `{"cartItems":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestAuthRoutes covers register, login and logout
func TestAuthRoutes(t *testing.T) {
	env := newTestEnv(t, ServerOptions{})

	rec := env.do(http.MethodPost, "/auth/register", `{"name":"Ada","email":"ada@example.com","password":"secret"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = env.do(http.MethodPost, "/auth/register", `{"name":"Ada","email":"ADA@example.com","password":"x"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[struct {
		SessionID string         `json:"sessionId"`
		User      map[string]any `json:"user"`
	}](t, rec)
	require.NotEmpty(t, login.SessionID)

	rec = env.do(http.MethodGet, "/sessions/"+login.SessionID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decode[map[string]any](t, rec)
	assert.Equal(t, login.User["_id"], entry["userId"])
	assert.Contains(t, entry, "expiresAt")

	rec = env.do(http.MethodPost, "/auth/logout", "", sessionHeader, login.SessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":true}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/sessions/"+login.SessionID, "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/auth/logout", "").Code)
}

// TestLoginThrottle verifies the 429 after repeated failures
func TestLoginThrottle(t *testing.T) {
	env := newTestEnv(t, ServerOptions{Users: shop.UsersOptions{MaxLoginFailures: 2}})
	env.do(http.MethodPost, "/auth/register", `{"email":"ada@example.com","password":"secret"}`)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"x"}`).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, env.do(http.MethodPost, "/auth/login", `{"email":"ada@example.com","password":"secret"}`).Code)
}

// TestSessionRoutes covers the session store API
func TestSessionRoutes(t *testing.T) {
	env := newTestEnv(t, ServerOptions{})

	rec := env.do(http.MethodPut, "/sessions/s1", `{"data":{"cart":["p1"]},"ttlMs":60000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	set := decode[map[string]any](t, rec)
	assert.Equal(t, float64(60000), set["expiresAt"].(float64)-set["createdAt"].(float64))

	rec = env.do(http.MethodPatch, "/sessions/s1", `{"theme":"dark"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[map[string]any](t, rec)
	assert.Equal(t, "dark", updated["theme"])
	assert.Equal(t, []any{"p1"}, updated["cart"])
	assert.Equal(t, set["expiresAt"], updated["expiresAt"])
	assert.Contains(t, updated, "updatedAt")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPatch, "/sessions/ghost", `{"a":1}`).Code)

	rec = env.do(http.MethodPut, "/sessions/short", `{"data":{},"ttlMs":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string]any](t, rec), 2)

	// "short" expires after 1ms
	waitForExpiry := func() bool {
		rec := env.do(http.MethodPost, "/sessions/sweep", "")
		return rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), `"active":1`)
	}
	assert.Eventually(t, waitForExpiry, time.Second, 10*time.Millisecond)

	rec = env.do(http.MethodDelete, "/sessions/s1", "")
	assert.JSONEq(t, `{"removed":true}`, rec.Body.String())
	rec = env.do(http.MethodDelete, "/sessions/s1", "")
	assert.JSONEq(t, `{"removed":false}`, rec.Body.String())
}

// login returns a session id for the credentials
func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(http.MethodPost, "/auth/login", `{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[struct {
		SessionID string `json:"sessionId"`
	}](t, rec)
	return out.SessionID
}

// TestUsersCollectionHidesHashes verifies the generic routes cannot read
// password hashes or write users around /auth
func TestUsersCollectionHidesHashes(t *testing.T) {
	env := newTestEnv(t, ServerOptions{})
	rec := env.do(http.MethodPost, "/auth/register", `{"name":"A","email":"a@x.io","password":"secret"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode[collection.Document](t, rec)

	t.Run("reads strip the password", func(t *testing.T) {
		for _, path := range []string{"/collections/users", "/collections/users/" + user.ID()} {
			rec := env.do(http.MethodGet, path, "")
			require.Equal(t, http.StatusOK, rec.Code, path)
			assert.NotContains(t, rec.Body.String(), "password", path)
			assert.Contains(t, rec.Body.String(), "a@x.io", path)
		}

		rec := env.do(http.MethodPost, "/collections/users/find", `{"email":"a@x.io"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")
		assert.Len(t, decode[[]collection.Document](t, rec), 1)
	})

	t.Run("password is not a filter", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/collections/users/find", `{"password":"x"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("writes are refused", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/collections/users", `{"email":"A@X.IO","password":"plain"}`).Code)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodPatch, "/collections/users/"+user.ID(), `{"role":"Admin"}`).Code)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, "/collections/users/"+user.ID(), "").Code)

		n, err := env.db.MustCollection(collection.Users).CountDocuments()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

// TestProductRoutes covers catalog browsing and admin product edits
func TestProductRoutes(t *testing.T) {
	env := newTestEnv(t, ServerOptions{})
	_, err := env.srv.users.Register("Root", "root@example.com", "secret", shop.RoleAdmin)
	require.NoError(t, err)
	_, err = env.srv.users.Register("Ada", "ada@example.com", "secret", "")
	require.NoError(t, err)
	adminSID := env.login(t, "root@example.com", "secret")
	userSID := env.login(t, "ada@example.com", "secret")

	t.Run("admin routes need an admin", func(t *testing.T) {
		body := `{"name":"Apple","category":"Fruits"}`
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/admin/products", body).Code)
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/admin/products", body, sessionHeader, "ghost").Code)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/admin/products", body, sessionHeader, userSID).Code)
	})

	t.Run("session payload cannot grant a role", func(t *testing.T) {
		rec := env.do(http.MethodPatch, "/sessions/"+userSID, `{"role":"Admin"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/admin/users", "", sessionHeader, userSID).Code)
	})

	rec := env.do(http.MethodPost, "/admin/products", `{"name":"Apple","category":"Fruits"}`, sessionHeader, adminSID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	apple := decode[collection.Document](t, rec)
	assert.Equal(t, float64(0), apple[shop.StockField])

	rec = env.do(http.MethodPost, "/admin/products", `{"name":"Carrot","category":"Vegetables","stocks":4}`, sessionHeader, adminSID)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("list and filter", func(t *testing.T) {
		assert.Len(t, decode[[]collection.Document](t, env.do(http.MethodGet, "/products", "")), 2)
		fruits := decode[[]collection.Document](t, env.do(http.MethodGet, "/products?category=Fruits", ""))
		require.Len(t, fruits, 1)
		assert.Equal(t, "Apple", fruits[0]["name"])
		assert.Empty(t, decode[[]collection.Document](t, env.do(http.MethodGet, "/products?category=Toys", "")))
	})

	t.Run("get", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/products/"+apple.ID(), "").Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/products/ghost", "").Code)
	})

	t.Run("update", func(t *testing.T) {
		rec := env.do(http.MethodPut, "/admin/products/"+apple.ID(), `{"stocks":7}`, sessionHeader, adminSID)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(7), decode[collection.Document](t, rec)[shop.StockField])
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodPut, "/admin/products/ghost", `{"stocks":1}`, sessionHeader, adminSID).Code)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, env.do(http.MethodDelete, "/admin/products/"+apple.ID(), "", sessionHeader, adminSID).Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/admin/products/"+apple.ID(), "", sessionHeader, adminSID).Code)
	})

	t.Run("admin user listing", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/admin/users", "", sessionHeader, adminSID)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]collection.Document](t, rec), 2)
		assert.NotContains(t, rec.Body.String(), "password")

		rec = env.do(http.MethodGet, "/admin/users?email=ADA@example.com", "", sessionHeader, adminSID)
		require.Equal(t, http.StatusOK, rec.Code)
		found := decode[[]collection.Document](t, rec)
		require.Len(t, found, 1)
		assert.Equal(t, "Ada", found[0]["name"])

		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/admin/users?email=ghost@example.com", "", sessionHeader, adminSID).Code)
	})
}

// TestAccountRoutes covers the session lookup, profile and password changes
func TestAccountRoutes(t *testing.T) {
	env := newTestEnv(t, ServerOptions{})
	env.do(http.MethodPost, "/auth/register", `{"name":"Ada","email":"ada@example.com","password":"secret"}`)
	env.do(http.MethodPost, "/auth/register", `{"name":"Bob","email":"bob@example.com","password":"secret"}`)
	sid := env.login(t, "ada@example.com", "secret")

	t.Run("session", func(t *testing.T) {
		assert.JSONEq(t, `{"authenticated":false}`, env.do(http.MethodGet, "/auth/session", "").Body.String())
		assert.JSONEq(t, `{"authenticated":false}`, env.do(http.MethodGet, "/auth/session", "", sessionHeader, "ghost").Body.String())

		rec := env.do(http.MethodGet, "/auth/session", "", sessionHeader, sid)
		require.Equal(t, http.StatusOK, rec.Code)
		out := decode[struct {
			Authenticated bool           `json:"authenticated"`
			User          map[string]any `json:"user"`
		}](t, rec)
		assert.True(t, out.Authenticated)
		assert.Equal(t, "ada@example.com", out.User["email"])
		assert.NotContains(t, out.User, "password")
	})

	t.Run("profile", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPut, "/auth/profile", `{"name":"X"}`).Code)

		rec := env.do(http.MethodPut, "/auth/profile", `{"name":"Ada L."}`, sessionHeader, sid)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Ada L.", decode[collection.Document](t, rec)["name"])

		rec = env.do(http.MethodPut, "/auth/profile", `{"email":"BOB@example.com"}`, sessionHeader, sid)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("change password", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/auth/change-password", `{"oldPassword":"secret","newPassword":"n"}`).Code)

		rec := env.do(http.MethodPost, "/auth/change-password", `{"oldPassword":"wrong","newPassword":"n"}`, sessionHeader, sid)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = env.do(http.MethodPost, "/auth/change-password", `{"oldPassword":"secret","newPassword":""}`, sessionHeader, sid)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(http.MethodPost, "/auth/change-password", `{"oldPassword":"secret","newPassword":"n3w"}`, sessionHeader, sid)
		require.Equal(t, http.StatusOK, rec.Code)
		env.login(t, "ada@example.com", "n3w")
	})
}

// TestWriteErrorConflict verifies lock conflicts ask the caller to retry
func TestWriteErrorConflict(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/orders", nil)

	writeError(c, fmt.Errorf("create order: %w", storage.ErrConflict))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
