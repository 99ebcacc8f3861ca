package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/dreamware/shopstore/internal/collection"
	"github.com/dreamware/shopstore/internal/session"
	"github.com/dreamware/shopstore/internal/shop"
	"github.com/dreamware/shopstore/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// sessionHeader carries the session id on logout when the body has none
const sessionHeader = "X-Session-ID"

// writeError maps store and shop errors to a status code and an
// {"error": "..."} body
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var insufficient *shop.InsufficientStockError
	switch {
	case errors.Is(err, collection.ErrUnknownCollection):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		// the operation had no effect and may be retried
		c.Header("Retry-After", "1")
		status = http.StatusConflict
	case errors.Is(err, shop.ErrEmailTaken),
		errors.As(err, &insufficient):
		status = http.StatusConflict
	case errors.Is(err, shop.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, shop.ErrTooManyAttempts):
		status = http.StatusTooManyRequests
	case errors.Is(err, shop.ErrMissingField),
		errors.Is(err, shop.ErrInvalidQuantity):
		status = http.StatusBadRequest
	case errors.Is(err, collection.ErrCollectionFull),
		errors.Is(err, storage.ErrTooLarge):
		status = http.StatusInsufficientStorage
	case errors.Is(err, storage.ErrCorrupt):
		zap.S().Errorw("Request failed on corrupt storage", "path", c.Request.URL.Path, "error", err)
	default:
		zap.S().Errorw("Request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func writeNotFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (s *Server) collection(c *gin.Context) (*collection.Collection, bool) {
	coll, err := s.db.Collection(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return coll, true
}

// writableCollection is collection for the generic write routes. Users are
// only written through /auth, which hashes passwords and keeps emails unique.
func (s *Server) writableCollection(c *gin.Context) (*collection.Collection, bool) {
	if c.Param("name") == collection.Users {
		c.JSON(http.StatusForbidden, gin.H{"error": "users are managed through /auth"})
		return nil, false
	}
	return s.collection(c)
}

// publicDocs strips password hashes from users documents
func publicDocs(name string, docs []collection.Document) []collection.Document {
	if name != collection.Users {
		return docs
	}
	for i, d := range docs {
		docs[i] = shop.Public(d)
	}
	return docs
}

func publicDoc(name string, doc collection.Document) collection.Document {
	if name != collection.Users {
		return doc
	}
	return shop.Public(doc)
}

// Collections

func (s *Server) handleListCollections(c *gin.Context) {
	info, err := s.db.Info()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleFindAll(c *gin.Context) {
	coll, ok := s.collection(c)
	if !ok {
		return
	}
	docs, err := coll.Find(nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, publicDocs(coll.Name(), docs))
}

func (s *Server) handleFind(c *gin.Context) {
	coll, ok := s.collection(c)
	if !ok {
		return
	}
	var pred collection.Predicate
	if err := c.ShouldBindJSON(&pred); err != nil {
		badRequest(c, err)
		return
	}
	if _, ok := pred[shop.PasswordField]; ok && coll.Name() == collection.Users {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot filter users by password"})
		return
	}
	docs, err := coll.Find(pred)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, publicDocs(coll.Name(), docs))
}

func (s *Server) handleCount(c *gin.Context) {
	coll, ok := s.collection(c)
	if !ok {
		return
	}
	n, err := coll.CountDocuments()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (s *Server) handleCreate(c *gin.Context) {
	coll, ok := s.writableCollection(c)
	if !ok {
		return
	}
	var doc map[string]any
	if err := c.ShouldBindJSON(&doc); err != nil {
		badRequest(c, err)
		return
	}
	created, err := coll.Create(doc)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGet(c *gin.Context) {
	coll, ok := s.collection(c)
	if !ok {
		return
	}
	doc, err := coll.FindByID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if doc == nil {
		writeNotFound(c, "document")
		return
	}
	c.JSON(http.StatusOK, publicDoc(coll.Name(), doc))
}

func (s *Server) handleUpdate(c *gin.Context) {
	coll, ok := s.writableCollection(c)
	if !ok {
		return
	}
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	doc, err := coll.FindByIDAndUpdate(c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	if doc == nil {
		writeNotFound(c, "document")
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleDelete(c *gin.Context) {
	coll, ok := s.writableCollection(c)
	if !ok {
		return
	}
	doc, err := coll.FindByIDAndDelete(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if doc == nil {
		writeNotFound(c, "document")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Products

func (s *Server) handleListProducts(c *gin.Context) {
	products, err := s.products.List(c.Query("category"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (s *Server) handleGetProduct(c *gin.Context) {
	product, err := s.products.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if product == nil {
		writeNotFound(c, "product")
		return
	}
	c.JSON(http.StatusOK, product)
}

func (s *Server) handleCreateProduct(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err)
		return
	}
	product, err := s.products.Create(fields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (s *Server) handleUpdateProduct(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err)
		return
	}
	product, err := s.products.Update(c.Param("id"), fields)
	if err != nil {
		writeError(c, err)
		return
	}
	if product == nil {
		writeNotFound(c, "product")
		return
	}
	c.JSON(http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(c *gin.Context) {
	removed, err := s.products.Delete(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !removed {
		writeNotFound(c, "product")
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// Orders

func (s *Server) handlePlaceOrder(c *gin.Context) {
	var req shop.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order, changes, err := s.orders.PlaceOrder(req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order, "stockChanges": changes})
}

func (s *Server) handleAllOrders(c *gin.Context) {
	orders, err := s.orders.AllOrders()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) handleGetOrder(c *gin.Context) {
	order, err := s.orders.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if order == nil {
		writeNotFound(c, "order")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleUpdateOrderStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	order, err := s.orders.UpdateStatus(c.Param("id"), body.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	if order == nil {
		writeNotFound(c, "order")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleUserOrders(c *gin.Context) {
	orders, err := s.orders.OrdersForUser(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// Auth

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	user, err := s.users.Register(body.Name, body.Email, body.Password, shop.RoleUser)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleLogin(c *gin.Context) {
	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	user, err := s.users.Authenticate(body.Email, body.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	id := session.NewID()
	entry, err := s.sessions.Set(c.Request.Context(), id, map[string]any{
		"userId": user.ID(),
		"role":   user[shop.RoleField],
	}, s.sessionTTL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":      user,
		"sessionId": id,
		"expiresAt": entry.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	var body struct {
		SessionID string `json:"sessionId"`
	}
	// an empty body is allowed when the header is set
	_ = c.ShouldBindJSON(&body)
	id := body.SessionID
	if id == "" {
		id = c.GetHeader(sessionHeader)
	}
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id required"})
		return
	}
	removed, err := s.sessions.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// sessionKey holds the caller's *session.Entry in the gin context
const sessionKey = "session"

// requireSession aborts with 401 unless X-Session-ID names a live login session
func (s *Server) requireSession(c *gin.Context) {
	entry, err := s.sessions.Get(c.Request.Context(), c.GetHeader(sessionHeader))
	if err != nil {
		writeError(c, err)
		c.Abort()
		return
	}
	if entry == nil || sessionUserID(entry) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	c.Set(sessionKey, entry)
	c.Next()
}

// requireRole aborts with 403 unless the logged-in user currently has role.
// The role is read from the user document, not from the session payload.
func (s *Server) requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.users.Get(callerID(c))
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		if user == nil || user[shop.RoleField] != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": role + " role required"})
			return
		}
		c.Next()
	}
}

func sessionUserID(entry *session.Entry) string {
	id, _ := entry.Data["userId"].(string)
	return id
}

// callerID returns the user id stored by requireSession
func callerID(c *gin.Context) string {
	v, ok := c.Get(sessionKey)
	if !ok {
		return ""
	}
	return sessionUserID(v.(*session.Entry))
}

func (s *Server) handleSession(c *gin.Context) {
	id := c.GetHeader(sessionHeader)
	if id == "" {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	entry, err := s.sessions.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	user, err := s.users.Get(sessionUserID(entry))
	if err != nil {
		writeError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": user})
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	user, err := s.users.UpdateProfile(callerID(c), body.Name, body.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	if user == nil {
		writeNotFound(c, "user")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var body struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	found, err := s.users.ChangePassword(callerID(c), body.OldPassword, body.NewPassword)
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		writeNotFound(c, "user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": true})
}

// Admin

func (s *Server) handleListUsers(c *gin.Context) {
	if email := c.Query("email"); email != "" {
		user, err := s.users.FindByEmail(email)
		if err != nil {
			writeError(c, err)
			return
		}
		if user == nil {
			writeNotFound(c, "user")
			return
		}
		c.JSON(http.StatusOK, []collection.Document{user})
		return
	}
	users, err := s.users.List()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Sessions

func (s *Server) handleAllSessions(c *gin.Context) {
	all, err := s.sessions.All(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

func (s *Server) handleSweepSessions(c *gin.Context) {
	active, err := s.sessions.ClearExpired(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": len(active)})
}

func (s *Server) handleSetSession(c *gin.Context) {
	var body struct {
		Data  map[string]any `json:"data"`
		TTLMs int64          `json:"ttlMs"` // 0 selects the store default
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := s.sessions.Set(c.Request.Context(), c.Param("id"), body.Data, time.Duration(body.TTLMs)*time.Millisecond)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleGetSession(c *gin.Context) {
	entry, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if entry == nil {
		writeNotFound(c, "session")
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleUpdateSession(c *gin.Context) {
	var data map[string]any
	if err := c.ShouldBindJSON(&data); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := s.sessions.Update(c.Request.Context(), c.Param("id"), data)
	if err != nil {
		writeError(c, err)
		return
	}
	if entry == nil {
		writeNotFound(c, "session")
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	removed, err := s.sessions.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
