// Package http exposes the finance service as a JSON API.
package http

import (
	"container/list"
	"context"
	"net/http"
	"sync"
	"time"

	"tally/internal/analytics"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/services"
)

// LRU cache with TTL and size-based eviction
type lruCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

func newLRUCache[T any](maxSize int, ttl time.Duration) *lruCache[T] {
	return &lruCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *lruCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *lruCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *lruCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

func (c *lruCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// Purge drops every entry.
func (c *lruCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.lru = list.New()
}

// CleanExpired removes all expired entries
func (c *lruCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element

	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*cacheItem[T])
		if now.After(item.expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	// Counter resets after a minute of quiet.
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= 120
}

type Server struct {
	http.Server
	finance     *services.Finance
	backup      *services.Backup
	logger      *log.Logger
	rateLimiter *rateLimiter

	// Monthly stats keyed "expense:YYYY-MM" / "income:YYYY-MM"; budget
	// progress keyed by month. Both are invalidated on mutation, the TTL
	// only bounds staleness across multiple server instances.
	statsCache    *lruCache[analytics.MonthlyStats]
	progressCache *lruCache[[]analytics.BudgetProgress]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server listening on addr.
func NewServer(addr string, finance *services.Finance, backup *services.Backup, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		finance:          finance,
		backup:           backup,
		logger:           logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      newRateLimiter(),
		statsCache:       newLRUCache[analytics.MonthlyStats](100, 5*time.Minute),
		progressCache:    newLRUCache[[]analytics.BudgetProgress](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("GET /api/expenses", s.guard(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.guard(s.handleCreateExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.guard(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.guard(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/incomes", s.guard(s.handleListIncomes))
	mux.HandleFunc("POST /api/incomes", s.guard(s.handleCreateIncome))
	mux.HandleFunc("PUT /api/incomes/{id}", s.guard(s.handleUpdateIncome))
	mux.HandleFunc("DELETE /api/incomes/{id}", s.guard(s.handleDeleteIncome))

	mux.HandleFunc("GET /api/transfers", s.guard(s.handleListTransfers))
	mux.HandleFunc("POST /api/transfers", s.guard(s.handleCreateTransfer))
	mux.HandleFunc("PUT /api/transfers/{id}", s.guard(s.handleUpdateTransfer))
	mux.HandleFunc("DELETE /api/transfers/{id}", s.guard(s.handleDeleteTransfer))

	mux.HandleFunc("GET /api/accounts", s.guard(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.guard(s.handleCreateAccount))
	mux.HandleFunc("PUT /api/accounts/{id}", s.guard(s.handleUpdateAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.guard(s.handleDeleteAccount))

	mux.HandleFunc("GET /api/categories", s.guard(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.guard(s.handleCreateCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.guard(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.guard(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/income-categories", s.guard(s.handleListIncomeCategories))
	mux.HandleFunc("POST /api/income-categories", s.guard(s.handleCreateIncomeCategory))
	mux.HandleFunc("PUT /api/income-categories/{id}", s.guard(s.handleUpdateIncomeCategory))
	mux.HandleFunc("DELETE /api/income-categories/{id}", s.guard(s.handleDeleteIncomeCategory))

	mux.HandleFunc("GET /api/budgets", s.guard(s.handleListBudgets))
	mux.HandleFunc("POST /api/budgets", s.guard(s.handleUpsertBudget))
	mux.HandleFunc("PUT /api/budgets/{id}", s.guard(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.guard(s.handleDeleteBudget))
	mux.HandleFunc("GET /api/budgets/progress", s.guard(s.handleBudgetProgress))

	mux.HandleFunc("GET /api/stats/monthly", s.guard(s.handleMonthlyStats))
	mux.HandleFunc("GET /api/stats/comparison", s.guard(s.handleComparison))

	mux.HandleFunc("GET /api/backup/export", s.guard(s.handleBackupExport))
	mux.HandleFunc("POST /api/backup/import", s.guard(s.handleBackupImport))

	return s
}

// startCacheCleanup evicts expired cache entries on a slow cadence.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := s.statsCache.CleanExpired()
			progress := s.progressCache.CleanExpired()
			if stats > 0 || progress > 0 {
				s.logger.Debug("Cache cleanup completed",
					"stats_entries_removed", stats,
					"progress_entries_removed", progress)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutines, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// guard adds security headers, rate limiting on mutations, and request
// logging with a per-request ID.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := clientIP(r)
		requestID := generateRequestID()

		logger := s.logger.With(log.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), log.LoggerContextKey, logger)
		r = r.WithContext(ctx)

		logger.InfoContext(ctx, "Request started",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, ip,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		if r.Method != http.MethodGet && !s.rateLimiter.allow(ip) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, ip, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		logger.InfoContext(ctx, "Request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, ip)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// invalidateExpenseMonth drops caches derived from a month's expenses.
func (s *Server) invalidateExpenseMonth(month string) {
	s.statsCache.Delete("expense:" + month)
	s.invalidateProgress(month)
}

func (s *Server) invalidateIncomeMonth(month string) {
	s.statsCache.Delete("income:" + month)
}

func (s *Server) invalidateBudgetMonth(month string) {
	s.invalidateProgress(month)
}

// invalidateProgress drops the month's cached progress along with the
// following month's, whose rollover carry derives from this month.
func (s *Server) invalidateProgress(month string) {
	s.progressCache.Delete(month)
	if next, err := core.NextMonthKey(month); err == nil {
		s.progressCache.Delete(next)
	}
}
