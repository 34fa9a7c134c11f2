package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Saksham338101/menu-scanner1/internal/extract"
	"github.com/Saksham338101/menu-scanner1/internal/graph"
	"github.com/Saksham338101/menu-scanner1/internal/llm"
	"github.com/Saksham338101/menu-scanner1/internal/menu"
	"github.com/Saksham338101/menu-scanner1/internal/share"
	"github.com/Saksham338101/menu-scanner1/internal/vector"
)

// Extractor turns a menu photo into items.
type Extractor interface {
	Extract(ctx context.Context, img extract.Image) (*extract.Result, error)
}

// GraphSearcher is the keyword side of menu search.
type GraphSearcher interface {
	Search(ctx context.Context, restaurantID, query string, topK int) ([]graph.SearchResult, error)
	Count() int64
}

// VectorSearcher is the semantic side of menu search.
type VectorSearcher interface {
	Query(ctx context.Context, restaurantID, query string, topK int) ([]vector.SearchResult, error)
	Count() int
}

// Config wires the server's collaborators. Sink, Graph and Vectors are
// optional.
type Config struct {
	Extractor    Extractor
	Sink         menu.Sink
	Graph        GraphSearcher
	Vectors      VectorSearcher
	Signer       *share.Signer
	Origin       string
	RatePerMin   int
	Burst        int
	MaxBodyBytes int64
	Logger       *zap.Logger
	Version      string
	// OnRequest, when set, is called after every request.
	OnRequest func(method, path string, status int, d time.Duration, remote string)
}

// Server is the menu extraction HTTP runtime.
type Server struct {
	extractor Extractor
	sink      menu.Sink
	graph     GraphSearcher
	vectors   VectorSearcher
	signer    *share.Signer
	origin    string
	maxBody   int64
	limiters  *limiterSet
	log       *zap.Logger
	onRequest func(method, path string, status int, d time.Duration, remote string)
	version   string
	started   time.Time
	mux       *http.ServeMux
}

// New creates and initializes a new Server.
func New(cfg Config) (*Server, error) {
	if cfg.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if cfg.RatePerMin <= 0 {
		return nil, fmt.Errorf("rate per minute must be positive, got %d", cfg.RatePerMin)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 12 << 20
	}
	if cfg.Signer == nil {
		cfg.Signer = share.NewSigner("", 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		extractor: cfg.Extractor,
		sink:      cfg.Sink,
		graph:     cfg.Graph,
		vectors:   cfg.Vectors,
		signer:    cfg.Signer,
		origin:    cfg.Origin,
		maxBody:   cfg.MaxBodyBytes,
		limiters:  newLimiterSet(rate.Every(time.Minute/time.Duration(cfg.RatePerMin)), cfg.Burst),
		log:       cfg.Logger,
		onRequest: cfg.OnRequest,
		version:   cfg.Version,
		started:   time.Now(),
		mux:       http.NewServeMux(),
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.logRequests(s.mux))
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /v1/menus/{restaurant}/extract", s.handleExtract)
	s.mux.HandleFunc("GET /v1/menus/{restaurant}/search", s.handleSearch)
	s.mux.HandleFunc("GET /v1/share/verify", s.handleVerify)

	// Model Context Protocol tool endpoint for agents.
	s.mux.HandleFunc("POST /mcp", s.handleMCP)
}

// Routes lists the registered endpoints for the startup banner.
func Routes() [][2]string {
	return [][2]string{
		{"POST", "/v1/menus/{restaurant}/extract"},
		{"GET ", "/v1/menus/{restaurant}/search?q="},
		{"GET ", "/v1/share/verify?restaurant=&token="},
		{"POST", "/mcp"},
		{"GET ", "/health"},
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if s.vectors != nil {
		body["dishes"] = s.vectors.Count()
	}
	if s.graph != nil {
		body["triples"] = s.graph.Count()
	}
	writeJSON(w, http.StatusOK, body)
}

type extractRequest struct {
	MenuImage string `json:"menuImage"`
}

type extractResponse struct {
	Restaurant  string        `json:"restaurant"`
	MenuItems   []menu.Item   `json:"menuItems"`
	GeneratedAt string        `json:"generatedAt"`
	Rounds      int           `json:"rounds"`
	Partial     bool          `json:"partial"`
	Usage       extract.Usage `json:"usage"`
	ShareToken  string        `json:"shareToken"`
	ShareURL    string        `json:"menuShareUrl"`
}

// handleExtract handles POST /v1/menus/{restaurant}/extract.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	restaurant := strings.TrimSpace(r.PathValue("restaurant"))
	if restaurant == "" {
		writeError(w, http.StatusBadRequest, "restaurant is required")
		return
	}

	if ok, wait := s.limiters.allow(restaurant); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Round(time.Second).Seconds())+1))
		writeError(w, http.StatusTooManyRequests, "too many extraction requests, try again shortly")
		return
	}

	var req extractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "menu image is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.MenuImage) == "" {
		writeError(w, http.StatusBadRequest, "menuImage is required")
		return
	}

	img, err := llm.DecodeImage(req.MenuImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	res, err := s.extractor.Extract(ctx, img)
	switch {
	case errors.Is(err, extract.ErrNoDishes):
		writeError(w, http.StatusUnprocessableEntity, "Unable to detect dishes in the uploaded image. Try a clearer photo.")
		return
	case errors.Is(err, extract.ErrModelCall):
		s.log.Error("menu extraction failed", zap.String("restaurant", restaurant), zap.Error(err))
		writeError(w, http.StatusBadGateway, "menu extraction failed")
		return
	case err != nil:
		s.log.Error("menu extraction failed", zap.String("restaurant", restaurant), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "menu generation failed")
		return
	}

	if s.sink != nil {
		if err := s.sink.SaveMenu(ctx, restaurant, res.Items); err != nil {
			s.log.Error("save menu", zap.String("restaurant", restaurant), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to save menu")
			return
		}
	}

	token, err := s.signer.Issue(restaurant, res.GeneratedAt)
	if err != nil {
		s.log.Error("issue share token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue share token")
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = s.origin
	}

	s.log.Info("menu extracted",
		zap.String("restaurant", restaurant),
		zap.Int("items", len(res.Items)),
		zap.Int("rounds", res.Rounds),
		zap.Bool("partial", res.Partial),
		zap.Int("tokens", res.Usage.TotalTokens))

	writeJSON(w, http.StatusOK, extractResponse{
		Restaurant:  restaurant,
		MenuItems:   res.Items,
		GeneratedAt: res.GeneratedAt.UTC().Format(time.RFC3339),
		Rounds:      res.Rounds,
		Partial:     res.Partial,
		Usage:       res.Usage,
		ShareToken:  token,
		ShareURL:    share.BuildURL(origin, restaurant, token),
	})
}

type searchResponse struct {
	Query  string                `json:"query"`
	Dishes []vector.SearchResult `json:"dishes"`
	Facts  []graph.SearchResult  `json:"facts"`
}

// handleSearch handles GET /v1/menus/{restaurant}/search?q=.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	topK := 5
	if k, err := strconv.Atoi(r.URL.Query().Get("k")); err == nil && k > 0 {
		topK = k
	}

	res, err := s.search(r.Context(), r.PathValue("restaurant"), q, topK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// search runs vector and graph search. Graph failures are non-fatal.
func (s *Server) search(ctx context.Context, restaurant, query string, topK int) (*searchResponse, error) {
	res := &searchResponse{Query: query, Dishes: []vector.SearchResult{}, Facts: []graph.SearchResult{}}

	if s.vectors != nil {
		dishes, err := s.vectors.Query(ctx, restaurant, query, topK)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		res.Dishes = dishes
	}

	if s.graph != nil {
		facts, err := s.graph.Search(ctx, restaurant, query, topK*2)
		if err != nil {
			s.log.Warn("graph search failed", zap.Error(err))
		} else {
			res.Facts = facts
		}
	}
	return res, nil
}

// handleVerify handles GET /v1/share/verify?restaurant=&token=.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	restaurant := r.URL.Query().Get("restaurant")
	token := r.URL.Query().Get("token")

	gen, err := s.signer.Verify(token, restaurant)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":       true,
		"generatedAt": gen.UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// maxLimiters bounds how many restaurants are tracked at once.
const maxLimiters = 10000

// limiterSet holds one token bucket per restaurant. A bucket left alone long
// enough to refill completely is indistinguishable from a new one, so idle
// entries are dropped on the next sweep.
type limiterSet struct {
	mu    sync.Mutex
	every rate.Limit
	burst int
	idle  time.Duration
	max   int
	now   func() time.Time

	m         map[string]*limiterEntry
	lastSweep time.Time
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

func newLimiterSet(every rate.Limit, burst int) *limiterSet {
	idle := time.Minute
	if every > 0 {
		if refill := time.Duration(float64(burst) / float64(every) * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &limiterSet{
		every: every,
		burst: burst,
		idle:  idle,
		max:   maxLimiters,
		now:   time.Now,
		m:     make(map[string]*limiterEntry),
	}
}

// allow reports whether key may proceed and, if not, how long until it may.
func (l *limiterSet) allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	l.sweep(now)
	e, ok := l.m[key]
	if !ok {
		if len(l.m) >= l.max {
			l.evictOldest()
		}
		e = &limiterEntry{lim: rate.NewLimiter(l.every, l.burst)}
		l.m[key] = e
	}
	e.seen = now
	l.mu.Unlock()

	res := e.lim.ReserveN(now, 1)
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

// sweep drops idle entries at most once per idle period. Callers hold mu.
func (l *limiterSet) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for k, e := range l.m {
		if now.Sub(e.seen) >= l.idle {
			delete(l.m, k)
		}
	}
}

func (l *limiterSet) evictOldest() {
	var (
		oldest string
		at     time.Time
		found  bool
	)
	for k, e := range l.m {
		if !found || e.seen.Before(at) {
			oldest, at, found = k, e.seen, true
		}
	}
	if found {
		delete(l.m, oldest)
	}
}

func (l *limiterSet) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		d := time.Since(start)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", d),
			zap.String("remote", r.RemoteAddr))
		if s.onRequest != nil {
			s.onRequest(r.Method, r.URL.Path, rec.status, d, r.RemoteAddr)
		}
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
