package geoproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/evanhutnik/geocode-proxy/internal/cache"
	t "github.com/evanhutnik/geocode-proxy/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	msgBadRequest  = "Missing 'address' query parameter in request. Usage: /?address=<address>"
	msgNotFound    = "Address not found. Check spelling or be more specific."
	msgUnavailable = "Geocoding services are unavailable, try again later."
	msgInternal    = "Internal error geocoding address."
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
}

type CodeError struct {
	code int
	msg  string
}

func (c CodeError) Error() string {
	return c.msg
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (t.Outcome, error)
	Providers() []string
}

type ServiceOption func(*Service)

func AddrOption(addr string) ServiceOption {
	return func(s *Service) {
		s.addr = addr
	}
}

func CacheOption(c *cache.FIFO) ServiceOption {
	return func(s *Service) {
		s.cache = c
	}
}

func RemoteCacheOption(r *cache.Redis) ServiceOption {
	return func(s *Service) {
		s.remote = r
	}
}

func LoggerOption(logger *zap.SugaredLogger) ServiceOption {
	return func(s *Service) {
		s.Logger = logger
	}
}

type Service struct {
	geocoder Geocoder
	cache    *cache.FIFO
	remote   *cache.Redis
	addr     string

	Logger *zap.SugaredLogger
}

func New(g Geocoder, opts ...ServiceOption) *Service {
	if g == nil {
		panic("Missing geocoder in geoproxy service")
	}
	s := &Service{
		geocoder: g,
		addr:     ":8088",
		Logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/", s.GeocodeHandler)
	return mux
}

// Start serves until ctx is cancelled, then shuts the listener down gracefully.
func (s *Service) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Logger.Infow("Server is running", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("geoproxy server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Logger.Infow("Shutting down server", "addr", s.addr)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Service) GeocodeHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	logger := s.Logger.With("request_id", requestID)

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.writeError(w, CodeError{code: http.StatusMethodNotAllowed, msg: "Only GET requests are supported."})
		return
	}

	address := r.URL.Query().Get("address")
	outcome, err := s.Geocode(r.Context(), address)
	if err != nil {
		logger.Errorw(err.Error(), "address", address, "action", "Geocode")
		s.writeError(w, CodeError{code: http.StatusInternalServerError, msg: msgInternal})
		return
	}

	logger.Infow("geocode request",
		"address", address, "status", outcome.Status.String(), "code", outcome.Code, "provider", outcome.Provider)
	s.writeOutcome(w, outcome)
}

func (s *Service) HealthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Providers: s.geocoder.Providers()})
}

// Geocode resolves address through the FIFO cache, the optional Redis tier and finally the
// provider failover. An empty address never reaches a cache or a provider.
func (s *Service) Geocode(ctx context.Context, address string) (t.Outcome, error) {
	if address == "" {
		return t.ClientError(), nil
	}

	compute := func(ctx context.Context) (t.Outcome, error) {
		return s.geocoder.Geocode(ctx, address)
	}
	if s.remote != nil {
		lookup := compute
		compute = func(ctx context.Context) (t.Outcome, error) {
			return s.remote.GetOrCompute(ctx, address, lookup)
		}
	}
	if s.cache == nil {
		return compute(ctx)
	}
	// a shared flight must not be cut short by the first caller going away; the provider
	// timeout still bounds it
	return s.cache.GetOrCompute(context.WithoutCancel(ctx), address, compute)
}

func (s *Service) writeOutcome(w http.ResponseWriter, o t.Outcome) {
	switch o.Status {
	case t.StatusSuccess:
		w.Header().Set("X-Geocode-Provider", o.Provider)
		s.writeJSON(w, http.StatusOK, o.Coordinates)
	case t.StatusClientError:
		s.writeError(w, CodeError{code: http.StatusBadRequest, msg: msgBadRequest})
	case t.StatusNotFound:
		s.writeError(w, CodeError{code: http.StatusNotFound, msg: msgNotFound})
	case t.StatusUnavailable:
		if o.Code == http.StatusServiceUnavailable {
			s.writeError(w, CodeError{code: o.Code, msg: msgUnavailable})
		} else {
			s.writeError(w, CodeError{code: http.StatusNotFound, msg: msgNotFound})
		}
	default:
		code := o.Code
		if code < 400 || code > 599 {
			code = http.StatusBadGateway
		}
		s.writeError(w, CodeError{code: code, msg: fmt.Sprintf("Cannot process request, status %d.", code)})
	}
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	codeErr, ok := err.(CodeError)
	if ok {
		s.writeJSON(w, codeErr.code, ErrorResponse{Error: codeErr.Error()})
	} else {
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: msgInternal})
	}
}

func (s *Service) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		s.Logger.Errorw("Error marshalling response: "+err.Error(), "code", code)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	io.WriteString(w, string(bodyBytes[:]))
}
