// Package receiver is a mock SSF push receiver that validates SETs the way an Okta org does.
package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/gorilla/mux"
	"github.com/i2-open/goSsfTransmitter/internal/metrics"
	"github.com/i2-open/goSsfTransmitter/pkg/goSet"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	EventsPath     = "/security/api/v1/security-events"
	JwksPath       = "/.well-known/jwks.json"
	maxEventsKept  = 500
	defaultPerMin  = 60
	maxRequestBody = 1 << 20
)

type Config struct {
	// Issuer is the expected iss. Empty accepts any issuer.
	Issuer string
	// Audience is the expected aud, "https://" + the receiver host.
	Audience string
	// Jwks verifies signatures. JwksJSON is served at JwksPath when set.
	Jwks     *keyfunc.JWKS
	JwksJSON json.RawMessage
	// RatePerMinute limits accepted POSTs; 0 uses 60, negative disables.
	RatePerMinute int
	Logger        *zap.Logger
}

// ReceivedEvent is a SET accepted by the receiver.
type ReceivedEvent struct {
	Jti      string                   `json:"jti"`
	Issuer   string                   `json:"iss"`
	Received time.Time                `json:"received"`
	Set      goSet.SecurityEventToken `json:"set"`
}

type Application struct {
	Router *mux.Router
	Server *http.Server

	config  Config
	limiter *rate.Limiter
	logger  *zap.Logger

	mu       sync.RWMutex
	received []ReceivedEvent
}

func NewApplication(config Config) *Application {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &Application{config: config, logger: logger.Named("receiver")}

	perMin := config.RatePerMinute
	if perMin == 0 {
		perMin = defaultPerMin
	}
	if perMin > 0 {
		app.limiter = rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin)
	}

	router := mux.NewRouter()
	router.Use(metrics.PrometheusHttpMiddleware)
	router.HandleFunc(EventsPath, app.ReceivePushEvent).Methods(http.MethodPost)
	router.HandleFunc(EventsPath, app.Probe).Methods(http.MethodHead, http.MethodGet)
	router.HandleFunc(JwksPath, app.GetJwks).Methods(http.MethodGet)
	router.HandleFunc("/events", app.ListEvents).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	app.Router = router
	return app
}

// Serve listens on addr until ctx is cancelled, using TLS when both cert and key files are given.
func (app *Application) Serve(ctx context.Context, addr string, certFile string, keyFile string) error {
	app.Server = &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("mock receiver listening", zap.String("addr", addr), zap.Bool("tls", certFile != ""))
		var err error
		if certFile != "" && keyFile != "" {
			err = app.Server.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = app.Server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		app.logger.Info("mock receiver shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func (app *Application) Received() []ReceivedEvent {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return append([]ReceivedEvent{}, app.received...)
}

func (app *Application) record(event ReceivedEvent) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.received = append(app.received, event)
	if len(app.received) > maxEventsKept {
		app.received = app.received[len(app.received)-maxEventsKept:]
	}
}
