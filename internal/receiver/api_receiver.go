package receiver

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/i2-open/goSsfTransmitter/internal/metrics"
	"github.com/i2-open/goSsfTransmitter/pkg/goSet"
	"go.uber.org/zap"
)

// DeliveryErr is the push error body, {"error","error_description"}.
type DeliveryErr struct {
	ErrCode     string `json:"error"`
	Description string `json:"error_description"`
}

func (app *Application) ReceivePushEvent(w http.ResponseWriter, r *http.Request) {
	if app.limiter != nil && !app.limiter.Allow() {
		app.processPushError(w, http.StatusTooManyRequests, "rate_limited", "Too many security events; slow down")
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/secevent+jwt" {
		app.processPushError(w, http.StatusBadRequest, "invalid_request", "Expecting Content-Type application/secevent+jwt")
		return
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil || len(bodyBytes) == 0 {
		app.processPushError(w, http.StatusBadRequest, "invalid_request", "Expecting a compact SET in the request body")
		return
	}

	token, err := goSet.Parse(string(bodyBytes), app.config.Jwks)
	if err != nil {
		app.logger.Info("SET rejected", zap.Error(err))
		app.processPushError(w, http.StatusBadRequest, "invalid_key", "Signature or key verification failed (JWKS): "+err.Error())
		return
	}

	if app.config.Issuer != "" && !token.VerifyIssuer(app.config.Issuer, true) {
		app.processPushError(w, http.StatusBadRequest, "invalid_issuer",
			fmt.Sprintf("Issuer mismatch: %s is not the configured issuer", token.Issuer))
		return
	}
	if app.config.Audience != "" && !token.VerifyAudience(app.config.Audience, true) {
		app.processPushError(w, http.StatusBadRequest, "invalid_audience",
			fmt.Sprintf("Audience mismatch: expected %s", app.config.Audience))
		return
	}
	if len(token.Events) == 0 {
		app.processPushError(w, http.StatusBadRequest, "invalid_request", "The SET carries no events")
		return
	}

	app.record(ReceivedEvent{Jti: token.ID, Issuer: token.Issuer, Received: time.Now(), Set: *token})
	metrics.ReceiverEvents.WithLabelValues("accepted").Inc()
	app.logger.Info("SET accepted",
		zap.String("jti", token.ID),
		zap.String("iss", token.Issuer),
		zap.Strings("events", token.GetEventIds()))
	w.WriteHeader(http.StatusAccepted)
}

func (app *Application) Probe(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (app *Application) GetJwks(w http.ResponseWriter, _ *http.Request) {
	if len(app.config.JwksJSON) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(app.config.JwksJSON)
}

func (app *Application) ListEvents(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(app.Received())
}

func (app *Application) processPushError(w http.ResponseWriter, status int, errorCode string, msg string) {
	metrics.ReceiverEvents.WithLabelValues(errorCode).Inc()
	app.logger.Debug("push error", zap.Int("status", status), zap.String("error", errorCode), zap.String("description", msg))
	responseBytes, _ := json.MarshalIndent(DeliveryErr{ErrCode: errorCode, Description: msg}, "", "  ")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(responseBytes)
}
