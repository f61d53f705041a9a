package goSet

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MicahParks/keyfunc"
	"go.uber.org/zap"
)

// GetJwks loads and keeps refreshing a remote JWKS. An empty url returns nil.
func GetJwks(ctx context.Context, jwksUrl string, logger *zap.Logger) (*keyfunc.JWKS, error) {
	if jwksUrl == "" {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	keyOptions := keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks refresh failed", zap.String("url", jwksUrl), zap.Error(err))
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}

	logger.Info("loading JWKS", zap.String("url", jwksUrl))
	return keyfunc.Get(jwksUrl, keyOptions)
}

// NewJwksFromJSON builds a static key set from a JWKS document.
func NewJwksFromJSON(jwksJSON json.RawMessage) (*keyfunc.JWKS, error) {
	return keyfunc.NewJSON(jwksJSON)
}
