package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/i2-open/goSsfTransmitter/config"
	"github.com/i2-open/goSsfTransmitter/internal/dispatch"
	"github.com/i2-open/goSsfTransmitter/internal/history"
	"github.com/i2-open/goSsfTransmitter/internal/metrics"
	"github.com/i2-open/goSsfTransmitter/internal/model"
	"github.com/i2-open/goSsfTransmitter/internal/store"
	"github.com/i2-open/goSsfTransmitter/internal/transmitter"
	"go.uber.org/zap"
)

// Session holds the long lived components shared by every shell command.
type Session struct {
	Env        config.Config
	Logger     *zap.Logger
	Store      *store.FileStore
	History    *history.Log
	Pipeline   *transmitter.Pipeline
	Dispatcher *dispatch.Dispatcher
	Queue      *dispatch.Queue
	Scenarios  *dispatch.ScenarioRunner
	Prober     *transmitter.Prober
	Started    time.Time

	kafka         *history.KafkaSink
	metricsServer *http.Server
}

// storeSink rewrites the saved history after each append.
type storeSink struct {
	mu    sync.Mutex
	log   *history.Log
	store *store.FileStore
}

func (s *storeSink) Publish(model.TransmissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Put(store.KeyHistory, s.log.Records())
}

/*
NewSession wires the transmitter from env. httpClient is used for sends and probes; nil selects a client trusting
env.CaFile in addition to the system roots. Saved history is reloaded from the store.
*/
func NewSession(env config.Config, logger *zap.Logger, httpClient *http.Client) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		var err error
		if httpClient, err = transmitter.NewHTTPClient(env.CaFile); err != nil {
			return nil, err
		}
		if env.CaFile != "" {
			logger.Info("trusting additional CA certificates", zap.String("file", env.CaFile))
		}
	}
	fileStore, err := store.NewFileStore(env.Home)
	if err != nil {
		return nil, err
	}

	log := history.NewLog(env.HistoryLimit, logger)
	var saved []model.TransmissionRecord
	if _, err = fileStore.Get(store.KeyHistory, &saved); err != nil {
		logger.Warn("saved history could not be read", zap.Error(err))
	}
	log.Load(saved)
	log.AddSink(&storeSink{log: log, store: fileStore})

	s := &Session{
		Env:     env,
		Logger:  logger,
		Store:   fileStore,
		History: log,
		Started: time.Now(),
	}

	if env.KafkaBrokers != "" {
		s.kafka = history.NewKafkaSink(env.KafkaBrokers, env.KafkaTopic, logger)
		log.AddSink(s.kafka)
		logger.Info("streaming records to kafka", zap.String("brokers", env.KafkaBrokers), zap.String("topic", env.KafkaTopic))
	}

	s.Pipeline = transmitter.NewPipeline(transmitter.NewClient(httpClient, logger), transmitter.Profile{}, logger)
	s.Dispatcher = dispatch.NewDispatcher(s.Pipeline, log, logger)
	s.Queue = dispatch.NewQueue(s.Dispatcher)
	s.Scenarios = dispatch.NewScenarioRunner(s.Dispatcher)
	s.Prober = transmitter.NewProber(httpClient, logger)

	if env.MetricsAddr != "" {
		router := mux.NewRouter()
		router.Handle("/metrics", metrics.Handler())
		s.metricsServer = &http.Server{Addr: env.MetricsAddr, Handler: router}
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener stopped", zap.Error(err))
			}
		}()
	}
	return s, nil
}

// ClearHistory empties the log and its saved copy.
func (s *Session) ClearHistory() error {
	s.History.Clear()
	return s.Store.Delete(store.KeyHistory)
}

func (s *Session) Close() {
	s.Queue.Stop()
	s.Scenarios.Stop()
	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			s.Logger.Warn("kafka writer close failed", zap.Error(err))
		}
	}
	if s.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.metricsServer.Shutdown(ctx)
	}
	_ = s.Logger.Sync()
}
