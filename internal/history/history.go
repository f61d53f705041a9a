// Package history keeps the bounded, newest-first log of transmission records.
package history

import (
	"sync"

	"github.com/i2-open/goSsfTransmitter/internal/model"
	"go.uber.org/zap"
)

const DefaultLimit = 100

// Sink receives every record appended to a Log.
type Sink interface {
	Publish(record model.TransmissionRecord) error
}

// Log is an append-only record list capped at limit entries; the oldest are evicted first.
type Log struct {
	mu      sync.RWMutex
	limit   int
	records []model.TransmissionRecord // newest first
	sinks   []Sink
	logger  *zap.Logger
}

func NewLog(limit int, logger *zap.Logger) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{limit: limit, logger: logger.Named("history")}
}

func (l *Log) AddSink(sink Sink) {
	l.mu.Lock()
	l.sinks = append(l.sinks, sink)
	l.mu.Unlock()
}

func (l *Log) Limit() int {
	return l.limit
}

func (l *Log) Append(record model.TransmissionRecord) {
	l.mu.Lock()
	l.records = append([]model.TransmissionRecord{record}, l.records...)
	if len(l.records) > l.limit {
		l.records = l.records[:l.limit]
	}
	sinks := l.sinks
	l.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Publish(record); err != nil {
			l.logger.Warn("record sink failed", zap.String("record", record.Id), zap.Error(err))
		}
	}
}

// Load replaces the log content with previously saved records, newest first, trimmed to the limit.
func (l *Log) Load(records []model.TransmissionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(records) > l.limit {
		records = records[:l.limit]
	}
	l.records = append([]model.TransmissionRecord{}, records...)
}

// Records returns a copy of the log, newest first.
func (l *Log) Records() []model.TransmissionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.TransmissionRecord{}, l.records...)
}

func (l *Log) Get(id string) (model.TransmissionRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.records {
		if r.Id == id {
			return r, true
		}
	}
	return model.TransmissionRecord{}, false
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()
}
