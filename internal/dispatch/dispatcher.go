// Package dispatch drives transmissions one at a time over queued or scripted work items.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/i2-open/goSsfTransmitter/internal/model"
	"go.uber.org/zap"
)

var (
	ErrBusy           = errors.New("a dispatch run is already in progress")
	ErrRecordNotFound = errors.New("transmission record not found")
)

// Transmitter runs the full build, sign and send pipeline for one selection. It returns a record even on failure.
type Transmitter interface {
	Transmit(ctx context.Context, sel model.Selection) (*model.TransmissionRecord, error)
}

// Recorder is the append-only record log.
type Recorder interface {
	Append(record model.TransmissionRecord)
	Get(id string) (model.TransmissionRecord, bool)
}

type Dispatcher struct {
	transmitter Transmitter
	recorder    Recorder
	logger      *zap.Logger
}

func NewDispatcher(transmitter Transmitter, recorder Recorder, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{transmitter: transmitter, recorder: recorder, logger: logger.Named("dispatch")}
}

// SendOne transmits a single selection and records the attempt.
func (d *Dispatcher) SendOne(ctx context.Context, sel model.Selection) (*model.TransmissionRecord, error) {
	record, err := d.transmitter.Transmit(ctx, sel)
	if record == nil {
		fallback := model.NewRecord(sel)
		msg := "no record produced"
		if err != nil {
			msg = err.Error()
		}
		fallback.Response = &model.TransmissionResponse{Error: msg}
		record = &fallback
	}
	d.recorder.Append(*record)
	return record, err
}

// Replay sends the provider, event and level of a recorded attempt again as a new attempt.
func (d *Dispatcher) Replay(ctx context.Context, recordId string) (*model.TransmissionRecord, error) {
	source, ok := d.recorder.Get(recordId)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, recordId)
	}
	d.logger.Info("replaying record", zap.String("record", recordId), zap.String("jti", source.Jti))
	return d.SendOne(ctx, source.Selection())
}
