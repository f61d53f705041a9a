package transmitter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i2-open/goSsfTransmitter/internal/catalog"
	"github.com/i2-open/goSsfTransmitter/internal/metrics"
	"github.com/i2-open/goSsfTransmitter/internal/model"
	"github.com/i2-open/goSsfTransmitter/pkg/goSet"
	"go.uber.org/zap"
)

// Profile is the transmitter identity and target used for every send.
type Profile struct {
	OktaDomain    string
	Issuer        string
	SubjectEmail  string
	Kid           string
	PrivateKeyPem []byte
}

// Pipeline runs catalog lookup, payload build, assembly, signing and transmission for one selection.
type Pipeline struct {
	client *Client
	logger *zap.Logger

	mu      sync.RWMutex
	profile Profile
}

func NewPipeline(client *Client, profile Profile, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = NewClient(nil, logger)
	}
	return &Pipeline{client: client, profile: profile, logger: logger.Named("transmitter")}
}

func (p *Pipeline) Profile() Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

func (p *Pipeline) SetProfile(profile Profile) {
	p.mu.Lock()
	p.profile = profile
	p.mu.Unlock()
}

// Build resolves the selection and assembles its unsigned SET along with the catalog entries used.
func (p *Pipeline) Build(sel model.Selection) (*goSet.SecurityEventToken, catalog.Provider, catalog.Event, error) {
	set, _, provider, event, err := build(p.Profile(), sel)
	return set, provider, event, err
}

func build(profile Profile, sel model.Selection) (*goSet.SecurityEventToken, string, catalog.Provider, catalog.Event, error) {
	provider, event, err := resolve(sel)
	if err != nil {
		return nil, "", provider, event, err
	}
	host, err := SanitizeHost(profile.OktaDomain)
	if err != nil {
		return nil, "", provider, event, err
	}
	email := sel.Email
	if email == "" {
		email = profile.SubjectEmail
	}
	risk := sel.Risk
	if risk == "" {
		risk = event.Severity
	}
	fragment := event.BuildPayloadWith(email, time.Now().Unix(), risk, sel.Fields)
	return Assemble(profile.Issuer, host, fragment), host, provider, event, nil
}

/*
Transmit performs one attempt and always returns the record describing it. The error is one of
*catalog.LookupError, *InvalidDomainError, *goSet.SigningError, *TransportError or *RejectedError.
*/
func (p *Pipeline) Transmit(ctx context.Context, sel model.Selection) (*model.TransmissionRecord, error) {
	profile := p.Profile()
	if sel.Email == "" {
		sel.Email = profile.SubjectEmail
	}
	record := model.NewRecord(sel)

	set, host, provider, event, err := build(profile, sel)
	if provider.ID != "" {
		record.ProviderName = provider.Name
	}
	if event.ID != "" {
		record.EventLabel = event.Label
		if record.RiskLevel == "" {
			record.RiskLevel = event.Severity
		}
	}
	if err != nil {
		return p.fail(&record, err, "local")
	}
	record.Jti = set.ID
	record.Payload = set.Claims()

	token, err := goSet.Sign(set, profile.PrivateKeyPem, profile.Kid)
	if err != nil {
		return p.fail(&record, err, "local")
	}

	result := p.client.Send(ctx, token, Endpoint(host))
	record.Response = &model.TransmissionResponse{
		Status:           result.HTTPStatus,
		Error:            result.Error,
		ErrorDescription: result.ErrorDescription,
		Hint:             result.Hint,
	}
	if result.Success {
		record.Status = model.RecordSuccess
		record.Response.Error = ""
		metrics.Sends.WithLabelValues(record.ProviderId, record.EventId, "success").Inc()
		p.logger.Info("SET delivered",
			zap.String("provider", record.ProviderId),
			zap.String("event", record.EventId),
			zap.String("jti", record.Jti),
			zap.Int("status", result.HTTPStatus))
		return &record, nil
	}

	err = result.Err()
	outcome := "rejected"
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		outcome = "transport"
	}
	record.Status = model.RecordError
	metrics.Sends.WithLabelValues(record.ProviderId, record.EventId, outcome).Inc()
	p.logger.Warn("SET transmission failed",
		zap.String("provider", record.ProviderId),
		zap.String("event", record.EventId),
		zap.String("jti", record.Jti),
		zap.Int("status", result.HTTPStatus),
		zap.String("hint", result.Hint),
		zap.Error(err))
	return &record, err
}

func (p *Pipeline) fail(record *model.TransmissionRecord, err error, outcome string) (*model.TransmissionRecord, error) {
	record.Status = model.RecordError
	record.Response = &model.TransmissionResponse{Status: 0, Error: err.Error()}
	metrics.Sends.WithLabelValues(record.ProviderId, record.EventId, outcome).Inc()
	p.logger.Warn("SET not sent",
		zap.String("provider", record.ProviderId),
		zap.String("event", record.EventId),
		zap.Error(err))
	return record, err
}

func resolve(sel model.Selection) (catalog.Provider, catalog.Event, error) {
	if sel.Event != nil {
		provider, ok := catalog.Lookup(sel.ProviderId)
		if !ok {
			provider = catalog.Provider{ID: sel.ProviderId, Name: sel.ProviderId}
		}
		return provider, *sel.Event, nil
	}
	return catalog.Resolve(sel.ProviderId, sel.EventId)
}
