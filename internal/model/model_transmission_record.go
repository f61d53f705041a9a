package model

import (
	"time"

	"github.com/i2-open/goSsfTransmitter/internal/catalog"
	"github.com/segmentio/ksuid"
)

const (
	RecordSuccess = "success"
	RecordError   = "error"
)

// TransmissionResponse is what the receiver (or the local pipeline) reported. Status 0 means nothing was received.
type TransmissionResponse struct {
	Status           int    `json:"status"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"errorDescription,omitempty"`
	Hint             string `json:"hint,omitempty"`
}

// TransmissionRecord is the audit entry for one send attempt. It is never modified once appended to history.
type TransmissionRecord struct {
	Id           string                 `json:"id"`
	Timestamp    int64                  `json:"timestamp"` // unix milliseconds
	ProviderId   string                 `json:"providerId"`
	ProviderName string                 `json:"providerName"`
	EventId      string                 `json:"eventId"`
	EventLabel   string                 `json:"eventLabel"`
	UserEmail    string                 `json:"userEmail"`
	RiskLevel    catalog.RiskLevel      `json:"riskLevel"`
	Status       string                 `json:"status"`
	Jti          string                 `json:"jti,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Response     *TransmissionResponse  `json:"response,omitempty"`
}

func NewRecordId() string {
	return ksuid.New().String()
}

// NewRecord starts a record for sel stamped with the current time. Names default to the ids.
func NewRecord(sel Selection) TransmissionRecord {
	return TransmissionRecord{
		Id:           NewRecordId(),
		Timestamp:    time.Now().UnixMilli(),
		ProviderId:   sel.ProviderId,
		ProviderName: sel.ProviderId,
		EventId:      sel.EventId,
		EventLabel:   sel.EventId,
		UserEmail:    sel.Email,
		RiskLevel:    sel.Risk,
		Status:       RecordError,
	}
}

func (r *TransmissionRecord) Succeeded() bool {
	return r.Status == RecordSuccess
}

func (r *TransmissionRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Selection is the input that produced this record, used to replay it.
func (r *TransmissionRecord) Selection() Selection {
	return Selection{
		ProviderId: r.ProviderId,
		EventId:    r.EventId,
		Risk:       r.RiskLevel,
		Email:      r.UserEmail,
	}
}
