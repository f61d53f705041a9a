package model

import (
	"github.com/i2-open/goSsfTransmitter/internal/catalog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemSending ItemStatus = "sending"
	ItemSuccess ItemStatus = "success"
	ItemError   ItemStatus = "error"
)

func (s ItemStatus) IsTerminal() bool {
	return s == ItemSuccess || s == ItemError
}

/*
Selection identifies what to send: a catalog provider/event pair, the level and the subject. Event, when set, is an
operator defined event used in place of a catalog lookup and Fields are merged into its payload.
*/
type Selection struct {
	ProviderId string            `json:"providerId"`
	EventId    string            `json:"eventId"`
	Risk       catalog.RiskLevel `json:"riskLevel"`
	Email      string            `json:"email,omitempty"`

	Event  *catalog.Event         `json:"-"`
	Fields map[string]interface{} `json:"-"`
}

// WorkItem is a queued or scenario send. Its status is advanced in place by the dispatcher running it.
type WorkItem struct {
	Id     string     `json:"id"`
	Status ItemStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
	Selection
}

func NewWorkItem(sel Selection) *WorkItem {
	return &WorkItem{
		Id:        primitive.NewObjectID().Hex(),
		Status:    ItemPending,
		Selection: sel,
	}
}
