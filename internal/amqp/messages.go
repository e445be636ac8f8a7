package amqp

import (
	"encoding/json"
	"time"
)

// AnalysisRunMessage asks the worker to run an automatic analysis. Reason
// records which mutation triggered it; the worker recomputes everything from
// the database.
type AnalysisRunMessage struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAnalysisRunMessage(reason string) *AnalysisRunMessage {
	return &AnalysisRunMessage{
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *AnalysisRunMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AnalysisRunMessageFromJSON(data []byte) (*AnalysisRunMessage, error) {
	var msg AnalysisRunMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
