package queue

import "encoding/json"

// CurrentVersion is the message schema version written by producers.
const CurrentVersion = 1

// Message is the payload sent to the generation worker. OfferID is only set
// for single-offer retries; normally the worker processes the whole task.
type Message struct {
	TaskID     string `json:"taskId"`
	OfferID    string `json:"offerId,omitempty"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
