package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestEventPayloadStaysRaw(t *testing.T) {
	event := Event{
		ID:        NewEventID(),
		SessionID: NewSessionID(),
		Seq:       3,
		Type:      EventAssistantMessage,
		Source:    "telegram",
		At:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Payload:   json.RawMessage(`{"content":"hi","image_urls":["/images/a.png"]}`),
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"payload":{"content":"hi","image_urls":["/images/a.png"]}`) {
		t.Errorf("payload not embedded verbatim: %s", data)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Seq != 3 || decoded.Type != EventAssistantMessage || !decoded.At.Equal(event.At) {
		t.Errorf("unexpected decoded event %+v", decoded)
	}
}
