package handlers

import (
	"encoding/json"
	"testing"

	"github.com/go-telegram/bot/models"

	"github.com/region23/salonbot/internal/testutil"
)

func decodeUpdate(t *testing.T, raw string) *models.Update {
	t.Helper()
	var u models.Update
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatalf("Failed to decode update: %v", err)
	}
	return &u
}

func TestParseCallback(t *testing.T) {
	u := decodeUpdate(t, `{"update_id":1,"callback_query":{"id":"q1","from":{"id":5,"is_bot":false,"first_name":"A"},`+
		`"message":{"message_id":9,"date":1,"chat":{"id":77,"type":"private"}},"chat_instance":"x","data":"run:12"}}`)

	cb, ok := ParseCallback(u)
	if !ok {
		t.Fatal("Expected callback to be parsed")
	}
	testutil.AssertEqual(t, "q1", cb.ID, "id")
	testutil.AssertEqual(t, int64(77), cb.ChatID, "chat comes from message")
	testutil.AssertEqual(t, 9, cb.MessageID, "message id")
	testutil.AssertEqual(t, "run", cb.Action, "action")

	id, valid := cb.IntArg()
	testutil.AssertEqual(t, true, valid, "numeric arg")
	testutil.AssertEqual(t, int64(12), id, "arg value")
}

func TestParseCallbackWithoutMessage(t *testing.T) {
	u := decodeUpdate(t, `{"update_id":1,"callback_query":{"id":"q1","from":{"id":5,"is_bot":false,"first_name":"A"},"chat_instance":"x","data":"abort"}}`)

	cb, ok := ParseCallback(u)
	if !ok {
		t.Fatal("Expected callback to be parsed")
	}
	testutil.AssertEqual(t, int64(5), cb.ChatID, "chat falls back to sender")
	testutil.AssertEqual(t, 0, cb.MessageID, "no message")

	_, valid := cb.IntArg()
	testutil.AssertEqual(t, false, valid, "empty arg")
}

func TestParseCallbackIgnoresMessages(t *testing.T) {
	u := decodeUpdate(t, `{"update_id":1,"message":{"message_id":1,"date":1,"chat":{"id":5,"type":"private"},"text":"hi"}}`)
	if _, ok := ParseCallback(u); ok {
		t.Fatal("Plain message is not a callback")
	}
}
