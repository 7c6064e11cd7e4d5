package chathistory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/tree"
)

func TestMessages(t *testing.T) {
	tests := []struct {
		name   string
		nodeID string
		wantOr string
		wantEq string
	}{
		{"bare id queries both prefixes", "12", "(node_id.eq.a-12,node_id.eq.e-12)", ""},
		{"prefixed id is used as is", "e-12", "", "eq.e-12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/rest/v1/chat_messages" {
					http.NotFound(w, r)
					return
				}
				q := r.URL.Query()
				if got := q.Get("assignment_id"); got != "eq.3" {
					t.Errorf("assignment_id = %q", got)
				}
				if got := q.Get("or"); got != tt.wantOr {
					t.Errorf("or = %q, want %q", got, tt.wantOr)
				}
				if got := q.Get("node_id"); got != tt.wantEq {
					t.Errorf("node_id = %q, want %q", got, tt.wantEq)
				}
				if got := q.Get("order"); got != "created_at.asc" {
					t.Errorf("order = %q", got)
				}
				if got := r.Header.Get("apikey"); got != "key" {
					t.Errorf("apikey = %q", got)
				}
				// Deliberately out of order.
				w.Write([]byte(`[
					{"id": 2, "node_id": "a-12", "sender": "AI", "message": "Why?", "created_at": "2025-06-05T06:00:01"},
					{"id": 1, "node_id": "a-12", "sender": "USER", "message": "Aging is caused by...", "created_at": "2025-06-05T06:00:00"}
				]`))
			}))
			defer server.Close()

			c := NewClient(server.URL, "key")
			c.SetHTTPClient(server.Client())

			msgs, err := c.Messages(context.Background(), 3, tt.nodeID)
			if err != nil {
				t.Fatalf("Messages failed: %v", err)
			}
			if len(msgs) != 2 || msgs[0].ID != 1 || msgs[1].Sender != SenderAI {
				t.Errorf("messages = %+v", msgs)
			}
		})
	}
}

func TestMessagesEmptyID(t *testing.T) {
	c := NewClient("http://unused", "")
	if _, err := c.Messages(context.Background(), 1, " "); !errors.Is(err, errors.ErrCodeInvalidID) {
		t.Errorf("expected INVALID_ID, got %v", err)
	}
}

func TestStoredID(t *testing.T) {
	if got := StoredID(5, tree.CreatorStudent); got != "a-5" {
		t.Errorf("student node = %q", got)
	}
	if got := StoredID(5, tree.CreatorAI); got != "e-5" {
		t.Errorf("ai node = %q", got)
	}
	for _, id := range []string{"a-1", "e-1"} {
		if !IsPrefixed(id) {
			t.Errorf("IsPrefixed(%q) = false", id)
		}
	}
	if IsPrefixed("1") {
		t.Error(`IsPrefixed("1") = true`)
	}
}
