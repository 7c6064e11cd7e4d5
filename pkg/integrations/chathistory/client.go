package chathistory

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/integrations"
	"github.com/matzehuels/treereplay/pkg/tree"
)

// Sender is the author of a chat message.
type Sender string

const (
	SenderUser Sender = "USER"
	SenderAI   Sender = "AI"
)

// Node id prefixes.
const (
	PrefixUser = "a-"
	PrefixAI   = "e-"
)

// Message is one chat message attached to a node.
type Message struct {
	ID           int64           `json:"id"`
	AssignmentID int64           `json:"assignment_id"`
	NodeID       string          `json:"node_id"`
	Sender       Sender          `json:"sender"`
	Message      string          `json:"message"`
	Mode         string          `json:"mode,omitempty"`
	UserID       *int64          `json:"user_id,omitempty"`
	UserName     string          `json:"user_name,omitempty"`
	Suggestions  json.RawMessage `json:"suggestions,omitempty"`
	Citations    json.RawMessage `json:"citations,omitempty"`
	CreatedAt    string          `json:"created_at"`
}

// Time parses CreatedAt; it is zero if the value is missing or invalid.
func (m Message) Time() time.Time {
	t, _ := tree.ParseTime(m.CreatedAt)
	return t
}

// IsPrefixed reports whether id already carries a creator prefix.
func IsPrefixed(id string) bool {
	return strings.HasPrefix(id, PrefixUser) || strings.HasPrefix(id, PrefixAI)
}

// StoredID returns the id under which messages for a node created by
// creator are stored.
func StoredID(id tree.NodeID, creator tree.Creator) string {
	if creator == tree.CreatorStudent {
		return PrefixUser + id.String()
	}
	return PrefixAI + id.String()
}

// CandidateIDs returns the stored ids a lookup for nodeID has to match.
func CandidateIDs(nodeID string) []string {
	if IsPrefixed(nodeID) {
		return []string{nodeID}
	}
	return []string{PrefixUser + nodeID, PrefixAI + nodeID}
}

// Client reads chat messages. It is safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a client for the PostgREST endpoint at baseURL. apiKey
// is sent both as the apikey header and as a bearer token. Chat is read
// live, so responses are not cached.
func NewClient(baseURL, apiKey string) *Client {
	headers := map[string]string{}
	if apiKey != "" {
		headers["apikey"] = apiKey
		headers["Authorization"] = "Bearer " + apiKey
	}
	return &Client{
		Client:  integrations.NewClient(nil, "chat:", 0, headers),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Messages returns the messages of a node in an assignment, oldest first.
// nodeID may be bare ("12") or prefixed ("a-12").
func (c *Client) Messages(ctx context.Context, assignmentID int64, nodeID string) ([]Message, error) {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID == "" {
		return nil, errors.New(errors.ErrCodeInvalidID, "node id is required")
	}

	q := url.Values{}
	q.Set("select", "*")
	q.Set("assignment_id", "eq."+strconv.FormatInt(assignmentID, 10))
	ids := CandidateIDs(nodeID)
	if len(ids) == 1 {
		q.Set("node_id", "eq."+ids[0])
	} else {
		conds := make([]string, len(ids))
		for i, id := range ids {
			conds[i] = "node_id.eq." + id
		}
		q.Set("or", "("+strings.Join(conds, ",")+")")
	}
	q.Set("order", "created_at.asc")

	var msgs []Message
	if err := c.Get(ctx, c.baseURL+"/rest/v1/chat_messages?"+q.Encode(), &msgs); err != nil {
		return nil, err
	}
	slices.SortStableFunc(msgs, func(a, b Message) int {
		return a.Time().Compare(b.Time())
	})
	return msgs, nil
}
