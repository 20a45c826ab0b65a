package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/wishpair/internal/wish"
)

// DefaultLinkScheme is the app scheme used when none is configured.
const DefaultLinkScheme = "wishpair"

const (
	paramWorkspaceID = "workspaceId"
	paramSnapshot    = "snapshot"
)

// Link is a decoded share link. Snapshot is nil when the link carried
// none or it could not be parsed.
type Link struct {
	WorkspaceID string
	Snapshot    []wish.Wish
}

// EncodeLink builds a deep link carrying ws and a JSON snapshot of wishes.
func EncodeLink(scheme, ws string, wishes []wish.Wish) (string, error) {
	scheme = strings.TrimSuffix(strings.TrimSpace(scheme), "://")
	if scheme == "" {
		scheme = DefaultLinkScheme
	}
	if wishes == nil {
		wishes = []wish.Wish{}
	}
	data, err := json.Marshal(wishes)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	q := url.Values{}
	q.Set(paramWorkspaceID, NormalizeID(ws))
	q.Set(paramSnapshot, string(data))
	return scheme + "://?" + q.Encode(), nil
}

// DecodeLink parses a share link. ok is false when raw is not a URL or
// has no workspace id. A malformed snapshot is dropped, not reported.
func DecodeLink(raw string) (link Link, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Link{}, false
	}
	q := u.Query()
	ws := strings.TrimSpace(q.Get(paramWorkspaceID))
	if ws == "" {
		return Link{}, false
	}
	return Link{WorkspaceID: ws, Snapshot: parseSnapshot(q.Get(paramSnapshot))}, true
}

// parseSnapshot accepts a JSON array, directly or still percent-encoded.
func parseSnapshot(value string) []wish.Wish {
	if value == "" {
		return nil
	}
	if wishes, ok := decodeWishes(value); ok {
		return wishes
	}
	unescaped, err := url.QueryUnescape(value)
	if err != nil {
		return nil
	}
	if wishes, ok := decodeWishes(unescaped); ok {
		return wishes
	}
	return nil
}

func decodeWishes(value string) ([]wish.Wish, bool) {
	var wishes []wish.Wish
	if err := json.Unmarshal([]byte(value), &wishes); err != nil || wishes == nil {
		return nil, false
	}
	return wishes, true
}

// LinkHandler applies incoming share links, each raw value at most once.
type LinkHandler struct {
	ws   *Workspace
	log  *logrus.Logger
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewLinkHandler returns a handler that switches ws on valid links.
func NewLinkHandler(ws *Workspace, log *logrus.Logger) *LinkHandler {
	return &LinkHandler{ws: ws, log: log, seen: make(map[string]struct{})}
}

// Handle switches to the linked workspace. applied is false for a link
// already handled or one without a workspace id.
func (h *LinkHandler) Handle(ctx context.Context, raw string) (applied bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, dup := h.seen[raw]; dup {
		return false, nil
	}
	h.seen[raw] = struct{}{}

	link, ok := DecodeLink(raw)
	if !ok {
		return false, nil
	}
	if _, err := h.ws.Switch(ctx, link.WorkspaceID, link.Snapshot); err != nil {
		delete(h.seen, raw)
		return false, err
	}
	h.log.WithFields(logrus.Fields{
		"workspace_id": link.WorkspaceID,
		"snapshot":     len(link.Snapshot),
	}).Info("share link applied")
	return true, nil
}
