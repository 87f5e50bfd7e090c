package devstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Notification is an in-app message published for a product. The SDK
// only fetches and dedups notifications; displaying them is the host
// application's job.
type Notification struct {
	ID      uint32 `json:"notification_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// notificationStoreFile persists shown notification ids across
// processes.
const notificationStoreFile = "notification_store.json"

// seenLimit caps the in-memory set. The JSON file keeps the full
// history.
const seenLimit = 128

// NotificationStore remembers which notification ids were already
// reported. A bounded LRU answers lookups in memory; the JSON file is
// the durable record, consulted on a miss and merged on every write.
type NotificationStore struct {
	mu   sync.Mutex
	path string
	hot  *lru.Cache[uint32, struct{}]
}

// OpenNotificationStore loads the store from the SDK data directory.
func OpenNotificationStore() (*NotificationStore, error) {
	return openNotificationStore(filepath.Join(dataDir(), notificationStoreFile))
}

func openNotificationStore(path string) (*NotificationStore, error) {
	hot, err := lru.New[uint32, struct{}](seenLimit)
	if err != nil {
		return nil, err
	}
	s := &NotificationStore{path: path, hot: hot}
	for id := range s.persistedIDs() {
		s.hot.Add(id, struct{}{})
	}
	return s, nil
}

// persistedIDs loads the durable id set; a missing or corrupt file
// reads as empty.
func (s *NotificationStore) persistedIDs() map[uint32]struct{} {
	ids := make(map[uint32]struct{})
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ids
	}
	var persisted struct {
		ShownIDs []uint32 `json:"shown_ids"`
	}
	if err := json.Unmarshal(data, &persisted); err == nil {
		for _, id := range persisted.ShownIDs {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// Seen reports whether the id was already shown. An id evicted from
// the in-memory set is re-promoted when the file still has it.
func (s *NotificationStore) Seen(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hot.Get(id); ok {
		return true
	}
	if _, ok := s.persistedIDs()[id]; ok {
		s.hot.Add(id, struct{}{})
		return true
	}
	return false
}

// MarkSeen records the id in memory and merges it into the file.
// Persistence is best effort; a read-only data dir must not break
// notification delivery.
func (s *NotificationStore) MarkSeen(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hot.Add(id, struct{}{})

	all := s.persistedIDs()
	all[id] = struct{}{}
	ids := make([]uint32, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	payload := struct {
		ShownIDs []uint32 `json:"shown_ids"`
	}{ShownIDs: ids}
	if data, err := json.MarshalIndent(payload, "", "  "); err == nil {
		_ = os.WriteFile(s.path, data, 0o644)
	}
}

// LatestNotification fetches the newest notification for the package.
// Returns ErrNoNotification when the service has none.
func (c *Client) LatestNotification(ctx context.Context, packageID string) (*Notification, error) {
	if err := requireParams(param{"package_id", packageID}); err != nil {
		return nil, err
	}

	endpoint := c.endpoint("get-latest-notification-for-app/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("product_id", packageID)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Op: "notification", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ErrNoNotification
	}

	var n Notification
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		if err == io.EOF {
			return nil, ErrNoNotification
		}
		return nil, &ServerError{Op: "notification", StatusCode: resp.StatusCode, Message: "Failed to parse JSON"}
	}
	if n.ID == 0 || n.Message == "" {
		return nil, ErrNoNotification
	}
	if n.Title == "" {
		n.Title = "Notification"
	}
	return &n, nil
}

// CheckNotification fetches the latest notification and filters out
// ones the store already reported. A returned notification is marked
// seen before this call returns.
func (c *Client) CheckNotification(ctx context.Context, packageID string, store *NotificationStore) (*Notification, error) {
	n, err := c.LatestNotification(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if store.Seen(n.ID) {
		return nil, ErrNoNotification
	}
	store.MarkSeen(n.ID)
	return n, nil
}
