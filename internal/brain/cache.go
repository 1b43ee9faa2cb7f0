package brain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/avramovic/golabot/internal/convo"
)

// Cache is a disk-backed completion cache keyed by the full session
// content. Only tool-free sessions are cached; tool-using sessions have
// side effects and must always reach the model.
type Cache struct {
	dir string
}

func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Key derives the cache key from the model and everything the model
// would see.
func (c *Cache) Key(model string, sess *convo.Session) string {
	h := sha256.New()
	io.WriteString(h, model)
	io.WriteString(h, "\x00")
	io.WriteString(h, sess.System)
	io.WriteString(h, "\x00")
	for _, m := range sess.History {
		io.WriteString(h, m.Role)
		io.WriteString(h, "\x1f")
		io.WriteString(h, m.Contents)
		io.WriteString(h, "\x00")
	}
	io.WriteString(h, sess.Trigger)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for key, if present and readable.
func (c *Cache) Get(key string) (*Response, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	return &resp, true
}

// Put stores a response. Failures are silent; the cache is best effort.
func (c *Cache) Put(key string, resp *Response) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	tmp := c.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, c.path(key))
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}
