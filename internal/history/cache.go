package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/siteiq/siteiq/internal/insight"
)

// SnapshotCache persists the most recently viewed conversation outside
// the server, scoped to one client. It is consulted only for instant
// paint and is always superseded by the next successful server fetch;
// the two are never merged.
type SnapshotCache struct {
	baseDir string
	hasher  insight.Hasher
}

// NewSnapshotCache creates a file-backed cache rooted at baseDir. The
// directory is created when missing. File names are derived from the
// owner id via the hasher so arbitrary owner identifiers stay safe as
// path components.
func NewSnapshotCache(baseDir string, hasher insight.Hasher) (*SnapshotCache, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &SnapshotCache{baseDir: baseDir, hasher: hasher}, nil
}

// Put stores conv as the owner's last-viewed snapshot, replacing any
// previous one.
func (c *SnapshotCache) Put(ownerID string, conv insight.Conversation) error {
	path, err := c.path(ownerID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Get returns the owner's last-viewed snapshot. The second return value
// is false when no snapshot exists or it cannot be decoded; a corrupt
// snapshot is treated as absent rather than an error, since the server
// list always wins anyway.
func (c *SnapshotCache) Get(ownerID string) (insight.Conversation, bool) {
	path, err := c.path(ownerID)
	if err != nil {
		return insight.Conversation{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return insight.Conversation{}, false
	}
	var conv insight.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return insight.Conversation{}, false
	}
	return conv, true
}

// Clear removes the owner's snapshot, if any.
func (c *SnapshotCache) Clear(ownerID string) error {
	path, err := c.path(ownerID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

func (c *SnapshotCache) path(ownerID string) (string, error) {
	digest, err := c.hasher.Hash([]byte(ownerID))
	if err != nil {
		return "", fmt.Errorf("hash owner id: %w", err)
	}
	return filepath.Join(c.baseDir, digest+".json"), nil
}
