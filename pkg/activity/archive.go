package activity

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/platinummonkey/spendwise/pkg/storage"
)

// Archiver copies activities to an object store before they are purged
type Archiver struct {
	store  storage.ObjectStore
	prefix string
	now    func() time.Time
}

// NewArchiver creates an archiver writing under prefix (default "activity")
func NewArchiver(store storage.ObjectStore, prefix string) *Archiver {
	if prefix == "" {
		prefix = "activity"
	}
	return &Archiver{store: store, prefix: prefix, now: time.Now}
}

// Archive uploads entries as one NDJSON object and returns its key.
// Nothing is written for an empty batch.
func (a *Archiver) Archive(ctx context.Context, entries []*Entry, cutoff time.Time) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	if err := writeNDJSON(&buf, entries); err != nil {
		return "", err
	}

	now := a.now().UTC()
	key := path.Join(a.prefix, now.Format("2006/01/02"),
		fmt.Sprintf("before-%s-%d.ndjson", cutoff.UTC().Format("20060102"), now.Unix()))

	if err := a.store.PutObject(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("failed to archive %d activities: %w", len(entries), err)
	}
	return key, nil
}
