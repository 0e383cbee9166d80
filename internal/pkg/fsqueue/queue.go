package fsqueue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2/log"
)

const (
	pendingDirName    = "pending"
	processingDirName = "processing"
	itemSuffix        = ".json"
)

// Queue is a crash-safe, file-backed work queue. Items live as
// <id>.json files under <dir>/pending until claimed, then under
// <dir>/processing until completed. The pending->processing rename is the
// at-least-once claim mechanism: a crash between claim and completion leaves
// the item visible in processing instead of losing it.
//
// A single consumer per queue instance is assumed; atomicity of Submit and
// ClaimNext only has to hold against crashes, not against competing readers.
type Queue struct {
	dir           string
	pendingDir    string
	processingDir string
}

// New creates the queue directories under dir if they do not exist yet.
func New(dir string) (*Queue, error) {
	q := &Queue{
		dir:           dir,
		pendingDir:    filepath.Join(dir, pendingDirName),
		processingDir: filepath.Join(dir, processingDirName),
	}

	for _, d := range []string{q.dir, q.pendingDir, q.processingDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create queue dir %s: %w", d, err)
		}
	}

	return q, nil
}

// Submit persists payload under pending, keyed by id. The write goes to a
// temporary file first and is renamed into place so that a reader can never
// observe a half-written item.
func (q *Queue) Submit(id string, payload []byte) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("queue item id is required")
	}

	tmp, err := os.CreateTemp(q.dir, id+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for item %s: %w", id, err)
	}

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write item %s: %w", id, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to sync item %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close item %s: %w", id, err)
	}

	target := filepath.Join(q.pendingDir, id+itemSuffix)
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to publish item %s: %w", id, err)
	}

	log.Debugf("[fsqueue] item %s submitted to %s", id, target)
	return nil
}

// ClaimNext atomically moves the oldest pending item to processing and
// returns its id and payload. ok is false when nothing is pending.
func (q *Queue) ClaimNext() (id string, payload []byte, ok bool, err error) {
	entries, err := q.pendingOldestFirst()
	if err != nil {
		return "", nil, false, err
	}
	if len(entries) == 0 {
		return "", nil, false, nil
	}

	name := entries[0]
	id = strings.TrimSuffix(name, itemSuffix)
	src := filepath.Join(q.pendingDir, name)
	dst := filepath.Join(q.processingDir, name)

	if err := os.Rename(src, dst); err != nil {
		return "", nil, false, fmt.Errorf("failed to claim item %s: %w", id, err)
	}

	payload, err = os.ReadFile(dst)
	if err != nil {
		return "", nil, false, fmt.Errorf("failed to read claimed item %s: %w", id, err)
	}

	return id, payload, true, nil
}

// Complete removes a processing item. Call only after the associated side
// effect is durably committed.
func (q *Queue) Complete(id string) error {
	path := filepath.Join(q.processingDir, id+itemSuffix)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to complete item %s: %w", id, err)
	}
	log.Debugf("[fsqueue] item %s completed", id)
	return nil
}

// PendingCount reports how many items await a claim.
func (q *Queue) PendingCount() (int, error) {
	entries, err := q.pendingOldestFirst()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ProcessingCount reports how many items are claimed but not completed.
// After a crash this includes items stranded by the previous process.
func (q *Queue) ProcessingCount() (int, error) {
	names, err := q.listItems(q.processingDir)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

func (q *Queue) listItems(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), itemSuffix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// pendingOldestFirst orders by modification time. This is an ordering hint,
// not a strict FIFO guarantee under concurrent writers.
func (q *Queue) pendingOldestFirst() ([]string, error) {
	names, err := q.listItems(q.pendingDir)
	if err != nil {
		return nil, err
	}

	type item struct {
		name  string
		mtime int64
	}
	items := make([]item, 0, len(names))
	for _, name := range names {
		info, err := os.Stat(filepath.Join(q.pendingDir, name))
		if err != nil {
			// Raced with the consumer or an operator; skip.
			continue
		}
		items = append(items, item{name: name, mtime: info.ModTime().UnixNano()})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].mtime == items[j].mtime {
			return items[i].name < items[j].name
		}
		return items[i].mtime < items[j].mtime
	})

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.name
	}
	return out, nil
}
