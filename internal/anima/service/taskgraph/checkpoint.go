package taskgraph

import (
	"context"
	"fmt"
	"sync"

	"github.com/boltdb/bolt"
	"github.com/jinzhu/copier"

	"github.com/kiosk404/anima/internal/anima/pkg/errno"
	"github.com/kiosk404/anima/pkg/utils/jsonx"
)

// Checkpointer persists machine state at node boundaries so a crashed or
// paused run resumes from the last completed node.
type Checkpointer interface {
	// Save stores the state under the thread id, replacing any previous
	// checkpoint.
	Save(ctx context.Context, threadID string, state *State) error

	// Load returns the last saved state or errno.ErrNotFound.
	Load(ctx context.Context, threadID string) (*State, error)

	// Delete removes the checkpoint once a run finishes.
	Delete(ctx context.Context, threadID string) error
}

// MemoryCheckpointer keeps checkpoints in process memory. Used by tests
// and single-run invocations that need no durability.
type MemoryCheckpointer struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMemoryCheckpointer creates an empty in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{states: make(map[string]*State)}
}

func (m *MemoryCheckpointer) Save(_ context.Context, threadID string, state *State) error {
	snapshot := &State{}
	if err := copier.CopyWithOption(snapshot, state, copier.Option{DeepCopy: true}); err != nil {
		return err
	}
	m.mu.Lock()
	m.states[threadID] = snapshot
	m.mu.Unlock()
	return nil
}

func (m *MemoryCheckpointer) Load(_ context.Context, threadID string) (*State, error) {
	m.mu.RLock()
	saved, ok := m.states[threadID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no checkpoint for thread %s", errno.ErrNotFound, threadID)
	}
	out := &State{}
	if err := copier.CopyWithOption(out, saved, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MemoryCheckpointer) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	delete(m.states, threadID)
	m.mu.Unlock()
	return nil
}

const checkpointBucket = "taskgraph_checkpoints"

// BoltCheckpointer stores checkpoints in a bolt bucket keyed by thread id.
type BoltCheckpointer struct {
	db *bolt.DB
}

// NewBoltCheckpointer creates the bucket if needed.
func NewBoltCheckpointer(db *bolt.DB) (*BoltCheckpointer, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(checkpointBucket))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &BoltCheckpointer{db: db}, nil
}

func (b *BoltCheckpointer) Save(_ context.Context, threadID string, state *State) error {
	data, err := jsonx.Marshal(state)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(checkpointBucket)).Put([]byte(threadID), data)
	})
}

func (b *BoltCheckpointer) Load(_ context.Context, threadID string) (*State, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(checkpointBucket)).Get([]byte(threadID))
		if raw == nil {
			return fmt.Errorf("%w: no checkpoint for thread %s", errno.ErrNotFound, threadID)
		}
		data = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	state := &State{}
	if err := jsonx.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (b *BoltCheckpointer) Delete(_ context.Context, threadID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(checkpointBucket)).Delete([]byte(threadID))
	})
}
