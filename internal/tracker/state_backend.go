package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// persistedState is the full durable snapshot of a Store. Key names match
// the storage slices of older installations so their exports remain
// importable.
type persistedState struct {
	Records        []Record              `json:"activeBosses"`
	Patrols        []PatrolEntry         `json:"patrolRecords"`
	Stats          map[string]*BossStats `json:"bossStatistics"`
	ScanRegion     *ScanRegion           `json:"scanArea,omitempty"`
	Webhooks       WebhookConfig         `json:"webhooks"`
	Sync           SyncConfig            `json:"syncConfig"`
	InstallationID string                `json:"installationId"`
	AppliedImports []string              `json:"appliedImports,omitempty"`
	LastID         int64                 `json:"lastId,omitempty"`

	// Slices that failed to decode and were reset to their empty default.
	// Populated by decodeSnapshot, never serialized.
	decodeWarnings []string
}

func newPersistedState() *persistedState {
	return &persistedState{
		Stats: map[string]*BossStats{},
		Sync:  DefaultSyncConfig(),
	}
}

// decodeSnapshot decodes a snapshot tolerantly: a corrupt slice resets to
// its empty default and is reported in decodeWarnings instead of failing
// the whole load. A corrupt outer document resets everything.
func decodeSnapshot(data []byte) *persistedState {
	state := newPersistedState()
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		state.decodeWarnings = append(state.decodeWarnings, "snapshot")
		return state
	}
	decodeField(raw, "activeBosses", &state.Records, state)
	decodeField(raw, "patrolRecords", &state.Patrols, state)
	decodeField(raw, "bossStatistics", &state.Stats, state)
	decodeField(raw, "scanArea", &state.ScanRegion, state)
	decodeField(raw, "webhooks", &state.Webhooks, state)
	decodeField(raw, "syncConfig", &state.Sync, state)
	decodeField(raw, "installationId", &state.InstallationID, state)
	decodeField(raw, "appliedImports", &state.AppliedImports, state)
	decodeField(raw, "lastId", &state.LastID, state)
	if state.Stats == nil {
		state.Stats = map[string]*BossStats{}
	}
	return state
}

func decodeField[T any](raw map[string]json.RawMessage, key string, dst *T, state *persistedState) {
	payload, ok := raw[key]
	if !ok || len(payload) == 0 {
		return
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		var zero T
		*dst = zero
		state.decodeWarnings = append(state.decodeWarnings, key)
	}
}

// StateBackend persists Store snapshots. Load returning (nil, nil) means no
// prior state exists.
type StateBackend interface {
	Load() (*persistedState, error)
	Save(state *persistedState) error
}

// JSONFileStateBackend stores the snapshot as a single JSON file, written
// atomically via a temp file and rename.
type JSONFileStateBackend struct {
	path string
}

func NewJSONFileStateBackend(path string) *JSONFileStateBackend {
	return &JSONFileStateBackend{path: path}
}

func (b *JSONFileStateBackend) Load() (*persistedState, error) {
	if b == nil || b.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeSnapshot(data), nil
}

func (b *JSONFileStateBackend) Save(state *persistedState) error {
	if b == nil || b.path == "" || state == nil {
		return nil
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// InMemoryStateBackend keeps the snapshot in process memory, deep-copied on
// both sides so callers cannot alias stored state. Used by tests and the
// memory:// profile.
type InMemoryStateBackend struct {
	mu       sync.Mutex
	snapshot []byte
}

func NewInMemoryStateBackend() *InMemoryStateBackend {
	return &InMemoryStateBackend{}
}

func (b *InMemoryStateBackend) Load() (*persistedState, error) {
	if b == nil {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return nil, nil
	}
	return decodeSnapshot(b.snapshot), nil
}

func (b *InMemoryStateBackend) Save(state *persistedState) error {
	if b == nil || state == nil {
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = data
	return nil
}
