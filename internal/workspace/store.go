// Package workspace keeps wish collections on the device, one per
// workspace, and reconciles shared workspaces with the remote store.
package workspace

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/wishpair/internal/cadence"
	"github.com/hpungsan/wishpair/internal/errors"
	"github.com/hpungsan/wishpair/internal/wish"
)

// Workspace ids.
const (
	PersonalID   = "personal"
	SharedPrefix = "shared-"
)

// GuestUserID is the author of wishes created on this device.
const GuestUserID = "guest"

const (
	keyActiveWorkspace = "active_workspace"
	keyNotification    = "notification_settings"
	keyLegacyWishes    = "wishes"
	keyLegacyInit      = "initialized"
	maxConflictRetries = 3
)

func wishesKey(ws string) []byte      { return []byte("wishes:" + ws) }
func initializedKey(ws string) []byte { return []byte("initialized:" + ws) }

// IsShared reports whether ws names a shared workspace.
func IsShared(ws string) bool {
	return ws != PersonalID && strings.HasPrefix(ws, SharedPrefix)
}

// NormalizeID trims ws; blank means the personal workspace.
func NormalizeID(ws string) string {
	ws = strings.TrimSpace(ws)
	if ws == "" {
		return PersonalID
	}
	return ws
}

// NewSharedID returns a fresh shared workspace id.
func NewSharedID() string {
	return SharedPrefix + uuid.NewString()
}

// Store persists wish collections in badger. Each collection is one
// value; every mutation rewrites it inside a single transaction.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// OpenStore opens (or creates) a store in dir.
func OpenStore(dir string, log *logrus.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger(log))
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open workspace store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func badgerLogger(log *logrus.Logger) badger.Logger {
	if log == nil {
		return nil
	}
	return log
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the collection for ws, seeding it on first access:
// personal gets the legacy collection (if any) or the samples, shared
// workspaces start empty.
func (s *Store) Load(ws string) ([]wish.Wish, error) {
	ws = NormalizeID(ws)
	var out []wish.Wish
	err := s.update(func(txn *badger.Txn) error {
		var err error
		out, err = s.loadTxn(txn, ws)
		return err
	})
	return out, err
}

// Stored returns the raw stored collection without seeding. present is
// false when nothing was ever written for ws.
func (s *Store) Stored(ws string) (wishes []wish.Wish, present bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		wishes, present, err = readCollection(txn, NormalizeID(ws))
		return err
	})
	return wishes, present, err
}

// Initialized reports whether ws has been seeded.
func (s *Store) Initialized(ws string) (bool, error) {
	var ok bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ok, err = exists(txn, initializedKey(NormalizeID(ws)))
		return err
	})
	return ok, err
}

// Save replaces the collection for ws and marks it initialized.
func (s *Store) Save(ws string, wishes []wish.Wish) error {
	ws = NormalizeID(ws)
	return s.update(func(txn *badger.Txn) error {
		return writeCollection(txn, ws, wishes)
	})
}

// MarkInitialized sets the initialized marker without touching the collection.
func (s *Store) MarkInitialized(ws string) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(initializedKey(NormalizeID(ws)), []byte("true"))
	})
}

// Add prepends w to the collection of ws.
func (s *Store) Add(ws string, w wish.Wish) ([]wish.Wish, error) {
	return s.mutate(ws, func(wishes []wish.Wish) ([]wish.Wish, error) {
		return append([]wish.Wish{w}, wishes...), nil
	})
}

// Update applies fn to the wish with id and refreshes its updatedAt.
// fn cannot change the id or the workspace. An error from fn aborts the
// write.
func (s *Store) Update(ws, id string, fn func(*wish.Wish) error) ([]wish.Wish, error) {
	return s.mutate(ws, func(wishes []wish.Wish) ([]wish.Wish, error) {
		i := indexOf(wishes, id)
		if i < 0 {
			return nil, errors.NewNotFound("wish", id)
		}
		w := &wishes[i]
		origID, origWS := w.ID, w.WorkspaceID
		if err := fn(w); err != nil {
			return nil, err
		}
		w.ID, w.WorkspaceID = origID, origWS
		w.Touch(s.now().UTC())
		return wishes, nil
	})
}

// Toggle flips the status of the wish with id.
func (s *Store) Toggle(ws, id string) ([]wish.Wish, error) {
	return s.mutate(ws, func(wishes []wish.Wish) ([]wish.Wish, error) {
		i := indexOf(wishes, id)
		if i < 0 {
			return nil, errors.NewNotFound("wish", id)
		}
		wishes[i].Toggle(s.now().UTC())
		return wishes, nil
	})
}

// Delete removes the wish with id.
func (s *Store) Delete(ws, id string) ([]wish.Wish, error) {
	return s.mutate(ws, func(wishes []wish.Wish) ([]wish.Wish, error) {
		i := indexOf(wishes, id)
		if i < 0 {
			return nil, errors.NewNotFound("wish", id)
		}
		return append(wishes[:i], wishes[i+1:]...), nil
	})
}

// ActiveWorkspace returns the persisted active workspace id.
func (s *Store) ActiveWorkspace() (string, error) {
	var ws string
	err := s.db.View(func(txn *badger.Txn) error {
		v, err := get(txn, []byte(keyActiveWorkspace))
		ws = string(v)
		return err
	})
	return NormalizeID(ws), err
}

// SetActiveWorkspace persists the active workspace id.
func (s *Store) SetActiveWorkspace(ws string) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyActiveWorkspace), []byte(NormalizeID(ws)))
	})
}

// NotificationSettings returns the saved settings or the defaults.
func (s *Store) NotificationSettings() (wish.NotificationSettings, error) {
	settings := wish.DefaultNotificationSettings()
	err := s.db.View(func(txn *badger.Txn) error {
		v, err := get(txn, []byte(keyNotification))
		if err != nil || v == nil {
			return err
		}
		if err := json.Unmarshal(v, &settings); err != nil {
			settings = wish.DefaultNotificationSettings()
		}
		return nil
	})
	return settings, err
}

// SaveNotificationSettings validates and persists settings.
func (s *Store) SaveNotificationSettings(settings wish.NotificationSettings) (wish.NotificationSettings, error) {
	settings.AnnoyanceLevel = cadence.Normalize(settings.AnnoyanceLevel)
	switch settings.TimeWindow {
	case wish.WindowMorning, wish.WindowNoon, wish.WindowNight:
	case "":
		settings.TimeWindow = wish.WindowNoon
	default:
		return settings, errors.NewInvalidRequest("timeWindow must be morning, noon, or night")
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return settings, err
	}
	err = s.update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyNotification), data)
	})
	return settings, err
}

func (s *Store) mutate(ws string, fn func([]wish.Wish) ([]wish.Wish, error)) ([]wish.Wish, error) {
	ws = NormalizeID(ws)
	var out []wish.Wish
	err := s.update(func(txn *badger.Txn) error {
		wishes, err := s.loadTxn(txn, ws)
		if err != nil {
			return err
		}
		next, err := fn(wishes)
		if err != nil {
			return err
		}
		out = next
		return writeCollection(txn, ws, next)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) loadTxn(txn *badger.Txn, ws string) ([]wish.Wish, error) {
	initialized, err := exists(txn, initializedKey(ws))
	if err != nil {
		return nil, err
	}
	if initialized {
		wishes, _, err := readCollection(txn, ws)
		return wishes, err
	}

	seed := []wish.Wish{}
	if ws == PersonalID {
		seed, err = legacyCollection(txn)
		if err != nil {
			return nil, err
		}
		if len(seed) == 0 {
			seed = SampleWishes(ws, s.now())
		}
	}
	if err := writeCollection(txn, ws, seed); err != nil {
		return nil, err
	}
	return seed, nil
}

// legacyCollection reads the pre-workspace store, retagged as personal.
// It only counts when both the collection and its marker exist.
func legacyCollection(txn *badger.Txn) ([]wish.Wish, error) {
	marked, err := exists(txn, []byte(keyLegacyInit))
	if err != nil || !marked {
		return nil, err
	}
	raw, err := get(txn, []byte(keyLegacyWishes))
	if err != nil || raw == nil {
		return nil, err
	}
	var wishes []wish.Wish
	if err := json.Unmarshal(raw, &wishes); err != nil {
		return nil, nil
	}
	for i := range wishes {
		wishes[i].WorkspaceID = PersonalID
	}
	return wishes, nil
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = s.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func readCollection(txn *badger.Txn, ws string) ([]wish.Wish, bool, error) {
	raw, err := get(txn, wishesKey(ws))
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return []wish.Wish{}, false, nil
	}
	var wishes []wish.Wish
	if err := json.Unmarshal(raw, &wishes); err != nil || wishes == nil {
		return []wish.Wish{}, true, nil
	}
	return wishes, true, nil
}

func writeCollection(txn *badger.Txn, ws string, wishes []wish.Wish) error {
	if wishes == nil {
		wishes = []wish.Wish{}
	}
	data, err := json.Marshal(wishes)
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	if err := txn.Set(wishesKey(ws), data); err != nil {
		return err
	}
	return txn.Set(initializedKey(ws), []byte("true"))
}

// get returns the value for key, or nil when absent.
func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func indexOf(wishes []wish.Wish, id string) int {
	for i := range wishes {
		if wishes[i].ID == id {
			return i
		}
	}
	return -1
}
