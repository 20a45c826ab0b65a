package workspace

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/wishpair/internal/cadence"
	"github.com/hpungsan/wishpair/internal/errors"
	"github.com/hpungsan/wishpair/internal/reminder"
	"github.com/hpungsan/wishpair/internal/wish"
)

// Remote is the shared store a shared workspace reconciles against.
type Remote interface {
	Fetch(ctx context.Context, workspaceID string) ([]wish.Wish, error)
	Push(ctx context.Context, workspaceID string, wishes []wish.Wish) error
}

// Options configures optional collaborators of a Workspace.
type Options struct {
	// Remote is nil when no shared store is configured; shared workspaces
	// then behave like local ones.
	Remote Remote
	// Scheduler receives the reminder plan after every change. Nil
	// disables local reminders.
	Scheduler reminder.LocalScheduler
	Picker    cadence.Picker
	Log       *logrus.Logger
}

// Workspace is the device-side wish service. All reads and writes go
// through one mutex so the poller and user edits never interleave.
type Workspace struct {
	mu     sync.Mutex
	store  *Store
	remote Remote
	sched  reminder.LocalScheduler
	picker cadence.Picker
	log    *logrus.Logger
	now    func() time.Time
	active string
}

// New restores the persisted active workspace.
func New(store *Store, opts Options) (*Workspace, error) {
	active, err := store.ActiveWorkspace()
	if err != nil {
		return nil, err
	}
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	return &Workspace{
		store:  store,
		remote: opts.Remote,
		sched:  opts.Scheduler,
		picker: opts.Picker,
		log:    log,
		now:    time.Now,
		active: active,
	}, nil
}

// Active returns the active workspace id.
func (w *Workspace) Active() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Read returns the active collection. For a shared workspace the remote
// copy wins when it has data or the local copy is empty; otherwise the
// local copy is pushed. Remote failures fall back to the local copy.
func (w *Workspace) Read(ctx context.Context) ([]wish.Wish, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.read(ctx)
}

func (w *Workspace) read(ctx context.Context) ([]wish.Wish, error) {
	ws := w.active
	local, err := w.store.Load(ws)
	if err != nil {
		return nil, err
	}
	if !IsShared(ws) || w.remote == nil {
		return local, nil
	}

	entry := w.log.WithField("workspace_id", ws)
	remote, err := w.remote.Fetch(ctx, ws)
	if err != nil {
		entry.WithError(err).Warn("remote fetch failed, using local copy")
		return local, nil
	}

	if len(remote) > 0 || len(local) == 0 {
		for i := range remote {
			remote[i].WorkspaceID = ws
		}
		if err := w.store.Save(ws, remote); err != nil {
			return nil, err
		}
		w.reschedule(ctx, remote)
		return remote, nil
	}

	entry.WithField("count", len(local)).Info("remote empty, pushing local copy")
	w.push(ctx, ws, local)
	return local, nil
}

// AddInput describes a new wish. Empty enum fields take defaults.
type AddInput struct {
	Title       string
	Category    string
	Season      *string
	Priority    string
	BudgetRange string
	Memo        *string
}

// Add prepends a new wish to the active workspace.
func (w *Workspace) Add(ctx context.Context, in AddInput) (*wish.Wish, error) {
	category := wish.CategoryExperience
	if strings.TrimSpace(in.Category) != "" {
		c, err := wish.ParseCategory(in.Category)
		if err != nil {
			return nil, err
		}
		category = c
	}
	priority := wish.PriorityMid
	if strings.TrimSpace(in.Priority) != "" {
		p, err := wish.ParsePriority(in.Priority)
		if err != nil {
			return nil, err
		}
		priority = p
	}
	budget, err := wish.ParseBudgetRange(in.BudgetRange)
	if err != nil {
		return nil, err
	}

	now := w.now().UTC()
	item := wish.Wish{
		ID:          NewWishID(),
		Title:       strings.TrimSpace(in.Title),
		Category:    category,
		Season:      wish.NormalizeText(in.Season),
		Priority:    priority,
		BudgetRange: budget,
		Memo:        wish.NormalizeText(in.Memo),
		Status:      wish.StatusTodo,
		CreatedBy:   GuestUserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	item.WorkspaceID = w.active
	if _, err := w.mutated(ctx, func(ws string) ([]wish.Wish, error) {
		return w.store.Add(ws, item)
	}); err != nil {
		return nil, err
	}
	return &item, nil
}

// Patch holds the fields an edit may change. Nil means unchanged.
type Patch struct {
	Title       *string
	Category    *string
	Season      *string
	Priority    *string
	BudgetRange *string
	Memo        *string
	Status      *string
}

// Update edits the wish with id in the active workspace.
func (w *Workspace) Update(ctx context.Context, id string, p Patch) (*wish.Wish, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now().UTC()
	wishes, err := w.mutated(ctx, func(ws string) ([]wish.Wish, error) {
		return w.store.Update(ws, id, func(item *wish.Wish) error {
			return p.apply(item, now)
		})
	})
	if err != nil {
		return nil, err
	}
	return find(wishes, id), nil
}

func (p Patch) apply(item *wish.Wish, now time.Time) error {
	if p.Title != nil {
		item.Title = strings.TrimSpace(*p.Title)
	}
	if p.Category != nil {
		c, err := wish.ParseCategory(*p.Category)
		if err != nil {
			return err
		}
		item.Category = c
	}
	if p.Season != nil {
		item.Season = wish.NormalizeText(p.Season)
	}
	if p.Priority != nil {
		pr, err := wish.ParsePriority(*p.Priority)
		if err != nil {
			return err
		}
		item.Priority = pr
	}
	if p.BudgetRange != nil {
		b, err := wish.ParseBudgetRange(*p.BudgetRange)
		if err != nil {
			return err
		}
		item.BudgetRange = b
	}
	if p.Memo != nil {
		item.Memo = wish.NormalizeText(p.Memo)
	}
	if p.Status != nil {
		s, err := wish.ParseStatus(*p.Status)
		if err != nil {
			return err
		}
		if s != item.Status {
			item.SetStatus(s, now)
		}
	}
	return item.Validate()
}

// Toggle flips the status of the wish with id.
func (w *Workspace) Toggle(ctx context.Context, id string) (*wish.Wish, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	wishes, err := w.mutated(ctx, func(ws string) ([]wish.Wish, error) {
		return w.store.Toggle(ws, id)
	})
	if err != nil {
		return nil, err
	}
	return find(wishes, id), nil
}

// Delete removes the wish with id.
func (w *Workspace) Delete(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.mutated(ctx, func(ws string) ([]wish.Wish, error) {
		return w.store.Delete(ws, id)
	})
	return err
}

// mutated runs a local write, then pushes and reschedules. Callers hold mu.
func (w *Workspace) mutated(ctx context.Context, write func(ws string) ([]wish.Wish, error)) ([]wish.Wish, error) {
	ws := w.active
	wishes, err := write(ws)
	if err != nil {
		return nil, err
	}
	if IsShared(ws) {
		w.push(ctx, ws, wishes)
	}
	w.reschedule(ctx, wishes)
	return wishes, nil
}

// Switch makes ws active. A non-empty snapshot seeds ws only when its
// local collection is missing or empty; a seeded shared workspace is
// pushed. The reconciled collection of ws is returned.
func (w *Workspace) Switch(ctx context.Context, ws string, snapshot []wish.Wish) ([]wish.Wish, error) {
	ws = NormalizeID(ws)
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(snapshot) > 0 {
		existing, _, err := w.store.Stored(ws)
		if err != nil {
			return nil, err
		}
		if len(existing) == 0 {
			seed := cleanSnapshot(ws, snapshot, w.now().UTC())
			if err := w.store.Save(ws, seed); err != nil {
				return nil, err
			}
			w.log.WithFields(logrus.Fields{"workspace_id": ws, "count": len(seed)}).Info("seeded workspace from snapshot")
			if IsShared(ws) {
				w.push(ctx, ws, seed)
			}
		}
	}

	if err := w.store.SetActiveWorkspace(ws); err != nil {
		return nil, err
	}
	w.active = ws
	wishes, err := w.read(ctx)
	if err != nil {
		return nil, err
	}
	w.reschedule(ctx, wishes)
	return wishes, nil
}

// CreateShared switches to a new, empty shared workspace.
func (w *Workspace) CreateShared(ctx context.Context) (string, error) {
	id := NewSharedID()
	if _, err := w.Switch(ctx, id, nil); err != nil {
		return "", err
	}
	return id, nil
}

// Reset returns to the personal workspace.
func (w *Workspace) Reset(ctx context.Context) ([]wish.Wish, error) {
	return w.Switch(ctx, PersonalID, nil)
}

// ShareLink encodes the active workspace and its collection.
func (w *Workspace) ShareLink(scheme string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wishes, err := w.store.Load(w.active)
	if err != nil {
		return "", err
	}
	return EncodeLink(scheme, w.active, wishes)
}

// Settings returns the notification settings.
func (w *Workspace) Settings() (wish.NotificationSettings, error) {
	return w.store.NotificationSettings()
}

// SaveSettings persists settings and reinstalls the reminder plan.
func (w *Workspace) SaveSettings(ctx context.Context, settings wish.NotificationSettings) (wish.NotificationSettings, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	saved, err := w.store.SaveNotificationSettings(settings)
	if err != nil {
		return saved, err
	}
	wishes, err := w.store.Load(w.active)
	if err != nil {
		return saved, err
	}
	w.reschedule(ctx, wishes)
	return saved, nil
}

// push is best effort; failures are logged.
func (w *Workspace) push(ctx context.Context, ws string, wishes []wish.Wish) {
	if w.remote == nil {
		return
	}
	if err := w.remote.Push(ctx, ws, wishes); err != nil {
		w.log.WithError(err).WithField("workspace_id", ws).Warn("remote push failed")
	}
}

func (w *Workspace) reschedule(ctx context.Context, wishes []wish.Wish) {
	if w.sched == nil {
		return
	}
	settings, err := w.store.NotificationSettings()
	if err != nil {
		w.log.WithError(err).Warn("load notification settings")
		return
	}
	n, err := reminder.Apply(ctx, w.sched, wishes, settings, w.picker)
	if err != nil {
		w.log.WithError(err).Warn("schedule reminders")
		return
	}
	w.log.WithField("scheduled", n).Debug("reminders rescheduled")
}

// NewWishID returns an id for a wish created on this device.
func NewWishID() string {
	return "w-" + strings.ToLower(ulid.Make().String())
}

// cleanSnapshot copies snapshot into ws, mapping what another device sent
// onto valid wishes: unknown enums take their defaults, a blank title
// becomes DefaultTitle, a missing id is minted, and repeated ids keep
// only the first occurrence.
func cleanSnapshot(ws string, snapshot []wish.Wish, now time.Time) []wish.Wish {
	seen := make(map[string]struct{}, len(snapshot))
	out := make([]wish.Wish, 0, len(snapshot))
	for _, in := range snapshot {
		item := in.Clone()
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			item.ID = NewWishID()
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}

		item.WorkspaceID = ws
		item.Title = strings.TrimSpace(item.Title)
		if item.Title == "" {
			item.Title = wish.DefaultTitle
		}
		item.Category = wish.CategoryOr(string(item.Category))
		item.Priority = wish.PriorityOr(string(item.Priority))
		item.Status = wish.StatusOr(string(item.Status))
		if item.BudgetRange != nil {
			item.BudgetRange = wish.BudgetRangeOr(string(*item.BudgetRange))
		}
		item.Season = wish.NormalizeText(item.Season)
		item.Memo = wish.NormalizeText(item.Memo)
		if strings.TrimSpace(item.CreatedBy) == "" {
			item.CreatedBy = GuestUserID
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = item.CreatedAt
		}
		out = append(out, item)
	}
	return out
}

func find(wishes []wish.Wish, id string) *wish.Wish {
	if i := indexOf(wishes, id); i >= 0 {
		w := wishes[i]
		return &w
	}
	return nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.NewInvalidRequest("wish id is required")
	}
	return nil
}
