// Package board keeps a kanban board consistent with the remote API that owns
// it. Moves are applied locally before the remote hears about them; every
// other change waits for the remote before touching local state.
package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kanban-sync/cache"
	"kanban-sync/domain"
	"kanban-sync/notify"
)

// Remote is the API that owns the board.
type Remote interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, n domain.NewTask) (domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) (domain.Task, error)
	MoveTask(ctx context.Context, m domain.MoveRequest) error
	DeleteTask(ctx context.Context, id domain.ID) error
	AddComment(ctx context.Context, id domain.ID, in domain.CommentInput) (*domain.Comment, error)
}

// Config carries the collaborators of a Store. Only Layout is required to be
// meaningful; a nil Cache keeps the board in memory only.
type Config struct {
	Layout   domain.Layout
	Cache    cache.Cache
	Notifier notify.Notifier
	Logger   *log.Logger
	Now      func() time.Time
}

// Store owns the local copy of one board.
type Store struct {
	id       string
	remote   Remote
	layout   domain.Layout
	cache    cache.Cache
	notifier notify.Notifier
	logger   *log.Logger
	now      func() time.Time

	mu  sync.RWMutex
	gen uint64
	// items is replaced on every change and never modified in place, so a
	// reference taken under mu stays valid after it is released.
	items    []domain.Task
	loading  bool
	lastErr  error
	markers  map[domain.ID]marker
	moveSeq  uint64
	cacheOff bool
	snapSeq  uint64

	cacheMu      sync.Mutex
	cacheWritten uint64
}

// New creates an empty store for boardID.
func New(boardID string, remote Remote, cfg Config) *Store {
	if remote == nil {
		panic("board.New: remote is nil")
	}
	if len(cfg.Layout) == 0 {
		cfg.Layout = domain.DefaultLayout()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Store{
		id:       boardID,
		remote:   remote,
		layout:   cfg.Layout,
		cache:    cfg.Cache,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		now:      cfg.Now,
		items:    []domain.Task{},
		markers:  make(map[domain.ID]marker),
	}
}

// ID returns the board id.
func (s *Store) ID() string { return s.id }

// Layout returns the columns of the board.
func (s *Store) Layout() domain.Layout {
	return append(domain.Layout(nil), s.layout...)
}

// Load fills the board from the cache, then from the remote. A non-empty
// remote answer replaces whatever the cache provided; an empty one keeps the
// cached tasks.
func (s *Store) Load(ctx context.Context) (err error) {
	const op = "load"
	ctx, m := startOp(ctx, s.logger, op, s.id, "")
	defer func() { m.End(err) }()

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	cached, fromCache := s.readCache(ctx, m)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	if fromCache {
		s.items = cached
		s.markers = make(map[domain.ID]marker)
	}
	s.loading = true
	s.mu.Unlock()

	start := time.Now()
	tasks, rerr := s.remote.ListTasks(ctx)
	m.ObserveRemote(time.Since(start))
	if rerr != nil {
		err = domain.Wrap(domain.KindRemoteLoadFailed, op, "", rerr)
		s.mu.Lock()
		if gen == s.gen {
			s.loading = false
			s.lastErr = err
			m.SetTasks(len(s.items))
		}
		s.mu.Unlock()
		s.notifyFailure(ctx, err)
		return err
	}
	tasks = s.conform(tasks)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.loading = false
	s.lastErr = nil
	replace := len(tasks) > 0 || !fromCache
	if replace {
		s.items = tasks
		s.markers = make(map[domain.ID]marker)
	}
	m.SetTasks(len(s.items))
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if len(tasks) > 0 {
		s.writeCache(ctx, m, snap)
	}
	return nil
}

// MoveItem places the task at index within the column status. index is
// clamped to the column bounds. The local board changes before the remote is
// called and is kept as is when the remote fails.
func (s *Store) MoveItem(ctx context.Context, id domain.ID, status string, index int) (err error) {
	const op = "move"
	ctx, m := startOp(ctx, s.logger, op, s.id, id)
	defer func() { m.End(err) }()

	if !s.layout.Has(status) {
		err = domain.Errorf(domain.KindValidationFailed, op, id, "unknown column %q", status)
		s.notifyFailure(ctx, err)
		return err
	}

	s.mu.Lock()
	curStatus, curPos, ok := domain.Position(s.items, id)
	if !ok {
		s.mu.Unlock()
		err = domain.Errorf(domain.KindNotFound, op, id, "task is not on the board")
		s.notifyFailure(ctx, err)
		return err
	}
	pos := domain.ClampPosition(index, domain.CountInColumn(s.items, status, id))
	if curStatus == status && curPos == pos {
		s.mu.Unlock()
		m.SetNoop()
		return nil
	}
	items, _ := domain.Move(s.items, id, status, pos)
	s.items = items
	s.moveSeq++
	seq := s.moveSeq
	s.markers[id] = marker{state: SyncPending, seq: seq}
	gen := s.gen
	req := domain.MoveRequest{
		Task:     items[domain.IndexOf(items, id)].Clone(),
		Position: pos,
		Ordering: domain.Ordering(items, s.layout),
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.writeCache(ctx, m, snap)

	start := time.Now()
	rerr := s.remote.MoveTask(ctx, req)
	m.ObserveRemote(time.Since(start))
	if rerr != nil {
		err = domain.Wrap(domain.KindRemoteMoveFailed, op, id, rerr)
	}

	s.mu.Lock()
	if gen == s.gen {
		if mk, ok := s.markers[id]; ok && mk.seq == seq {
			if err != nil {
				s.markers[id] = marker{state: SyncUnsynced, seq: seq}
			} else {
				delete(s.markers, id)
			}
		}
		if err != nil {
			s.lastErr = err
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.notifyFailure(ctx, err)
		return err
	}
	return nil
}

// CreateItem creates a task in column status. The task only appears on the
// board once the remote has accepted it.
func (s *Store) CreateItem(ctx context.Context, status string, fields domain.NewTask) (_ domain.Task, err error) {
	const op = "create"
	ctx, m := startOp(ctx, s.logger, op, s.id, "")
	defer func() { m.End(err) }()

	fields.Status = status
	fields = fields.Normalize()
	if err = domain.ValidateNewTask(s.layout, fields); err != nil {
		s.notifyFailure(ctx, err)
		return domain.Task{}, err
	}

	gen := s.generation()
	start := time.Now()
	created, rerr := s.remote.CreateTask(ctx, fields)
	m.ObserveRemote(time.Since(start))
	if rerr != nil {
		err = domain.Wrap(domain.KindRemoteCreateFailed, op, "", rerr)
		s.recordRemoteFailure(gen, err)
		s.notifyFailure(ctx, err)
		return domain.Task{}, err
	}
	if !s.layout.Has(created.Status) {
		if created.Status != "" {
			s.logger.WithFields(log.Fields{"board": s.id, "task": created.ID.String(), "status": created.Status}).
				Warn("remote answered with an unknown column, keeping the requested one")
		}
		created.Status = status
	}
	m.taskID = created.ID

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return created.Clone(), nil
	}
	if items, ok := domain.Replace(s.items, created); ok {
		s.items = items
	} else {
		s.items = domain.Append(s.items, created)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.writeCache(ctx, m, snap)
	s.notifySuccess(ctx, created.ID, "Task created")
	return created.Clone(), nil
}

// UpdateItem merges patch into the task and stores the result remotely. The
// task keeps its column and position; moves go through MoveItem.
func (s *Store) UpdateItem(ctx context.Context, id domain.ID, patch domain.TaskPatch) (_ domain.Task, err error) {
	const op = "update"
	ctx, m := startOp(ctx, s.logger, op, s.id, id)
	defer func() { m.End(err) }()

	if err = domain.ValidatePatch(id, patch); err != nil {
		s.notifyFailure(ctx, err)
		return domain.Task{}, err
	}

	s.mu.RLock()
	gen := s.gen
	i := domain.IndexOf(s.items, id)
	var current domain.Task
	if i >= 0 {
		current = s.items[i].Clone()
	}
	s.mu.RUnlock()
	if i < 0 {
		err = domain.Errorf(domain.KindNotFound, op, id, "task is not on the board")
		s.notifyFailure(ctx, err)
		return domain.Task{}, err
	}

	merged := patch.Apply(current)
	start := time.Now()
	updated, rerr := s.remote.UpdateTask(ctx, merged)
	m.ObserveRemote(time.Since(start))
	if rerr != nil {
		err = domain.Wrap(domain.KindRemoteUpdateFailed, op, id, rerr)
		s.recordRemoteFailure(gen, err)
		s.notifyFailure(ctx, err)
		return domain.Task{}, err
	}
	updated.ID = id

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return updated.Clone(), nil
	}
	if j := domain.IndexOf(s.items, id); j >= 0 {
		updated.Status = s.items[j].Status
		s.items, _ = domain.Replace(s.items, updated)
	} else {
		// Deleted while the update was in flight.
		updated.Status = current.Status
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.writeCache(ctx, m, snap)
	s.notifySuccess(ctx, id, "Task updated")
	return updated.Clone(), nil
}

// DeleteItem removes the task remotely and then from the board.
func (s *Store) DeleteItem(ctx context.Context, id domain.ID) (err error) {
	const op = "delete"
	ctx, m := startOp(ctx, s.logger, op, s.id, id)
	defer func() { m.End(err) }()

	s.mu.RLock()
	gen := s.gen
	exists := domain.IndexOf(s.items, id) >= 0
	s.mu.RUnlock()
	if !exists {
		err = domain.Errorf(domain.KindNotFound, op, id, "task is not on the board")
		s.notifyFailure(ctx, err)
		return err
	}

	start := time.Now()
	rerr := s.remote.DeleteTask(ctx, id)
	m.ObserveRemote(time.Since(start))
	if rerr != nil {
		err = domain.Wrap(domain.KindRemoteDeleteFailed, op, id, rerr)
		s.recordRemoteFailure(gen, err)
		s.notifyFailure(ctx, err)
		return err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.items, _ = domain.Remove(s.items, id)
	delete(s.markers, id)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.writeCache(ctx, m, snap)
	s.notifySuccess(ctx, id, "Task deleted")
	return nil
}

// AddComment appends a comment to the task. When the remote answers without a
// body the comment is built locally with the store clock.
func (s *Store) AddComment(ctx context.Context, id domain.ID, in domain.CommentInput) (_ domain.Comment, err error) {
	const op = "comment"
	ctx, m := startOp(ctx, s.logger, op, s.id, id)
	defer func() { m.End(err) }()

	in, err = domain.ValidateComment(id, in)
	if err != nil {
		s.notifyFailure(ctx, err)
		return domain.Comment{}, err
	}

	s.mu.RLock()
	gen := s.gen
	exists := domain.IndexOf(s.items, id) >= 0
	s.mu.RUnlock()
	if !exists {
		err = domain.Errorf(domain.KindNotFound, op, id, "task is not on the board")
		s.notifyFailure(ctx, err)
		return domain.Comment{}, err
	}

	start := time.Now()
	got, rerr := s.remote.AddComment(ctx, id, in)
	m.ObserveRemote(time.Since(start))
	if rerr != nil {
		err = domain.Wrap(domain.KindRemoteCommentFailed, op, id, rerr)
		s.recordRemoteFailure(gen, err)
		s.notifyFailure(ctx, err)
		return domain.Comment{}, err
	}
	var cm domain.Comment
	if got != nil {
		cm = *got
	} else {
		cm = domain.Comment{
			ID:        domain.ID(uuid.NewString()),
			Commenter: in.Commenter,
			Text:      in.Text,
			Datetime:  s.now().UTC(),
		}
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return cm, nil
	}
	if j := domain.IndexOf(s.items, id); j >= 0 {
		t := s.items[j].Clone()
		t.Comments = append(t.Comments, cm)
		s.items, _ = domain.Replace(s.items, t)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.writeCache(ctx, m, snap)
	s.notifySuccess(ctx, id, "Comment added")
	return cm, nil
}

// Reset empties the board. Responses to requests started before the reset
// no longer change it. The cache is kept for the next Load.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.items = []domain.Task{}
	s.loading = false
	s.lastErr = nil
	s.markers = make(map[domain.ID]marker)
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *Store) recordRemoteFailure(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.lastErr = err
	}
}

// conform drops tasks whose status is not a column of the layout.
func (s *Store) conform(tasks []domain.Task) []domain.Task {
	out, dropped := domain.Conform(tasks, s.layout)
	if dropped > 0 {
		s.logger.WithFields(log.Fields{"board": s.id, "dropped": dropped}).Warn("ignoring tasks with unknown column")
	}
	return out
}

type snapshot struct {
	seq   uint64
	tasks []domain.Task
}

// snapshotLocked captures the board for a cache write. s.mu must be held.
func (s *Store) snapshotLocked() snapshot {
	s.snapSeq++
	return snapshot{seq: s.snapSeq, tasks: s.items}
}

func (s *Store) cacheEnabled() bool {
	if s.cache == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.cacheOff
}

// disableCache switches the store to memory-only operation. Only the first
// failure is logged.
func (s *Store) disableCache(err error) {
	s.mu.Lock()
	first := !s.cacheOff
	s.cacheOff = true
	s.mu.Unlock()
	if first {
		cerr := domain.Wrap(domain.KindCacheUnavailable, "cache", "", err)
		s.logger.WithFields(log.Fields{"board": s.id, "kind": string(domain.KindCacheUnavailable)}).
			WithError(cerr).Warn("local cache unavailable, continuing in memory")
	}
}

func (s *Store) readCache(ctx context.Context, m *opMetrics) ([]domain.Task, bool) {
	if !s.cacheEnabled() {
		return nil, false
	}
	start := time.Now()
	data, ok, err := s.cache.Get(ctx, cache.Key(s.id))
	m.ObserveCache(time.Since(start))
	if err != nil {
		s.disableCache(err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	snap, err := cache.DecodeSnapshot(data)
	if err != nil {
		level := log.WarnLevel
		if errors.Is(err, cache.ErrSnapshotVersion) {
			level = log.InfoLevel
		}
		s.logger.WithFields(log.Fields{"board": s.id}).WithError(err).Log(level, "ignoring cached board")
		return nil, false
	}
	tasks := s.conform(snap.Tasks)
	return tasks, len(tasks) > 0
}

// writeCache stores snap unless a newer snapshot was already written.
func (s *Store) writeCache(ctx context.Context, m *opMetrics, snap snapshot) {
	if !s.cacheEnabled() {
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if snap.seq <= s.cacheWritten {
		return
	}
	data, err := cache.EncodeSnapshot(snap.tasks, s.now())
	if err != nil {
		s.disableCache(err)
		return
	}
	start := time.Now()
	err = s.cache.Set(ctx, cache.Key(s.id), data)
	m.ObserveCache(time.Since(start))
	if err != nil {
		s.disableCache(err)
		return
	}
	s.cacheWritten = snap.seq
}

var failureMessages = map[domain.ErrorKind]string{
	domain.KindNotFound:            "Task not found",
	domain.KindRemoteCreateFailed:  "Could not create task",
	domain.KindRemoteUpdateFailed:  "Could not update task",
	domain.KindRemoteDeleteFailed:  "Could not delete task",
	domain.KindRemoteMoveFailed:    "Could not save the new position of the task",
	domain.KindRemoteLoadFailed:    "Could not load the board",
	domain.KindRemoteCommentFailed: "Could not add comment",
}

func failureMessage(err error) string {
	var e *domain.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Kind == domain.KindValidationFailed && e.Err != nil {
		return "Invalid input: " + e.Err.Error()
	}
	if msg, ok := failureMessages[e.Kind]; ok {
		var t temporary
		if errors.As(err, &t) && t.Temporary() {
			msg += ", try again later"
		}
		return msg
	}
	return err.Error()
}

// temporary is implemented by remote errors that may succeed on retry.
type temporary interface {
	Temporary() bool
}

func (s *Store) notifyFailure(ctx context.Context, err error) {
	n := notify.Notification{
		Board:   s.id,
		Kind:    domain.KindOf(err),
		Level:   notify.LevelError,
		Message: failureMessage(err),
		Time:    s.now().UTC(),
	}
	var e *domain.Error
	if errors.As(err, &e) {
		n.TaskID = e.TaskID
		if e.Kind == domain.KindValidationFailed || e.Kind == domain.KindNotFound {
			n.Level = notify.LevelWarning
		}
	}
	s.notifier.Notify(ctx, n)
}

func (s *Store) notifySuccess(ctx context.Context, id domain.ID, msg string) {
	s.notifier.Notify(ctx, notify.Notification{
		Board:   s.id,
		TaskID:  id,
		Level:   notify.LevelSuccess,
		Message: msg,
		Time:    s.now().UTC(),
	})
}
