package board

import (
	"kanban-sync/domain"
)

// SyncState tells whether the remote has confirmed the local position of a
// task.
type SyncState string

const (
	SyncSynced   SyncState = "synced"
	SyncPending  SyncState = "pending"
	SyncUnsynced SyncState = "unsynced"
)

// marker tracks the latest move of a task. Tasks without a marker are synced.
type marker struct {
	state SyncState
	seq   uint64
}

// TaskView is a task as shown on the board.
type TaskView struct {
	Task domain.Task `json:"task"`
	Sync SyncState   `json:"sync"`
}

// ColumnView is one column with its tasks in order.
type ColumnView struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Tasks []TaskView `json:"tasks"`
}

// View is a consistent picture of the whole board.
type View struct {
	Board     string       `json:"board"`
	Columns   []ColumnView `json:"columns"`
	Loading   bool         `json:"loading"`
	LastError string       `json:"lastError,omitempty"`
	ErrorKind string       `json:"errorKind,omitempty"`
}

// Items returns a copy of every task in board order.
func (s *Store) Items() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, len(s.items))
	for i := range s.items {
		out[i] = s.items[i].Clone()
	}
	return out
}

// Column returns the tasks of one column in order.
func (s *Store) Column(status string) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ColumnTasks(s.items, status)
}

// Task returns a copy of the task with the given id.
func (s *Store) Task(id domain.ID) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := domain.IndexOf(s.items, id)
	if i < 0 {
		return domain.Task{}, false
	}
	return s.items[i].Clone(), true
}

// Loading reports whether a load is waiting for the remote.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LastError returns the most recent remote failure, or nil. A successful load
// clears it.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// SyncState reports the sync state of a task. Unknown ids are synced.
func (s *Store) SyncState(id domain.ID) SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncStateLocked(id)
}

func (s *Store) syncStateLocked(id domain.ID) SyncState {
	if mk, ok := s.markers[id]; ok {
		return mk.state
	}
	return SyncSynced
}

// Columns groups the board by layout.
func (s *Store) Columns() []ColumnView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.columnsLocked()
}

func (s *Store) columnsLocked() []ColumnView {
	out := make([]ColumnView, 0, len(s.layout))
	for _, c := range s.layout {
		col := ColumnView{ID: c.ID, Name: c.Name, Tasks: []TaskView{}}
		for i := range s.items {
			if s.items[i].Status == c.ID {
				col.Tasks = append(col.Tasks, TaskView{Task: s.items[i].Clone(), Sync: s.syncStateLocked(s.items[i].ID)})
			}
		}
		out = append(out, col)
	}
	return out
}

// View returns the board grouped by column together with its load state.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := View{
		Board:   s.id,
		Columns: s.columnsLocked(),
		Loading: s.loading,
	}
	if s.lastErr != nil {
		v.LastError = s.lastErr.Error()
		v.ErrorKind = string(domain.KindOf(s.lastErr))
	}
	return v
}
