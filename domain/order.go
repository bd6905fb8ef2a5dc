package domain

// The board keeps all tasks in one ordered slice. A column is the subsequence
// of tasks sharing a status, so a task's position is its index in that
// subsequence. None of the helpers below modify their input slice.

// ColumnOrder lists the task ids of one column in board order.
type ColumnOrder struct {
	Status string `json:"status"`
	IDs    []ID   `json:"ids"`
}

// IndexOf returns the slice index of the task with the given id, or -1.
func IndexOf(tasks []Task, id ID) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Position returns the status of the task and its index within that column.
func Position(tasks []Task, id ID) (status string, pos int, ok bool) {
	i := IndexOf(tasks, id)
	if i < 0 {
		return "", 0, false
	}
	status = tasks[i].Status
	for j := 0; j < i; j++ {
		if tasks[j].Status == status {
			pos++
		}
	}
	return status, pos, true
}

// ColumnTasks returns copies of the tasks in the given column, in order.
func ColumnTasks(tasks []Task, status string) []Task {
	out := []Task{}
	for i := range tasks {
		if tasks[i].Status == status {
			out = append(out, tasks[i].Clone())
		}
	}
	return out
}

// CountInColumn counts tasks in a column, ignoring the task with id skip.
func CountInColumn(tasks []Task, status string, skip ID) int {
	n := 0
	for i := range tasks {
		if tasks[i].Status == status && tasks[i].ID != skip {
			n++
		}
	}
	return n
}

// ClampPosition limits pos to [0, count].
func ClampPosition(pos, count int) int {
	if pos < 0 {
		return 0
	}
	if pos > count {
		return count
	}
	return pos
}

// Move returns a new ordering in which the task with the given id has the given
// status and sits at pos within that column. pos is clamped. The second result
// is false when id is absent.
func Move(tasks []Task, id ID, status string, pos int) ([]Task, bool) {
	from := IndexOf(tasks, id)
	if from < 0 {
		return tasks, false
	}
	moved := tasks[from].Clone()
	moved.Status = status

	rest := make([]Task, 0, len(tasks))
	rest = append(rest, tasks[:from]...)
	rest = append(rest, tasks[from+1:]...)

	var slots []int
	for i := range rest {
		if rest[i].Status == status {
			slots = append(slots, i)
		}
	}
	pos = ClampPosition(pos, len(slots))

	at := len(rest)
	switch {
	case pos < len(slots):
		at = slots[pos]
	case len(slots) > 0:
		at = slots[len(slots)-1] + 1
	}

	out := make([]Task, 0, len(tasks))
	out = append(out, rest[:at]...)
	out = append(out, moved)
	out = append(out, rest[at:]...)
	return out, true
}

// Append returns a new ordering with t placed last in its column.
func Append(tasks []Task, t Task) []Task {
	out := make([]Task, 0, len(tasks)+1)
	out = append(out, tasks...)
	return append(out, t)
}

// Replace returns a new ordering with the task of the same id swapped for t,
// keeping its place. The second result is false when the id is absent.
func Replace(tasks []Task, t Task) ([]Task, bool) {
	i := IndexOf(tasks, t.ID)
	if i < 0 {
		return tasks, false
	}
	out := append([]Task(nil), tasks...)
	out[i] = t
	return out, true
}

// Remove returns a new ordering without the task with the given id.
func Remove(tasks []Task, id ID) ([]Task, bool) {
	i := IndexOf(tasks, id)
	if i < 0 {
		return tasks, false
	}
	out := make([]Task, 0, len(tasks)-1)
	out = append(out, tasks[:i]...)
	return append(out, tasks[i+1:]...), true
}

// Ordering lists the ids of every column of the layout in board order.
func Ordering(tasks []Task, layout Layout) []ColumnOrder {
	out := make([]ColumnOrder, 0, len(layout))
	for _, c := range layout {
		ids := []ID{}
		for i := range tasks {
			if tasks[i].Status == c.ID {
				ids = append(ids, tasks[i].ID)
			}
		}
		out = append(out, ColumnOrder{Status: c.ID, IDs: ids})
	}
	return out
}

// Conform drops tasks whose status is not a column of the layout and returns
// how many were dropped.
func Conform(tasks []Task, layout Layout) ([]Task, int) {
	out := make([]Task, 0, len(tasks))
	for i := range tasks {
		if layout.Has(tasks[i].Status) {
			out = append(out, tasks[i])
		}
	}
	return out, len(tasks) - len(out)
}

// MoveRequest is what the remote receives when a task is dragged: the task with its new
// status, its position in the target column and the ordering of the whole board.
type MoveRequest struct {
	Task     Task
	Position int
	Ordering []ColumnOrder
}
