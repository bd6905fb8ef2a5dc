package domain

import (
	"reflect"
	"testing"
)

func ids(tasks []Task) []ID {
	out := make([]ID, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func sampleBoard() []Task {
	return []Task{
		{ID: "a1", Status: "A"},
		{ID: "b1", Status: "B"},
		{ID: "a2", Status: "A"},
		{ID: "b2", Status: "B"},
		{ID: "a3", Status: "A"},
	}
}

func TestPosition(t *testing.T) {
	board := sampleBoard()
	status, pos, ok := Position(board, "a3")
	if !ok || status != "A" || pos != 2 {
		t.Fatalf("unexpected position: %s %d %v", status, pos, ok)
	}
	if _, _, ok := Position(board, "missing"); ok {
		t.Fatalf("expected missing task to have no position")
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		name      string
		id        ID
		status    string
		pos       int
		wantA     []ID
		wantB     []ID
		wantFound bool
	}{
		{name: "to front of other column", id: "a2", status: "B", pos: 0, wantA: []ID{"a1", "a3"}, wantB: []ID{"a2", "b1", "b2"}, wantFound: true},
		{name: "to end of other column", id: "a1", status: "B", pos: 2, wantA: []ID{"a2", "a3"}, wantB: []ID{"b1", "b2", "a1"}, wantFound: true},
		{name: "clamped past end", id: "a1", status: "B", pos: 99, wantA: []ID{"a2", "a3"}, wantB: []ID{"b1", "b2", "a1"}, wantFound: true},
		{name: "negative clamps to front", id: "b2", status: "A", pos: -4, wantA: []ID{"b2", "a1", "a2", "a3"}, wantB: []ID{"b1"}, wantFound: true},
		{name: "down within column", id: "a1", status: "A", pos: 2, wantA: []ID{"a2", "a3", "a1"}, wantB: []ID{"b1", "b2"}, wantFound: true},
		{name: "up within column", id: "a3", status: "A", pos: 0, wantA: []ID{"a3", "a1", "a2"}, wantB: []ID{"b1", "b2"}, wantFound: true},
		{name: "into empty column", id: "b1", status: "C", pos: 0, wantA: []ID{"a1", "a2", "a3"}, wantB: []ID{"b2"}, wantFound: true},
		{name: "missing task", id: "zz", status: "A", pos: 0, wantA: []ID{"a1", "a2", "a3"}, wantB: []ID{"b1", "b2"}, wantFound: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := sampleBoard()
			before := ids(board)
			out, found := Move(board, tt.id, tt.status, tt.pos)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if got := ids(ColumnTasks(out, "A")); !reflect.DeepEqual(got, tt.wantA) {
				t.Fatalf("column A = %v, want %v", got, tt.wantA)
			}
			if got := ids(ColumnTasks(out, "B")); !reflect.DeepEqual(got, tt.wantB) {
				t.Fatalf("column B = %v, want %v", got, tt.wantB)
			}
			if len(out) != len(board) {
				t.Fatalf("move changed task count: %d", len(out))
			}
			if !reflect.DeepEqual(ids(board), before) {
				t.Fatalf("input slice was modified: %v", ids(board))
			}
			if found {
				status, _, _ := Position(out, tt.id)
				if status != tt.status {
					t.Fatalf("moved task has status %q, want %q", status, tt.status)
				}
			}
		})
	}
}

func TestMoveKeepsColumnPositionsDense(t *testing.T) {
	board := sampleBoard()
	for _, id := range ids(board) {
		for _, status := range []string{"A", "B"} {
			for pos := 0; pos <= 5; pos++ {
				out, _ := Move(board, id, status, pos)
				want := ClampPosition(pos, CountInColumn(board, status, id))
				gotStatus, gotPos, _ := Position(out, id)
				if gotStatus != status || gotPos != want {
					t.Fatalf("move(%s,%s,%d) landed at %s/%d, want %s/%d", id, status, pos, gotStatus, gotPos, status, want)
				}
			}
		}
	}
}

func TestAppendRemoveReplace(t *testing.T) {
	board := sampleBoard()
	board = Append(board, Task{ID: "b3", Status: "B"})
	if got := ids(ColumnTasks(board, "B")); !reflect.DeepEqual(got, []ID{"b1", "b2", "b3"}) {
		t.Fatalf("append: %v", got)
	}

	board, ok := Replace(board, Task{ID: "b2", Status: "B", Title: "renamed"})
	if !ok {
		t.Fatalf("replace reported missing task")
	}
	if board[IndexOf(board, "b2")].Title != "renamed" || IndexOf(board, "b2") != 3 {
		t.Fatalf("replace lost position or content: %+v", board)
	}
	if _, ok := Replace(board, Task{ID: "nope"}); ok {
		t.Fatalf("replace of missing task should report false")
	}

	board, ok = Remove(board, "a1")
	if !ok || IndexOf(board, "a1") != -1 || len(board) != 5 {
		t.Fatalf("remove failed: %v", ids(board))
	}
	if _, ok := Remove(board, "a1"); ok {
		t.Fatalf("second remove should report false")
	}
}

func TestOrderingFollowsLayout(t *testing.T) {
	layout := Layout{{ID: "B"}, {ID: "A"}, {ID: "C"}}
	got := Ordering(sampleBoard(), layout)
	want := []ColumnOrder{
		{Status: "B", IDs: []ID{"b1", "b2"}},
		{Status: "A", IDs: []ID{"a1", "a2", "a3"}},
		{Status: "C", IDs: []ID{}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected ordering: %#v", got)
	}
}

func TestConformDropsUnknownStatus(t *testing.T) {
	board := append(sampleBoard(), Task{ID: "x", Status: "archived"})
	out, dropped := Conform(board, Layout{{ID: "A"}, {ID: "B"}})
	if dropped != 1 || IndexOf(out, "x") != -1 || len(out) != 5 {
		t.Fatalf("unexpected conform result: dropped=%d ids=%v", dropped, ids(out))
	}
}
