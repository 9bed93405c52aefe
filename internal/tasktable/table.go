// Package tasktable filters and sorts a fetched task list without ever
// modifying it.
package tasktable

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/planwise/internal/model"
)

type Column string

const (
	ColumnTitle    Column = "title"
	ColumnDueDate  Column = "dueDate"
	ColumnStatus   Column = "status"
	ColumnPriority Column = "priority"
)

// Filterable lists the columns SetFilter accepts, in display order.
var Filterable = []Column{ColumnTitle, ColumnStatus, ColumnPriority}

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

type Table struct {
	original []model.Task
	filters  map[Column]string
	sortKey  Column
	dir      Direction
}

// New copies tasks; later changes to the caller's slice do not leak in.
func New(tasks []model.Task) *Table {
	return &Table{
		original: append([]model.Task(nil), tasks...),
		filters:  make(map[Column]string),
	}
}

// SetFilter sets a case-insensitive substring filter. An empty value
// clears that column's filter.
func (t *Table) SetFilter(col Column, value string) error {
	if !filterable(col) {
		return fmt.Errorf("column %q cannot be filtered", col)
	}
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		delete(t.filters, col)
		return nil
	}
	t.filters[col] = value
	return nil
}

func (t *Table) ClearFilters() {
	clear(t.filters)
}

// SortBy sorts ascending by col, or flips the direction when col is
// already the sort key.
func (t *Table) SortBy(col Column) error {
	if field(model.Task{}, col) == nil {
		return fmt.Errorf("column %q cannot be sorted", col)
	}
	if t.sortKey == col {
		t.dir = 1 - t.dir
		return nil
	}
	t.sortKey, t.dir = col, Asc
	return nil
}

// Sort returns the active sort key and direction. The key is empty until
// SortBy is first called.
func (t *Table) Sort() (Column, Direction) {
	return t.sortKey, t.dir
}

// Rows derives the visible rows from the original list.
func (t *Table) Rows() []model.Task {
	rows := make([]model.Task, 0, len(t.original))
	for _, task := range t.original {
		if t.matches(task) {
			rows = append(rows, task)
		}
	}
	if t.sortKey == "" {
		return rows
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(rows[i], rows[j], t.sortKey)
		if t.dir == Desc {
			return c > 0
		}
		return c < 0
	})
	return rows
}

// Len is the size of the unfiltered list.
func (t *Table) Len() int {
	return len(t.original)
}

func (t *Table) matches(task model.Task) bool {
	for col, want := range t.filters {
		if !strings.Contains(strings.ToLower(*field(task, col)), want) {
			return false
		}
	}
	return true
}

func filterable(col Column) bool {
	for _, c := range Filterable {
		if c == col {
			return true
		}
	}
	return false
}

func field(task model.Task, col Column) *string {
	switch col {
	case ColumnTitle:
		return &task.Title
	case ColumnDueDate:
		return &task.DueDate
	case ColumnStatus:
		return &task.Status
	case ColumnPriority:
		return &task.Priority
	}
	return nil
}

func compare(a, b model.Task, col Column) int {
	if col == ColumnDueDate {
		ta, okA := parseDue(a.DueDate)
		tb, okB := parseDue(b.DueDate)
		if okA && okB {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(*field(a, col), *field(b, col))
}

func parseDue(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(model.DateLayout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
