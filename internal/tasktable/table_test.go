package tasktable

import (
	"testing"

	"github.com/dukerupert/planwise/internal/model"
)

func sampleTasks() []model.Task {
	return []model.Task{
		{ID: "1", Title: "Essay", DueDate: "2025-03-10", Status: "completed", Priority: "High"},
		{ID: "2", Title: "Lab report", DueDate: "2025-03-04T16:00:00Z", Status: "open", Priority: "Normal"},
		{ID: "3", Title: "Reading", DueDate: "2025-03-04T09:00:00-05:00", Status: "in-progress", Priority: "Medium"},
		{ID: "4", Title: "essay outline", DueDate: "2025-02-28", Status: "completed", Priority: "Normal"},
	}
}

func ids(rows []model.Task) string {
	s := ""
	for _, r := range rows {
		s += r.ID
	}
	return s
}

func TestFilterThenClearRestores(t *testing.T) {
	tbl := New(sampleTasks())
	if err := tbl.SetFilter(ColumnStatus, "completed"); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	if got := ids(tbl.Rows()); got != "14" {
		t.Errorf("filtered = %s, want 14", got)
	}

	tbl.ClearFilters()
	if got := ids(tbl.Rows()); got != "1234" {
		t.Errorf("after clear = %s, want 1234", got)
	}
}

func TestFiltersAreANDedAndCaseInsensitive(t *testing.T) {
	tbl := New(sampleTasks())
	tbl.SetFilter(ColumnTitle, "ESSAY")
	if got := ids(tbl.Rows()); got != "14" {
		t.Errorf("title filter = %s, want 14", got)
	}
	tbl.SetFilter(ColumnPriority, "normal")
	if got := ids(tbl.Rows()); got != "4" {
		t.Errorf("title+priority = %s, want 4", got)
	}

	// Narrowing then widening a filter re-derives from the original list.
	tbl.SetFilter(ColumnPriority, "")
	if got := ids(tbl.Rows()); got != "14" {
		t.Errorf("after widening = %s, want 14", got)
	}
}

func TestSortToggles(t *testing.T) {
	tbl := New(sampleTasks())
	tbl.SortBy(ColumnTitle)
	if got := ids(tbl.Rows()); got != "1234" {
		// "Essay" < "Lab report" < "Reading" < "essay outline" bytewise.
		t.Errorf("asc = %s, want 1234", got)
	}
	tbl.SortBy(ColumnTitle)
	if col, dir := tbl.Sort(); col != ColumnTitle || dir != Desc {
		t.Errorf("sort = %s %s, want title desc", col, dir)
	}
	if got := ids(tbl.Rows()); got != "4321" {
		t.Errorf("desc = %s, want 4321", got)
	}
	tbl.SortBy(ColumnStatus)
	if _, dir := tbl.Sort(); dir != Asc {
		t.Error("a new sort key should start ascending")
	}
}

func TestSortDueDateChronological(t *testing.T) {
	tbl := New(sampleTasks())
	tbl.SortBy(ColumnDueDate)
	// 2025-02-28, 2025-03-04 14:00Z (09:00-05:00), 2025-03-04 16:00Z, 2025-03-10.
	if got := ids(tbl.Rows()); got != "4321" {
		t.Errorf("dueDate asc = %s, want 4321", got)
	}
}

func TestSortKeepsFilters(t *testing.T) {
	tbl := New(sampleTasks())
	tbl.SetFilter(ColumnStatus, "completed")
	tbl.SortBy(ColumnDueDate)
	if got := ids(tbl.Rows()); got != "41" {
		t.Errorf("filtered+sorted = %s, want 41", got)
	}
	tbl.ClearFilters()
	if got := ids(tbl.Rows()); got != "4321" {
		t.Errorf("sorted after clear = %s, want 4321", got)
	}
}

func TestUnknownColumns(t *testing.T) {
	tbl := New(sampleTasks())
	if err := tbl.SetFilter(ColumnDueDate, "2025"); err == nil {
		t.Error("dueDate should not be filterable")
	}
	if err := tbl.SortBy("owner"); err == nil {
		t.Error("unknown column should not sort")
	}
}

func TestInputNotMutated(t *testing.T) {
	tasks := sampleTasks()
	tbl := New(tasks)
	tbl.SortBy(ColumnDueDate)
	tbl.Rows()
	tasks[0].Title = "changed"
	if tbl.Rows()[3].Title != "Essay" {
		t.Error("table should hold its own copy")
	}
	if tbl.Len() != 4 {
		t.Errorf("Len = %d, want 4", tbl.Len())
	}
}
