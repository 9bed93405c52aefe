package model

// Task is a read-only row of the task table, sourced from the calendar
// provider and never written back.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	DueDate     string `json:"dueDate"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartTime   string `json:"startTime"`
}

const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityNormal = "Normal"
)
