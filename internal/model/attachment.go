package model

// Attachment is an uploaded document handed to the planner. It is never
// persisted with the event.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}
