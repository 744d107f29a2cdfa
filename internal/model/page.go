package model

// Page is a read-only snapshot of a note page owned by the editing subsystem.
type Page struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
	Owner      string `json:"owner"`
	NotebookID string `json:"notebook_id,omitempty"`
	SectionID  string `json:"section_id,omitempty"`
	TopicID    string `json:"topic_id,omitempty"`
}

// PageMeta is the structural entry kept in the page index, without content.
type PageMeta struct {
	Name       string `json:"name"`
	NotebookID string `json:"notebook_id,omitempty"`
	SectionID  string `json:"section_id,omitempty"`
	TopicID    string `json:"topic_id,omitempty"`
}
