package models

import "time"

// FileStatus tracks whether an uploaded document is usable yet.
type FileStatus string

const (
	StatusProcessing FileStatus = "processing"
	StatusReady      FileStatus = "ready"
	StatusError      FileStatus = "error"
)

// File is an uploaded PDF document. Status starts at processing and moves
// to ready once the page count is known, or to error if the upload cannot
// be parsed as a PDF. Deleting a file cascades to its annotations and blob.
type File struct {
	ID           string     `json:"id"`
	UserID       string     `json:"-"`
	Name         string     `json:"name"`
	OriginalName string     `json:"originalName,omitempty"`
	URL          string     `json:"url"`
	Size         int64      `json:"size"`
	MIME         string     `json:"-"`
	PageCount    int        `json:"pageCount"`
	Status       FileStatus `json:"status"`
	StorageKey   string     `json:"-"`
	UploadDate   time.Time  `json:"uploadDate"`
	UpdatedAt    time.Time  `json:"-"`
}

// FileResponse wraps file metadata in the API response.
type FileResponse struct {
	Success bool `json:"success"`
	File    File `json:"file"`
}

// FilesResponse wraps the caller's file list.
type FilesResponse struct {
	Success bool   `json:"success"`
	Files   []File `json:"files"`
}
