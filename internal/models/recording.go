package models

import "time"

// Recording describes one stored media capture.
type Recording struct {
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Ext       string    `json:"ext"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
}

// UploadRecordingResponse is returned after a recording has been stored
type UploadRecordingResponse struct {
	Message   string    `json:"message"`
	Recording Recording `json:"recording"`
}

// ListRecordingsResponse is the JSON form of the gallery
type ListRecordingsResponse struct {
	Recordings []Recording `json:"recordings"`
	Count      int         `json:"count"`
}
