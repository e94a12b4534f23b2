// Package protocol defines the API request/response types shared by the
// chartdeck server and the deck loader.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FileDescriptor describes one remote JSON file within a folder.
// FileName is "<ticker>/<name>.json" and is the file's identity.
type FileDescriptor struct {
	FileName     string    `json:"fileName"`
	MimeType     string    `json:"mimeType,omitempty"`
	Size         int64     `json:"size,omitempty"`
	CreatedTime  time.Time `json:"createdTime,omitzero"`
	ModifiedTime time.Time `json:"modifiedTime,omitzero"`
}

// Ticker returns the subject segment of the file name (before the first "/").
// Files without a subject segment return "".
func (f FileDescriptor) Ticker() string {
	ticker, _ := SplitName(f.FileName)
	return ticker
}

// Base returns the file name after the subject segment.
func (f FileDescriptor) Base() string {
	_, base := SplitName(f.FileName)
	return base
}

// SplitName splits "<ticker>/<name>.json" into its two segments.
func SplitName(fileName string) (ticker, base string) {
	if i := strings.Index(fileName, "/"); i >= 0 {
		return fileName[:i], fileName[i+1:]
	}
	return "", fileName
}

// Folder is one deck: a named group of chart files.
type Folder struct {
	ID    string           `json:"id,omitempty"`
	Name  string           `json:"name"`
	Files []FileDescriptor `json:"files"`
}

// ManifestData is the payload of a manifest response.
type ManifestData struct {
	Folders []Folder `json:"folders"`
}

// ManifestResponse is returned by GET /api/v1/folders.
type ManifestResponse struct {
	Success bool          `json:"success"`
	Data    *ManifestData `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
}

// FileData is the nested shape of a file response payload.
type FileData struct {
	Data     json.RawMessage `json:"data"`
	FileName string          `json:"fileName,omitempty"`
	Folder   string          `json:"folder,omitempty"`
}

// FileResponse is returned by GET /api/v1/file. Data may be either the nested
// {data, fileName, folder} shape or the flat payload itself; Payload accepts both.
type FileResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Payload extracts the chart payload from the response, accepting both the
// nested {data:{data:...}} and the flat {data:...} shapes.
func (r *FileResponse) Payload() (json.RawMessage, error) {
	raw := bytes.TrimSpace(r.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("file response has no data")
	}
	if raw[0] == '{' {
		var nested FileData
		if err := json.Unmarshal(raw, &nested); err == nil && len(bytes.TrimSpace(nested.Data)) > 0 {
			return nested.Data, nil
		}
	}
	return raw, nil
}

// ErrorResponse is the envelope for API errors.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Candle is one bar of chart data as produced by the ticker download pipeline.
type Candle struct {
	Date   string  `json:"Date"`
	Open   float64 `json:"Open"`
	High   float64 `json:"High"`
	Low    float64 `json:"Low"`
	Close  float64 `json:"Close"`
	Volume int64   `json:"Volume"`
	SMA10  float64 `json:"10sma,omitempty"`
	SMA20  float64 `json:"20sma,omitempty"`
	SMA50  float64 `json:"50sma,omitempty"`
}

// Round is one played scoring round.
type Round struct {
	ID       int64     `json:"id,omitempty"`
	Folder   string    `json:"folder"`
	Ticker   string    `json:"ticker"`
	Guess    string    `json:"guess"`
	Correct  bool      `json:"correct"`
	Score    int       `json:"score"`
	PlayedAt time.Time `json:"playedAt,omitzero"`
}

// RoundsResponse is returned by GET /api/v1/rounds.
type RoundsResponse struct {
	Success bool    `json:"success"`
	Data    []Round `json:"data"`
	Message string  `json:"message,omitempty"`
}
