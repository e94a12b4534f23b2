// Package deck holds the flashcard collection model and the pure functions
// that fold newly fetched files into it: incremental merge, readiness
// detection, and the once-per-session shuffle.
package deck

import (
	"encoding/json"

	"github.com/chartdeck/chartdeck/internal/protocol"
)

// LoadedFile is a file descriptor plus its fetched payload. It is never
// mutated after creation; a re-fetch produces a replacement value.
type LoadedFile struct {
	protocol.FileDescriptor
	Data json.RawMessage
}

// Flashcard is one ticker's study item within a folder. Files is append-only
// in arrival order; IsReady is monotonic (false→true at most once).
type Flashcard struct {
	ID         string
	Name       string
	FolderName string
	Files      []LoadedFile
	IsReady    bool
}

// HasFile reports whether the card already holds a file with the given name.
func (c *Flashcard) HasFile(fileName string) bool {
	for _, f := range c.Files {
		if f.FileName == fileName {
			return true
		}
	}
	return false
}

// Essentials is the set of per-ticker file names whose presence alone marks a
// card ready for display.
type Essentials struct {
	names map[string]struct{}
}

// NewEssentials builds an essential-file set from base file names.
func NewEssentials(names []string) Essentials {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return Essentials{names: set}
}

// Contains reports whether the base file name is essential.
func (e Essentials) Contains(base string) bool {
	_, ok := e.names[base]
	return ok
}

// Names returns the essential base names.
func (e Essentials) Names() []string {
	out := make([]string, 0, len(e.names))
	for n := range e.names {
		out = append(out, n)
	}
	return out
}
