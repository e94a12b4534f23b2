package deck

// Merge folds newly loaded files into an existing flashcard collection and
// returns the resulting collection. The input is never mutated: cards that
// gain files are shallow-copied with an extended file list, so callers can
// hand out the previous snapshot without observing partial writes.
//
// Rules:
//   - a file name already present anywhere in the collection is skipped (dedup)
//   - files append to their ticker's card in arrival order, never reordered
//   - a new ticker's card is appended at the end of the collection, never
//     inserted at an arbitrary position, which would break the one-time
//     shuffle guarantee for the already-visible prefix
//   - IsReady is recomputed as OR of the previous value and new essential
//     presence, so it can only go false→true
//
// Files without a ticker segment cannot form a study item and are dropped.
func Merge(existing []*Flashcard, loaded []LoadedFile, folderName string, ess Essentials) []*Flashcard {
	out := make([]*Flashcard, len(existing), len(existing)+len(loaded))
	copy(out, existing)

	index := make(map[string]int, len(out))
	seen := make(map[string]struct{})
	for i, c := range out {
		index[c.ID] = i
		for _, f := range c.Files {
			seen[f.FileName] = struct{}{}
		}
	}

	copied := make(map[int]bool)
	for _, lf := range loaded {
		if _, dup := seen[lf.FileName]; dup {
			continue
		}
		ticker := lf.Ticker()
		if ticker == "" {
			continue
		}
		seen[lf.FileName] = struct{}{}

		if i, ok := index[ticker]; ok {
			if !copied[i] {
				clone := *out[i]
				clone.Files = append([]LoadedFile(nil), out[i].Files...)
				out[i] = &clone
				copied[i] = true
			}
			out[i].Files = append(out[i].Files, lf)
			out[i].IsReady = out[i].IsReady || ess.Contains(lf.Base())
			continue
		}

		card := &Flashcard{
			ID:         ticker,
			Name:       ticker,
			FolderName: folderName,
			Files:      []LoadedFile{lf},
			IsReady:    ess.Contains(lf.Base()),
		}
		out = append(out, card)
		index[ticker] = len(out) - 1
		copied[len(out)-1] = true
	}

	return out
}

// CountLoaded returns the total number of loaded files across the collection.
func CountLoaded(cards []*Flashcard) int {
	n := 0
	for _, c := range cards {
		n += len(c.Files)
	}
	return n
}

// AllFiles flattens the collection's files in collection order.
func AllFiles(cards []*Flashcard) []LoadedFile {
	var out []LoadedFile
	for _, c := range cards {
		out = append(out, c.Files...)
	}
	return out
}
