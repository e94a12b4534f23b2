package deck

// Ready reports whether enough files have arrived to present at least one
// complete study item: the total count meets minFiles and at least one ticker
// group contains an essential file. minFiles below 1 is treated as 1; a
// stricter lower bound caused visible stalls on folders with very few files.
func Ready(files []LoadedFile, ess Essentials, minFiles int) bool {
	if minFiles < 1 {
		minFiles = 1
	}
	if len(files) < minFiles {
		return false
	}
	for _, f := range files {
		if f.Ticker() != "" && ess.Contains(f.Base()) {
			return true
		}
	}
	return false
}
