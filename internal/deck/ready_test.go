package deck

import "testing"

func TestReady(t *testing.T) {
	e := ess()
	tests := []struct {
		name     string
		files    []LoadedFile
		minFiles int
		want     bool
	}{
		{"empty", nil, 1, false},
		{"essential only", []LoadedFile{lf("AAPL/D.json")}, 1, true},
		{"non-essential only", []LoadedFile{lf("AAPL/after.json")}, 1, false},
		{"essential without ticker", []LoadedFile{lf("D.json")}, 1, false},
		{"below min files", []LoadedFile{lf("AAPL/D.json")}, 2, false},
		{"at min files", []LoadedFile{lf("AAPL/D.json"), lf("AAPL/after.json")}, 2, true},
		{"zero min clamps to one", []LoadedFile{lf("AAPL/M.json")}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ready(tt.files, e, tt.minFiles); got != tt.want {
				t.Errorf("Ready() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEssentials(t *testing.T) {
	e := NewEssentials([]string{"D.json", "M.json"})
	if !e.Contains("D.json") || !e.Contains("M.json") {
		t.Error("essential names not recognized")
	}
	if e.Contains("after.json") {
		t.Error("after.json reported essential")
	}
	if got := len(e.Names()); got != 2 {
		t.Errorf("Names() length = %d, want 2", got)
	}
}
