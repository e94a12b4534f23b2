package deck

import (
	"encoding/json"
	"testing"

	"github.com/chartdeck/chartdeck/internal/protocol"
)

func lf(fileName string) LoadedFile {
	return LoadedFile{
		FileDescriptor: protocol.FileDescriptor{FileName: fileName},
		Data:           json.RawMessage(`[{"Close":1}]`),
	}
}

func ess() Essentials {
	return NewEssentials([]string{"D.json", "M.json"})
}

func TestMerge_CreatesCardsInArrivalOrder(t *testing.T) {
	cards := Merge(nil, []LoadedFile{lf("AAPL/D.json"), lf("MSFT/D.json"), lf("AAPL/M.json")}, "week1", ess())

	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}
	if cards[0].ID != "AAPL" || cards[1].ID != "MSFT" {
		t.Errorf("card order = %s, %s; want AAPL, MSFT", cards[0].ID, cards[1].ID)
	}
	if len(cards[0].Files) != 2 {
		t.Errorf("AAPL files = %d, want 2", len(cards[0].Files))
	}
	if cards[0].FolderName != "week1" {
		t.Errorf("folder = %q, want week1", cards[0].FolderName)
	}
}

func TestMerge_DedupByFileName(t *testing.T) {
	cards := Merge(nil, []LoadedFile{lf("AAPL/D.json")}, "week1", ess())
	cards = Merge(cards, []LoadedFile{lf("AAPL/D.json"), lf("AAPL/after.json")}, "week1", ess())

	names := make(map[string]int)
	for _, f := range AllFiles(cards) {
		names[f.FileName]++
	}
	for name, n := range names {
		if n != 1 {
			t.Errorf("file %s appears %d times, want 1", name, n)
		}
	}
	if CountLoaded(cards) != 2 {
		t.Errorf("total files = %d, want 2", CountLoaded(cards))
	}
}

func TestMerge_AppendOnlyPreservesPrefix(t *testing.T) {
	cards := Merge(nil, []LoadedFile{lf("AAPL/D.json"), lf("MSFT/D.json")}, "week1", ess())
	before := []string{cards[0].ID, cards[1].ID}
	beforeFiles := len(cards[0].Files)

	cards2 := Merge(cards, []LoadedFile{lf("NVDA/D.json"), lf("AAPL/after.json")}, "week1", ess())

	if cards2[0].ID != before[0] || cards2[1].ID != before[1] {
		t.Error("existing card order changed during merge")
	}
	if cards2[2].ID != "NVDA" {
		t.Errorf("new card at position %q, want appended at end", cards2[2].ID)
	}
	// File order within a card is arrival order and never reorders.
	if cards2[0].Files[0].FileName != "AAPL/D.json" {
		t.Error("existing file prefix reordered")
	}
	if cards2[0].Files[len(cards2[0].Files)-1].FileName != "AAPL/after.json" {
		t.Error("new file not appended at tail")
	}
	if len(cards[0].Files) != beforeFiles {
		t.Error("merge mutated the input snapshot")
	}
}

func TestMerge_ReadyMonotonic(t *testing.T) {
	cards := Merge(nil, []LoadedFile{lf("AAPL/after.json")}, "week1", ess())
	if cards[0].IsReady {
		t.Fatal("card ready without an essential file")
	}

	cards = Merge(cards, []LoadedFile{lf("AAPL/D.json")}, "week1", ess())
	if !cards[0].IsReady {
		t.Fatal("card not ready after essential file arrived")
	}

	// Non-essential arrivals never flip ready back.
	cards = Merge(cards, []LoadedFile{lf("AAPL/points.json")}, "week1", ess())
	if !cards[0].IsReady {
		t.Error("ready regressed after a non-essential merge")
	}
}

func TestMerge_SkipsFilesWithoutTicker(t *testing.T) {
	cards := Merge(nil, []LoadedFile{lf("stray.json"), lf("AAPL/D.json")}, "week1", ess())
	if len(cards) != 1 || cards[0].ID != "AAPL" {
		t.Fatalf("expected only AAPL card, got %d cards", len(cards))
	}
}

func TestMerge_SupersetOfExisting(t *testing.T) {
	cards := Merge(nil, []LoadedFile{lf("AAPL/D.json"), lf("MSFT/M.json")}, "week1", ess())
	cards2 := Merge(cards, []LoadedFile{lf("MSFT/after.json")}, "week1", ess())

	if len(cards2) < len(cards) {
		t.Fatal("merge shrank the collection")
	}
	for i, c := range cards {
		for _, f := range c.Files {
			if !cards2[i].HasFile(f.FileName) {
				t.Errorf("file %s missing after merge", f.FileName)
			}
		}
	}
}
