// Package planner turns a folder manifest into a prioritized fetch order:
// essential files first so a card can render quickly, annotations next, then
// a capped slice of historical charts, then everything else.
package planner

import (
	"math/rand"
	"regexp"

	"github.com/chartdeck/chartdeck/internal/deck"
	"github.com/chartdeck/chartdeck/internal/protocol"
)

// Tier is a file's fetch priority class. Lower fetches earlier.
type Tier int

const (
	// TierEssential covers the canonical timeframe files and the points
	// annotation, the minimum a card needs to display.
	TierEssential Tier = iota + 1
	// TierOutcome covers the after files holding scoring ground truth.
	TierOutcome
	// TierHistory covers date-stamped historical charts, capped per ticker.
	TierHistory
	// TierRest is everything else.
	TierRest
)

// historyPattern matches historical chart base names like Jan52024.json or
// Dec122023.json: three-letter month, 1-2 digit day, 4-digit year.
var historyPattern = regexp.MustCompile(`^(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\d{1,2}\d{4}\.json$`)

// Planner classifies manifest files into tiers and assembles flat fetch
// plans. Classification is deterministic per file name; only the ticker
// visitation order of the essential tier is randomized.
type Planner struct {
	essentials deck.Essentials
	pointsFile string
	afterFile  string
	maxHistory int
}

// New creates a Planner. maxHistory bounds the number of historical files
// planned per ticker; values below 1 disable the cap.
func New(essentials deck.Essentials, pointsFile, afterFile string, maxHistory int) *Planner {
	return &Planner{
		essentials: essentials,
		pointsFile: pointsFile,
		afterFile:  afterFile,
		maxHistory: maxHistory,
	}
}

// Classify returns the tier for a base file name.
func (p *Planner) Classify(base string) Tier {
	switch {
	case p.essentials.Contains(base) || base == p.pointsFile:
		return TierEssential
	case base == p.afterFile:
		return TierOutcome
	case historyPattern.MatchString(base):
		return TierHistory
	default:
		return TierRest
	}
}

// ChartFile reports whether a base name is expected to hold a candle array:
// the canonical timeframe files and date-stamped historical charts. The
// points and after annotations are JSON objects and are excluded.
func (p *Planner) ChartFile(base string) bool {
	return p.essentials.Contains(base) || historyPattern.MatchString(base)
}

// Plan partitions the manifest files into the four tiers and flattens them
// into one fetch order. Files are grouped by ticker within each tier; the
// essential tier visits tickers in uniformly random order so the bootstrap
// phase does not always sample the same ones, while the remaining tiers
// follow first-appearance manifest order. Within a ticker, manifest order is
// preserved. Files without a ticker segment land in the last tier.
//
// Historical files beyond the per-ticker cap demote to the last tier rather
// than dropping out, so the background fill still retrieves them eventually.
func (p *Planner) Plan(files []protocol.FileDescriptor) []protocol.FileDescriptor {
	byTicker := make(map[string]map[Tier][]protocol.FileDescriptor)
	var tickerOrder []string

	for _, f := range files {
		ticker := f.Ticker()
		if ticker == "" {
			ticker = f.FileName
		}
		tiers, ok := byTicker[ticker]
		if !ok {
			tiers = make(map[Tier][]protocol.FileDescriptor)
			byTicker[ticker] = tiers
			tickerOrder = append(tickerOrder, ticker)
		}

		tier := p.Classify(f.Base())
		if f.Ticker() == "" {
			tier = TierRest
		}
		if tier == TierHistory && p.maxHistory > 0 && len(tiers[TierHistory]) >= p.maxHistory {
			tier = TierRest
		}
		tiers[tier] = append(tiers[tier], f)
	}

	essentialOrder := append([]string(nil), tickerOrder...)
	rand.Shuffle(len(essentialOrder), func(i, j int) {
		essentialOrder[i], essentialOrder[j] = essentialOrder[j], essentialOrder[i]
	})

	out := make([]protocol.FileDescriptor, 0, len(files))
	for _, ticker := range essentialOrder {
		out = append(out, byTicker[ticker][TierEssential]...)
	}
	for _, tier := range []Tier{TierOutcome, TierHistory, TierRest} {
		for _, ticker := range tickerOrder {
			out = append(out, byTicker[ticker][tier]...)
		}
	}
	return out
}
