package deck

import (
	"math/rand"
	"sync"
)

// maxReshuffles bounds the non-identity retry loop before forcing a swap.
const maxReshuffles = 8

// Shuffler randomizes a deck's presentation order exactly once per session
// key. Repeat calls for the same key reapply the recorded order so that
// background arrivals never re-randomize the already-visible prefix.
type Shuffler struct {
	mu     sync.Mutex
	orders map[string][]string
}

// NewShuffler creates a Shuffler.
func NewShuffler() *Shuffler {
	return &Shuffler{orders: make(map[string][]string)}
}

// ShuffleOnce returns the cards in the session's presentation order. The
// first call for a key performs a Fisher–Yates shuffle with a non-identity
// guarantee: for inputs longer than one card, the first element of the output
// differs from the first element of the input. Later calls preserve the
// recorded order and append cards not yet part of it in input order.
func (s *Shuffler) ShuffleOnce(sessionKey string, cards []*Flashcard) []*Flashcard {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order, ok := s.orders[sessionKey]; ok {
		return applyOrder(order, cards)
	}

	out := make([]*Flashcard, len(cards))
	copy(out, cards)

	if len(out) > 1 {
		first := out[0].ID
		for attempt := 0; attempt < maxReshuffles; attempt++ {
			rand.Shuffle(len(out), func(i, j int) {
				out[i], out[j] = out[j], out[i]
			})
			if out[0].ID != first {
				break
			}
		}
		if out[0].ID == first {
			j := 1 + rand.Intn(len(out)-1)
			out[0], out[j] = out[j], out[0]
		}
	}

	order := make([]string, len(out))
	for i, c := range out {
		order[i] = c.ID
	}
	s.orders[sessionKey] = order

	return out
}

// Shuffled reports whether the session has already been shuffled.
func (s *Shuffler) Shuffled(sessionKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.orders[sessionKey]
	return ok
}

// Forget drops the recorded order for a session key.
func (s *Shuffler) Forget(sessionKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, sessionKey)
}

// applyOrder arranges cards to match a recorded ID order; cards absent from
// the order (late arrivals) keep their relative input order at the tail.
func applyOrder(order []string, cards []*Flashcard) []*Flashcard {
	byID := make(map[string]*Flashcard, len(cards))
	for _, c := range cards {
		byID[c.ID] = c
	}

	out := make([]*Flashcard, 0, len(cards))
	placed := make(map[string]struct{}, len(order))
	for _, id := range order {
		if c, ok := byID[id]; ok {
			out = append(out, c)
			placed[id] = struct{}{}
		}
	}
	for _, c := range cards {
		if _, ok := placed[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}
