package game

import "github.com/mcoot/memorymatch/internal/dependencies/random"

// NewDeck returns cardCount values, each of 0..cardCount/2-1 appearing twice,
// shuffled once with rnd
func NewDeck(cardCount int, rnd random.Random) []int {
	values := make([]int, cardCount)
	for i := range values {
		values[i] = i / 2
	}
	random.Shuffle(rnd, values)
	return values
}
