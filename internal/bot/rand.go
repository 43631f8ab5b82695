package bot

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// botRng is the package-level random source used by all bot strategies.
// Use SeedBotRng to set a deterministic source for reproducible matches.
var (
	botMu  sync.Mutex
	botRng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
)

// SeedBotRng sets a deterministic random source for reproducible bot behavior.
func SeedBotRng(seed uint64) {
	botMu.Lock()
	defer botMu.Unlock()
	botRng = rand.New(rand.NewSource(seed))
}

// ResetBotRng reverts to a time-seeded source.
func ResetBotRng() {
	SeedBotRng(uint64(time.Now().UnixNano()))
}

func botIntn(n int) int {
	botMu.Lock()
	defer botMu.Unlock()
	return botRng.Intn(n)
}

func botShuffle(n int, swap func(i, j int)) {
	botMu.Lock()
	defer botMu.Unlock()
	botRng.Shuffle(n, swap)
}
