package bot

import (
	"sort"
	"sync"
	"time"

	"tradeengine/internal/models"
)

// sectorAccumulator holds the running per-sector statistics the Sector
// Ranker needs to compute an average percent move in O(1) per tick.
type sectorAccumulator struct {
	sumPct float64
	count  int // distinct member symbols, not ticks observed
}

// SectorRanker tracks intraday percent performance per sector from
// tick updates and answers top-N gainer/loser gate queries. A tick's
// contribution is its percent move off the previous close; the
// sector's score is the running mean of those contributions. Reads
// (Rank, Gate) recompute the ranked order from the live accumulators,
// which is O(#sectors log #sectors) — cheap, since a trading universe
// has at most a few dozen sectors.
type SectorRanker struct {
	mu      sync.RWMutex
	accs    map[string]*sectorAccumulator
	lastPct map[string]float64 // per-symbol last-seen pct_change, across all sectors

	lastSummary time.Time
	summaryGap  time.Duration
}

// NewSectorRanker returns an empty ranker. summaryGap controls how
// often ShouldLogSummary reports true (spec default: 30s).
func NewSectorRanker(summaryGap time.Duration) *SectorRanker {
	return &SectorRanker{
		accs:       make(map[string]*sectorAccumulator),
		lastPct:    make(map[string]float64),
		summaryGap: summaryGap,
	}
}

// Update folds one tick's percent move into its sector's running mean
// (§4.3): on a symbol's first observation the sector's sum and member
// count both advance; on every later tick for that same symbol only
// the delta against its previous pct_change is added, so sum/count
// stays the mean over distinct members, not ticks. prevClose <= 0
// means no baseline is available yet and the tick is ignored for
// ranking purposes (it still reaches the position monitor).
func (r *SectorRanker) Update(sector, symbol string, ltp, prevClose float64) {
	if sector == "" || symbol == "" || prevClose <= 0 {
		return
	}
	pct := (ltp - prevClose) / prevClose * 100

	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accs[sector]
	if !ok {
		acc = &sectorAccumulator{}
		r.accs[sector] = acc
	}

	if prevPct, seen := r.lastPct[symbol]; seen {
		acc.sumPct += pct - prevPct
	} else {
		acc.sumPct += pct
		acc.count++
	}
	r.lastPct[symbol] = pct
}

// SectorScore is one sector's mean percent move, used for ranked
// reads and summary logging.
type SectorScore struct {
	Sector string
	Pct    float64
}

// Rank returns every sector with at least one observation, sorted by
// mean percent move descending (gainers first).
func (r *SectorRanker) Rank() []SectorScore {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SectorScore, 0, len(r.accs))
	for sector, acc := range r.accs {
		if acc.count == 0 {
			continue
		}
		out = append(out, SectorScore{Sector: sector, Pct: acc.sumPct / float64(acc.count)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pct != out[j].Pct {
			return out[i].Pct > out[j].Pct
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}

// Gate reports whether a position in the given direction is allowed
// to enter sector, given the configured top-N window. LONG passes
// when sector is among the top N gainers; SHORT passes when it is
// among the bottom N losers. An unranked (unknown) sector fails
// closed: it passes no gate, regardless of direction. topN <= 0
// disables the filter (always passes).
func (r *SectorRanker) Gate(sector string, direction models.Direction, topN int) bool {
	if topN <= 0 {
		return true
	}
	if sector == "" {
		return false
	}

	ranked := r.Rank()
	n := topN
	if n > len(ranked) {
		n = len(ranked)
	}

	switch direction {
	case models.DirectionLong:
		for _, s := range ranked[:n] {
			if s.Sector == sector {
				return true
			}
		}
	case models.DirectionShort:
		for _, s := range ranked[len(ranked)-n:] {
			if s.Sector == sector {
				return true
			}
		}
	}
	return false
}

// ShouldLogSummary reports whether at least summaryGap has elapsed
// since the last reported summary, and if so marks now as the new
// checkpoint. Used by the tick loop to throttle sector-summary
// logging to roughly once per summaryGap instead of once per tick.
func (r *SectorRanker) ShouldLogSummary(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.lastSummary) < r.summaryGap {
		return false
	}
	r.lastSummary = now
	return true
}
