package syncer

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"polymarket-copytrader/api"
	"polymarket-copytrader/models"
)

// roiEntry is one resolved leader position, reduced to the return it
// realized and when it resolved.
type roiEntry struct {
	roi       decimal.Decimal
	timestamp int64
	taken     bool
}

// roiQueues indexes the leader's closed positions by market slug so open
// movements can be settled at the leader's realized return. Fast markets
// reuse one slug with a varying timestamp suffix, so each position is also
// indexed under its normalized slug.
type roiQueues struct {
	bySlug       map[string][]*roiEntry
	byNormalized map[string][]*roiEntry
}

func buildROIQueues(closed []api.ClosedPosition) *roiQueues {
	sorted := make([]api.ClosedPosition, len(closed))
	copy(sorted, closed)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	q := &roiQueues{
		bySlug:       map[string][]*roiEntry{},
		byNormalized: map[string][]*roiEntry{},
	}
	for _, pos := range sorted {
		if pos.TotalBought.Sign() <= 0 {
			continue
		}
		e := &roiEntry{
			roi:       pos.RealizedPnL.Div(pos.TotalBought),
			timestamp: pos.Timestamp,
		}
		q.bySlug[pos.Slug] = append(q.bySlug[pos.Slug], e)
		if norm := normalizeMarketSlug(pos.Slug); norm != pos.Slug {
			q.byNormalized[norm] = append(q.byNormalized[norm], e)
		}
	}
	return q
}

// match claims the oldest unclaimed entry for the movement's market that
// resolved after the movement was recorded. Entries older than the movement
// belong to positions the leader closed before we copied anything.
func (q *roiQueues) match(m models.Movement) (decimal.Decimal, bool) {
	movementTS := m.CreatedAt.Unix()
	for _, entries := range [][]*roiEntry{
		q.bySlug[m.MarketID],
		q.byNormalized[normalizeMarketSlug(m.MarketID)],
	} {
		for _, e := range entries {
			if e.taken {
				continue
			}
			if e.timestamp > 0 && e.timestamp < movementTS {
				continue
			}
			e.taken = true
			return e.roi, true
		}
	}
	return decimal.Zero, false
}

// normalizeMarketSlug strips the numeric window suffix fast markets carry,
// e.g. "btc-updown-5m-1756500000" normalizes to "btc-updown-5m". Slugs
// without a long all-digit tail pass through unchanged.
func normalizeMarketSlug(slug string) string {
	i := strings.LastIndexByte(slug, '-')
	if i < 0 {
		return slug
	}
	tail := slug[i+1:]
	if len(tail) < 8 {
		return slug
	}
	for _, r := range tail {
		if r < '0' || r > '9' {
			return slug
		}
	}
	return slug[:i]
}
