package orderbook

// DefaultViewDepth is the number of levels per side in a published view.
const DefaultViewDepth = 3

type ViewLevel struct {
	Ticks int64 `json:"ticks"`
	Lots  int64 `json:"lots"`
	Count int   `json:"count"`
}

// View is a depth-limited, detached picture of a book.
type View struct {
	Contract  uint32      `json:"contract"`
	SettlDay  int32       `json:"settlDay"`
	Bids      []ViewLevel `json:"bids"`
	Offers    []ViewLevel `json:"offers"`
	LastTicks int64       `json:"lastTicks,omitempty"`
	LastLots  int64       `json:"lastLots,omitempty"`
	LastTime  int64       `json:"lastTime,omitempty"`
}

// View captures the best depth levels of each side. depth <= 0 selects
// DefaultViewDepth.
func (b *Book) View(depth int) *View {
	if depth <= 0 {
		depth = DefaultViewDepth
	}
	v := &View{
		Contract: b.Contract.ID,
		SettlDay: b.SettlDay,
		Bids:     b.bid.topLevels(depth),
		Offers:   b.offer.topLevels(depth),
	}

	last := b.bid
	if b.offer.LastTime > b.bid.LastTime {
		last = b.offer
	}
	v.LastTicks = last.LastTicks
	v.LastLots = last.LastLots
	v.LastTime = last.LastTime
	return v
}

func (s *Side) topLevels(depth int) []ViewLevel {
	out := make([]ViewLevel, 0, depth)
	for l := s.FirstLevel(); l != nil && len(out) < depth; l = s.NextLevel(l) {
		out = append(out, ViewLevel{Ticks: l.Ticks, Lots: l.Lots, Count: l.Count})
	}
	return out
}
