package strategy

import (
	"errors"

	"github.com/Gfz-arka/MFE-5250/internal/event"
	"github.com/Gfz-arka/MFE-5250/internal/feed"
)

const NameBuyAndHold = "buy_and_hold"

// BuyAndHold 在每个标的首次有数据时买入并一直持有，仅作示例。
type BuyAndHold struct {
	bars BarReader
	now  Clock
	flagBook
}

func NewBuyAndHold(bars BarReader, opts ...Option) *BuyAndHold {
	o := buildOptions(opts)
	return &BuyAndHold{bars: bars, now: o.now, flagBook: newFlagBook(bars.Symbols())}
}

func (s *BuyAndHold) Name() string { return NameBuyAndHold }

func (s *BuyAndHold) OnMarket(int) ([]event.SignalEvent, error) {
	var out []event.SignalEvent
	for _, sym := range s.order {
		if s.flags[sym] != FlagOut {
			continue
		}
		if _, err := s.bars.LatestBar(sym); err != nil {
			if errors.Is(err, feed.ErrNoBars) {
				continue
			}
			return nil, err
		}
		sig, err := signalFor(s.bars, 1, sym, event.DirectionLong, s.now)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
		s.flags[sym] = FlagLong
	}
	return out, nil
}
