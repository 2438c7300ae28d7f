package feed

import "github.com/Gfz-arka/MFE-5250/internal/market"

type streamState int

const (
	// awaitingNext：下一次 Step 从原始序列拉取新 bar。
	awaitingNext streamState = iota
	// buffered：已经拉到下个月的第一根 bar，下一次 Step 直接转正。
	buffered
)

// stream 是单个标的在一次回测中的游标状态，只由 Monthly 修改。
type stream struct {
	source   []market.Bar
	cursor   int
	revealed []market.Bar
	state    streamState
	pending  market.Bar
}

func newStream(source []market.Bar) *stream {
	return &stream{source: source}
}

// pull 返回原始序列中的下一根 bar；耗尽时返回 false。
func (s *stream) pull() (market.Bar, bool) {
	if s.cursor >= len(s.source) {
		return market.Bar{}, false
	}
	b := s.source[s.cursor]
	s.cursor++
	return b, true
}

func (s *stream) park(b market.Bar) {
	s.pending = b
	s.state = buffered
}

// promote 把缓冲的 bar 转入已揭示序列。
func (s *stream) promote() {
	s.revealed = append(s.revealed, s.pending)
	s.pending = market.Bar{}
	s.state = awaitingNext
}

func (s *stream) latest() (market.Bar, bool) {
	if len(s.revealed) == 0 {
		return market.Bar{}, false
	}
	return s.revealed[len(s.revealed)-1], true
}

// tail 返回最近 n 根；不足时返回全部。
func (s *stream) tail(n int) []market.Bar {
	if n <= 0 {
		return nil
	}
	if n > len(s.revealed) {
		n = len(s.revealed)
	}
	out := make([]market.Bar, n)
	copy(out, s.revealed[len(s.revealed)-n:])
	return out
}

func (s *stream) reset() {
	s.cursor = 0
	s.revealed = nil
	s.pending = market.Bar{}
	s.state = awaitingNext
}
