// Package sim is the order-flow driver: it feeds the engine randomized limit
// orders across a set of symbols and tallies what came back. It talks to the
// core only through Submit/Cancel, the same way any future network layer
// would.
package sim

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"matchbook/internal/engine"
	"matchbook/internal/orderbook"
)

type Config struct {
	Symbols     []string
	Workers     int
	OrderLimit  int           // Total orders across all workers
	MinQty      int64
	MaxQty      int64
	MinPrice    int64         // cents
	MaxPrice    int64         // cents
	MinInterval time.Duration // Delay between a worker's orders
	MaxInterval time.Duration
	CancelRate  float64 // Chance a worker cancels one of its resting orders instead
	Seed        int64   // 0 = seed from clock
}

func DefaultConfig() Config {
	return Config{
		Symbols:     []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"},
		Workers:     4,
		OrderLimit:  100,
		MinQty:      1,
		MaxQty:      100,
		MinPrice:    10000,  // $100.00
		MaxPrice:    100000, // $1000.00
		MinInterval: 100 * time.Millisecond,
		MaxInterval: 500 * time.Millisecond,
		CancelRate:  0.1,
	}
}

// Simulator drives the engine from several concurrent workers, so order flow
// for different symbols genuinely overlaps.
type Simulator struct {
	engine *engine.Engine
	cfg    Config

	submitted atomic.Int64
	rejected  atomic.Int64
	cancelled atomic.Int64

	mu          sync.Mutex
	tradeCount  map[string]int64
	tradeVolume map[string]int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(eng *engine.Engine, cfg Config) *Simulator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Simulator{
		engine:      eng,
		cfg:         cfg,
		tradeCount:  make(map[string]int64),
		tradeVolume: make(map[string]int64),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the workers. Use Wait to block until the order budget is
// spent, or Stop to cut the run short.
func (s *Simulator) Start() {
	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	budget := make(chan struct{}, s.cfg.OrderLimit)
	for i := 0; i < s.cfg.OrderLimit; i++ {
		budget <- struct{}{}
	}
	close(budget)

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(rand.New(rand.NewSource(seed+int64(i))), budget)
	}
}

func (s *Simulator) Stop() {
	close(s.stopCh)
}

func (s *Simulator) Wait() {
	s.wg.Wait()
}

func (s *Simulator) worker(rng *rand.Rand, budget <-chan struct{}) {
	defer s.wg.Done()

	var resting []uint64 // ids this worker left on the book

	for range budget {
		select {
		case <-s.stopCh:
			return
		case <-time.After(s.interval(rng)):
		}

		if len(resting) > 0 && rng.Float64() < s.cfg.CancelRate {
			idx := rng.Intn(len(resting))
			if err := s.engine.Cancel(resting[idx]); err == nil {
				s.cancelled.Add(1)
			}
			resting = append(resting[:idx], resting[idx+1:]...)
			continue
		}

		symbol := s.cfg.Symbols[rng.Intn(len(s.cfg.Symbols))]
		side := orderbook.Buy
		if rng.Intn(2) == 1 {
			side = orderbook.Sell
		}
		qty := s.cfg.MinQty + rng.Int63n(s.cfg.MaxQty-s.cfg.MinQty+1)
		price := s.cfg.MinPrice + rng.Int63n(s.cfg.MaxPrice-s.cfg.MinPrice+1)

		trades, id, err := s.engine.Submit(side, symbol, qty, price)
		if err != nil {
			s.rejected.Add(1)
			continue
		}
		s.submitted.Add(1)

		var filled int64
		for _, tr := range trades {
			filled += tr.Quantity
		}
		if filled < qty {
			resting = append(resting, id)
		}
		s.record(trades)
	}
}

func (s *Simulator) interval(rng *rand.Rand) time.Duration {
	span := s.cfg.MaxInterval - s.cfg.MinInterval
	if span <= 0 {
		return s.cfg.MinInterval
	}
	return s.cfg.MinInterval + time.Duration(rng.Int63n(int64(span)))
}

func (s *Simulator) record(trades []orderbook.Trade) {
	if len(trades) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tr := range trades {
		s.tradeCount[tr.Symbol]++
		s.tradeVolume[tr.Symbol] += tr.Quantity
	}
}

// Submitted returns how many orders the simulator placed successfully.
func (s *Simulator) Submitted() int64 { return s.submitted.Load() }

// Rejected returns how many submissions the engine refused.
func (s *Simulator) Rejected() int64 { return s.rejected.Load() }

// Cancelled returns how many resting orders the simulator pulled.
func (s *Simulator) Cancelled() int64 { return s.cancelled.Load() }

// Summary renders the end-of-run trade report.
func (s *Simulator) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("Trade summary:\n")

	if len(s.tradeCount) == 0 {
		b.WriteString("  no trades were executed\n")
		return b.String()
	}

	symbols := make([]string, 0, len(s.tradeCount))
	for sym := range s.tradeCount {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		fmt.Fprintf(&b, "  %-6s %4d trades, %6d shares\n", sym, s.tradeCount[sym], s.tradeVolume[sym])
	}
	fmt.Fprintf(&b, "  orders: %d submitted, %d cancelled, %d rejected\n",
		s.submitted.Load(), s.cancelled.Load(), s.rejected.Load())
	return b.String()
}
