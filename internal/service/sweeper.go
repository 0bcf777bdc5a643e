package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// SweeperConfig holds configuration for the expiry sweeper.
type SweeperConfig struct {
	// Interval is how often the sweep runs.
	// Default: 30 seconds
	Interval time.Duration

	// BatchSize caps how many expired listings one sweep settles.
	// Default: 50
	BatchSize int
}

// DefaultSweeperConfig returns default sweeper configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:  30 * time.Second,
		BatchSize: 50,
	}
}

// Sweeper periodically settles expired auction listings. Settlement is
// idempotent and bounded per run, so a sweeper restart or two sweepers
// racing (one per instance) is harmless.
type Sweeper struct {
	auctions  *AuctionService
	config    SweeperConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewSweeper creates a new expiry sweeper.
func NewSweeper(auctions *AuctionService, config SweeperConfig) *Sweeper {
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 50
	}

	return &Sweeper{
		auctions: auctions,
		config:   config,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[Sweeper] Started - Interval: %v, Batch: %d",
		s.config.Interval, s.config.BatchSize)

	go s.run()
}

// run is the main sweep loop.
func (s *Sweeper) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runSweep()
		case <-s.stopCh:
			log.Printf("[Sweeper] Stopped")
			return
		}
	}
}

// runSweep performs one settlement pass.
func (s *Sweeper) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	settled, err := s.auctions.ProcessExpirations(ctx, s.config.BatchSize)
	if err != nil {
		log.Printf("[Sweeper] Error during sweep: %v", err)
		return
	}

	if settled > 0 {
		log.Printf("[Sweeper] Settled %d expired listings", settled)
	}
}

// Stop stops the sweeper.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow triggers an immediate sweep.
func (s *Sweeper) RunNow() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	return s.auctions.ProcessExpirations(ctx, s.config.BatchSize)
}
