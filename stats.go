package main

import (
	"log"
	"sync"
	"time"
)

// StatsWriter persists lifetime kill/death aggregates for registered
// accounts with batched background writes, so rooms never block on the
// database inside a tick.
type StatsWriter struct {
	db     *DB
	events chan statDelta
	stop   chan struct{}
	wg     sync.WaitGroup
}

type statDelta struct {
	playerID int64
	kills    int
	deaths   int
}

// NewStatsWriter creates and starts the background writer
func NewStatsWriter(db *DB) *StatsWriter {
	s := &StatsWriter{
		db:     db,
		events: make(chan statDelta, 1024),
		stop:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writer()
	return s
}

// RecordKill enqueues stat deltas for a kill (non-blocking). Guest ids (0)
// are skipped.
func (s *StatsWriter) RecordKill(killerID, victimID int64) {
	if killerID != 0 {
		s.enqueue(statDelta{playerID: killerID, kills: 1})
	}
	if victimID != 0 {
		s.enqueue(statDelta{playerID: victimID, deaths: 1})
	}
}

func (s *StatsWriter) enqueue(d statDelta) {
	select {
	case s.events <- d:
	default:
		// Channel full, drop rather than blocking a game loop
	}
}

// Stop flushes and shuts down the writer
func (s *StatsWriter) Stop() {
	close(s.stop)
	s.wg.Wait()
}

// writer batches deltas per account and flushes periodically
func (s *StatsWriter) writer() {
	defer s.wg.Done()

	batch := make(map[int64]*statDelta)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	flush := func() {
		for id, d := range batch {
			if err := s.db.AddStats(id, d.kills, d.deaths); err != nil {
				log.Printf("stats flush: %v", err)
			}
		}
		clear(batch)
	}

	for {
		select {
		case d := <-s.events:
			agg, ok := batch[d.playerID]
			if !ok {
				agg = &statDelta{playerID: d.playerID}
				batch[d.playerID] = agg
			}
			agg.kills += d.kills
			agg.deaths += d.deaths
			if len(batch) >= 50 {
				flush()
			}
		case <-ticker.C:
			if len(batch) > 0 {
				flush()
			}
		case <-s.stop:
			// Drain what's queued, then final flush
			for {
				select {
				case d := <-s.events:
					agg, ok := batch[d.playerID]
					if !ok {
						agg = &statDelta{playerID: d.playerID}
						batch[d.playerID] = agg
					}
					agg.kills += d.kills
					agg.deaths += d.deaths
				default:
					flush()
					return
				}
			}
		}
	}
}
