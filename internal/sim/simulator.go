// Package sim drives a set of clients across a traffic area, one MoveTo per
// client per round, until they arrive, stall or run out of rounds.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/traffic-control/internal/config"
	"github.com/banshee-data/traffic-control/internal/monitoring"
	"github.com/banshee-data/traffic-control/internal/timeutil"
	"github.com/banshee-data/traffic-control/internal/traffic"
)

// Move is one MoveTo call as observed by the driver.
type Move struct {
	Round  int
	Client traffic.ClientID
	From   traffic.Coordinate
	To     traffic.Coordinate
	Target traffic.Coordinate
}

// Moved reports whether the client changed cell.
func (m Move) Moved() bool { return m.From != m.To }

// Recorder receives every move the simulator makes.
type Recorder interface {
	RecordMove(m Move) error
}

// Result summarises a run.
type Result struct {
	Rounds   int
	Moves    int
	Arrived  []traffic.ClientID
	Rejected []traffic.ClientID
	Stalled  bool
	Paths    map[traffic.ClientID][]traffic.Coordinate
}

// AllArrived reports whether every admitted client reached its target.
func (r *Result) AllArrived() bool {
	return len(r.Arrived) == len(r.Paths)
}

// Controller is the part of traffic.Controller the simulator drives. The
// HTTP client in package api implements it against a remote server.
type Controller interface {
	Start(id traffic.ClientID) (traffic.Coordinate, error)
	MoveTo(id traffic.ClientID, target traffic.Coordinate) (traffic.Coordinate, error)
	Contains(at traffic.Coordinate) bool
}

// Simulator admits clients 0..n-1 and moves them toward their targets.
type Simulator struct {
	ctrl      Controller
	cfg       *config.SimulationConfig
	clock     timeutil.Clock
	recorders []Recorder
	logf      func(format string, v ...interface{})
}

// New creates a simulator over ctrl. cfg supplies the client count, targets,
// round limit and the pause between rounds.
func New(ctrl Controller, cfg *config.SimulationConfig) *Simulator {
	return &Simulator{
		ctrl:  ctrl,
		cfg:   cfg,
		clock: timeutil.RealClock{},
		logf:  monitoring.Prefixed("sim"),
	}
}

// SetClock replaces the clock used between rounds.
func (s *Simulator) SetClock(c timeutil.Clock) {
	s.clock = c
}

// AddRecorder registers r to receive moves.
func (s *Simulator) AddRecorder(r Recorder) {
	s.recorders = append(s.recorders, r)
}

type runner struct {
	id     traffic.ClientID
	target traffic.Coordinate
	done   bool
}

// Run executes the simulation. On cancellation it returns the partial result
// together with the context error.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	targets := s.cfg.GetTargets()
	for _, t := range targets {
		if !s.ctrl.Contains(t) {
			return nil, fmt.Errorf("target %v lies outside the area", t)
		}
	}

	res := &Result{Paths: make(map[traffic.ClientID][]traffic.Coordinate)}
	var runners []*runner

	for i := 0; i < s.cfg.GetClients(); i++ {
		id := traffic.ClientID(i)
		pos, err := s.ctrl.Start(id)
		if err != nil {
			var mnp *traffic.MovementNotPossible
			if !errors.As(err, &mnp) {
				return nil, fmt.Errorf("start client %d: %w", id, err)
			}
			s.logf("client %d not admitted: %v", id, err)
			res.Rejected = append(res.Rejected, id)
			continue
		}
		r := &runner{id: id, target: targets[i%len(targets)]}
		res.Paths[id] = []traffic.Coordinate{pos}
		if pos == r.target {
			r.done = true
			res.Arrived = append(res.Arrived, id)
		}
		runners = append(runners, r)
	}
	s.logf("admitted %d clients, rejected %d", len(runners), len(res.Rejected))

	maxSteps := s.cfg.GetMaxSteps()
	interval := s.cfg.GetStepInterval()

	for round := 1; round <= maxSteps && !res.AllArrived(); round++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		moved := false
		for _, r := range runners {
			if r.done {
				continue
			}
			path := res.Paths[r.id]
			from := path[len(path)-1]
			to, err := s.ctrl.MoveTo(r.id, r.target)
			if err != nil {
				return res, fmt.Errorf("round %d: move client %d: %w", round, r.id, err)
			}
			res.Paths[r.id] = append(path, to)
			res.Moves++

			m := Move{Round: round, Client: r.id, From: from, To: to, Target: r.target}
			if m.Moved() {
				moved = true
			}
			for _, rec := range s.recorders {
				if err := rec.RecordMove(m); err != nil {
					return res, fmt.Errorf("record move: %w", err)
				}
			}
			if to == r.target {
				r.done = true
				res.Arrived = append(res.Arrived, r.id)
			}
		}
		res.Rounds = round

		if !moved && !res.AllArrived() {
			res.Stalled = true
			s.logf("stalled after %d rounds, %d of %d arrived", round, len(res.Arrived), len(runners))
			break
		}
		if interval > 0 && round < maxSteps && !res.AllArrived() {
			if err := s.clock.SleepContext(ctx, interval); err != nil {
				return res, err
			}
		}
	}

	s.logf("finished after %d rounds: %d arrived, %d moves", res.Rounds, len(res.Arrived), res.Moves)
	return res, nil
}
