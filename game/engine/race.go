package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/wricardo/podium-rally/game/track"
)

// Race drives one race turn by turn. A single goroutine calls Start, Step
// and Run; Snapshot and Standings may be called from anywhere.
type Race struct {
	mu sync.RWMutex

	track  *track.Track
	cfg    Config
	laps   int
	rng    *rand.Rand
	log    *log.Logger
	notify Notifier

	players []*PlayerState
	agents  []Agent
	queue   []int
	retired []int

	turn     int
	round    int
	current  int
	started  bool
	finished bool
}

// NewRace puts the entrants on the starting grid in entry order
func NewRace(t *track.Track, entrants []Entrant, cfg Config) (*Race, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if len(entrants) == 0 {
		return nil, ErrNoPlayers
	}
	grid := t.Grid()
	if len(entrants) > len(grid) || len(entrants) > MaxPlayers {
		return nil, fmt.Errorf("%w: %d entrants, %d slots", ErrTooManyPlayers, len(entrants), min(len(grid), MaxPlayers))
	}

	cfg = cfg.withDefaults()
	r := &Race{
		track:   t,
		cfg:     cfg,
		laps:    cfg.Laps,
		rng:     newRand(cfg.Seed),
		log:     cfg.Logger,
		notify:  cfg.Notifier,
		current: -1,
	}
	if r.laps == 0 {
		r.laps = t.Laps
	}

	for i, e := range entrants {
		if e.Agent == nil {
			return nil, fmt.Errorf("entrant %d has no agent", i)
		}
		name := e.Name
		if name == "" {
			name = fmt.Sprintf("Player %d", i+1)
		}
		r.players = append(r.players, &PlayerState{
			Seat:         i,
			Name:         name,
			Node:         grid[i],
			Hitpoints:    cfg.MaxHitpoints,
			MaxHitpoints: cfg.MaxHitpoints,
			LapsToGo:     r.laps,
			Leeway:       cfg.Leeway,
		})
		r.agents = append(r.agents, e.Agent)
	}
	return r, nil
}

// Track returns the race track
func (r *Race) Track() *track.Track {
	return r.track
}

// Laps returns the race distance in laps
func (r *Race) Laps() int {
	return r.laps
}

// Finished reports whether every car has left the race
func (r *Race) Finished() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finished
}

// update applies a state change under the write lock
func (r *Race) update(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

func (r *Race) emit(e Event) {
	if e.Turn == 0 {
		e.Turn = r.turn
	}
	r.notify.Notify(e)
}

// Start introduces the race to every agent and forms the first round.
// Agents that fail keep their entry name.
func (r *Race) Start(ctx context.Context) error {
	if r.started {
		return ErrRaceAlreadyStarted
	}

	summary := r.track.Summary()
	summary.Laps = r.laps
	for seat, agent := range r.agents {
		info := RaceInfo{
			Seat:    seat,
			Players: len(r.players),
			Laps:    r.laps,
			Summary: summary,
			Track:   r.track,
		}
		p := r.players[seat]
		name, out, err := Governed(ctx, r.cfg.Clock, r.deadline(p), func(ctx context.Context) (string, error) {
			return agent.OnRaceStart(ctx, info)
		})
		if err != nil {
			return err
		}
		r.update(func() { p.Account(out, r.cfg.BaseTimeout) })
		if !out.OK() {
			r.log.Printf("race: seat %d did not answer race start: timeout=%v err=%v", seat, out.TimedOut, out.Err)
			continue
		}
		if name != "" {
			r.update(func() { p.Name = name })
		}
	}

	r.update(func() { r.started = true })
	r.emit(Event{Type: EventRaceStart, Seat: -1, Value: r.laps, Message: r.track.Name})
	r.newRound()
	return nil
}

// newRound queues the active cars in comparator order
func (r *Race) newRound() {
	active := r.activePlayers()
	SortPlayers(r.track, active)

	r.update(func() {
		r.round++
		r.queue = r.queue[:0]
		for _, p := range active {
			r.queue = append(r.queue, p.Seat)
		}
	})
	r.emit(Event{Type: EventRound, Seat: -1, Value: r.round})
}

func (r *Race) activePlayers() []*PlayerState {
	var out []*PlayerState
	for _, p := range r.players {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

func (r *Race) occupied(except int) map[int]bool {
	occ := make(map[int]bool, len(r.players))
	for _, p := range r.players {
		if p.Active() && p.Seat != except {
			occ[p.Node] = true
		}
	}
	return occ
}

// Run plays the race to the end and returns the final standings
func (r *Race) Run(ctx context.Context) ([]Standing, error) {
	if !r.started {
		if err := r.Start(ctx); err != nil {
			return nil, err
		}
	}
	for !r.finished {
		if err := r.Step(ctx); err != nil {
			return nil, err
		}
	}
	return r.Standings(), nil
}

// Step plays one turn for the car at the head of the queue
func (r *Race) Step(ctx context.Context) error {
	if !r.started {
		return ErrRaceNotStarted
	}
	if r.finished {
		return ErrRaceFinished
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if r.cfg.MaxTurns > 0 && r.turn >= r.cfg.MaxTurns {
		for _, p := range r.activePlayers() {
			r.retire(p, "turn limit reached", false)
		}
		r.finish()
		return nil
	}

	if len(r.queue) == 0 {
		r.newRound()
	}
	if len(r.queue) == 0 {
		return fmt.Errorf("%w: no queued player while %d remain active", ErrInvariant, len(r.activePlayers()))
	}

	seat := r.queue[0]
	p := r.players[seat]
	if !p.Active() {
		return fmt.Errorf("%w: stopped seat %d still queued", ErrInvariant, seat)
	}
	r.update(func() {
		r.queue = r.queue[1:]
		r.current = seat
		r.turn++
		p.Turns++
	})

	r.checkLiveness(p)

	if err := r.shift(ctx, p); err != nil {
		return err
	}

	roll := Roll(r.rng, p.Gear)
	r.emit(Event{Type: EventRoll, Seat: seat, Value: roll})

	menu := BuildMenu(r.track, MenuParams{
		Start:           p.Node,
		Roll:            roll,
		Hitpoints:       p.Hitpoints,
		Occupied:        r.occupied(seat),
		StopsDone:       p.CurveStops,
		FinalLap:        p.FinalLap(),
		PitEntryAllowed: PitEntryAllowed(p),
	})

	switch {
	case p.Leeway <= 0:
		r.retire(p, "time budget exhausted", false)
	case len(menu) == 0:
		r.retire(p, "no legal move", false)
	default:
		if err := r.move(ctx, p, roll, menu); err != nil {
			return err
		}
	}

	for _, other := range r.players {
		if other.Active() && other.Hitpoints <= 0 {
			r.retire(other, "wrecked", false)
		}
	}

	r.update(func() { r.current = -1 })
	if len(r.activePlayers()) == 0 {
		r.finish()
	}
	return nil
}

func (r *Race) checkLiveness(p *PlayerState) {
	l, ok := r.agents[p.Seat].(Liveness)
	if !ok || p.Disconnected || l.Alive() {
		return
	}
	r.update(func() { p.Disconnected = true })
	r.log.Printf("race: seat %d (%s) disconnected", p.Seat, p.Name)
	r.emit(Event{Type: EventDisconnected, Seat: p.Seat})
}

func (r *Race) deadline(p *PlayerState) time.Duration {
	return r.cfg.BaseTimeout + p.Leeway
}

// shift asks for a gear and applies it when legal
func (r *Race) shift(ctx context.Context, p *PlayerState) error {
	snap := r.Snapshot()
	agent := r.agents[p.Seat]
	requested, out, err := Governed(ctx, r.cfg.Clock, r.deadline(p), func(ctx context.Context) (int, error) {
		return agent.SelectGear(ctx, snap)
	})
	if err != nil {
		return err
	}
	r.update(func() { p.Account(out, r.cfg.BaseTimeout) })
	if !out.OK() {
		r.log.Printf("race: seat %d gear call failed: timeout=%v err=%v", p.Seat, out.TimedOut, out.Err)
		r.emit(Event{Type: EventGear, Seat: p.Seat, Value: p.Gear, Message: "no answer"})
		return nil
	}

	inPit := r.track.MustNode(p.Node).IsPit()
	cost, ok := ShiftCost(p.Gear, requested, p.Hitpoints, inPit)
	if !ok {
		r.log.Printf("race: seat %d asked for gear %d from %d, keeping it", p.Seat, requested, p.Gear)
		r.emit(Event{Type: EventGear, Seat: p.Seat, Value: p.Gear, Message: fmt.Sprintf("gear %d rejected", requested)})
		return nil
	}

	r.update(func() {
		p.Gear = requested
		p.Hitpoints -= cost
	})
	r.emit(Event{Type: EventGear, Seat: p.Seat, Value: p.Gear})
	if cost > 0 {
		r.emit(Event{Type: EventHitpoints, Seat: p.Seat, Value: p.Hitpoints, Message: "downshift"})
	}
	return nil
}

// move asks for a menu entry, applies it and resolves damage
func (r *Race) move(ctx context.Context, p *PlayerState, roll int, menu []ValidMove) error {
	req := MoveRequest{
		Seat:      p.Seat,
		Gear:      p.Gear,
		Roll:      roll,
		Hitpoints: p.Hitpoints,
		Moves:     cloneMoves(menu),
		Snapshot:  r.Snapshot(),
	}
	agent := r.agents[p.Seat]
	idx, out, err := Governed(ctx, r.cfg.Clock, r.deadline(p), func(ctx context.Context) (int, error) {
		return agent.SelectMove(ctx, req)
	})
	if err != nil {
		return err
	}
	r.update(func() { p.Account(out, r.cfg.BaseTimeout) })
	if !out.OK() {
		r.log.Printf("race: seat %d move call failed: timeout=%v err=%v", p.Seat, out.TimedOut, out.Err)
		idx = 0
	} else if idx < 0 || idx >= len(menu) {
		r.log.Printf("race: seat %d chose move %d of %d, taking the first", p.Seat, idx, len(menu))
		idx = 0
	}

	if err := r.apply(p, menu[idx]); err != nil {
		return err
	}

	// A car that just finished is off the track and cannot collide
	if p.Active() {
		for _, h := range ResolveCollisions(r.track, r.rng, r.cfg.CollisionChance, p, r.players) {
			r.damage(h, EventCollision)
		}
	}
	if TriggersEngineDamage(p.Gear, roll) {
		for _, h := range ResolveEngineDamage(r.rng, r.cfg.EngineDamageChance, r.players) {
			r.damage(h, EventEngineDamage)
		}
	}
	return nil
}

// apply moves p along m and updates hitpoints, curve stops and laps
func (r *Race) apply(p *PlayerState, m ValidMove) error {
	from := r.track.MustNode(p.Node)
	dest := r.track.MustNode(m.Node)
	crossings := r.track.CountCrossings(m.Path)
	prevStops := p.CurveStops

	r.update(func() {
		p.Node = m.Node
		p.Hitpoints -= m.Damage()
		switch {
		case dest.IsCurve() && dest.Area == from.Area:
			p.CurveStops++
		case dest.IsCurve():
			p.CurveStops = 1
		default:
			p.CurveStops = 0
		}
		p.LapsToGo = max(0, p.LapsToGo-crossings)
	})

	r.emit(Event{Type: EventMoved, Seat: p.Seat, Node: m.Node, Path: append([]int(nil), m.Path...), Value: m.Damage()})
	if m.Damage() > 0 {
		r.emit(Event{Type: EventHitpoints, Seat: p.Seat, Value: p.Hitpoints, Message: "move"})
	}
	if p.CurveStops != prevStops {
		r.emit(Event{Type: EventCurveStop, Seat: p.Seat, Node: m.Node, Value: p.CurveStops})
	}
	if crossings > 0 {
		r.emit(Event{Type: EventLap, Seat: p.Seat, Value: p.LapsToGo})
	}

	if p.Hitpoints <= 0 {
		return fmt.Errorf("%w: move to node %d left seat %d with %d hitpoints", ErrInvariant, m.Node, p.Seat, p.Hitpoints)
	}

	if dest.Garage && p.Hitpoints < p.MaxHitpoints {
		r.update(func() { p.Hitpoints = p.MaxHitpoints })
		r.emit(Event{Type: EventHitpoints, Seat: p.Seat, Value: p.Hitpoints, Message: "garage"})
	}
	if p.LapsToGo == 0 {
		r.retire(p, "finished", true)
	}
	return nil
}

func (r *Race) damage(h Hit, kind EventType) {
	p := r.players[h.Seat]
	r.update(func() { p.Hitpoints = max(0, p.Hitpoints-1) })
	r.emit(Event{Type: kind, Seat: h.Seat, Other: h.Cause, Value: p.Hitpoints})
}

// retire takes p out of the race for good
func (r *Race) retire(p *PlayerState, reason string, finished bool) {
	r.update(func() {
		p.Stopped = true
		p.Finished = finished
		p.Reason = reason
		r.retired = append(r.retired, p.Seat)
		p.RetiredSeq = len(r.retired)
		for i, s := range r.queue {
			if s == p.Seat {
				r.queue = append(r.queue[:i], r.queue[i+1:]...)
				break
			}
		}
	})
	r.log.Printf("race: seat %d (%s) out after %d turns: %s", p.Seat, p.Name, p.Turns, reason)
	r.emit(Event{Type: EventRetired, Seat: p.Seat, Node: p.Node, Value: p.RetiredSeq, Message: reason})
}

func (r *Race) finish() {
	r.update(func() {
		r.finished = true
		r.current = -1
	})
	r.emit(Event{Type: EventStandings, Seat: -1, Standings: r.Standings()})
}

// Snapshot returns a deep copy of the race state
func (r *Race) Snapshot() RaceSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := r.track.Summary()
	summary.Laps = r.laps
	snap := RaceSnapshot{
		Track:    summary,
		Turn:     r.turn,
		Round:    r.round,
		Current:  r.current,
		Started:  r.started,
		Finished: r.finished,
		Order:    append([]int(nil), r.queue...),
		Retired:  append([]int(nil), r.retired...),
	}
	for _, p := range r.players {
		snap.Players = append(snap.Players, *p)
	}
	return snap
}

// Standings ranks finishers in finishing order, then cars still running
// in turn order, then retired cars with the last to retire first.
func (r *Race) Standings() []Standing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var finishers, running, out []*PlayerState
	for _, seat := range r.retired {
		if p := r.players[seat]; p.Finished {
			finishers = append(finishers, p)
		}
	}
	for _, p := range r.players {
		if p.Active() {
			running = append(running, p)
		}
	}
	SortPlayers(r.track, running)
	for i := len(r.retired) - 1; i >= 0; i-- {
		if p := r.players[r.retired[i]]; !p.Finished {
			out = append(out, p)
		}
	}

	ranked := append(append(finishers, running...), out...)
	standings := make([]Standing, 0, len(ranked))
	for i, p := range ranked {
		standings = append(standings, Standing{
			Position:  i + 1,
			Seat:      p.Seat,
			Name:      p.Name,
			Finished:  p.Finished,
			Active:    p.Active(),
			Reason:    p.Reason,
			LapsToGo:  p.LapsToGo,
			Hitpoints: p.Hitpoints,
			Turns:     p.Turns,
		})
	}
	return standings
}

func cloneMoves(moves []ValidMove) []ValidMove {
	out := make([]ValidMove, len(moves))
	for i, m := range moves {
		m.Path = append([]int(nil), m.Path...)
		out[i] = m
	}
	return out
}

// SeatsByOrder returns seat numbers ordered by the turn-order comparator
func (r *Race) SeatsByOrder() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ps := append([]*PlayerState(nil), r.players...)
	SortPlayers(r.track, ps)
	seats := make([]int, len(ps))
	for i, p := range ps {
		seats[i] = p.Seat
	}
	return seats
}
