package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/podium-rally/game/agent"
	"github.com/wricardo/podium-rally/game/config"
	"github.com/wricardo/podium-rally/game/engine"
	"github.com/wricardo/podium-rally/game/track"
	"golang.org/x/sync/errgroup"
)

type simulateOptions struct {
	Cars     int
	Laps     int
	Seed     uint64
	Races    int
	Parallel int
	Verbose  bool
}

// raceResult is the outcome of one simulated race
type raceResult struct {
	Index        int
	Seed         uint64
	Turns        int
	Collisions   int
	EngineDamage int
	Standings    []engine.Standing
}

// loadTrack resolves ref as a track file path first, then as an id in dir.
// An empty ref picks the catalogue default.
func loadTrack(dir, ref string) (*track.Track, error) {
	if ref != "" && track.IsTrackFile(ref) {
		if _, err := os.Stat(ref); err == nil {
			return track.LoadFile(ref)
		}
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) && ref == "" {
		data, err := track.Oval(config.DefaultOvalSpec())
		if err != nil {
			return nil, err
		}
		return track.Build(data)
	}

	catalog, err := config.NewManager(dir)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		ref = catalog.DefaultTrackID()
	}
	return catalog.LoadTrack(ref)
}

func runSimulate(ctx context.Context, cmd *cli.Command) error {
	t, err := loadTrack(cmd.String("tracks-dir"), cmd.String("track"))
	if err != nil {
		return err
	}

	opts := simulateOptions{
		Cars:     cmd.Int("cars"),
		Laps:     cmd.Int("laps"),
		Seed:     cmd.Uint64("seed"),
		Races:    cmd.Int("races"),
		Parallel: cmd.Int("parallel"),
		Verbose:  cmd.Bool("verbose"),
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}

	start := time.Now()
	results, err := simulate(ctx, t, opts)
	if err != nil {
		return err
	}

	printResults(os.Stdout, t.Summary(), results)
	log.Printf("Simulated %d races in %s", len(results), time.Since(start).Round(time.Millisecond))
	return nil
}

// simulate runs opts.Races independent races on t, at most opts.Parallel at
// a time. Race i uses seed opts.Seed+i, so a batch is reproducible.
func simulate(ctx context.Context, t *track.Track, opts simulateOptions) ([]raceResult, error) {
	if opts.Races <= 0 {
		return nil, fmt.Errorf("races must be positive, got %d", opts.Races)
	}
	if opts.Cars <= 0 {
		return nil, fmt.Errorf("cars must be positive, got %d", opts.Cars)
	}

	results := make([]raceResult, opts.Races)
	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}

	for i := 0; i < opts.Races; i++ {
		g.Go(func() error {
			res, err := simulateRace(gctx, t, opts, i)
			if err != nil {
				return fmt.Errorf("race %d (seed %d): %w", i+1, opts.Seed+uint64(i), err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func simulateRace(ctx context.Context, t *track.Track, opts simulateOptions, i int) (raceResult, error) {
	res := raceResult{Index: i + 1, Seed: opts.Seed + uint64(i)}

	entrants := make([]engine.Entrant, opts.Cars)
	for seat := range entrants {
		name := fmt.Sprintf("Car %d", seat+1)
		entrants[seat] = engine.Entrant{Name: name, Agent: agent.NewHeuristic(name)}
	}

	// Notify runs on the race's own goroutine
	cfg := engine.DefaultConfig()
	cfg.Laps = opts.Laps
	cfg.Seed = res.Seed
	cfg.Notifier = engine.NotifierFunc(func(e engine.Event) {
		switch e.Type {
		case engine.EventCollision:
			res.Collisions++
		case engine.EventEngineDamage:
			res.EngineDamage++
		}
	})
	if opts.Verbose {
		cfg.Logger = log.New(os.Stderr, fmt.Sprintf("[race %d] ", res.Index), log.LstdFlags)
	}

	race, err := engine.NewRace(t, entrants, cfg)
	if err != nil {
		return res, err
	}
	standings, err := race.Run(ctx)
	if err != nil {
		return res, err
	}

	res.Standings = standings
	res.Turns = race.Snapshot().Turn
	return res, nil
}

// seatStats aggregates the results of one seat over a batch
type seatStats struct {
	Seat        int
	Name        string
	Wins        int
	Finishes    int
	Retirements int
	PositionSum int
}

func aggregate(results []raceResult) []seatStats {
	bySeat := map[int]*seatStats{}
	for _, res := range results {
		for _, s := range res.Standings {
			st, ok := bySeat[s.Seat]
			if !ok {
				st = &seatStats{Seat: s.Seat, Name: s.Name}
				bySeat[s.Seat] = st
			}
			st.PositionSum += s.Position
			if s.Finished {
				st.Finishes++
				if s.Position == 1 {
					st.Wins++
				}
			} else if !s.Active {
				st.Retirements++
			}
		}
	}

	out := make([]seatStats, 0, len(bySeat))
	for _, st := range bySeat {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out
}

func printResults(w io.Writer, summary track.Summary, results []raceResult) {
	fmt.Fprintf(w, "Track: %s (%d nodes, %d lanes, %d curves)\n", summary.Name, summary.Nodes, summary.Lanes, summary.Curves)

	for _, res := range results {
		fmt.Fprintf(w, "\n%s Race %d (seed %d): %d turns, %d collisions, %d engine damage\n",
			strings.Repeat("=", 4), res.Index, res.Seed, res.Turns, res.Collisions, res.EngineDamage)
		for _, s := range res.Standings {
			status := "finished"
			switch {
			case !s.Finished && !s.Active:
				status = "retired: " + s.Reason
			case !s.Finished:
				status = fmt.Sprintf("%d laps to go", s.LapsToGo)
			}
			fmt.Fprintf(w, "  %d. %-8s seat %d  hp %2d  %3d turns  %s\n", s.Position, s.Name, s.Seat, s.Hitpoints, s.Turns, status)
		}
	}

	if len(results) < 2 {
		return
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	fmt.Fprintf(w, "%-8s %5s %5s %8s %8s\n", "car", "wins", "done", "retired", "avg pos")
	for _, st := range aggregate(results) {
		fmt.Fprintf(w, "%-8s %5d %5d %8d %8.2f\n", st.Name, st.Wins, st.Finishes, st.Retirements, float64(st.PositionSum)/float64(len(results)))
	}
}
