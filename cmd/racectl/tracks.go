package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/podium-rally/game/config"
	"github.com/wricardo/podium-rally/game/track"
)

// validationResult captures the outcome of validating a single track file.
type validationResult struct {
	File     string
	Summary  track.Summary
	Problems []error
}

func (r validationResult) Valid() bool {
	return len(r.Problems) == 0
}

// validateFile loads and builds one track file, collecting every problem the
// builder reports.
func validateFile(path string) validationResult {
	result := validationResult{File: filepath.Base(path)}

	t, err := track.LoadFile(path)
	if err != nil {
		var buildErr *track.BuildError
		if errors.As(err, &buildErr) {
			result.Problems = buildErr.Problems()
		} else {
			result.Problems = []error{err}
		}
		return result
	}

	result.Summary = t.Summary()
	return result
}

// validateDir validates every track file in dir, sorted by name.
func validateDir(dir string) ([]validationResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracks directory: %w", err)
	}

	var results []validationResult
	for _, entry := range entries {
		if entry.IsDir() || !track.IsTrackFile(entry.Name()) {
			continue
		}
		results = append(results, validateFile(filepath.Join(dir, entry.Name())))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	return results, nil
}

func printValidation(w io.Writer, results []validationResult) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid() {
			s := result.Summary
			fmt.Fprintln(w, "VALID")
			fmt.Fprintf(w, "  %s: %d laps, %d nodes, %d lanes, %d curves, grid %d\n", s.Name, s.Laps, s.Nodes, s.Lanes, s.Curves, s.GridSize)
			continue
		}

		allValid = false
		fmt.Fprintln(w, "INVALID")
		for _, problem := range result.Problems {
			fmt.Fprintf(w, "  - %v\n", problem)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	switch {
	case len(results) == 0:
		fmt.Fprintln(w, "No track files found")
	case allValid:
		fmt.Fprintf(w, "All %d tracks are valid\n", len(results))
	default:
		fmt.Fprintln(w, "Some tracks have errors")
	}
	return allValid
}

func runValidate(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.String("tracks-dir")
	if cmd.Args().Present() {
		dir = cmd.Args().First()
	}

	results, err := validateDir(dir)
	if err != nil {
		return err
	}
	if !printValidation(os.Stdout, results) {
		return cli.Exit("", 1)
	}
	return nil
}

// analyzeTrack prints the derived structure of t: lanes, curve areas, the
// pit lane and how crowded the collision map is.
func analyzeTrack(w io.Writer, t *track.Track) {
	s := t.Summary()
	fmt.Fprintf(w, "Name: %s\n", s.Name)
	if s.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", s.Description)
	}
	fmt.Fprintf(w, "Laps: %d\n", s.Laps)
	fmt.Fprintf(w, "Nodes: %d\n", s.Nodes)
	fmt.Fprintf(w, "Lap length: %.1f\n", s.LapLength)
	fmt.Fprintf(w, "Starting grid: %v\n", t.Grid())
	fmt.Fprintf(w, "Finish nodes: %v\n", t.FinishNodes())

	fmt.Fprintf(w, "\nLanes (%d):\n", s.Lanes)
	for _, lane := range t.Lanes() {
		kind := "full"
		if lane.Middle {
			kind = "middle"
		}
		fmt.Fprintf(w, "  %d: lane %.1f, %s, %d nodes\n", lane.Index, lane.Nominal, kind, len(lane.Nodes))
	}

	fmt.Fprintf(w, "\nCurve areas (%d):\n", s.Curves)
	for _, area := range t.Areas() {
		fmt.Fprintf(w, "  %d: %s, %d stops, %d nodes, entries %v, exits %v\n",
			area.ID, area.Type, area.StopCount, len(area.Nodes), area.Entries, area.Exits)
	}

	if pit := t.PitLane(); pit != nil {
		fmt.Fprintf(w, "\nPit lane: %d nodes from %d to %d", len(pit.Nodes), pit.Entry, pit.Exit)
		if pit.Straddles {
			fmt.Fprint(w, ", straddles the finish line")
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "\nPit lane: none")
	}

	total, most, busiest := 0, 0, -1
	ids := t.NodeIDs()
	for _, id := range ids {
		n := len(t.Neighbours(id))
		total += n
		if n > most {
			most, busiest = n, id
		}
	}
	if len(ids) > 0 {
		fmt.Fprintf(w, "\nCollision map: %.2f neighbours per node on average, at most %d (node %d)\n",
			float64(total)/float64(len(ids)), most, busiest)
	}
}

func runAnalyze(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Args().Present() {
		return cli.Exit("analyze needs a track id or file", 2)
	}

	t, err := loadTrack(cmd.String("tracks-dir"), cmd.Args().First())
	if err != nil {
		return err
	}
	analyzeTrack(os.Stdout, t)
	return nil
}

const defaultSections = "straight:8,curve2:3,straight:6,curve2:3,straight:4"

// parseSections reads a "type:rows,type:rows" list
func parseSections(s string) ([]track.Section, error) {
	var sections []track.Section
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, rowsStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("section %q: expected type:rows", part)
		}
		typ := track.NodeType(strings.ToLower(strings.TrimSpace(name)))
		if typ != track.Straight && !typ.IsCurve() {
			return nil, fmt.Errorf("section %q: %s is neither a straight nor a curve", part, name)
		}
		rows, err := strconv.Atoi(strings.TrimSpace(rowsStr))
		if err != nil {
			return nil, fmt.Errorf("section %q: invalid rows: %w", part, err)
		}
		sections = append(sections, track.Section{Type: typ, Rows: rows})
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("no sections given")
	}
	return sections, nil
}

// generateTrack builds an oval from spec and saves it in dir as
// name.<format>. It returns the written path.
func generateTrack(dir, name, format string, spec track.OvalSpec) (string, error) {
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	filename := name + "." + format
	if !track.IsTrackFile(filename) {
		return "", fmt.Errorf("unsupported format %q", format)
	}

	data, err := track.Oval(spec)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create tracks directory: %w", err)
	}
	catalog, err := config.NewManager(dir)
	if err != nil {
		return "", err
	}
	if err := catalog.SaveTrack(filename, data); err != nil {
		return "", err
	}
	return filepath.Join(dir, filename), nil
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Args().Present() {
		return cli.Exit("generate needs a track name", 2)
	}
	name := cmd.Args().First()
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return cli.Exit(fmt.Sprintf("invalid track name %q", name), 2)
	}

	sections, err := parseSections(cmd.String("sections"))
	if err != nil {
		return err
	}

	spec := track.OvalSpec{
		Name:        name,
		Description: cmd.String("description"),
		Laps:        cmd.Int("laps"),
		Sections:    sections,
		GridRows:    cmd.Int("grid-rows"),
		PitLength:   cmd.Int("pit-length"),
		GarageAt:    cmd.Int("garage-at"),
	}

	path, err := generateTrack(cmd.String("tracks-dir"), name, cmd.String("format"), spec)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
