// Command racectl is the offline toolbox for Podium Rally: it simulates
// races between heuristic cars, validates and analyzes track files, and
// generates oval tracks.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/urfave/cli/v3"
)

func tracksDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "tracks-dir",
		Aliases: []string{"d"},
		Value:   "tracks",
		Usage:   "directory containing track files",
		Sources: cli.EnvVars("TRACKS_DIR"),
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "racectl",
		Usage: "simulate races and inspect Podium Rally tracks",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "log file and line numbers"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "simulate",
				Usage: "race heuristic cars against each other",
				Flags: []cli.Flag{
					tracksDirFlag(),
					&cli.StringFlag{Name: "track", Aliases: []string{"t"}, Usage: "track id in the tracks directory, or a track file path"},
					&cli.IntFlag{Name: "cars", Aliases: []string{"n"}, Value: 4, Usage: "cars per race"},
					&cli.IntFlag{Name: "laps", Usage: "laps per race (0 uses the track's)"},
					&cli.Uint64Flag{Name: "seed", Usage: "seed of the first race; race i uses seed+i (0 picks one from the clock)"},
					&cli.IntFlag{Name: "races", Aliases: []string{"r"}, Value: 1, Usage: "number of races"},
					&cli.IntFlag{Name: "parallel", Aliases: []string{"p"}, Value: runtime.NumCPU(), Usage: "races run at once"},
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log every race event"},
				},
				Action: runSimulate,
			},
			{
				Name:      "validate",
				Usage:     "check every track file in a directory",
				ArgsUsage: "[dir]",
				Flags:     []cli.Flag{tracksDirFlag()},
				Action:    runValidate,
			},
			{
				Name:      "analyze",
				Usage:     "print lanes, curve areas, pit lane and collision map of a track",
				ArgsUsage: "<track id or file>",
				Flags:     []cli.Flag{tracksDirFlag()},
				Action:    runAnalyze,
			},
			{
				Name:      "generate",
				Usage:     "write a generated oval track into the tracks directory",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					tracksDirFlag(),
					&cli.StringFlag{Name: "sections", Value: defaultSections, Usage: "comma separated type:rows list, starting and ending with a straight"},
					&cli.StringFlag{Name: "description", Usage: "track description"},
					&cli.IntFlag{Name: "laps", Value: 3, Usage: "laps"},
					&cli.IntFlag{Name: "grid-rows", Value: 3, Usage: "starting grid rows (three cars each)"},
					&cli.IntFlag{Name: "pit-length", Usage: "pit lane nodes (0 for none)"},
					&cli.IntFlag{Name: "garage-at", Usage: "pit node holding the garage"},
					&cli.StringFlag{Name: "format", Value: "yaml", Usage: "yaml or json"},
				},
				Action: runGenerate,
			},
		},
	}
}

func main() {
	log.SetFlags(log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "racectl:", err)
		os.Exit(1)
	}
}
