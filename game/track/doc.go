// Package track loads and validates race tracks.
//
// A track is a directed graph of nodes. Finish nodes are virtual roots
// whose children form the finish line; lane tails point back to the line,
// closing the lap. Build derives everything the rules engine needs:
//   - a progress distance per node, strictly increasing along main edges
//   - curve areas, with their entries, exits and stop counts
//   - the 3 or 4 traced lanes and the cross-lane collision map
//   - the optional pit lane and the edges that cross the finish line
//
// Usage:
//
//	t, err := track.LoadFile("tracks/monza.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(t.Summary())
//
// Built tracks are immutable and safe to share between concurrent races.
package track
