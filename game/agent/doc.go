// Package agent provides the drivers that make decisions for a car.
//
// Every type here implements engine.Agent:
//   - Heuristic: picks gears by the distance to the next curve and moves by
//     damage, then progress
//   - Manual: parks each question as a pending Decision until a human
//     answers it through Submit (the REST API and MCP tools do this)
//   - Remote: forwards calls to a peer over a websocket, redialling with
//     backoff and optionally falling back to a Heuristic
//
// Remote Protocol:
//
// Each call is one JSON Request carrying a fresh id and one of the methods
// race_start, select_gear or select_move. The peer answers with a Response
// carrying the same id; responses may arrive in any order. Serve implements
// the peer side for any engine.Agent:
//
//	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = agent.Serve(ctx, conn, agent.NewHeuristic("bot"))
//
// Usage:
//
//	remote, err := agent.DialRemote(ctx, "ws://peer:9000/agent",
//		agent.WithFallback(agent.NewHeuristic()))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer remote.Close()
//
//	race, err := engine.NewRace(tr, []engine.Entrant{
//		{Name: "Remote", Agent: remote},
//		{Name: "Local", Agent: agent.NewHeuristic()},
//	}, engine.DefaultConfig())
package agent
