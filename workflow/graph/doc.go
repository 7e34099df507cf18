// Package graph implements a command-routed workflow engine over a
// directed, possibly cyclic graph of named nodes sharing one mutable
// state per run.
//
// Unlike a DAG executor, nodes here decide the next hop at runtime: a
// node returns a Command naming its destination, and the engine
// validates the hop against the destinations declared at build time.
// Cycles (supervisor loops, retry hops) are first-class; runaway loops
// are cut by a step ceiling.
//
// Example:
//
//	engine, err := graph.New("router", []graph.Descriptor{
//	    {Name: "router", Destinations: []string{"work", graph.End}, Node: router},
//	    {Name: "work", Destinations: []string{"router"}, Node: worker},
//	})
//	if err != nil {
//	    return err
//	}
//	for snapshot, err := range engine.Run(ctx, query, graph.RunConfig{}) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(snapshot.LastAgent)
//	}
package graph
