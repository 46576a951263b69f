package engine

import "context"

// frame is one handler invocation on the current call path.
type frame struct {
	handler string
	query   string
}

// callChain is the path of nested queries that led to the current
// execution, outermost first. It travels in the context so a handler that
// queries the graph again carries its ancestry along.
type callChain []frame

type chainKey struct{}

func chainFrom(ctx context.Context) callChain {
	chain, _ := ctx.Value(chainKey{}).(callChain)
	return chain
}

// WouldCycle reports whether running handler for query would repeat a
// frame already on the path. Such a query can never finish.
func (c callChain) WouldCycle(handler, query string) bool {
	for _, f := range c {
		if f.handler == handler && f.query == query {
			return true
		}
	}
	return false
}

// Depth returns the number of enclosing handler invocations.
func (c callChain) Depth() int { return len(c) }

// push returns a context whose chain ends with the new frame. The parent
// chain is not modified.
func (c callChain) push(ctx context.Context, handler, query string) context.Context {
	next := make(callChain, len(c), len(c)+1)
	copy(next, c)
	next = append(next, frame{handler: handler, query: query})
	return context.WithValue(ctx, chainKey{}, next)
}
