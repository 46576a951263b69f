package engine

// DefaultMaxDepth is the default limit on nested queries issued from
// inside handlers.
const DefaultMaxDepth = 32

// checkDepth enforces the nested query limit. A limit of zero or less
// disables the check.
func checkDepth(chain callChain, queryText string, maxDepth int) error {
	if maxDepth <= 0 {
		return nil
	}
	if depth := chain.Depth() + 1; depth > maxDepth {
		return NewDepthError(queryText, depth, maxDepth)
	}
	return nil
}
