// Package engine matches queries against mounted handlers and executes
// them into event streams.
//
// ARCHITECTURE:
//
// Query Flow:
// 1. Graph.Query parses the text into a query.Query
// 2. FindBestMatch checks every handler in mount order (CheckOneMatch)
// 3. The tightest match (fewest unused optionals) is planned (BuildPlan)
// 4. Execute resolves inputs, invokes the handler, and pipes its result
//    into the output stream
//
// Errors at match and plan time (no_handler_found, missing_parameter) are
// not returned; they arrive as a fail event on the output stream. Callers
// must treat a stream holding only a fail as a normal outcome.
//
// DETERMINISM:
//
// Handlers are evaluated in mount order and ties keep that order. A tie
// between the two best matches is logged as ambiguous; the first mounted
// handler wins. No other tie-break is applied.
//
// Execution spawns no goroutines. A handler may return a stream and keep
// producing into it later; that is the only asynchrony.
package engine
