// Package stream implements the push-based event stream shared by tables,
// the query executor and every stream consumer.
//
// A Stream carries a closed vocabulary of events:
//
//	item    {item}          one result row or inserted item
//	done    {}              normal end of stream
//	fail    {error}         terminal failure carrying ErrorDetails
//	schema  {schema}        the functions a listener can replay
//	restart {}              consumer should wipe and reload
//	delta   {func, params}  a replayable deletion
//
// Producers call Put (or the typed helpers). Events are buffered until a
// receiver is attached with SendTo, then delivered synchronously in order.
// A receiver returning ErrBackpressureStop closes the stream; the producer
// sees the same error from Put and must stop sending.
//
// Streams are not safe for concurrent use. The engine is single-threaded by
// contract and all delivery happens on the producer's call stack.
package stream
