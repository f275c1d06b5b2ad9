// Package events carries usage signals from answer assembly to the
// learned corpus over NATS.
//
// Every record that contributes to a served answer earns one usage
// event. The publisher is fire-and-forget: a dropped event costs one
// usage increment, never an answer. The consumer batches increments per
// record and rewrites the learned record's usage count on a flush
// interval; reference records are immutable, so their usage only shows
// up in metrics.
//
// When the event stream is disabled the engine runs with a no-op
// publisher and loses nothing but usage counting.
package events
