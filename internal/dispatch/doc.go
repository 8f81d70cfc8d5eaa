// Package dispatch classifies inbound channel events and routes them to
// the state reconciler, the alert center, and the analytics sink.
//
// Every ingested message is retained in a bounded log (oldest evicted)
// so consumers can inspect recent traffic; routing marks messages
// processed. A rolling window derives the ingest rate for the
// performance monitor.
package dispatch
