// Package api provides the REST client for parking snapshot data.
//
// The engine loads its initial working set (lots and spots) over REST;
// live updates then arrive over the push channels. 5xx and 429
// responses are retried with exponential backoff.
package api
