// Package conv collects tiny helper functions that are not part of the public API
// but aid internal conversions.
//
// It exposes `AsUint64`, which coerces a raw JSON-RPC id into the bridge's numeric
// request id, and `Timeout`, which reads the per-call `timeout` override from params.
package conv
