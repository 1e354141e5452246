// Package http is a small convenience layer over an asynchronous HTTP
// transport.
//
// It provides:
//   - URL building from a base, escaped path segments and query parameters
//   - application/x-www-form-urlencoded body encoding
//   - GET/POST/PUT in callback form (RequestAsync) and blocking form (RequestSync)
//   - A single Outcome type carrying success, status, body and a typed error
//
// The network exchange itself is done by a Transport. NetTransport, the
// default, runs each request through net/http on its own goroutine.
package http
