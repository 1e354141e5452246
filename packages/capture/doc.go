// Package capture extracts single values from a request outcome.
//
// An expression names where the value comes from:
//   - status: the response status code
//   - duration: the request duration in milliseconds
//   - header:<Name>: a response header, matched case-insensitively
//   - body: the whole body, as JSON when it parses, else as text
//   - anything else: a gjson path into a JSON body, with an optional
//     "body." or "$." prefix
package capture
