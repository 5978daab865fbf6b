// Package request provides the transient, per-call model of an API request.
//
// Options describe one call: endpoint, payload, verb, headers, callback and the debug flag.
// Every field has a documented default, see Options.WithDefaults.
//
// Payload is a tagged variant, either a Form (URL-encoded) or a JSON payload,
// the serialization strategy is chosen by construction.
//
// Build turns Options into an immutable Descriptor (method, URL, headers, body),
// the Descriptor is then sent by the client.Client.
//
// Failure tags every way a call can fail, see FailureKind.
package request
