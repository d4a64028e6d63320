// Package cli implements the tapd command-line interface: viewing,
// streaming, exporting, and controlling traffic captured by an
// application instrumented with the capture engine, over its embedded
// inspect API.
package cli
