// Package annotate provides built-in record annotators: GraphQL operation
// detection and JWT claim peeking. Wire them in through
// capture.Config.Annotators; they run against the unredacted record just
// before it is stored.
package annotate
