// Package blocks partitions a playlist's tracks into named, time-budgeted blocks.
//
// A [Spec] describes one block: a name, a budget in minutes and an ordered list of [Rule]s.
// Each rule narrows the candidates with a [Filter] and may re-sort them by its [Dimension].
// [Allocate] walks the specs in order; a track claimed by one block is never offered to a later one.
//
// Specs are never edited in place. A [Plan] is the configuration object they are built from,
// decoded from TOML or JSON and validated by [Plan.Specs] on every recomputation.
package blocks
