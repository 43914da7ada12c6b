// Package vault holds the archive graph in a normalized, id-indexed form and
// mutates it only through dispatched actions.
//
// Normalize and Denormalize convert between the nested entity tree and the
// flat state; they are pure and mutually inverse for trees with globally
// unique ids. Dispatch applies one action per call, atomically: a failed
// precondition returns false with the state untouched. History is a bounded
// linear stack of full-state snapshots, which makes undo and redo correct
// even for actions with no cheap inverse; a new action after an undo
// discards the alternate future.
package vault
