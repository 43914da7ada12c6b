// Package filetree builds a rooted directory tree from a flat list of file
// handles and classifies each node as a grouping (collection) or a described
// item (manifest).
//
// Construction is pure and deterministic: the same handle set always yields
// the same tree, classification, and warnings. Reserved name prefixes control
// structure ("_" excludes a directory, "+" forces a grouping), and a
// per-directory .folio.toml marker can override label, language, behavior,
// and kind. Malformed markers degrade to defaults with a warning; they never
// fail the build.
package filetree
