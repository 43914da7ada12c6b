// Package archive defines the hierarchical entity graph produced by ingest:
// collections containing manifests, each an ordered sequence of canvases
// whose content is bound by painting annotations.
//
// Entity is a closed tagged variant distinguished by Kind; consumers switch
// exhaustively on it rather than probing optional fields. CanAttach encodes
// the legal containment rules and Validate enforces them plus id uniqueness
// over a whole subtree.
package archive
