// Command folio imports scanned source directories into a digital archive,
// inspects the resulting project, and manages ingest checkpoints.
package main
