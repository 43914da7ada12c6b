// Package integrity maintains the persistent content-hash dedup index.
//
// Files are digested with streamed SHA-256 and registered under their hash.
// The first registrant of a hash owns the canonical slot; later registrations
// of identical bytes are reported as duplicates referencing the canonical
// entity but are never blocked. Policy is advise-only: import always
// proceeds and the caller surfaces the duplicate in its report.
package integrity
