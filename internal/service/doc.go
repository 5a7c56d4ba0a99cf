// Package service contains the application services composing the domain
// components. AdmissionService is the gateway into the processing
// subsystem: it validates submissions, short-circuits cache hits, runs the
// claim/dedup protocol, and enqueues work without ever blocking on pipeline
// completion.
package service
