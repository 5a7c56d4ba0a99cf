// Package domain contains the core business entities, value objects, and
// domain logic of the certificate extraction service: processing requests,
// status records, the extracted certificate schema, and the shared error
// taxonomy. It is independent of any specific infrastructure or delivery
// mechanism.
package domain
