// Package mocks provides centralized mock implementations for testing.
//
// This package contains mock implementations of the extraction ports and the
// kv.Store interface, facilitating consistent testing across the codebase.
// Instead of defining inline mocks in individual test files, these
// standardized implementations can be reused: a mock's behavior is overridden
// per test through its Fn fields, and its call tracking supports interaction
// assertions.
package mocks
