// Package config defines the application configuration structure and loads
// it from environment variables and optional config files. The Config struct
// is built once at startup and threaded explicitly through component
// constructors so components stay unit-testable in isolation.
package config
