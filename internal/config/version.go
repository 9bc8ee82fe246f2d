package config

// Version is the catalogsync binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/catalogsync/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
