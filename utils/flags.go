package utils

import (
	"flag"
	"strings"
)

// FlagReader is the seam tests use to override flag-driven behaviour
// without re-parsing the flag set.
type FlagReader interface {
	DebugMode() bool
	LogLevel() string
	ServerURL() string
	APIKey() string
}

// FlagProvider resolves flag values. Swap it out in tests.
var FlagProvider FlagReader = stdFlags{}

type stdFlags struct{}

func (stdFlags) DebugMode() bool   { return lookupBool("debug") }
func (stdFlags) LogLevel() string  { return lookupString("loglevel", "info") }
func (stdFlags) ServerURL() string { return lookupString("cloudurl", "") }
func (stdFlags) APIKey() string    { return lookupString("cloudapikey", "") }

func lookupString(name, fallback string) string {
	f := flag.Lookup(name)
	if f == nil {
		return fallback
	}
	return f.Value.(flag.Getter).Get().(string)
}

func lookupBool(name string) bool {
	f := flag.Lookup(name)
	if f == nil {
		return false
	}
	return f.Value.(flag.Getter).Get().(bool)
}

// DebugMode reports whether -debug was passed.
func DebugMode() bool {
	return FlagProvider.DebugMode()
}

// LogLevel returns the -loglevel flag value.
func LogLevel() string {
	return FlagProvider.LogLevel()
}

// ServerURL returns the cloud management service URL without a trailing slash.
func ServerURL() string {
	return strings.TrimRight(FlagProvider.ServerURL(), "/")
}

// APIKey returns the cloud management service API key.
func APIKey() string {
	return FlagProvider.APIKey()
}
