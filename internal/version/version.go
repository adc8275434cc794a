// Package version carries build identity injected with -ldflags.
package version

// Version values are set at build time using -ldflags.
var Version = "dev"
var Built = ""
var GitCommit = ""

// String renders the human form used by the --version flag.
func String() string {
	text := Version
	if GitCommit != "" {
		text += " (" + GitCommit + ")"
	}
	return text
}
