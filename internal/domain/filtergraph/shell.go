package filtergraph

import "github.com/alessio/shellescape"

// ShellQuote renders argv as a single POSIX shell line for dry runs.
func ShellQuote(argv ...string) string {
	return shellescape.QuoteCommand(argv)
}
