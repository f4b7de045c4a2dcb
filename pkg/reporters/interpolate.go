package reporters

import "os"

// interpolate expands ${VAR} placeholders from the environment. Tokens are
// kept as placeholders until send time so a rotated secret is picked up
// without reconstructing the reporter.
func interpolate(s string) string {
	return os.Expand(s, os.Getenv)
}
