package model

import "fmt"

// Buildbot result codes, in wire order.
const (
	Success = iota
	Warnings
	Failure
	Skipped
	Exception
	Retry
	Cancelled
)

var resultNames = []string{
	"success",
	"warnings",
	"failure",
	"skipped",
	"exception",
	"retry",
	"cancelled",
}

// ResultName returns the lower-case human label of a result code.
func ResultName(code int) string {
	if code < 0 || code >= len(resultNames) {
		return fmt.Sprintf("result%d", code)
	}
	return resultNames[code]
}

// Build is the build record published by the master on its event feed.
type Build struct {
	Builder  string `json:"builder"`
	Number   int    `json:"number"`
	URL      string `json:"url"`
	Results  int    `json:"results"`
	Complete bool   `json:"complete"`
}
