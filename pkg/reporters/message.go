package reporters

import (
	"fmt"

	"github.com/buildhook-io/buildhook/pkg/model"
)

// buildMessage renders the status line for a build. Incomplete builds are
// announced as started, complete ones carry the result label.
func buildMessage(build *model.Build) string {
	if build.Complete {
		return fmt.Sprintf(
			"Buildbot finished build %s with result %s here: %s",
			build.Builder,
			model.ResultName(build.Results),
			build.URL,
		)
	}
	return fmt.Sprintf("Buildbot started build %s here: %s", build.Builder, build.URL)
}
