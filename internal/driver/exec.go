package driver

import (
	"context"
	"os/exec"
)

// runCommand is swapped out in tests.
var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// lookPath is swapped out in tests.
var lookPath = exec.LookPath

// missingTools returns the subset of tools not present on the host.
func missingTools(tools ...string) []string {
	var missing []string
	for _, tool := range tools {
		if _, err := lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	return missing
}
