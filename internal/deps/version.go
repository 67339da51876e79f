package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 10 * time.Second

// ProbeVersion runs command with args (typically --version) and returns the
// first non-empty line of its combined output.
func ProbeVersion(ctx context.Context, command string, args ...string) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("command not configured")
	}
	probeCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	output, err := exec.CommandContext(probeCtx, command, args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", command, strings.Join(args, " "), err)
	}
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("%s printed no version", command)
}
