package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type outputRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultOutputRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output() //nolint:gosec
}

// ProbeEncoders reports which of the named video encoders the ffmpeg binary
// was built with.
func ProbeEncoders(ctx context.Context, ffmpeg string, names ...string) (map[string]bool, error) {
	return probeEncoders(ctx, defaultOutputRunner, ffmpeg, names...)
}

func probeEncoders(ctx context.Context, run outputRunner, ffmpeg string, names ...string) (map[string]bool, error) {
	out, err := run(ctx, ffmpeg, "-hide_banner", "-encoders")
	if err != nil {
		return nil, fmt.Errorf("list ffmpeg encoders: %w", err)
	}
	available := parseEncoders(out)
	result := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		_, ok := available[name]
		result[name] = ok
	}
	return result, nil
}

// parseEncoders reads `ffmpeg -encoders` output. Encoder rows follow the
// legend separator line and look like " V....D libx264   libx264 H.264 ...".
func parseEncoders(out []byte) map[string]struct{} {
	encoders := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(out))
	inList := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inList {
			if strings.HasPrefix(line, "------") {
				inList = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		encoders[fields[1]] = struct{}{}
	}
	return encoders
}
