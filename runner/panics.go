package runner

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/goliatone/go-errors"
)

const CodePanicRecovered = "PANIC_RECOVERED"

func panicError(name string, r any) error {
	stack := make([]byte, 8096)
	stack = stack[:runtime.Stack(stack, false)]

	return errors.New(fmt.Sprintf("recovered from panic in %s: %v", name, r), errors.CategoryHandler).
		WithTextCode(CodePanicRecovered).
		WithMetadata(map[string]any{
			"panic": fmt.Sprintf("%v", r),
			"stack": string(cleanStackTrace(stack)),
		})
}

func cleanStackTrace(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")

	// drop everything up to and including the panic() frame
	panicLineIndex := -1
	for i, line := range lines {
		if strings.Contains(line, "panic(") {
			panicLineIndex = i
			break
		}
	}
	if panicLineIndex >= 0 && panicLineIndex+2 < len(lines) {
		lines = lines[panicLineIndex+2:]
	}

	return []byte(strings.Join(lines, "\n"))
}
