package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// readInputSource reads content from a file path or stdin when source is "-".
func readInputSource(source string, stdin io.Reader) (string, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return "", fmt.Errorf("empty input source")
	}

	var r io.Reader
	if trimmed == "-" {
		if stdin != nil {
			r = stdin
		} else {
			r = os.Stdin
		}
	} else {
		file, err := os.Open(trimmed)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", trimmed, err)
		}
		defer file.Close()
		r = file
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

func inputHasData(r io.Reader) bool {
	if r == nil {
		r = os.Stdin
	}
	if file, ok := r.(*os.File); ok {
		stat, err := file.Stat()
		if err != nil {
			return false
		}
		return (stat.Mode() & os.ModeCharDevice) == 0
	}
	return true
}

// textArgs joins positional words into one message. A single "-", or no
// words with piped stdin, reads the message from stdin instead.
func textArgs(ctx context.Context, args []string) (string, error) {
	stdin := stdinFromContext(ctx)
	if (len(args) == 1 && strings.TrimSpace(args[0]) == "-") || (len(args) == 0 && inputHasData(stdin)) {
		return readInputSource("-", stdin)
	}
	return strings.TrimSpace(strings.Join(args, " ")), nil
}

// confirm asks the user to type "yes" unless --yes was given.
func confirm(ctx context.Context, yes bool, prompt string) bool {
	if yes {
		return true
	}
	errOut := stderrFromContext(ctx)
	fmt.Fprintln(errOut, prompt)
	fmt.Fprint(errOut, "Type 'yes' to confirm: ")
	reader := bufio.NewReader(stdinFromContext(ctx))
	answer, _ := reader.ReadString('\n')
	if strings.TrimSpace(answer) != "yes" {
		fmt.Fprintln(errOut, "Aborted.")
		return false
	}
	return true
}
