package cmd

import (
	"context"
	"fmt"

	"github.com/lexicon-labs/lexicon-cli/internal/output"
)

func structuredOutputRequested() bool {
	return output.IsStructured(GetOutputFormat())
}

// printResult writes data to the command's stdout in the selected format.
func printResult(ctx context.Context, data interface{}) error {
	if ctx == nil {
		ctx = currentContext()
	}
	printer := output.NewPrinter(stdoutFromContext(ctx), GetOutputFormat())
	return printer.Print(ctx, data)
}

// printStatus prints a one-line confirmation, or a status object for
// structured output.
func printStatus(ctx context.Context, status map[string]string, format string, args ...interface{}) error {
	if ctx == nil {
		ctx = currentContext()
	}
	if structuredOutputRequested() {
		return printResult(ctx, status)
	}
	if output.QuietFromContext(ctx) {
		return nil
	}
	_, err := fmt.Fprintf(stdoutFromContext(ctx), format+"\n", args...)
	return err
}

func currentContext() context.Context {
	if rootCmd != nil && rootCmd.Context() != nil {
		return rootCmd.Context()
	}
	return context.Background()
}
