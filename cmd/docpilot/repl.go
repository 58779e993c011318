package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// replHandler handles one input line. Returning done ends the loop.
type replHandler func(ctx context.Context, line string) (done bool, err error)

// runREPL reads lines from stdin until EOF, ctx cancellation or the handler
// reports done. Blank lines are skipped.
func runREPL(ctx context.Context, prompt string, handle replHandler) error {
	return runLoop(ctx, os.Stdin, os.Stdout, prompt, handle)
}

func runLoop(ctx context.Context, in io.Reader, out io.Writer, prompt string, handle replHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			done, err := handle(ctx, line)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// splitCommand splits "/cmd rest of line" into "cmd" and "rest of line".
// ok is false for lines that are not commands.
func splitCommand(line string) (name, arg string, ok bool) {
	if !strings.HasPrefix(line, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}
