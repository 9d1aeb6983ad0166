package remote

import (
	"context"
	"fmt"
	"strings"
)

// Result of a command that ran to completion on the remote host.
type Result struct {
	ExitCode int
	Output   []string
	Stderr   string
}

// Shell runs commands on one host. A non-zero exit status is not an error,
// only failures to run the command at all are.
type Shell interface {
	Host() string
	Execute(ctx context.Context, command string) (*Result, error)
}

type CommandError struct {
	Host     string
	Command  string
	ExitCode int
	Output   []string
	Stderr   string
}

func (e *CommandError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" && len(e.Output) > 0 {
		detail = e.Output[len(e.Output)-1]
	}
	return fmt.Sprintf("%s: %q exited with %d: %s", e.Host, e.Command, e.ExitCode, detail)
}

// Run executes command and turns a non-zero exit status into a *CommandError.
func Run(ctx context.Context, shell Shell, command string) ([]string, error) {
	result, err := shell.Execute(ctx, command)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return result.Output, &CommandError{
			Host:     shell.Host(),
			Command:  command,
			ExitCode: result.ExitCode,
			Output:   result.Output,
			Stderr:   result.Stderr,
		}
	}
	return result.Output, nil
}

// Probe reports whether command exits with status 0.
func Probe(ctx context.Context, shell Shell, command string) (bool, error) {
	result, err := shell.Execute(ctx, command)
	if err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

// Quote makes s a single shell word.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuoting) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuoting(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./,:=@%+", r)
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
