// Package git finds out which commit is checked out, to name the
// image built from it.
package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// ShortRevisionLength is how many hex digits of the commit hash make
// up a revision tag.
const ShortRevisionLength = 7

// inheritedEnv lists the environment variables git is run with, on
// top of GIT_TERMINAL_PROMPT=0.
var inheritedEnv = []string{
	// HOME and XDG_CONFIG_HOME are where git looks for its config
	"HOME", "XDG_CONFIG_HOME", "PATH",
}

// ShortRevision returns the abbreviated hash of the commit checked out
// in dir, the same value the build step tags images with. An empty
// dir means the current directory.
func ShortRevision(ctx context.Context, dir string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", fmt.Sprintf("--short=%d", ShortRevisionLength), "HEAD")
	if err != nil {
		return "", NotARevisionError(dir, err)
	}
	if out == "" {
		return "", NotARevisionError(dir, errors.New("git rev-parse printed nothing"))
	}
	return out, nil
}

// run runs git in dir and returns what it printed, trimmed. On
// failure, the error carries git's own complaint.
func run(ctx context.Context, dir string, args ...string) (string, error) {
	c := exec.CommandContext(ctx, "git", args...)
	c.Dir = dir
	c.Env = env()
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", errors.Wrapf(ctxErr, "running git %s", strings.Join(args, " "))
	}
	if err != nil {
		if msg := findErrorMessage(bytes.NewReader(stderr.Bytes())); msg != "" {
			return "", errors.New(msg)
		}
		if stderr.Len() > 0 {
			return "", errors.New(strings.TrimSpace(stderr.String()))
		}
		return "", errors.Wrapf(err, "running git %s", strings.Join(args, " "))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func env() []string {
	env := []string{"GIT_TERMINAL_PROMPT=0"}
	for _, k := range inheritedEnv {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	return env
}

// findErrorMessage picks out the line that says what went wrong.
func findErrorMessage(output io.Reader) string {
	sc := bufio.NewScanner(output)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "fatal: "):
			return line
		case strings.HasPrefix(line, "ERROR fatal: "): // seen on ubuntu
			return line
		case strings.HasPrefix(line, "error: "):
			return strings.TrimPrefix(line, "error: ")
		}
	}
	return ""
}
