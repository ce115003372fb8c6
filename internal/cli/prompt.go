package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// prompt asks for a line of input on the command's input stream.
func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
	line, err := readLine(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// readLine reads up to a newline one byte at a time, so successive prompts
// on the same stream do not lose buffered input.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return sb.String(), nil
			}
			sb.WriteByte(buf[0])
		}
		if err == io.EOF && sb.Len() > 0 {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
	}
}

// promptSecret reads a password without echo when stdin is a terminal, and
// falls back to a plain line read otherwise.
func promptSecret(cmd *cobra.Command, label string) (string, error) {
	in, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(in.Fd())) {
		return prompt(cmd, label)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
	secret, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return string(secret), nil
}

// valueOrPrompt returns *v, prompting for it first when empty.
func valueOrPrompt(cmd *cobra.Command, v *string, label string, secret bool) error {
	if *v != "" {
		return nil
	}
	var err error
	if secret {
		*v, err = promptSecret(cmd, label)
	} else {
		*v, err = prompt(cmd, label)
	}
	return err
}
