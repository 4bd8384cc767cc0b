package credentials

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// terminalPrompter reads a masked secret from the controlling terminal.
type terminalPrompter struct{}

// Available reports whether stdin is an interactive terminal.
func (terminalPrompter) Available() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ReadSecret prompts on stderr and reads without echo.
func (terminalPrompter) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
