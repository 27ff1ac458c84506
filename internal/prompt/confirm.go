// Package prompt asks yes/no questions on the terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type Confirmer struct {
	In            io.Reader
	Out           io.Writer
	IsInteractive func() bool
}

func DefaultConfirmer() Confirmer {
	return Confirmer{
		In:  os.Stdin,
		Out: os.Stderr,
		IsInteractive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// ConfirmOverwrite asks before replacing an existing GIF. force skips the
// question; a non-interactive stdin is an error rather than a silent no.
func (c Confirmer) ConfirmOverwrite(path string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	if c.IsInteractive == nil || !c.IsInteractive() {
		return false, fmt.Errorf("non-interactive stdin: use --yes to overwrite %s", path)
	}
	if c.Out != nil {
		fmt.Fprintf(c.Out, "%s already exists. Overwrite? [y/N]: ", path)
	}
	reader := bufio.NewReader(c.In)
	response, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
