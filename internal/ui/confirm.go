package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm prompts on out with a yes/no question and reads the answer from
// in. Anything but y/yes is a no.
func Confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", StyleWarning.Render(prompt))
	line, _ := bufio.NewReader(in).ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

// ConfirmDanger is like Confirm but styled with the error color, for
// transactions on production networks.
func ConfirmDanger(in io.Reader, out io.Writer, prompt string) bool {
	return Confirm(in, out, StyleError.Render("⚠ "+prompt))
}
