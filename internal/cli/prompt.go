package cli

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// prompter reads answers from the terminal with line editing, or from plain
// input when stdin is redirected (scripts, tests).
type prompter struct {
	in   io.Reader
	line *liner.State
	buf  *bufio.Reader
}

func newPrompter(in io.Reader) *prompter {
	return &prompter{in: in}
}

func (p *prompter) interactive() bool {
	f, ok := p.in.(*os.File)
	return ok && f == os.Stdin && liner.TerminalSupported()
}

func (p *prompter) init() {
	if p.line != nil || p.buf != nil {
		return
	}
	if p.interactive() {
		p.line = liner.NewLiner()
		p.line.SetCtrlCAborts(true)
		return
	}
	p.buf = bufio.NewReader(p.in)
}

// ask returns current when set, otherwise prompts for a value.
func (p *prompter) ask(prompt, current string) (string, error) {
	if current != "" {
		return current, nil
	}
	return p.readLine(prompt)
}

// secret is ask without echo.
func (p *prompter) secret(prompt, current string) (string, error) {
	if current != "" {
		return current, nil
	}
	p.init()
	if p.line != nil {
		return p.line.PasswordPrompt(prompt)
	}
	return p.readRaw()
}

func (p *prompter) readLine(prompt string) (string, error) {
	p.init()
	if p.line != nil {
		s, err := p.line.Prompt(prompt)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(s) != "" {
			p.line.AppendHistory(s)
		}
		return s, nil
	}
	return p.readRaw()
}

func (p *prompter) readRaw() (string, error) {
	s, err := p.buf.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// aborted reports whether err means the user wants out (Ctrl-C, Ctrl-D).
func aborted(err error) bool {
	return errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF)
}

func (p *prompter) Close() {
	if p.line != nil {
		p.line.Close()
		p.line = nil
	}
}
