// Package prompt asks the operator for confirmation and credentials.
//
// On a terminal the questions are huh forms. When stdin is not a terminal
// answers are read line by line, so a run can be scripted by piping "y"
// lines into it.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/martinsuchenak/fmcsweep/internal/fmc"
	"golang.org/x/term"
)

// ErrNoAnswer is returned when input ends before a question is answered
var ErrNoAnswer = errors.New("no answer on standard input, use --yes for unattended runs")

// Prompter asks questions on the terminal or on plain streams
type Prompter struct {
	interactive bool
	assumeYes   bool
	in          *bufio.Reader
	out         io.Writer
}

// New returns a prompter bound to stdin and stdout. With assumeYes every
// confirmation is answered yes without asking.
func New(assumeYes bool) *Prompter {
	p := NewWithIO(os.Stdin, os.Stdout, assumeYes)
	p.interactive = term.IsTerminal(int(os.Stdin.Fd()))
	return p
}

// NewWithIO returns a line based prompter reading answers from in
func NewWithIO(in io.Reader, out io.Writer, assumeYes bool) *Prompter {
	return &Prompter{
		assumeYes: assumeYes,
		in:        bufio.NewReader(in),
		out:       out,
	}
}

// Interactive reports whether questions are shown as terminal forms
func (p *Prompter) Interactive() bool {
	return p.interactive
}

// Confirm asks a yes/no question. Only an explicit yes counts as yes.
func (p *Prompter) Confirm(ctx context.Context, title, description string) (bool, error) {
	if p.assumeYes {
		return true, nil
	}

	if p.interactive {
		var answer bool
		confirm := huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&answer)
		if err := huh.NewForm(huh.NewGroup(confirm)).WithTheme(huh.ThemeBase16()).RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return false, context.Canceled
			}
			return false, err
		}
		return answer, nil
	}

	if description != "" {
		fmt.Fprintln(p.out, description)
	}
	fmt.Fprintf(p.out, "%s (y/n) ", title)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Credentials fills in whichever of username and password is empty
func (p *Prompter) Credentials(ctx context.Context, username, password string) (fmc.Credentials, error) {
	creds := fmc.Credentials{Username: strings.TrimSpace(username), Password: password}
	if creds.Username != "" && creds.Password != "" {
		return creds, nil
	}

	if p.interactive {
		var fields []huh.Field
		if creds.Username == "" {
			fields = append(fields, huh.NewInput().
				Title("Username").
				Value(&creds.Username).
				Validate(required("username")))
		}
		if creds.Password == "" {
			fields = append(fields, huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&creds.Password).
				Validate(required("password")))
		}
		form := huh.NewForm(huh.NewGroup(fields...).Title("Enter controller credentials")).WithTheme(huh.ThemeBase16())
		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return creds, context.Canceled
			}
			return creds, err
		}
		creds.Username = strings.TrimSpace(creds.Username)
		return creds, nil
	}

	if creds.Username == "" {
		fmt.Fprint(p.out, "Username: ")
		line, err := p.readLine()
		if err != nil {
			return creds, err
		}
		creds.Username = line
	}
	if creds.Password == "" {
		fmt.Fprint(p.out, "Password: ")
		line, err := p.readLine()
		if err != nil {
			return creds, err
		}
		creds.Password = line
	}
	if creds.Username == "" || creds.Password == "" {
		return creds, errors.New("username and password are required")
	}
	return creds, nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoAnswer
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
