// Package prompt is the interactive input boundary of the shell.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user interrupts a prompt or input ends.
var ErrAborted = errors.New("prompt aborted")

type Prompter interface {
	// Select returns the index of the chosen option.
	Select(label string, options []string) (int, error)
	// Input re-asks until validate accepts the answer. validate may be nil.
	Input(label, def string, validate func(string) error) (string, error)
	Confirm(label string) (bool, error)
	// Secret reads input without echoing it.
	Secret(label string, validate func(string) error) (string, error)
}

// Terminal prompts on a TTY with promptui.
type Terminal struct {
	Stdin  io.ReadCloser
	Stdout io.WriteCloser
	Size   int
}

func (t Terminal) Select(label string, options []string) (int, error) {
	size := t.Size
	if size <= 0 {
		size = 10
	}
	s := promptui.Select{
		Label:  label,
		Items:  options,
		Size:   size,
		Stdin:  t.Stdin,
		Stdout: t.Stdout,
	}
	idx, _, err := s.Run()
	if err != nil {
		return -1, aborted(err)
	}
	return idx, nil
}

func (t Terminal) Input(label, def string, validate func(string) error) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: def,
		Stdin:   t.Stdin,
		Stdout:  t.Stdout,
	}
	if validate != nil {
		p.Validate = promptui.ValidateFunc(validate)
	}
	answer, err := p.Run()
	if err != nil {
		return "", aborted(err)
	}
	return strings.TrimSpace(answer), nil
}

func (t Terminal) Secret(label string, validate func(string) error) (string, error) {
	p := promptui.Prompt{
		Label:       label,
		Mask:        '*',
		HideEntered: true,
		Stdin:       t.Stdin,
		Stdout:      t.Stdout,
	}
	if validate != nil {
		p.Validate = promptui.ValidateFunc(validate)
	}
	answer, err := p.Run()
	if err != nil {
		return "", aborted(err)
	}
	return strings.TrimSpace(answer), nil
}

func (t Terminal) Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     t.Stdin,
		Stdout:    t.Stdout,
	}
	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, aborted(err)
	}
	return true, nil
}

func aborted(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, io.EOF) {
		return ErrAborted
	}
	return err
}

// Scripted answers prompts from a fixed list, in order. Select answers name an
// option label; Input answers that fail validation are consumed and the next
// answer is tried, the way a terminal re-asks.
type Scripted struct {
	Answers []string
	// Rejected collects validation messages, in order.
	Rejected []string
	// Labels records every prompt label shown.
	Labels []string
	// Secrets records the labels of masked prompts.
	Secrets []string
}

func NewScripted(answers ...string) *Scripted {
	return &Scripted{Answers: answers}
}

func (s *Scripted) next() (string, error) {
	if len(s.Answers) == 0 {
		return "", ErrAborted
	}
	answer := s.Answers[0]
	s.Answers = s.Answers[1:]
	return answer, nil
}

func (s *Scripted) Select(label string, options []string) (int, error) {
	s.Labels = append(s.Labels, label)
	answer, err := s.next()
	if err != nil {
		return -1, err
	}
	for i, option := range options {
		if option == answer {
			return i, nil
		}
	}
	return -1, fmt.Errorf("scripted answer %q is not one of %v", answer, options)
}

func (s *Scripted) Input(label, def string, validate func(string) error) (string, error) {
	s.Labels = append(s.Labels, label)
	for {
		answer, err := s.next()
		if err != nil {
			return "", err
		}
		if answer == "" {
			answer = def
		}
		if validate != nil {
			if err := validate(answer); err != nil {
				s.Rejected = append(s.Rejected, err.Error())
				continue
			}
		}
		return answer, nil
	}
}

func (s *Scripted) Confirm(label string) (bool, error) {
	s.Labels = append(s.Labels, label)
	answer, err := s.next()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (s *Scripted) Secret(label string, validate func(string) error) (string, error) {
	s.Secrets = append(s.Secrets, label)
	return s.Input(label, "", validate)
}
