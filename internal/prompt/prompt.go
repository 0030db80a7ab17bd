// Package prompt implements the interactive input boundary. Validation is
// expressed as pure functions over the input string so the launch logic never
// has to simulate a terminal to be tested.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrClosed is returned when the input stream ends before a valid answer.
var ErrClosed = errors.New("input closed")

// Prompter reads answers line by line, re-prompting until validation passes.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Line prints the label and reads one trimmed line.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", ErrClosed
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Until re-prompts with label until validate accepts the answer.
func (p *Prompter) Until(label string, validate func(string) error) (string, error) {
	for {
		answer, err := p.Line(label)
		if err != nil {
			return "", err
		}
		if err := validate(answer); err != nil {
			fmt.Fprintln(p.out, err)
			continue
		}
		return answer, nil
	}
}

// YesNo re-prompts until the answer is y or n (case-insensitive).
func (p *Prompter) YesNo(label string) (bool, error) {
	for {
		answer, err := p.Line(label)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y":
			return true, nil
		case "n":
			return false, nil
		}
		fmt.Fprintln(p.out, "Invalid input. Please enter 'y' or 'n'.")
	}
}

// Quantity re-prompts until the answer is an integer in [min,max].
func (p *Prompter) Quantity(label string, min, max int) (int, error) {
	for {
		answer, err := p.Line(label)
		if err != nil {
			return 0, err
		}
		n, err := ParseQuantity(answer, min, max)
		if err != nil {
			fmt.Fprintln(p.out, err)
			continue
		}
		return n, nil
	}
}

// ParseQuantity validates a quantity answer against an inclusive range.
func ParseQuantity(s string, min, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("Invalid input. Please enter a number between %d and %d.", min, max)
	}
	return n, nil
}

// OneOf validates membership in a fixed set of choices.
func OneOf(field string, choices []string) func(string) error {
	return func(s string) error {
		for _, c := range choices {
			if s == c {
				return nil
			}
		}
		return fmt.Errorf("Invalid %s. Please choose from the available %ss.", field, field)
	}
}

// RegionIn validates a region answer; empty means "let the provider choose"
// and is always accepted.
func RegionIn(regions []string) func(string) error {
	valid := OneOf("region name", regions)
	return func(s string) error {
		if s == "" {
			return nil
		}
		return valid(s)
	}
}
