// Command calc evaluates integer expressions from the command line.
//
// Usage:
//
//	calc [-given name=value]... [-in file] [-n] [-echo] [expression ...]
//
// Each argument is one expression. With no arguments, stdin (or -in) is read
// as a single expression, or as one expression per line with -n. Variables
// are bound with -given; a value is an integer or the name of a variable
// given earlier.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/randalmurphal/calc/pkg/calc/expr"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type cli struct {
	stdout io.Writer
	stderr io.Writer
	red    *color.Color
	echo   bool
	vars   expr.Bindings
}

// run executes the command and returns the process exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{
		stdout: stdout,
		stderr: stderr,
		red:    color.New(color.FgRed),
		vars:   expr.Bindings{},
	}

	var (
		inname string
		nl     bool
	)
	fs := flag.NewFlagSet("calc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&inname, "in", "", "input `file` (default stdin if no args given)")
	fs.Func("given", "name=value variable definition (any number of times)", c.bind)
	fs.BoolVar(&nl, "n", false, "evaluate separate input lines as separate expressions")
	fs.BoolVar(&c.echo, "echo", false, "print each expression before its result")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	exprs := fs.Args()
	if len(exprs) == 0 || inname != "" {
		in, err := c.input(inname, stdin)
		if err != nil {
			c.fail(err)
			return 1
		}
		more, err := readExpressions(in, nl)
		if f, ok := in.(*os.File); ok && f != os.Stdin {
			f.Close()
		}
		if err != nil {
			c.fail(err)
			return 1
		}
		exprs = append(more, exprs...)
	}

	status := 0
	for _, e := range exprs {
		if !c.eval(e) {
			status = 1
		}
	}
	return status
}

// bind handles one -given flag.
func (c *cli) bind(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf(`variable definitions must be "name=value", not %q`, s)
	}
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if len(name) != 1 || name[0] < 'a' || name[0] > 'z' {
		return fmt.Errorf("variable name %q must be a single lowercase letter", name)
	}
	if v, ok := c.vars[value]; ok {
		c.vars[name] = v
		return nil
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("value of %s: %q is neither an integer nor a given variable", name, value)
	}
	c.vars[name] = v
	return nil
}

func (c *cli) input(name string, stdin io.Reader) (io.Reader, error) {
	if name == "" || name == "-" {
		return stdin, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// readExpressions reads one expression per non-blank line if perLine is set,
// otherwise the whole input as one expression.
func readExpressions(in io.Reader, perLine bool) ([]string, error) {
	if !perLine {
		b, err := io.ReadAll(in)
		if err != nil {
			return nil, err
		}
		return []string{string(b)}, nil
	}
	var exprs []string
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if line := sc.Text(); strings.TrimSpace(line) != "" {
			exprs = append(exprs, line)
		}
	}
	return exprs, sc.Err()
}

// eval validates and evaluates one expression and reports whether it
// succeeded.
func (c *cli) eval(e string) bool {
	e = strings.TrimSpace(e)
	if c.echo {
		fmt.Fprintf(c.stdout, "%s : ", e)
	}
	if err := expr.Validate(e); err != nil {
		c.failAt(e, err)
		return false
	}
	v, err := expr.Evaluate(e, c.vars)
	if err != nil {
		c.failAt(e, err)
		return false
	}
	fmt.Fprintln(c.stdout, v)
	return true
}

// failAt prints err and, when it has a position inside e, a caret under it.
func (c *cli) failAt(e string, err error) {
	if c.echo {
		fmt.Fprintln(c.stdout)
	}
	c.fail(err)
	col := 0
	var ee expr.EvalError
	var ve *expr.ValidationError
	switch {
	case errors.As(err, &ee):
		col = ee.Pos()
	case errors.As(err, &ve):
		col = ve.Col
	}
	if col > 0 && col <= len(e) {
		fmt.Fprintf(c.stderr, "  %s\n  %s^\n", e, strings.Repeat(" ", col-1))
	}
}

func (c *cli) fail(err error) {
	c.red.Fprintln(c.stderr, "calc:", err)
}
