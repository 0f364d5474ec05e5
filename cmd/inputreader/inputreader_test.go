package inputreader

import (
	"bytes"
	"strings"
	"testing"
)

func newTestReader(input string) (*InputReader, *bytes.Buffer) {
	out := &bytes.Buffer{}
	ir := NewInputReader(strings.NewReader(input), func() string { return "test" })
	ir.out = out
	return ir, out
}

func TestInputLoopDispatch(t *testing.T) {
	ir, _ := newTestReader("send a b\n\nSEND c\nexit\nsend never\n")

	var calls [][]string
	ir.AddHandler("send", func(args []string) { calls = append(calls, args) })
	exited := false
	ir.AddHandler("exit", func(args []string) { exited = true })

	ir.InputLoop()

	if len(calls) != 2 {
		t.Fatalf("send called %d times, expected 2", len(calls))
	}
	if strings.Join(calls[0], ",") != "a,b" || strings.Join(calls[1], ",") != "c" {
		t.Errorf("unexpected arguments %v", calls)
	}
	if !exited {
		t.Error("exit handler was not called")
	}
}

func TestInputLoopHelpAndUnknown(t *testing.T) {
	ir, out := newTestReader("help\nfoo\n")
	ir.AddHandler("status", func(args []string) {})
	ir.AddHandler("loglvl", func(args []string) {})

	ir.InputLoop()

	output := out.String()
	if strings.Index(output, "- loglvl") > strings.Index(output, "- status") {
		t.Errorf("help output is not sorted:\n%s", output)
	}
	if !strings.Contains(output, "No handlers registered for command: 'foo'") {
		t.Errorf("unknown command not reported:\n%s", output)
	}
}

func TestPromptFromHandler(t *testing.T) {
	ir, _ := newTestReader("send\nreport.pdf\n")

	var answer string
	ir.AddHandler("send", func(args []string) {
		answer, _ = ir.Prompt("File to send: ")
	})

	ir.InputLoop()

	if answer != "report.pdf" {
		t.Errorf("Prompt() = %q, expected %q", answer, "report.pdf")
	}
}
