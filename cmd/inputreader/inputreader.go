package inputreader

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
)

type Command string

type CommandHandler func(args []string)

type InputReader struct {
	mu       sync.Mutex
	scanner  *bufio.Scanner
	out      io.Writer
	label    func() string
	handlers map[Command][]CommandHandler
}

// NewInputReader reads commands from in. label returns the text shown in front of every prompt.
func NewInputReader(in io.Reader, label func() string) *InputReader {
	return &InputReader{
		scanner:  bufio.NewScanner(in),
		out:      os.Stdout,
		label:    label,
		handlers: make(map[Command][]CommandHandler),
	}
}

func (ir *InputReader) AddHandler(cmd Command, handler CommandHandler) {
	ir.handlers[cmd] = append(ir.handlers[cmd], handler)
}

// Prompt prints label and reads one line. Returns false if the input ended.
// Handlers use it to ask for missing arguments while the input loop waits for them.
func (ir *InputReader) Prompt(label string) (string, bool) {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	fmt.Fprint(ir.out, label)
	if !ir.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(ir.scanner.Text()), true
}

func (ir *InputReader) readLine() (string, bool) {
	ir.mu.Lock()
	defer ir.mu.Unlock()

	fmt.Fprintf(ir.out, "%s > ", ir.label())

	if !ir.scanner.Scan() {
		if err := ir.scanner.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		}
		return "", false
	}
	return ir.scanner.Text(), true
}

// InputLoop continuously reads from the input and notifies registered handlers about commands.
// This method will block until an "exit" command is processed or the input ends.
func (ir *InputReader) InputLoop() {
	fmt.Fprintln(ir.out, "Ready for commands. Type 'exit' to stop, 'help' for a list of commands.")

	for {
		line, ok := ir.readLine()
		if !ok {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		command := Command(strings.ToLower(parts[0]))
		args := parts[1:]

		switch {
		case command == "help":
			fmt.Fprintln(ir.out, "Available commands:")
			for _, cmd := range slices.Sorted(maps.Keys(ir.handlers)) {
				fmt.Fprintf(ir.out, "- %s\n", cmd)
			}
		case len(ir.handlers[command]) == 0:
			fmt.Fprintf(ir.out, "No handlers registered for command: '%s'\n", command)
		default:
			for _, handler := range ir.handlers[command] {
				handler(args)
			}
		}

		if command == "exit" {
			return
		}
	}
}
