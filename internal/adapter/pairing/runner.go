package pairing

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
)

// Session is a running controller shell (bluetoothctl). Lines carries its
// stdout line by line; Send writes one command to its stdin.
type Session interface {
	Send(line string) error
	Lines() <-chan string
	Close() error
}

// Runner starts controller sessions. Separated from the Pairer so tests
// can script the controller's side of the conversation.
type Runner interface {
	Start(ctx context.Context) (Session, error)
}

// ExecRunner launches the real bluetoothctl binary.
type ExecRunner struct{}

type execSession struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string
}

// Start launches bluetoothctl attached to the given context.
func (ExecRunner) Start(ctx context.Context) (Session, error) {
	cmd := exec.CommandContext(ctx, "bluetoothctl")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("bluetoothctl stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("bluetoothctl stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start bluetoothctl: %w", err)
	}

	s := &execSession{cmd: cmd, stdin: stdin, lines: make(chan string, 64)}
	go func() {
		defer close(s.lines)
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			s.lines <- sc.Text()
		}
	}()
	return s, nil
}

func (s *execSession) Send(line string) error {
	_, err := io.WriteString(s.stdin, line+"\n")
	return err
}

func (s *execSession) Lines() <-chan string { return s.lines }

func (s *execSession) Close() error {
	s.stdin.Close()
	return s.cmd.Wait()
}
