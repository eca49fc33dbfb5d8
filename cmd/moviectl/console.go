package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"github.com/lanikai/alohamovie"
)

var errQuit = errors.New("quit")

var consoleCompleter = readline.NewPrefixCompleter(
	readline.PcItem("play"),
	readline.PcItem("stop"),
	readline.PcItem("rate"),
	readline.PcItem("seek"),
	readline.PcItem("loop",
		readline.PcItem("on"),
		readline.PcItem("off"),
	),
	readline.PcItem("select"),
	readline.PcItem("clear"),
	readline.PcItem("end"),
	readline.PcItem("status"),
	readline.PcItem("quit"),
)

// execute runs one console command against m and returns any text to print.
func execute(m *alohamovie.Movie, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	arg := func() (string, error) {
		if len(fields) != 2 {
			return "", errors.Errorf("usage: %s ARG", fields[0])
		}
		return fields[1], nil
	}

	switch fields[0] {
	case "play":
		return "", m.Play()
	case "stop":
		m.Stop()
	case "rate":
		a, err := arg()
		if err != nil {
			return "", err
		}
		r, err := strconv.ParseFloat(a, 32)
		if err != nil {
			return "", errors.Wrap(err, "rate")
		}
		return "", m.SetRate(float32(r))
	case "seek":
		a, err := arg()
		if err != nil {
			return "", err
		}
		d, err := time.ParseDuration(a)
		if err != nil {
			return "", errors.Wrap(err, "seek")
		}
		return "", m.Seek(d)
	case "loop":
		a, err := arg()
		if err != nil {
			return "", err
		}
		switch a {
		case "on":
			m.SetLooping(true)
		case "off":
			m.SetLooping(false)
		default:
			return "", errors.Errorf("loop: want on or off, got %q", a)
		}
	case "select":
		a, err := arg()
		if err != nil {
			return "", err
		}
		r, err := parseSelection(a)
		if err != nil {
			return "", err
		}
		return "", m.SetPlaybackSelection(r)
	case "clear":
		m.ClearPlaybackSelection()
	case "end":
		m.GotoEnd()
	case "status":
		return statusLine(m), nil
	case "quit", "exit":
		return "", errQuit
	default:
		return "", errors.Errorf("unknown command %q", fields[0])
	}
	return "", nil
}

// console reads commands from the terminal until quit, EOF or ctx is done.
func console(ctx context.Context, m *alohamovie.Movie) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "movie> ",
		AutoComplete: consoleCompleter,
	})
	if err != nil {
		return errors.Wrap(err, "console")
	}
	defer rl.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			rl.Close()
		case <-done:
		}
	}()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if line == "" {
				return nil
			}
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		out, err := execute(m, line)
		if err == errQuit {
			return nil
		} else if err != nil {
			errorColor.Fprintln(rl.Stderr(), err)
			continue
		}
		if out != "" {
			fmt.Fprintln(rl.Stdout(), out)
		}
	}
}
