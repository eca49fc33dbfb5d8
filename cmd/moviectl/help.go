package main

import (
	"fmt"

	"github.com/fatih/color"
)

const helpString = `Play a movie against a software display clock

Usage: moviectl [OPTION]...

Playback:
  -i, --input=SPEC       Movie source (default: pattern:640x480@30/10s)
                         mp4:FILE, FILE.mp4 or pattern:WxH@FPS/DURATION
  -r, --rate=NUM         Playback rate, negative to reverse (default: 1)
  -l, --loop             Loop playback
  -s, --selection=RANGE  Play only START,END, e.g. 2s,4.5s
      --volume=NUM       Audio volume in [0, 1] (default: 1)
      --follow           Keep running after the end of the movie
  -I, --interactive      Read playback commands from the terminal
                         (play, stop, rate N, seek D, loop on|off,
                         select START,END, clear, end, status, quit)

Display:
  -f, --fps=NUM          Display refresh rate (default: 60)
      --texture-budget=N Texture memory limit, in bytes (default: unlimited)

Diagnostics:
      --inspect=ADDR     Serve the inspect websocket on ADDR, e.g. :8000
      --status=DURATION  Status line interval (default: 1s)
      --log=DIRECTIVES   Log levels, e.g. movie=debug,media=info

Miscellaneous:
  -c, --config=FILE      Config file (default: ./moviectl.yaml)
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits

Every option may also be set in the config file, or in the environment as
MOVIECTL_<OPTION>, e.g. MOVIECTL_TEXTURE_BUDGET=1048576.`

var banner = []string{
	"                       _            _   _ ",
	" _ __ ___    _____   _(_) ___  ___ | |_| |",
	"| '_ ` _ \\  / _ \\ \\ / / |/ _ \\/ __|| __| |",
	"| | | | | || (_) \\ V /| |  __/ (__ | |_| |",
	"|_| |_| |_| \\___/ \\_/ |_|\\___|\\___| \\__|_|",
}

// Help information is printed and program exits
func help() {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)

	// "movie" in red, "ctl" in cyan, the seam in yellow.
	for _, line := range banner {
		r.Print(line[:24])
		y.Print(line[24:26])
		b.Println(line[26:])
	}

	fmt.Println(helpString)
}
