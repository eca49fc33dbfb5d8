package main

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lanikai/alohamovie"
)

// Settings come from flags, then MOVIECTL_* environment variables, then
// moviectl.yaml, then the flag defaults.
type config struct {
	Source        string
	Rate          float32
	Loop          bool
	Selection     *alohamovie.TimeRange
	Volume        float32
	FPS           float64
	TextureBudget int
	Inspect       string
	StatusEvery   time.Duration
	Follow        bool
	Interactive   bool
	Log           string
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("moviectl", flag.ContinueOnError)
	fs.StringP("input", "i", "pattern:640x480@30/10s", "Movie source")
	fs.Float32P("rate", "r", 1, "Playback rate")
	fs.BoolP("loop", "l", false, "Loop playback")
	fs.StringP("selection", "s", "", "Play only START,END")
	fs.Float32("volume", 1, "Audio volume")
	fs.Float64P("fps", "f", 60, "Display refresh rate")
	fs.Int("texture-budget", 0, "Texture memory limit, in bytes")
	fs.String("inspect", "", "Serve the inspect websocket on ADDR")
	fs.Duration("status", time.Second, "Status line interval")
	fs.Bool("follow", false, "Keep running after the end of the movie")
	fs.BoolP("interactive", "I", false, "Read playback commands from the terminal")
	fs.String("log", "", "Log directives, e.g. movie=debug,media=info")
	fs.StringP("config", "c", "", "Config file")
	fs.BoolP("help", "h", false, "Print usage information and exit")
	fs.BoolP("version", "v", false, "Print version information and exit")
	return fs
}

func loadConfig(fsys afero.Fs, flags *flag.FlagSet) (*config, error) {
	v := viper.New()
	v.SetFs(fsys)
	v.SetEnvPrefix("moviectl")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config %s", file)
		}
	} else {
		v.SetConfigName("moviectl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/moviectl")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.Wrap(err, "config")
			}
		}
	}

	c := &config{
		Source:        v.GetString("input"),
		Rate:          float32(v.GetFloat64("rate")),
		Loop:          v.GetBool("loop"),
		Volume:        float32(v.GetFloat64("volume")),
		FPS:           v.GetFloat64("fps"),
		TextureBudget: v.GetInt("texture-budget"),
		Inspect:       v.GetString("inspect"),
		StatusEvery:   v.GetDuration("status"),
		Follow:        v.GetBool("follow"),
		Interactive:   v.GetBool("interactive"),
		Log:           v.GetString("log"),
	}
	if s := v.GetString("selection"); s != "" {
		r, err := parseSelection(s)
		if err != nil {
			return nil, err
		}
		c.Selection = &r
	}
	if c.FPS <= 0 {
		return nil, errors.Errorf("invalid refresh rate %v", c.FPS)
	}
	return c, nil
}

// parseSelection parses "START,END", e.g. "1.5s,4s".
func parseSelection(s string) (alohamovie.TimeRange, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return alohamovie.TimeRange{}, errors.Errorf("invalid selection %q, want START,END", s)
	}
	start, err := time.ParseDuration(strings.TrimSpace(parts[0]))
	if err != nil {
		return alohamovie.TimeRange{}, errors.Wrap(err, "selection start")
	}
	end, err := time.ParseDuration(strings.TrimSpace(parts[1]))
	if err != nil {
		return alohamovie.TimeRange{}, errors.Wrap(err, "selection end")
	}
	return alohamovie.TimeRange{Start: start, End: end}, nil
}
