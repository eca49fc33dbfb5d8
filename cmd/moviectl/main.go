package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/lanikai/alohamovie"
	"github.com/lanikai/alohamovie/internal/inspect"
	"github.com/lanikai/alohamovie/internal/logging"
	"github.com/lanikai/alohamovie/internal/texture"
)

// Populated via go build -ldflags="-X main.GitTag=...".
var GitRevisionId string
var GitTag string

var log = logging.DefaultLogger.WithTag("moviectl")

func main() {
	flags := newFlagSet()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			help()
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if h, _ := flags.GetBool("help"); h {
		help()
		os.Exit(0)
	}
	if v, _ := flags.GetBool("version"); v {
		fmt.Printf("moviectl %s (%s)\n", GitTag, GitRevisionId)
		os.Exit(0)
	}

	cfg, err := loadConfig(afero.NewOsFs(), flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cfg.Log != "" {
		if err := logging.SetDirectives(cfg.Log); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config) error {
	clock := alohamovie.NewTickerClock(cfg.FPS)

	m, err := alohamovie.OpenWithContext(ctx, cfg.Source, alohamovie.Config{
		Owner:     "moviectl",
		ReadAhead: clock.Interval(),
	})
	if err != nil {
		return err
	}
	defer m.Reset()
	events := m.Subscribe(32)

	m.SetLooping(cfg.Loop)
	m.SetVolume(cfg.Volume)
	if cfg.Selection != nil {
		if err := m.SetPlaybackSelection(*cfg.Selection); err != nil {
			return err
		}
	}

	sink := texture.NewMemory(cfg.TextureBudget, 4)
	renderer := alohamovie.NewRenderer(sink)
	renderer.Attach(m)
	if err := renderer.Run(clock); err != nil {
		return err
	}
	defer clock.Stop()

	if err := m.SetRate(cfg.Rate); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Inspect != "" {
		srv := inspect.NewServer(cfg.Inspect, m, cfg.StatusEvery)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
	}
	if cfg.Interactive {
		g.Go(func() error {
			defer cancel()
			return console(ctx, m)
		})
	}
	g.Go(func() error {
		defer cancel()
		return watch(ctx, cfg, m, renderer, events)
	})
	return g.Wait()
}

// watch prints events and status lines until the movie ends, unless
// following.
func watch(ctx context.Context, cfg *config, m *alohamovie.Movie, r *alohamovie.Renderer, events <-chan alohamovie.Event) error {
	// Rewrite the status line in place, unless it would garble the console.
	inPlace := !cfg.Interactive && term.IsTerminal(int(os.Stdout.Fd()))

	status := time.NewTicker(cfg.StatusEvery)
	defer status.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if inPlace {
				fmt.Print("\r\033[K")
			}
			printEvent(ev)
			switch ev.Type {
			case alohamovie.EventEndOfMedia:
				if !cfg.Follow {
					return nil
				}
			case alohamovie.EventError:
				if !cfg.Follow {
					return ev.Err
				}
			}
		case <-status.C:
			if cfg.Interactive {
				continue
			}
			line := fmt.Sprintf("%s  ticks %d", statusLine(m), r.Ticks())
			if inPlace {
				statusColor.Printf("\r\033[K%s", line)
			} else {
				statusColor.Println(line)
			}
		}
	}
}

var (
	eventColor  = color.New(color.FgCyan)
	errorColor  = color.New(color.FgRed)
	statusColor = color.New(color.FgHiBlack)
)

func printEvent(ev alohamovie.Event) {
	switch ev.Type {
	case alohamovie.EventError:
		errorColor.Printf("%-12s %8.3fs %v\n", ev.Type, ev.Time.Seconds(), ev.Err)
	case alohamovie.EventRateChanged:
		eventColor.Printf("%-12s %8.3fs rate %v\n", ev.Type, ev.Time.Seconds(), ev.Rate)
	default:
		eventColor.Printf("%-12s %8.3fs\n", ev.Type, ev.Time.Seconds())
	}
}

func statusLine(m *alohamovie.Movie) string {
	st := m.Stats()
	line := fmt.Sprintf("%8.3fs / %.3fs  rate %-5v frames %d (dropped %d)  uploads %d",
		m.CurrentTime().Seconds(), m.Duration().Seconds(), m.Rate(),
		st.FramesDelivered, st.FramesDropped, st.Uploads)
	if sel, ok := m.PlaybackSelection(); ok {
		line += "  selection " + sel.String()
	}
	if m.Looping() {
		line += "  looping"
	}
	return line
}
