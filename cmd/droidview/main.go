package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"droidview/client/internal/api"
	"droidview/client/internal/config"
	"droidview/client/internal/domain"
	"droidview/client/internal/gesture"
	"droidview/client/internal/input"
	"droidview/client/internal/logger"
	"droidview/client/internal/session"
	sigchan "droidview/client/internal/signal"
	"droidview/client/internal/webrtc"

	"go.uber.org/zap"
)

const helpText = `droidview - control a remote Android device over WebRTC

Usage:
  droidview [options]

The remote screen is written to stdout as a raw H264 stream. Pipe to ffplay
or ffmpeg for playback or recording. Control commands are read from a
terminal on stdin when stdout is redirected.

Environment Variables (required):
  DROIDVIEW_USER_ID    Backend user id
  DROIDVIEW_DEVICE_ID  Device id to control

Environment Variables (optional):
  DROIDVIEW_CONFIG     Path to a YAML config file
  DROIDVIEW_API_URL    Backend base URL (default http://localhost:8000)
  DROIDVIEW_LOG_LEVEL  debug|info|warn|error

Commands (stdin, one per line):
  tap X Y                     tap at normalized coordinates [0,1]
  swipe X1 Y1 X2 Y2 [MS]      swipe between normalized points
  drag X1 Y1 X2 Y2 MS         classify as tap or swipe from raw samples
  press NAME                  named action (HOME, BACK, POWER, ...)
  key CODE                    raw Android keycode
  quit                        disconnect and exit

Examples:
  droidview | ffplay -f h264 -

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	cfg, err := config.Load(os.Getenv("DROIDVIEW_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "droidview: %v\n", err)
		os.Exit(1)
	}
	if cfg.UserID == 0 || cfg.DeviceID == 0 {
		fmt.Fprintln(os.Stderr, "droidview: DROIDVIEW_USER_ID and DROIDVIEW_DEVICE_ID are required")
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()
	sl := log.Sugar().Named("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		sl.Infow("shutting down", "signal", s.String())
		cancel()
	}()

	apiClient := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, log)

	devices, err := apiClient.ListDevices(ctx, cfg.UserID)
	if err != nil {
		sl.Fatalw("device listing failed", "error", err)
	}
	found := false
	for _, d := range devices {
		sl.Infow("device", "id", d.ID, "name", d.DeviceName, "status", d.Status)
		if d.ID == cfg.DeviceID {
			found = true
			if !d.Running() {
				sl.Warnw("device is not running; session will likely fail", "id", d.ID, "status", d.Status)
			}
		}
	}
	if !found {
		sl.Fatalw("device not found for user", "device_id", cfg.DeviceID, "user_id", cfg.UserID)
	}

	mgr := session.New(session.Deps{
		API: apiClient,
		Signaler: func(token string, handler domain.SignalHandler) domain.Signaler {
			wsURL, err := sigchan.WSURL(cfg.API.BaseURL, token)
			if err != nil {
				sl.Errorw("bad signaling url", "error", err)
			}
			return sigchan.NewChannel(wsURL, cfg.Signal.PingInterval, cfg.Signal.WriteTimeout, handler, log)
		},
		Transport: func(servers []domain.ICEServer, hooks domain.TransportHooks) (domain.Transport, domain.ControlSender, error) {
			return webrtc.NewTransport(servers, os.Stdout, hooks, log)
		},
		Projector:   &consoleProjector{log: sl, cancel: cancel},
		ICEServers:  cfg.WebRTC.ICEServers,
		GracePeriod: cfg.Session.ConnectGracePeriod,
		Logger:      log,
	})

	if err := mgr.Connect(ctx, cfg.UserID, cfg.DeviceID); err != nil {
		sl.Fatalw("connect failed", "error", err)
	}

	go readCommands(mgr, cancel, sl)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	mgr.Dispose(shutdownCtx)
	sl.Infow("done")
}

// consoleProjector logs session transitions and exits the process loop on a
// terminal state.
type consoleProjector struct {
	log    *zap.SugaredLogger
	cancel context.CancelFunc
}

func (p *consoleProjector) OnStateChange(state domain.ConnectionState, reason string) {
	p.log.Infow("session state", "state", state.String(), "reason", reason)
	if state.Terminal() {
		p.cancel()
	}
}

func (p *consoleProjector) OnRemoteVideo() {
	p.log.Infow("remote video ready")
}

func readCommands(mgr *session.Manager, cancel context.CancelFunc, log *zap.SugaredLogger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			cancel()
			return
		}

		ev, err := parseCommand(line)
		if err != nil {
			log.Warnw("bad command", "line", line, "error", err)
			continue
		}
		if err := mgr.SendInput(ev); err != nil {
			log.Warnw("input not delivered", "line", line, "error", err)
		}
	}
	cancel()
}

func parseCommand(line string) (domain.ControlEvent, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "tap":
		if len(fields) != 3 {
			return domain.ControlEvent{}, fmt.Errorf("usage: tap X Y")
		}
		x, y, err := parseXY(fields[1], fields[2])
		if err != nil {
			return domain.ControlEvent{}, err
		}
		return domain.Tap(x, y), nil

	case "swipe":
		if len(fields) != 5 && len(fields) != 6 {
			return domain.ControlEvent{}, fmt.Errorf("usage: swipe X1 Y1 X2 Y2 [MS]")
		}
		x1, y1, err := parseXY(fields[1], fields[2])
		if err != nil {
			return domain.ControlEvent{}, err
		}
		x2, y2, err := parseXY(fields[3], fields[4])
		if err != nil {
			return domain.ControlEvent{}, err
		}
		ms := 300
		if len(fields) == 6 {
			if ms, err = strconv.Atoi(fields[5]); err != nil {
				return domain.ControlEvent{}, fmt.Errorf("bad duration: %w", err)
			}
		}
		return domain.Swipe(x1, y1, x2, y2, ms), nil

	case "drag":
		if len(fields) != 6 {
			return domain.ControlEvent{}, fmt.Errorf("usage: drag X1 Y1 X2 Y2 MS")
		}
		x1, y1, err := parseXY(fields[1], fields[2])
		if err != nil {
			return domain.ControlEvent{}, err
		}
		x2, y2, err := parseXY(fields[3], fields[4])
		if err != nil {
			return domain.ControlEvent{}, err
		}
		ms, err := strconv.Atoi(fields[5])
		if err != nil {
			return domain.ControlEvent{}, fmt.Errorf("bad duration: %w", err)
		}
		start := gesture.Sample{X: x1, Y: y1, TimeMs: 0}
		end := gesture.Sample{X: x2, Y: y2, TimeMs: int64(ms)}
		return gesture.Classify(start, end), nil

	case "press":
		if len(fields) != 2 {
			return domain.ControlEvent{}, fmt.Errorf("usage: press NAME")
		}
		code, err := input.KeyFor(strings.ToUpper(fields[1]))
		if err != nil {
			return domain.ControlEvent{}, err
		}
		return domain.Key(code), nil

	case "key":
		if len(fields) != 2 {
			return domain.ControlEvent{}, fmt.Errorf("usage: key CODE")
		}
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			return domain.ControlEvent{}, fmt.Errorf("bad keycode: %w", err)
		}
		return domain.Key(code), nil
	}
	return domain.ControlEvent{}, fmt.Errorf("unknown command %q", fields[0])
}

func parseXY(xs, ys string) (float64, float64, error) {
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad coordinate: %w", err)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad coordinate: %w", err)
	}
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return 0, 0, fmt.Errorf("coordinates must be normalized to [0,1]")
	}
	return x, y, nil
}
