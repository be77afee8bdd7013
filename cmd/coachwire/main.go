package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/sjawhar/coachwire/internal/audio"
	"github.com/sjawhar/coachwire/internal/config"
	"github.com/sjawhar/coachwire/internal/gdrive"
	"github.com/sjawhar/coachwire/internal/meeting"
	"github.com/sjawhar/coachwire/internal/nudge"
	"github.com/sjawhar/coachwire/internal/protocol"
	"github.com/sjawhar/coachwire/internal/screen"
	"github.com/sjawhar/coachwire/internal/session"
	"github.com/sjawhar/coachwire/internal/storage"
	"github.com/sjawhar/coachwire/internal/summary"
)

// cliView renders orchestrator events on the terminal. Timer ticks arrive
// every second; only minute boundaries and the warning/overtime edges are
// printed.
type cliView struct {
	total time.Duration

	mu       sync.Mutex
	minute   int
	warned   bool
	overtime bool
}

func newCLIView(total time.Duration) *cliView {
	return &cliView{total: total, minute: -1}
}

func (v *cliView) PhaseChanged(phase session.Phase) {
	log.Printf("session: %s", phase)
	if phase == session.PhaseSetup || phase == session.PhaseConnecting {
		v.mu.Lock()
		v.minute = -1
		v.warned = false
		v.overtime = false
		v.mu.Unlock()
	}
}

func (v *cliView) TimerTick(snap meeting.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case snap.Overtime && !v.overtime:
		v.overtime = true
		fmt.Printf("[timer] OVERTIME %s\n", meeting.FormatRemaining(snap.Remaining))
	case snap.Warning && !v.warned:
		v.warned = true
		fmt.Printf("[timer] %s remaining\n", meeting.FormatRemaining(snap.Remaining))
	default:
		minute := int(snap.Elapsed / time.Minute)
		if minute > v.minute {
			v.minute = minute
			fmt.Printf("[timer] %s\n", meeting.FormatClock(snap.Elapsed, v.total))
		}
	}
}

func (v *cliView) NudgeShown(n protocol.Nudge) {
	tag := "nudge"
	if n.IsHighPriority() {
		tag = "NUDGE"
	}
	fmt.Printf("[%s] %s\n", tag, n.Message)
}

func (v *cliView) NudgeRemoved(protocol.Nudge, nudge.RemovalReason) {}

func (v *cliView) StateUpdated(currentTopic string, actionItemsCount int, elapsedMinutes float64) {
	if currentTopic == "" {
		return
	}
	fmt.Printf("[state] topic: %s (action items: %d, coach elapsed: %.1f min)\n",
		currentTopic, actionItemsCount, elapsedMinutes)
}

func (v *cliView) SummaryPending() {
	fmt.Println("[summary] waiting for the coach to compile the summary...")
}

func (v *cliView) SummaryReady(meetingID, markdown string) {
	fmt.Printf("\n%s\n[summary] meeting %s complete\n", markdown, meetingID)
}

func (v *cliView) Notice(message string) {
	fmt.Printf("[notice] %s\n", message)
}

func (v *cliView) Failure(err error) {
	log.Printf("error: %v", err)
}

func main() {
	configPath := flag.String("config", "coachwire.yaml", "path to the YAML config file")
	flag.Parse()

	log.Println("coachwire: starting")

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("portaudio init failed: %v", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var archive session.SummaryArchive
	if cfg.DBPath != "" {
		store, storeErr := storage.NewSQLiteStore(cfg.DBPath)
		if storeErr != nil {
			log.Printf("warning: summary archive disabled: %v", storeErr)
		} else {
			archive = store
			defer func() { _ = store.Close() }()
		}
	}

	var uploader session.SummaryUploader
	if cfg.GDriveFolderID != "" && cfg.GoogleCredentialsFile != "" {
		up, upErr := gdrive.NewUploader(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if upErr != nil {
			log.Printf("warning: drive upload disabled: %v", upErr)
		} else {
			uploader = up
		}
	}

	exporter := summary.NewExporter(cfg.ExportDir)
	player := audio.NewPlayback()
	defer player.Destroy()

	view := newCLIView(time.Duration(cfg.MeetingDurationMinutes) * time.Minute)

	orch := session.NewOrchestrator(session.Deps{
		Config:   cfg,
		Mic:      audio.NewCapture(),
		Screen:   screen.NewPipeline(cfg.ScreenDisplay),
		Player:   player,
		Sink:     view,
		Archive:  archive,
		Exporter: exporter,
		Uploader: uploader,
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	printHelp()
	fmt.Print("> ")

	for {
		select {
		case <-sig:
			log.Println("coachwire: shutting down")
			orch.Reset()
			return
		case line, ok := <-lines:
			if !ok {
				orch.Reset()
				return
			}
			if quit := handleCommand(ctx, orch, exporter, line); quit {
				log.Println("coachwire: shutting down")
				orch.Reset()
				return
			}
			fmt.Print("> ")
		}
	}
}

func handleCommand(ctx context.Context, orch *session.Orchestrator, exporter *summary.Exporter, line string) bool {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")

	switch cmd {
	case "":
	case "help":
		printHelp()

	case "start":
		if err := orch.Start(ctx); err != nil {
			log.Printf("start failed: %v", err)
		}

	case "mic":
		on, err := orch.ToggleMic()
		if err != nil {
			log.Printf("mic toggle failed: %v", err)
			break
		}
		fmt.Printf("mic %s\n", onOff(on))

	case "share":
		on, err := orch.ToggleShare()
		if err != nil {
			log.Printf("share toggle failed: %v", err)
			break
		}
		fmt.Printf("screen share %s\n", onOff(on))

	case "say":
		if rest == "" {
			fmt.Println("usage: say <message>")
			break
		}
		if err := orch.SendText(rest); err != nil {
			log.Printf("send failed: %v", err)
		}

	case "nudges":
		visible := orch.Nudges().Visible()
		if len(visible) == 0 {
			fmt.Println("no visible nudges")
			break
		}
		for i, n := range visible {
			fmt.Printf("%d. [%s] %s\n", i+1, n.Priority, n.Message)
		}

	case "dismiss":
		visible := orch.Nudges().Visible()
		idx, err := strconv.Atoi(rest)
		if err != nil || idx < 1 || idx > len(visible) {
			fmt.Println("usage: dismiss <number from `nudges`>")
			break
		}
		orch.Nudges().Dismiss(visible[idx-1])

	case "status":
		snap := orch.TimerSnapshot()
		fmt.Printf("phase=%s meeting=%s elapsed=%s nudges_shown=%d\n",
			orch.Phase(), orch.MeetingID(), meeting.FormatClock(snap.Elapsed, snap.Elapsed+snap.Remaining), orch.Nudges().ShownCount())

	case "end":
		if err := orch.End(); err != nil {
			log.Printf("end failed: %v", err)
		}

	case "copy":
		md := orch.SummaryMarkdown()
		if md == "" {
			fmt.Println("no summary yet")
			break
		}
		if err := exporter.CopyToClipboard(md); err != nil {
			log.Printf("clipboard copy failed: %v", err)
			break
		}
		fmt.Println("summary copied to clipboard")

	case "new":
		orch.Reset()

	case "quit", "exit":
		return true

	default:
		fmt.Printf("unknown command %q (try `help`)\n", cmd)
	}

	return false
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func printHelp() {
	fmt.Println(`commands:
  start          begin the meeting
  mic            toggle the microphone
  share          toggle screen sharing
  say <text>     send a text command to the coach
  nudges         list visible nudges
  dismiss <n>    dismiss a visible nudge
  status         show session status
  end            end the meeting and wait for the summary
  copy           copy the summary to the clipboard
  new            reset for a new meeting
  quit           exit`)
}
