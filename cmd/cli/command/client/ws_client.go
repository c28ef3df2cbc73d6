package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"linetest/internal/eventclient"
	"linetest/internal/routing"
)

// ws_client.go = live stage board for the linetest CLI.

type WatchOptions struct {
	URL            string
	Serial         string
	ReconnectDelay time.Duration
	Dialer         eventclient.Dialer // nil uses a gorilla dialer
	In             io.Reader          // serial numbers, one per line
	Out            io.Writer
	Logger         *slog.Logger
}

// Watch follows the feed until ctx is done or the operator types /quit.
// Typing any other line switches the board to that serial without
// reconnecting.
func Watch(ctx context.Context, opts WatchOptions) error {
	if opts.URL == "" {
		return fmt.Errorf("feed url is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// every write to Out goes through this lock; board, uid and state
	// callbacks run on the client goroutine, input on another
	var outMu sync.Mutex
	emit := func(fn func(w io.Writer)) {
		outMu.Lock()
		defer outMu.Unlock()
		fn(opts.Out)
	}

	subject := routing.NewSubject(opts.Serial)
	board := routing.NewStageBoard(subject, logger)
	board.OnChange(func(serial string, snap map[routing.Stage]routing.Status) {
		emit(func(w io.Writer) { RenderBoard(w, serial, snap) })
	})
	uids := routing.NewUIDSink(logger, func(uid string) {
		emit(func(w io.Writer) { RenderUID(w, uid) })
	})

	router := routing.NewRouter(logger)
	router.Handle(eventclient.TypePCBAEvent, board.HandleStageEvent)
	router.Handle(eventclient.TypeUIDSearchResult, uids.HandleUIDResult)

	clientOpts := []eventclient.Option{
		eventclient.WithLogger(logger),
		eventclient.WithHandler(router.Dispatch),
		eventclient.WithStateObserver(func(s eventclient.State) {
			emit(func(w io.Writer) { RenderState(w, s) })
		}),
	}
	if opts.ReconnectDelay > 0 {
		clientOpts = append(clientOpts, eventclient.WithReconnectDelay(opts.ReconnectDelay))
	}
	if opts.Dialer != nil {
		clientOpts = append(clientOpts, eventclient.WithDialer(opts.Dialer))
	}
	client := eventclient.New(clientOpts...)

	emit(func(w io.Writer) { RenderBoard(w, subject.Get(), board.Snapshot()) })
	client.Start(opts.URL)
	defer client.Stop()

	if opts.In != nil {
		go readSerials(ctx, opts.In, cancel, board.Track)
	}

	<-ctx.Done()
	return nil
}

// readSerials feeds each non-empty input line to switchTo until /quit.
// EOF only stops reading, the watch goes on.
func readSerials(ctx context.Context, in io.Reader, quit context.CancelFunc, switchTo func(string)) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit":
			quit()
			return
		default:
			switchTo(line)
		}
	}
}
