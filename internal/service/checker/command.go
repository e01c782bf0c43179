package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/logger"
	"github.com/oshokin/fire-watch/internal/service/client"
	"github.com/oshokin/fire-watch/internal/version"
)

// Options controls the watch behavior and configuration.
type Options struct {
	client.Options

	// Group is the subscriber group to join.
	Group alert.Group
	// RetryInterval is the delay between reconnect attempts.
	RetryInterval time.Duration
}

// DefaultRetryInterval defines the delay before reconnecting a dropped subscription.
const DefaultRetryInterval = 5 * time.Second

// Run subscribes to the group and prints messages until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "fire-cli")

	if !opts.Group.Valid() {
		return fmt.Errorf("%w: %q", alert.ErrInvalidGroup, opts.Group)
	}

	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}

	api, err := client.Connect(ctx, &opts.Options)
	if err != nil {
		return err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	target := api.SubscriptionURL(opts.Group)

	logger.InfoKV(ctx, "Watching alerts", "url", target, "group", opts.Group)

	// Reconnect loop until context cancellation.
	for {
		err = watch(ctx, target, out)

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		default:
		}

		logger.ErrorKV(ctx, "Subscription dropped", "error", err, "retry_in", opts.RetryInterval.String())

		timer := time.NewTimer(opts.RetryInterval)

		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-timer.C:
		}
	}
}

// watch holds one websocket connection and copies its messages to out.
func watch(ctx context.Context, target string, out io.Writer) error {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})

	defer func() {
		stop()

		_ = conn.Close()
	}()

	for {
		_, payload, readErr := conn.ReadMessage()
		if readErr != nil {
			if websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("server closed the subscription")
			}

			return fmt.Errorf("read message: %w", readErr)
		}

		if _, err = fmt.Fprintf(out, "%s\n", payload); err != nil {
			return fmt.Errorf("print message: %w", err)
		}
	}
}
