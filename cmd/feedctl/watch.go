package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/eventfeed/internal/events"
	"github.com/alfredjeanlab/eventfeed/internal/ui"
)

// watchSubjects are the notification subjects, subscribed individually so
// each line can be labelled.
var watchSubjects = []string{
	events.TopicTopicAsserted,
	events.TopicSubscriberAsserted,
	events.TopicInterestRegistered,
	events.TopicInterestRemoved,
	events.TopicEventRaised,
}

// notice is one received notification.
type notice struct {
	Subject string          `json:"subject"`
	Payload json.RawMessage `json:"payload"`
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream feed change notifications from NATS",
	GroupID: "views",
	Args:    cobra.NoArgs,
	// Watching only needs NATS, not the store.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return setup() },
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NATSURL == "" {
			return errors.New("FEED_NATS_URL is not set")
		}

		sub, err := events.NewNATSSubscriber(cfg.NATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("NATS disconnected", "err", err)
				}
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		merged := make(chan notice, 64)
		for _, subject := range watchSubjects {
			ch, cancel, err := sub.Subscribe(subject)
			if err != nil {
				return err
			}
			defer cancel()
			go func(subject string, ch <-chan []byte) {
				for data := range ch {
					select {
					case merged <- notice{Subject: subject, Payload: data}:
					case <-ctx.Done():
						return
					}
				}
			}(subject, ch)
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "watching %s (Ctrl-C to stop)\n", cfg.NATSURL)
		for {
			select {
			case <-ctx.Done():
				return nil
			case n := <-merged:
				if err := printNotice(cmd.OutOrStdout(), n, time.Now()); err != nil {
					return err
				}
			}
		}
	},
}

func printNotice(w io.Writer, n notice, at time.Time) error {
	if jsonOutput {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s %s\n", ui.RenderTime(at), ui.RenderAccent(n.Subject), n.Payload)
	return err
}
