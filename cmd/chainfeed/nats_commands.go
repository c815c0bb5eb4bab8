package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	natspkg "github.com/brojonat/chainfeed/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams transaction events published by sync workers.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to transaction events",
		ArgsUsage: "[SYMBOL [ADDRESS]]",
		Description: `Subscribe to transaction events published to NATS JetStream.

Events are published to the subject txns.{SYMBOL}.{address}. With no
arguments every event is streamed; with only a symbol, every wallet of
that currency.

Example:
  chainfeed nats subscribe XTZ tz1... --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "chainfeed-cli",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq expression each event must satisfy (can be repeated, all must match)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 2 {
				return fmt.Errorf("expected at most a symbol and an address")
			}
			subject := subjectFilter(c.Args().Get(0), c.Args().Get(1))

			filters, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}
			logger := newLogger(c.String("log-level"))
			jsonOutput := c.Bool("json")

			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			ctx, cancel := commandContext(c)
			defer cancel()

			consumerConfig := jetstream.ConsumerConfig{
				FilterSubject: subject,
				AckPolicy:     jetstream.AckExplicitPolicy,
			}
			if c.Bool("durable") {
				consumerConfig.Durable = c.String("consumer-name")
				consumerConfig.Name = c.String("consumer-name")
			}

			cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, consumerConfig)
			if err != nil {
				return fmt.Errorf("failed to create consumer: %w", err)
			}

			if !jsonOutput {
				fmt.Fprintf(c.App.ErrWriter, "📡 Subscribing to: %s\n", subject)
				fmt.Fprintf(c.App.ErrWriter, "\nWaiting for transactions... (Ctrl-C to exit)\n\n")
			}

			msgChan := make(chan jetstream.Msg, 10)
			consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
				msgChan <- msg
			})
			if err != nil {
				return fmt.Errorf("failed to consume: %w", err)
			}
			defer consumeCtx.Stop()

			count := 0
			for {
				select {
				case msg := <-msgChan:
					var event natspkg.TransactionEvent
					if err := json.Unmarshal(msg.Data(), &event); err != nil {
						logger.Error("failed to parse event", "subject", msg.Subject(), "error", err)
						msg.Ack()
						continue
					}
					msg.Ack()

					if len(filters) > 0 {
						var value interface{}
						if err := json.Unmarshal(msg.Data(), &value); err != nil || !matchesAll(value, filters, logger) {
							continue
						}
					}

					count++
					if jsonOutput {
						data, _ := json.Marshal(event)
						fmt.Fprintln(c.App.Writer, string(data))
					} else {
						printEvent(c, count, &event)
					}

				case <-ctx.Done():
					if !jsonOutput {
						fmt.Fprintf(c.App.ErrWriter, "\n✅ Received %d transactions\n", count)
					}
					return nil
				}
			}
		},
	}
}

// subjectFilter builds the consumer filter for an optional symbol and address.
func subjectFilter(symbol, address string) string {
	switch {
	case symbol == "":
		return "txns.>"
	case address == "":
		return "txns." + strings.ToUpper(symbol) + ".>"
	default:
		return natspkg.Subject(symbol, address)
	}
}

func printEvent(c *cli.Context, n int, event *natspkg.TransactionEvent) {
	w := c.App.Writer
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Transaction #%d\n", n)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "ID:           %s\n", event.TransactionID)
	fmt.Fprintf(w, "Wallet:       %s (%s %s)\n", event.WalletAddress, event.CurrencySymbol, event.Network)
	fmt.Fprintf(w, "Direction:    %s\n", direction(event.TxType))
	fmt.Fprintf(w, "Amount:       %s %s\n", event.Amount.String(), event.CurrencySymbol)
	fmt.Fprintf(w, "From:         %s\n", formatOptionalAddress(event.Source))
	fmt.Fprintf(w, "To:           %s\n", formatOptionalAddress(event.Destination))
	fmt.Fprintf(w, "Date:         %s\n", event.Date.Format(time.RFC3339))
	fmt.Fprintf(w, "Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
}
