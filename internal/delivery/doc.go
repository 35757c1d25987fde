// Package delivery provides strategies for receiving new messages from relay
// mailboxes.
//
// # Delivery Strategies
//
//   - [WebSocketStrategy]: Subscribes to the relay /ws push channel.
//     Lowest latency, recommended for most use cases.
//
//   - [PollingStrategy]: Periodically lists /receive/{username}. Uses adaptive
//     backoff when no new messages arrive.
//
//   - [AutoStrategy]: Tries WebSocket first and falls back to polling if the
//     push channel does not connect within the configured timeout.
//
// # Usage
//
//	cfg := delivery.Config{APIClient: apiClient}
//	strategy := delivery.NewAutoStrategy(cfg)
//
//	mailboxes := []delivery.MailboxInfo{{Username: "bob"}}
//	strategy.Start(ctx, mailboxes, func(ctx context.Context, event *api.PushEvent) error {
//	    // verify event.Message.Packet
//	    return nil
//	})
//	defer strategy.Stop()
//
// # Duplicates
//
// The relay keeps every message, and a WebSocket reconnect followed by a pull
// sync can observe a message twice. Handlers must tolerate duplicates; the
// polling strategy already drops IDs it has delivered.
//
// # Thread Safety
//
// All strategy types are safe for concurrent use. Mailboxes can be added or
// removed while a strategy is running.
package delivery
