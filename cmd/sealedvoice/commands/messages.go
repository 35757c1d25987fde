package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sealedvoice/client-go"
)

// RunSend seals the clip at clipPath (or stdin when clipPath is "-") for
// recipient and stores it on the relay.
func RunSend(
	ctx context.Context,
	client *sealedvoice.Client,
	logger *slog.Logger,
	from *sealedvoice.Identity,
	recipient string,
	clipPath string,
	iot IOTuple,
) error {
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}

	var (
		clip []byte
		err  error
	)
	if clipPath == "-" {
		clip, err = io.ReadAll(iot.Reader)
	} else {
		clip, err = os.ReadFile(clipPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read clip: %w", err)
	}

	id, err := client.Send(ctx, from, recipient, clip)
	if err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}

	logger.Info("clip sent",
		slog.String("sender", from.Username()),
		slog.String("recipient", recipient),
		slog.String("message_id", id),
		slog.Int("size", len(clip)),
	)
	_, _ = fmt.Fprintf(iot.Writer, "Sent %s\n", id)
	return nil
}

// messageView is the JSON form of a received message.
type messageView struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	ReceivedAt time.Time `json:"received_at"`
	Verified   bool      `json:"verified"`
	Size       int       `json:"size,omitempty"`
	Error      string    `json:"error,omitempty"`
	File       string    `json:"file,omitempty"`
}

// RunInbox fetches and verifies the identity's mailbox. Verified clips are
// written to saveDir as <id>.clip when saveDir is set.
func RunInbox(
	ctx context.Context,
	client *sealedvoice.Client,
	id *sealedvoice.Identity,
	saveDir string,
	format string,
	iot IOTuple,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	messages, err := client.Receive(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to receive: %w", err)
	}

	views := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		view, err := viewMessage(msg, saveDir)
		if err != nil {
			return err
		}
		views = append(views, view)
	}

	if format == "json" {
		return outputJSON(iot.Writer, views)
	}
	if len(views) == 0 {
		_, _ = fmt.Fprintln(iot.Writer, "No messages")
		return nil
	}
	for _, v := range views {
		writeMessageText(iot.Writer, v)
	}
	return nil
}

// RunListen prints messages as they arrive until ctx is canceled.
func RunListen(
	ctx context.Context,
	client *sealedvoice.Client,
	logger *slog.Logger,
	id *sealedvoice.Identity,
	saveDir string,
	iot IOTuple,
) error {
	messages, err := client.Subscribe(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	logger.Info("listening",
		slog.String("username", id.Username()),
		slog.String("strategy", client.StrategyName()),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-messages:
			if msg == nil {
				continue
			}
			view, err := viewMessage(msg, saveDir)
			if err != nil {
				return err
			}
			writeMessageText(iot.Writer, view)
		}
	}
}

func viewMessage(msg *sealedvoice.Message, saveDir string) (messageView, error) {
	view := messageView{
		ID:         msg.ID,
		Sender:     msg.Sender,
		ReceivedAt: msg.ReceivedAt,
		Verified:   msg.Verified(),
	}
	if msg.Err != nil {
		view.Error = msg.Err.Error()
		return view, nil
	}

	view.Size = len(msg.Plaintext)
	if saveDir != "" {
		path := filepath.Join(saveDir, filepath.Base(msg.ID)+".clip")
		if err := os.WriteFile(path, msg.Plaintext, 0o600); err != nil {
			return view, fmt.Errorf("failed to save clip: %w", err)
		}
		view.File = path
	}
	return view, nil
}

func writeMessageText(w io.Writer, v messageView) {
	if !v.Verified {
		_, _ = fmt.Fprintf(w, "%s  from %-16s  REJECTED  %s\n", v.ID, v.Sender, v.Error)
		return
	}
	_, _ = fmt.Fprintf(w, "%s  from %-16s  %d bytes", v.ID, v.Sender, v.Size)
	if v.File != "" {
		_, _ = fmt.Fprintf(w, "  -> %s", v.File)
	}
	_, _ = fmt.Fprintln(w)
}
