package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/confab-dev/confab-go/internal/models"
)

var watchSend string

var watchCmd = &cobra.Command{
	Use:   "watch <discussion-id>",
	Short: "Follow a discussion's event stream",
	Long: `Connect to the Confab event stream, join a discussion, and print
events as they arrive. The session reconnects automatically on transport
drops and re-joins the discussion. Press Ctrl+C to leave.

Examples:
  confab watch disc-42
  confab watch disc-42 --send "hello everyone"`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSend, "send", "", "post a message after joining")
}

func runWatch(cmd *cobra.Command, args []string) error {
	discussionID := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := syncClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	handle := syncClient.On(models.Wildcard, printEvent)
	defer syncClient.Off(models.Wildcard, handle)

	if err := syncClient.JoinRoom(ctx, discussionID); err != nil {
		return fmt.Errorf("join %s: %w", discussionID, err)
	}

	if watchSend != "" {
		if err := syncClient.SendMessage(discussionID, watchSend); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", discussionID)
	<-ctx.Done()

	syncClient.LeaveRoom(discussionID)
	return nil
}

func printEvent(ev models.Event) {
	ts := ev.Timestamp.Format("15:04:05")
	switch p := ev.Payload.(type) {
	case models.MessagePayload:
		fmt.Printf("%s  %s: %s\n", ts, p.Sender, p.Body)
	case models.TurnPayload:
		verb := "started"
		if ev.Type == models.EventTurnEnded {
			verb = "ended"
		}
		fmt.Printf("%s  turn %s (%s)\n", ts, verb, p.Participant)
	case models.ParticipantPayload:
		verb := "joined"
		if ev.Type == models.EventParticipantLeft {
			verb = "left"
		}
		fmt.Printf("%s  %s %s\n", ts, p.Participant, verb)
	case models.RoomAckPayload:
		fmt.Printf("%s  %s %s\n", ts, ev.Type, p.RoomID)
	case models.ConnectionPayload:
		if p.Reason != "" {
			fmt.Printf("%s  %s: %s\n", ts, ev.Type, p.Reason)
		} else {
			fmt.Printf("%s  %s\n", ts, ev.Type)
		}
	default:
		fmt.Printf("%s  %s\n", ts, ev.Type)
	}
}
