package handlers

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"civicbriefs/internal/chat"

	"github.com/spf13/cobra"
)

// NewChatCmd creates the chat command
func NewChatCmd() *cobra.Command {
	var userID, sessionID string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the mentor about stored news and previous-year questions",
		Long: `Answers are grounded in stored news and the question archive. With a
message argument a single answer is printed; without one an interactive
session starts (empty line or 'exit' to quit).

Examples:
  civicbriefs chat "latest news"
  civicbriefs chat --user asha`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := openServices(ctx)
			if err != nil {
				return err
			}
			defer services.Close()

			if len(args) > 0 {
				_, err := ask(ctx, services.Chat, userID, sessionID, strings.Join(args, " "))
				return err
			}

			fmt.Println(titleStyle.Render("💬 civicbriefs mentor") + mutedStyle.Render("  (empty line to quit)"))
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" || line == "exit" || line == "quit" {
					return nil
				}
				if sessionID, err = ask(ctx, services.Chat, userID, sessionID, line); err != nil {
					return err
				}
			}
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID the conversation belongs to")
	cmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing anonymous session")
	return cmd
}

// ask prints one answer and returns the session to continue with.
func ask(ctx context.Context, svc *chat.Service, userID, sessionID, message string) (string, error) {
	resp, err := svc.Ask(ctx, userID, sessionID, message)
	if err != nil {
		return sessionID, err
	}
	fmt.Println(resp.Response)
	for _, q := range resp.Pyqs {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("  • [%s %d] %s", q.Paper, q.Year, q.Question)))
	}
	if resp.SessionID != "" {
		sessionID = resp.SessionID
	}
	return sessionID, nil
}
