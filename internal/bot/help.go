package bot

import (
	"context"
	"strings"

	"github.com/nkotelnikov/telesweep/internal/gateway"
)

const welcomeText = "Hi! I can delete your own messages from your conversations in bulk.\n" +
	"Start with /session to authorize a delegated session, then use /erase."

// RegisterHelp adds the /start and /help commands. Call it after every other
// command so /help lists the full set.
func (d *Dispatcher) RegisterHelp() {
	d.Register(Command{
		Name:  "/start",
		About: "Show the welcome message",
		Handler: func(ctx context.Context, msg gateway.InboundMessage) {
			_, _ = d.bot.SendMessage(ctx, msg.Chat.ID, welcomeText)
		},
	})
	d.Register(Command{
		Name:    "/help",
		About:   "List available commands",
		Handler: d.handleHelp,
	})
}

func (d *Dispatcher) handleHelp(ctx context.Context, msg gateway.InboundMessage) {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range d.order {
		cmd := d.commands[name]
		b.WriteString(cmd.Name)
		b.WriteString(" - ")
		b.WriteString(cmd.About)
		b.WriteString("\n")
	}
	_, _ = d.bot.SendMessage(ctx, msg.Chat.ID, b.String())
}
