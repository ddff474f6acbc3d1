package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-debate/backend/internal/client"
	"github.com/zhouzirui/z-debate/backend/internal/tui"
)

type options struct {
	url          string
	speaker1     string
	speaker2     string
	topic        string
	autoContinue time.Duration
	dialTimeout  time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:           "debatecli",
		Short:         "Watch and join a live debate from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.url, "url", "ws://localhost:5000/ws", "debate server websocket URL")
	flags.StringVar(&opts.speaker1, "speaker1", "", "first speaker name")
	flags.StringVar(&opts.speaker2, "speaker2", "", "second speaker name")
	flags.StringVar(&opts.topic, "topic", "", "debate topic")
	flags.DurationVar(&opts.autoContinue, "auto", 0, "continue automatically after each turn with this delay (0 disables)")
	flags.DurationVar(&opts.dialTimeout, "dial-timeout", 10*time.Second, "websocket dial timeout")
	return cmd
}

func (o options) validate() error {
	set := 0
	for _, v := range []string{o.speaker1, o.speaker2, o.topic} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return errors.New("--speaker1, --speaker2 and --topic must be given together")
	}
	if o.autoContinue < 0 {
		return errors.New("--auto must not be negative")
	}
	return nil
}

func run(ctx context.Context, opts options) error {
	dialCtx, cancel := context.WithTimeout(ctx, opts.dialTimeout)
	defer cancel()

	c, err := client.Dial(dialCtx, opts.url)
	if err != nil {
		return err
	}
	defer c.Close()

	model := tui.New(c, c.Events(), tui.Options{
		Speaker1:     opts.speaker1,
		Speaker2:     opts.speaker2,
		Topic:        opts.topic,
		AutoContinue: opts.autoContinue,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
