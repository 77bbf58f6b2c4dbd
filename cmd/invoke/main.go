package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/germanamz/invoker/pkg/chats/message"
	"github.com/germanamz/invoker/pkg/credential"
	"github.com/germanamz/invoker/pkg/invoker"
)

const (
	defaultSystem = "You are a helpful assistant that translates English to French. Translate the user sentence."
	defaultHuman  = "I love programming and india."
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: invoke [flags]\n\nSend a system instruction and a human message to a chat model and print the reply.\n\nFlags:\n")
		flag.PrintDefaults()
	}

	var opts options
	opts.register(flag.CommandLine)
	envFile := flag.String("env", ".env", "path to .env file (ignored if missing)")
	system := flag.String("system", defaultSystem, "system instruction")
	human := flag.String("human", defaultHuman, "human message")
	verbose := flag.Bool("verbose", false, "log retries, stop reason and token usage to stderr")
	flag.Parse()

	if err := loadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(opts, *system, *human, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, system, human string, verbose bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := opts.resolve(flag.CommandLine)
	if err != nil {
		return err
	}

	prompter := credential.NewTerminalPrompter()
	prompter.Labels = map[string]string{
		invoker.GoogleAPIKeyEnv:      "Enter your Google AI API key",
		invoker.GoogleAccessTokenEnv: "Enter a Google Cloud access token",
	}

	store := credential.NewStore(
		credential.WithPrompter(prompter),
		credential.WithLogger(log),
	)

	inv := invoker.New(store, invoker.WithLogger(log))

	client, err := inv.Prepare(ctx, cfg)
	if err != nil {
		return err
	}

	out, err := client.Invoke(ctx, message.System(system), message.Human(human))
	if err != nil {
		return err
	}

	fmt.Println(out)

	log.InfoContext(ctx, "completion",
		"model", out.Model,
		"stop_reason", out.StopReason,
		"input_tokens", out.Usage.InputTokens,
		"output_tokens", out.Usage.OutputTokens,
		"calls", client.Calls(),
		"total_tokens", client.Usage().Total(),
	)

	return nil
}
