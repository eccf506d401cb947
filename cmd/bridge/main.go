package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/urfave/cli/v2"

	"github.com/toolbridge/toolbridge/internal/bridge"
	"github.com/toolbridge/toolbridge/internal/engine"
	"github.com/toolbridge/toolbridge/internal/provider"
	"github.com/toolbridge/toolbridge/internal/transport"
)

func main() {
	app := &cli.App{
		Name:      "bridge",
		Usage:     "chat with Claude through one MCP tool server",
		ArgsUsage: "<server-script.py|server-script.js>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "tool-server config file (JSON: command, args, env)",
				EnvVars: []string{"BRIDGE_CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "model identifier",
				Value: string(provider.DefaultModel),
			},
			&cli.IntFlag{
				Name:    "max-rounds",
				Usage:   "maximum model<->tool rounds per query",
				Value:   engine.DefaultMaxRounds,
				EnvVars: []string{"BRIDGE_MAX_ROUNDS"},
			},
			&cli.BoolFlag{
				Name:  "resend-tools",
				Usage: "attach the tool catalog to every model call, not just the first",
				Value: true,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx := c.Context

	// Basic env check (SDK also reads API key)
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return cli.Exit("Missing ANTHROPIC_API_KEY; export it before running.", 1)
	}

	cfg, err := serverConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	resend := engine.ResendEveryRound
	if !c.Bool("resend-tools") {
		resend = engine.ResendFirstRoundOnly
	}

	// Graceful shutdown on Ctrl-C (SIGINT) / SIGTERM
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Println("\nExiting...")
		cancel()
	}()

	b, err := bridge.Connect(ctx, *cfg, bridge.WithEngineOptions(
		engine.WithModel(anthropic.Model(c.String("model"))),
		engine.WithMaxRounds(c.Int("max-rounds")),
		engine.WithToolResendPolicy(resend),
	))
	if err != nil {
		return cli.Exit(fmt.Sprintf("connect to tool server: %v", err), 1)
	}
	defer func() {
		if err := b.Teardown(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: teardown: %v\n", err)
		}
	}()

	fmt.Println("Bridge started. Type your queries or 'quit' to exit.")

	// stdin reader goroutine -> lines into channel
	scanner := bufio.NewScanner(os.Stdin)
	inputCh := make(chan string)
	go func() {
		for scanner.Scan() {
			inputCh <- scanner.Text()
		}
		close(inputCh)
	}()

outer:
	for {
		fmt.Print("\u001b[94mYou\u001b[0m: ")
		var (
			query string
			ok    bool
		)
		select {
		case <-ctx.Done():
			break outer
		case query, ok = <-inputCh:
			if !ok {
				break outer
			}
		}

		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		if strings.EqualFold(query, "quit") {
			break
		}

		answer := b.SubmitQuery(ctx, query)
		fmt.Printf("\u001b[93mAssistant\u001b[0m: %s\n", answer)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: stdin read error: %v\n", err)
	}

	return nil
}

// serverConfig resolves the tool-server launch config from --config or from
// a positional server-script path.
func serverConfig(c *cli.Context) (*transport.ServerConfig, error) {
	if path := c.String("config"); path != "" {
		return transport.LoadServerConfig(path)
	}
	if c.NArg() > 0 {
		return transport.ConfigFromScript(c.Args().First())
	}
	return nil, fmt.Errorf("a tool server is required: pass --config or a server script path")
}
