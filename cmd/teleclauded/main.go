// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/teleclaude/teleclaude/internal/app"
	"github.com/teleclaude/teleclaude/internal/config"
)

var version = "0.1.0"

func main() {
	cliApp := &cli.App{
		Name:    "teleclaude",
		Usage:   "multi-computer agent orchestration daemon",
		Version: version,
		Commands: []*cli.Command{
			serverCmd(),
			initCmd(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"run"},
		Usage:   "run the teleclaude daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file (default: auto-detect)",
			},
		},
		Action: func(c *cli.Context) error {
			configPath := c.String("config")
			if configPath == "" {
				found, err := config.NewLoader().FindConfig()
				if err != nil {
					return err
				}
				configPath = found
			}

			application, err := app.New(app.Options{
				ConfigPath: configPath,
				Version:    version,
			})
			if err != nil {
				return fmt.Errorf("construct app: %w", err)
			}

			return application.Run(c.Context)
		},
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "create a starter teleclaude.hjson in the current directory",
		Action: func(c *cli.Context) error {
			return runInit()
		},
	}
}

func runInit() error {
	const configFile = "teleclaude.hjson"
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use a different directory", configFile)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get current directory: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("TeleClaude Configuration Setup")
	fmt.Println("==============================")
	fmt.Println("Press Enter to accept defaults shown in [brackets].")
	fmt.Println()

	computer := prompt(reader, "Computer name", filepath.Base(cwd))
	projectPath := prompt(reader, "Default project path", cwd)
	socketPath := prompt(reader, "Control-plane socket path", "/var/run/teleclaude/control.sock")
	storePath := prompt(reader, "Store database path", "teleclaude.db")

	contents := generateConfig(computer, projectPath, socketPath, storePath)
	if err := os.WriteFile(configFile, []byte(contents), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", configFile, err)
	}

	fmt.Println()
	fmt.Printf("Wrote %s. Review it, then run: teleclaude server\n", configFile)
	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func generateConfig(computer, projectPath, socketPath, storePath string) string {
	var sb strings.Builder
	sb.WriteString("{\n")
	sb.WriteString("  // TeleClaude daemon configuration (HJSON: JSON with comments).\n")
	sb.WriteString("  version: \"1\"\n")
	sb.WriteString("  computer: {\n")
	fmt.Fprintf(&sb, "    name: %q\n", computer)
	fmt.Fprintf(&sb, "    project_path: %q\n", projectPath)
	sb.WriteString("  }\n")
	sb.WriteString("  server: {\n")
	fmt.Fprintf(&sb, "    socket_path: %q\n", socketPath)
	sb.WriteString("  }\n")
	sb.WriteString("  store: {\n")
	fmt.Fprintf(&sb, "    path: %q\n", storePath)
	sb.WriteString("    busy_timeout_ms: 5000\n")
	sb.WriteString("    lock_timeout_sec: 300\n")
	sb.WriteString("  }\n")
	sb.WriteString("  queue: {\n")
	sb.WriteString("    base_backoff_ms: 500\n")
	sb.WriteString("    max_backoff_sec: 300\n")
	sb.WriteString("    fetch_batch: 1\n")
	sb.WriteString("  }\n")
	sb.WriteString("  // Enable and configure the transport adapters this computer runs.\n")
	sb.WriteString("  adapters: {\n")
	sb.WriteString("    telegram: { enabled: false, token_env_var: \"TELECLAUDE_TELEGRAM_TOKEN\", chat_id: 0, rate_per_sec: 20 }\n")
	sb.WriteString("    discord: { enabled: false, token_env_var: \"TELECLAUDE_DISCORD_TOKEN\", channel_id: \"\", rate_per_sec: 50 }\n")
	sb.WriteString("    peer: { enabled: false, peers: [] }\n")
	sb.WriteString("    webui: { enabled: true }\n")
	sb.WriteString("  }\n")
	sb.WriteString("  roles: { overrides: {} }\n")
	sb.WriteString("  retention: { inbound_hours: 72, outbox_hours: 72 }\n")
	sb.WriteString("}\n")
	return sb.String()
}
