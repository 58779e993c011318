package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/docpilot/internal/config"
	"github.com/user/docpilot/internal/scheduler"
	"github.com/user/docpilot/internal/workflow"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		fmt.Println("docpilot setup")
		fmt.Println("Press Enter to keep the value shown in brackets.")
		fmt.Println()

		if err := runWizard(os.Stdin, os.Stdout, setupFields(cfg)); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// setupField is one wizard question bound to a config value.
type setupField struct {
	label string
	value func() string
	set   func(string) error
}

func setupFields(cfg *config.Config) []setupField {
	str := func(p *string) func(string) error {
		return func(s string) error { *p = s; return nil }
	}
	return []setupField{
		{
			label: "Backend base URL",
			value: func() string { return cfg.Backend.BaseURL },
			set:   str(&cfg.Backend.BaseURL),
		},
		{
			label: "Request timeout (seconds)",
			value: func() string { return strconv.Itoa(cfg.Backend.TimeoutSeconds) },
			set: func(s string) error {
				n, err := strconv.Atoi(s)
				if err != nil || n <= 0 {
					return fmt.Errorf("timeout must be a positive number of seconds")
				}
				cfg.Backend.TimeoutSeconds = n
				return nil
			},
		},
		{
			label: fmt.Sprintf("Max tokens per answer (%d-%d)", config.MinMaxTokens, config.MaxMaxTokens),
			value: func() string { return strconv.Itoa(cfg.MaxTokens) },
			set: func(s string) error {
				n, err := strconv.Atoi(s)
				if err != nil {
					return fmt.Errorf("max tokens must be a number")
				}
				if err := config.ValidateMaxTokens(n); err != nil {
					return err
				}
				cfg.MaxTokens = n
				return nil
			},
		},
		{
			label: "Chat answer language (" + strings.Join(workflow.Languages, ", ") + ")",
			value: func() string { return cfg.Chat.Language },
			set: func(s string) error {
				l, err := workflow.NormalizeLanguage(s)
				if err != nil {
					return err
				}
				cfg.Chat.Language = l
				return nil
			},
		},
		{
			label: "KB status refresh schedule",
			value: func() string { return cfg.KB.RefreshSchedule },
			set: func(s string) error {
				if err := scheduler.Validate(s); err != nil {
					return err
				}
				cfg.KB.RefreshSchedule = s
				return nil
			},
		},
		{
			label: "Telegram bot token (optional)",
			value: func() string { return cfg.Telegram.Token },
			set:   str(&cfg.Telegram.Token),
		},
		{
			label: "Metrics listen address (optional, e.g. :9090)",
			value: func() string { return cfg.Metrics.Listen },
			set:   str(&cfg.Metrics.Listen),
		},
	}
}

// runWizard asks every field in turn. Blank input keeps the current value
// and a rejected answer repeats the question. EOF keeps the remaining values.
func runWizard(in io.Reader, out io.Writer, fields []setupField) error {
	sc := bufio.NewScanner(in)
	for _, f := range fields {
		for {
			if cur := f.value(); cur != "" {
				fmt.Fprintf(out, "%s [%s]: ", f.label, cur)
			} else {
				fmt.Fprintf(out, "%s: ", f.label)
			}
			if !sc.Scan() {
				return sc.Err()
			}
			answer := strings.TrimSpace(sc.Text())
			if answer == "" {
				break
			}
			if err := f.set(answer); err != nil {
				fmt.Fprintf(out, "  %v\n", err)
				continue
			}
			break
		}
	}
	return nil
}
