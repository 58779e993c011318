package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/docpilot/internal/workflow"
)

func init() {
	rootCmd.AddCommand(translateCmd)
	translateCmd.Flags().String("to", "", "target language ("+strings.Join(workflow.Languages, ", ")+")")
	_ = translateCmd.MarkFlagRequired("to")
}

var translateCmd = &cobra.Command{
	Use:   "translate --to <language> <text>...",
	Short: "Translate text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		to, _ := cmd.Flags().GetString("to")
		language, err := workflow.NormalizeLanguage(to)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		translator := workflow.NewTranslator(a.env(a.printer))
		return runWithMetrics(ctx, a, func(ctx context.Context) error {
			res := translator.Translate(ctx, strings.Join(args, " "), language)
			if err := resultErr(res); err != nil {
				return err
			}
			a.printer.Line("%s", res.Value)
			return nil
		})
	},
}
