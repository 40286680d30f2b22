package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/MrWong99/signcascade/internal/cascade"
	"github.com/MrWong99/signcascade/pkg/types"
)

var (
	matchColor  = color.New(color.FgGreen).SprintFunc()
	missColor   = color.New(color.FgYellow).SprintFunc()
	letterColor = color.New(color.FgRed).SprintFunc()
	dimColor    = color.New(color.Faint).SprintFunc()
)

func newResolveCmd(c *cli) *cobra.Command {
	var (
		explain  bool
		strategy string
		user     string
	)
	cmd := &cobra.Command{
		Use:   "resolve [text...]",
		Short: "Resolve text into sign identifiers",
		Long: `Resolve text into sign identifiers and print them space separated.
Without arguments every line of standard input is resolved on its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			resolve := func(text string) error {
				if explain {
					traces, err := a.Explain(cmd.Context(), text, strategy)
					if err != nil {
						return err
					}
					printExplain(cmd.OutOrStdout(), traces)
					return nil
				}
				res, err := a.ResolveText(cmd.Context(), user, text, strategy)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(res.Symbols, " "))
				return nil
			}

			if len(args) > 0 {
				return resolve(strings.Join(args, " "))
			}
			sc := bufio.NewScanner(cmd.InOrStdin())
			sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
			for sc.Scan() {
				if err := resolve(sc.Text()); err != nil {
					return err
				}
			}
			return sc.Err()
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "print the decision taken for every sentence and word")
	cmd.Flags().StringVar(&strategy, "strategy", "", "sentence_first or word_first (default from config)")
	cmd.Flags().StringVar(&user, "user", "cli", "history user id")
	return cmd
}

// printExplain writes one line per unit: level, raw text, best match and the
// emitted symbols.
func printExplain(w io.Writer, traces []cascade.Trace) {
	for _, tr := range traces {
		best := dimColor("-")
		if tr.Result != nil {
			verdict := missColor
			if tr.Result.IsMatch {
				verdict = matchColor
			}
			best = verdict(fmt.Sprintf("%s %.4f", tr.Result.Entry.ID, tr.Result.Score))
		}
		emitted := strings.Join(tr.Emitted, " ")
		switch tr.Level {
		case types.Letter:
			emitted = letterColor(emitted)
		case types.Word:
			if tr.Unit.Granularity == types.Sentence {
				emitted = dimColor("(see words)")
			}
		}
		fmt.Fprintf(w, "%-8s %-32q %-28s %s\n", tr.Level, tr.Unit.Raw, best, emitted)
	}
}
