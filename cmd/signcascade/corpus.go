package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/signcascade/internal/config"
	"github.com/MrWong99/signcascade/internal/corpus"
	"github.com/MrWong99/signcascade/pkg/provider/embeddings"
)

func newCorpusCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Inspect the reference corpora",
	}

	var probe bool
	check := &cobra.Command{
		Use:   "check",
		Short: "Load both corpora and report their size and vector width",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dim := 0
			if probe {
				reg := config.NewRegistry()
				registerBuiltinProviders(reg)
				p, err := reg.CreateEmbeddings(c.cfg.Providers.Embeddings)
				if err != nil {
					return fmt.Errorf("create embeddings provider: %w", err)
				}
				if dim, err = embeddings.Probe(cmd.Context(), p); err != nil {
					return err
				}
			}

			set, err := corpus.LoadSet(c.cfg.Corpus.Sentences, c.cfg.Corpus.Words, dim)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, co := range []*corpus.Corpus{set.Sentences, set.Words} {
				fmt.Fprintf(out, "%s %-9s %6d rows  width %d  %s\n",
					matchColor("ok"), co.Kind(), co.Len(), co.Dim(), co.Source())
			}
			if probe {
				fmt.Fprintf(out, "%s embedding model %s produces width %d\n",
					matchColor("ok"), c.cfg.Providers.Embeddings.Model, dim)
			}
			return nil
		},
	}
	check.Flags().BoolVar(&probe, "probe", false, "also embed a probe text and compare the model's vector width")
	cmd.AddCommand(check)
	return cmd
}
