package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codetutor/codetutor/internal/classify"
	"github.com/codetutor/codetutor/internal/config"
	"github.com/codetutor/codetutor/internal/embedding"
)

var anchorsCmd = &cobra.Command{
	Use:   "anchors",
	Short: "Precompute classifier anchor embeddings",
	Long: `Embeds the built-in anchor phrases through the configured embedding
providers and writes the versioned anchor file the classifier loads at
startup. Rerun after changing anchor phrases or embedding models.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		chain, err := embedding.NewChainFromConfig(cmd.Context(), cfg.Embedding, nil)
		if err != nil {
			return fmt.Errorf("build embedding chain: %w", err)
		}

		anchors := &classify.Anchors{
			Version:    1,
			Thresholds: classify.DefaultThresholds(),
			Sets:       map[string][]classify.AnchorPhrase{},
		}

		for signal, phrases := range classify.DefaultAnchorPhrases() {
			for _, phrase := range phrases {
				vec, err := chain.Embed(cmd.Context(), phrase)
				if err != nil {
					return fmt.Errorf("embed %q: %w", phrase, err)
				}
				anchors.Sets[signal] = append(anchors.Sets[signal], classify.AnchorPhrase{
					Phrase: phrase,
					Vector: vec,
				})
			}
			fmt.Printf("embedded %d phrases for %s\n", len(anchors.Sets[signal]), signal)
		}

		if err := anchors.Save(out); err != nil {
			return err
		}
		fmt.Println("wrote", out)
		return nil
	},
}

func init() {
	anchorsCmd.Flags().String("out", "anchors.yaml", "Output path for the anchor file")
}
