package main

import (
	_ "embed"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/growcoach/coachd/internal/config"
	"github.com/growcoach/coachd/internal/logging"
	"github.com/growcoach/coachd/internal/store"
)

//go:embed etc/seed.yaml
var seedData []byte

type seedFile struct {
	Prompts    map[string]string `yaml:"prompts"`
	Categories []struct {
		Name            string `yaml:"name"`
		Definition      string `yaml:"definition"`
		Instruction     string `yaml:"instruction"`
		Examples        string `yaml:"examples"`
		InvalidExamples string `yaml:"invalid_examples"`
		Levels          []struct {
			Level       int    `yaml:"level"`
			Description string `yaml:"description"`
			Examples    string `yaml:"examples"`
		} `yaml:"levels"`
	} `yaml:"categories"`
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the bundled stage prompts and skill taxonomy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.EnsureDataDir(); err != nil {
				return err
			}
			st, err := store.Open(cfg.DBPath())
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer st.Close()

			var seed seedFile
			if err := yaml.Unmarshal(seedData, &seed); err != nil {
				return fmt.Errorf("corrupt seed data: %w", err)
			}

			ctx := cmd.Context()
			for stage, prompt := range seed.Prompts {
				if err := st.SetStagePrompt(ctx, stage, prompt); err != nil {
					return fmt.Errorf("failed to install %s prompt: %w", stage, err)
				}
				logging.Infof("[Seed] Installed prompt for stage %s", stage)
			}
			for _, c := range seed.Categories {
				if err := st.UpsertCategory(ctx, store.Category{
					Name:            c.Name,
					Definition:      c.Definition,
					Instruction:     c.Instruction,
					Examples:        c.Examples,
					InvalidExamples: c.InvalidExamples,
				}); err != nil {
					return fmt.Errorf("failed to seed category %s: %w", c.Name, err)
				}
				for _, l := range c.Levels {
					if err := st.UpsertCategoryLevel(ctx, store.CategoryLevel{
						Category:    c.Name,
						Level:       l.Level,
						Description: l.Description,
						Examples:    l.Examples,
					}); err != nil {
						return fmt.Errorf("failed to seed level %d of %s: %w", l.Level, c.Name, err)
					}
				}
				logging.Infof("[Seed] Seeded category %s (%d levels)", c.Name, len(c.Levels))
			}

			fmt.Printf("Seeded %d prompts and %d categories\n", len(seed.Prompts), len(seed.Categories))
			return nil
		},
	}
}
