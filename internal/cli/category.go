package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noesis-ai/noesis/internal/domain"
	"github.com/noesis-ai/noesis/internal/repository"
	"github.com/noesis-ai/noesis/internal/service"
)

func CategoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage knowledge categories",
		Long:  "Create and list knowledge categories for an organization",
	}

	cmd.AddCommand(CategoryCreateCmd())
	cmd.AddCommand(CategoryListCmd())
	cmd.AddCommand(CategorySeedCmd())

	return cmd
}

func CategorySeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed system categories",
		Long:  "Create the built-in system categories for an organization. Safe to re-run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			orgID, _ := cmd.Flags().GetString("org")

			_, pool, err := getDBPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			categoryRepo := repository.NewCategoryRepository(pool)
			knowledgeRepo := repository.NewKnowledgeRepository(pool)
			knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, categoryRepo)

			if err := knowledgeSvc.SeedSystemCategories(ctx, orgID); err != nil {
				return fmt.Errorf("failed to seed categories: %w", err)
			}
			fmt.Printf("System categories seeded for organization %s\n", orgID)
			return nil
		},
	}

	cmd.Flags().StringP("org", "o", "", "Organization ID (required)")
	cmd.MarkFlagRequired("org")

	return cmd
}

func CategoryCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <code>",
		Short: "Create a knowledge category",
		Long:  "Create a custom knowledge category for an organization",
		Args:  cobra.ExactArgs(1),
		RunE:  runCategoryCreate,
	}

	cmd.Flags().StringP("org", "o", "", "Organization ID (required)")
	cmd.Flags().StringP("name", "n", "", "Display name (required)")
	cmd.Flags().String("parent", "", "Parent category code")
	cmd.Flags().String("scope-level", "organization", "Default scope level for new items")
	cmd.Flags().Int("tier", 0, "Default validation tier (1-4, 0 for default)")
	cmd.MarkFlagRequired("org")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runCategoryCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	code := args[0]
	orgID, _ := cmd.Flags().GetString("org")
	name, _ := cmd.Flags().GetString("name")
	parent, _ := cmd.Flags().GetString("parent")
	scopeLevelStr, _ := cmd.Flags().GetString("scope-level")
	tier, _ := cmd.Flags().GetInt("tier")

	scopeLevel, err := domain.ScopeLevelFromString(scopeLevelStr)
	if err != nil {
		return err
	}

	_, pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	categoryRepo := repository.NewCategoryRepository(pool)
	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, categoryRepo)

	category, err := knowledgeSvc.CreateCategory(ctx, &domain.KnowledgeCategory{
		Code:              code,
		OrgID:             orgID,
		Name:              name,
		ParentCode:        parent,
		DefaultScopeLevel: scopeLevel,
		DefaultTier:       tier,
	})
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}

	fmt.Printf("Category created: %s (%s, default tier %d)\n", category.Code, category.Name, category.DefaultTier)
	return nil
}

func CategoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge categories",
		Long:  "List all knowledge categories for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			orgID, _ := cmd.Flags().GetString("org")
			outputFormat, _ := cmd.Flags().GetString("output")
			return runCategoryList(orgID, outputFormat)
		},
	}

	cmd.Flags().StringP("org", "o", "", "Organization ID (required)")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("org")

	return cmd
}

func runCategoryList(orgID, outputFormat string) error {
	ctx := context.Background()

	_, pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	categoryRepo := repository.NewCategoryRepository(pool)
	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, categoryRepo)

	categories, err := knowledgeSvc.ListCategories(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(categories))
		for i, c := range categories {
			data[i] = map[string]interface{}{
				"code":                c.Code,
				"name":                c.Name,
				"parent_code":         c.ParentCode,
				"default_scope_level": c.DefaultScopeLevel,
				"default_tier":        c.DefaultTier,
				"system":              c.System,
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if len(categories) == 0 {
			fmt.Printf("No categories found for organization %s\n", orgID)
			return nil
		}
		fmt.Printf("Categories for organization %s:\n", orgID)
		for _, c := range categories {
			kind := "custom"
			if c.System {
				kind = "system"
			}
			fmt.Printf("  %s: %s (%s, tier %d)\n", c.Code, c.Name, kind, c.DefaultTier)
		}
	}

	return nil
}
