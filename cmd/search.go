package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Saksham338101/menu-scanner1/internal/config"
	"github.com/Saksham338101/menu-scanner1/internal/display"
	"github.com/Saksham338101/menu-scanner1/internal/logging"
)

var (
	searchRestaurant string
	searchTopK       int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search saved menus",
	Long: `Searches menus saved with "extract --save" in the vector store (semantic
match) and the graph store (keyword match on dishes, sections and tags).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchRestaurant, "restaurant", "r", "", "Limit the search to one restaurant")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 5, "Number of dishes to return")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if st.vectors == nil && st.graph == nil {
		return errors.New("no searchable store configured (storage.vector_path or storage.graph_path)")
	}

	display.Header(fmt.Sprintf("Results for %q", query))

	if st.vectors != nil {
		dishes, err := st.vectors.Query(ctx, searchRestaurant, query, searchTopK)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		for _, d := range dishes {
			display.KeyValue(fmt.Sprintf("%.2f", d.Similarity), d.Name+"  ("+d.Restaurant+")", display.White)
		}
		if len(dishes) == 0 {
			display.Info("no similar dishes")
		}
	}

	if st.graph != nil {
		facts, err := st.graph.Search(ctx, searchRestaurant, query, searchTopK*2)
		if err != nil {
			display.Warn("graph search failed: " + err.Error())
			return nil
		}
		for _, f := range facts {
			display.KeyValue(f.Restaurant, fmt.Sprintf("%s %s %s", f.Subject, strings.ReplaceAll(f.Predicate, "_", " "), f.Object), display.Dim)
		}
	}
	return nil
}
