package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Saksham338101/menu-scanner1/internal/cache"
	"github.com/Saksham338101/menu-scanner1/internal/config"
	"github.com/Saksham338101/menu-scanner1/internal/display"
	"github.com/Saksham338101/menu-scanner1/internal/extract"
	"github.com/Saksham338101/menu-scanner1/internal/logging"
	"github.com/Saksham338101/menu-scanner1/internal/menu"
	"github.com/Saksham338101/menu-scanner1/internal/reader"
	"github.com/Saksham338101/menu-scanner1/internal/share"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var (
	extractRestaurant string
	extractFormat     string
	extractSave       bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <image|pdf|dir>...",
	Short: "Extract the dishes from menu photos",
	Long: `Reads menu photos (jpg, png, webp, gif) and PDFs, extracts every dish with the
configured vision model and prints the merged menu.

Each image or PDF page is extracted on its own; dishes seen on an earlier page
win over later duplicates. With --save the menu replaces the restaurant's
previous menu in every configured store.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractRestaurant, "restaurant", "r", "", "Restaurant id the menu belongs to")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", formatTable, "Output format: table, json or yaml")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "Save the menu to the configured stores")
	rootCmd.AddCommand(extractCmd)
}

// menuDoc is the json/yaml output of extract.
type menuDoc struct {
	Restaurant  string        `json:"restaurant,omitempty" yaml:"restaurant,omitempty"`
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
	Partial     bool          `json:"partial" yaml:"partial"`
	Usage       extract.Usage `json:"usage" yaml:"usage"`
	ShareURL    string        `json:"share_url,omitempty" yaml:"share_url,omitempty"`
	Items       []menu.Item   `json:"items" yaml:"items"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	switch extractFormat {
	case formatTable, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", extractFormat)
	}
	if extractSave && extractRestaurant == "" {
		return errors.New("--save requires --restaurant")
	}
	pretty := extractFormat == formatTable

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	total := 2
	if extractSave {
		total = 3
	}

	if pretty {
		display.Header("menuscan extract")
		display.Step(1, total, "Loading menu images...")
	}
	pages, err := reader.LoadFiles(args...)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return errors.New("no menu images found")
	}
	if pretty {
		display.StepResult("Pages:", len(pages))
		display.Step(2, total, fmt.Sprintf("Extracting dishes with %s...", cfg.LLM.Model))
	}

	ex, closeCache, err := newExtractor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	doc, err := extractPages(ctx, ex, pages, pretty, logger)
	if err != nil {
		return err
	}
	doc.Restaurant = extractRestaurant

	if extractSave {
		if pretty {
			display.Step(3, total, "Saving menu...")
		}
		st, err := openStores(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		if st.sinks.Len() == 0 {
			logger.Warn("no stores configured, set storage.graph_path, storage.vector_path or storage.postgres_url")
		} else if err := st.sinks.SaveMenu(ctx, extractRestaurant, doc.Items); err != nil {
			return fmt.Errorf("save menu: %w", err)
		}

		signer := share.NewSigner(cfg.Share.Secret, cfg.Share.TTL)
		token, err := signer.Issue(extractRestaurant, doc.GeneratedAt)
		if err != nil {
			return err
		}
		doc.ShareURL = share.BuildURL(cfg.Share.Origin, extractRestaurant, token)
		if pretty {
			display.StepResult("Stores:", len(st.names))
		}
	}

	return writeMenu(cmd.OutOrStdout(), doc, extractFormat)
}

// extractPages runs each page through ex and merges the results first-seen
// first. A page without dishes is skipped unless every page is empty.
func extractPages(ctx context.Context, ex cache.Extractor, pages []reader.Page, pretty bool, logger *zap.Logger) (*menuDoc, error) {
	doc := &menuDoc{}
	lists := make([][]menu.Item, 0, len(pages))
	var latest time.Time

	for _, p := range pages {
		res, err := ex.Extract(ctx, p.Image)
		if errors.Is(err, extract.ErrNoDishes) {
			logger.Warn("no dishes on page", zap.String("page", p.Source))
			if pretty {
				display.StepWarn(p.Source + ": no dishes detected")
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", p.Source, err)
		}

		if pretty {
			display.StepDetail(fmt.Sprintf("%s: %d dishes in %d rounds", p.Source, len(res.Items), res.Rounds))
			if res.Partial {
				display.StepWarn(p.Source + ": a later round failed, menu may be incomplete")
			}
		}
		lists = append(lists, res.Items)
		doc.Usage.Add(res.Usage)
		doc.Partial = doc.Partial || res.Partial
		if res.GeneratedAt.After(latest) {
			latest = res.GeneratedAt
		}
	}

	doc.Items = menu.Dedupe(lists...)
	if len(doc.Items) == 0 {
		return nil, extract.ErrNoDishes
	}
	doc.GeneratedAt = latest
	if pretty {
		display.StepResult("Dishes:", len(doc.Items))
		display.StepResult("Tokens:", doc.Usage.TotalTokens)
	}
	return doc, nil
}

func writeMenu(w io.Writer, doc *menuDoc, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		display.ItemTable(doc.Items)
		if doc.ShareURL != "" {
			display.KeyValue("Share link", doc.ShareURL, display.Green)
		}
		display.Success(fmt.Sprintf("%d dishes extracted", len(doc.Items)))
		return nil
	}
}
