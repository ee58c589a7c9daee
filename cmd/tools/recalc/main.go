package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/order-financials/internal/config"
	"github.com/noah-isme/order-financials/internal/gst"
	"github.com/noah-isme/order-financials/internal/lineitem"
	"github.com/noah-isme/order-financials/internal/lock"
	"github.com/noah-isme/order-financials/internal/order"
)

// document is the file format accepted on stdin or via -in.
type document struct {
	BillingState  *string         `json:"billingState"`
	ShippingState *string         `json:"shippingState"`
	Items         []lineitem.Item `json:"items"`
}

type output struct {
	Regime  gst.Regime      `json:"regime"`
	Items   []lineitem.Item `json:"items"`
	Summary order.Summary   `json:"summary"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := run(context.Background(), cfg, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("recalc", flag.ContinueOnError)
	in := fs.String("in", "-", "JSON document to price, - for stdin")
	draftID := fs.String("draft", "", "recalculate a stored draft in Redis instead of a document")
	keepGST := fs.Bool("keep-gst", false, "keep the GST percentages on each item instead of stamping the regime's")
	if err := fs.Parse(args); err != nil {
		return err
	}

	classifier := gst.NewClassifier(cfg.GSTHomeState)
	calculator := gst.NewCalculator(cfg.GSTRates)

	if *draftID != "" {
		return recalcStored(ctx, cfg, classifier, calculator, *draftID, stdout)
	}

	src := stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		src = f
	}

	var doc document
	if err := json.NewDecoder(src).Decode(&doc); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}

	regime := classifier.DetermineRegime(doc.BillingState, doc.ShippingState)
	items := doc.Items
	if !*keepGST {
		pct := calculator.Percentages(regime)
		items = make([]lineitem.Item, len(doc.Items))
		for i, it := range doc.Items {
			it.Percentages = pct
			items[i] = it
		}
	}
	items = lineitem.ApplyAll(items)
	if items == nil {
		items = []lineitem.Item{}
	}
	return writeJSON(stdout, output{Regime: regime, Items: items, Summary: order.Summarize(items)})
}

func recalcStored(ctx context.Context, cfg *config.Config, classifier gst.Classifier, calculator gst.Calculator, id string, stdout io.Writer) error {
	if cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required with -draft")
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	svc := order.NewService(classifier, calculator, order.NewRedisStore(client, cfg.DraftTTL), zerolog.Nop())
	svc.Locker = lock.Redis{R: client, Prefix: "lock:", TTL: 10 * time.Second}
	d, err := svc.Recalculate(ctx, id)
	if err != nil {
		return fmt.Errorf("recalculate draft %s: %w", id, err)
	}
	return writeJSON(stdout, output{Regime: d.Regime, Items: d.Items, Summary: d.Summary()})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
