// Command keytool is the operator CLI for provisioning the rows
// cmd/gateway itself never writes: API keys, model-mapping overrides,
// and model-pricing rows. It talks to the same DynamoDB store the
// gateway reads from and duplicates none of internal/'s business logic —
// every subcommand is a thin flag-parse-then-Put.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/laiskytech/converse-gateway/internal/config"
	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/store/dynamo"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	s, err := dynamo.New(ctx)
	if err != nil {
		fatal("connect to store: %v", err)
	}

	switch os.Args[1] {
	case "create-key":
		runCreateKey(ctx, s, os.Args[2:])
	case "set-mapping":
		runSetMapping(ctx, s, os.Args[2:])
	case "set-pricing":
		runSetPricing(ctx, s, os.Args[2:])
	case "show-key":
		runShowKey(ctx, s, os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "keytool: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `keytool: provision converse-gateway api keys, model mappings and pricing.

Usage:
  keytool create-key  -tier=default -rate-limit=60 [-budget=50.00] [-key=sk-...] [-name=...] [-owner=...]
  keytool show-key    -key=sk-...
  keytool set-mapping -from=claude-3-5-sonnet-20241022 -to=anthropic.claude-3-5-sonnet-20241022-v2:0
  keytool set-pricing -model=anthropic.claude-3-5-sonnet-20241022-v2:0 -provider=bedrock \
                       -input=3.00 -output=15.00 [-cache-read=0.30] [-cache-write=3.75]`)
}

func runCreateKey(ctx context.Context, s *dynamo.Store, args []string) {
	fs := flag.NewFlagSet("create-key", flag.ExitOnError)
	key := fs.String("key", "", "api key value; generated with the gateway's key prefix if omitted")
	tier := fs.String("tier", string(model.TierDefault), "service tier: default|flex|priority|reserved")
	rateLimit := fs.Int("rate-limit", config.RateLimitRequestsPerWindow, "requests per window; 0 uses the gateway default")
	budget := fs.Float64("budget", 0, "monthly USD budget; 0 means unbounded")
	userID := fs.String("user-id", "", "opaque owning-user identifier")
	name := fs.String("name", "", "human-readable label for the key, shown in show-key/admin listings")
	owner := fs.String("owner", "", "display name of the person or team the key was issued to")
	_ = fs.Parse(args)

	id := *key
	if id == "" {
		id = config.TokenKeyPrefix + uuid.NewString()
	}

	kc := model.KeyContext{
		ID:        id,
		UserID:    *userID,
		Name:      *name,
		OwnerName: *owner,
		Tier:      model.Tier(*tier),
		RateLimit: *rateLimit,
		Active:    true,
	}
	if *budget > 0 {
		kc.MonthlyBudget = budget
	}

	if err := s.PutKeyContext(ctx, kc); err != nil {
		fatal("create key: %v", err)
	}
	fmt.Println(id)
}

func runShowKey(ctx context.Context, s *dynamo.Store, args []string) {
	fs := flag.NewFlagSet("show-key", flag.ExitOnError)
	key := fs.String("key", "", "api key value to look up")
	_ = fs.Parse(args)
	if *key == "" {
		fatal("show-key: -key is required")
	}

	kc, err := s.GetKeyContext(ctx, *key)
	if err != nil {
		fatal("show key: %v", err)
	}
	if kc == nil {
		fatal("no such key: %s", *key)
	}

	fmt.Printf("id=%s user_id=%s tier=%s rate_limit=%d active=%t\n", kc.ID, kc.UserID, kc.Tier, kc.RateLimit, kc.Active)
	if kc.Name != "" || kc.OwnerName != "" {
		fmt.Printf("name=%s owner=%s\n", kc.Name, kc.OwnerName)
	}
	if kc.MonthlyBudget != nil {
		fmt.Printf("monthly_budget=%.2f used_mtd=%.2f used_total=%.2f month=%s\n",
			*kc.MonthlyBudget, kc.BudgetUsedMTD, kc.BudgetUsedTotal, kc.BudgetMTDMonth)
	}
	if kc.DeactivationReason != nil {
		fmt.Printf("deactivation_reason=%s\n", *kc.DeactivationReason)
	}
}

func runSetMapping(ctx context.Context, s *dynamo.Store, args []string) {
	fs := flag.NewFlagSet("set-mapping", flag.ExitOnError)
	from := fs.String("from", "", "client-dialect (Anthropic) model id")
	to := fs.String("to", "", "upstream Bedrock Converse model id")
	_ = fs.Parse(args)
	if *from == "" || *to == "" {
		fatal("set-mapping: -from and -to are required")
	}

	err := s.PutModelMapping(ctx, model.ModelMapping{AnthropicModelID: *from, UpstreamModelID: *to})
	if err != nil {
		fatal("set mapping: %v", err)
	}
	fmt.Printf("mapped %s -> %s\n", *from, *to)
}

func runSetPricing(ctx context.Context, s *dynamo.Store, args []string) {
	fs := flag.NewFlagSet("set-pricing", flag.ExitOnError)
	modelID := fs.String("model", "", "upstream model id")
	provider := fs.String("provider", "bedrock", "upstream provider label")
	displayName := fs.String("display-name", "", "human-readable name")
	status := fs.String("status", "active", "active|deprecated|retired")
	input := fs.Float64("input", 0, "USD per million input tokens")
	output := fs.Float64("output", 0, "USD per million output tokens")
	cacheRead := fs.Float64("cache-read", 0, "USD per million cache-read tokens")
	cacheWrite := fs.Float64("cache-write", 0, "USD per million cache-write tokens")
	_ = fs.Parse(args)
	if *modelID == "" {
		fatal("set-pricing: -model is required")
	}

	pricing := model.ModelPricing{
		ModelID:              *modelID,
		Provider:             *provider,
		DisplayName:          *displayName,
		Status:               *status,
		InputPerMillion:      *input,
		OutputPerMillion:     *output,
		CacheReadPerMillion:  *cacheRead,
		CacheWritePerMillion: *cacheWrite,
	}
	if err := s.PutModelPricing(ctx, pricing); err != nil {
		fatal("set pricing: %v", err)
	}
	fmt.Printf("priced %s (input=%.2f output=%.2f cache_read=%.2f cache_write=%.2f)\n",
		*modelID, *input, *output, *cacheRead, *cacheWrite)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "keytool: "+format+"\n", args...)
	os.Exit(1)
}
