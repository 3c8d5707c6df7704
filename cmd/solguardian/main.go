package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"solguardian/internal/analyzer"
	"solguardian/internal/audit"
	"solguardian/internal/config"
	"solguardian/internal/embedding"
	"solguardian/internal/events"
	"solguardian/internal/knowledge"
	"solguardian/internal/metrics"
	"solguardian/internal/server"
	"solguardian/internal/tools"
	"solguardian/internal/utils"
	"solguardian/types"
)

// Version is set at compile time.
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "solguardian",
		Short:   "Solidity smart-contract security analysis with an exploit knowledge base",
		Version: Version,
		Long: `SolGuardian analyzes Solidity contracts by fusing heuristic pattern
scanning, semantic search over a knowledge base of historical exploits and
weakness classifications, and optional external static-analysis tools
(Slither, Solhint, Mythril) into one weighted risk assessment.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err == nil {
				log.Println("✅ .env file loaded")
			}
		},
	}
	root.AddCommand(newAnalyzeCommand(), newServeCommand(), newSeedCommand(), newStatsCommand())
	return root
}

// deps bundles the wired collaborators for one command invocation.
type deps struct {
	cfg        *config.Config
	store      knowledge.Store
	provider   *embedding.Provider
	analyzer   *analyzer.Analyzer
	auditStore *audit.Store
	collector  *metrics.Collector
	producer   *events.Producer
}

// wire builds the collaborator graph from configuration. Optional
// collaborators that fail to initialize are disabled with a warning rather
// than aborting; only the knowledge store is allowed to be fatal when
// needKnowledge is set.
func wire(ctx context.Context, needKnowledge bool) (*deps, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	d := &deps{cfg: cfg}

	dbPath := cfg.DBPath
	if dbPath == "" {
		appDir, err := utils.GetAppDataDir()
		if err == nil {
			dbPath = filepath.Join(appDir, "knowledge-db")
		}
	}
	if dbPath != "" {
		provider, err := embedding.NewProvider(ctx, cfg.Knowledge.GeminiAPIKey, cfg.Knowledge.EmbeddingModel)
		if err != nil {
			log.Printf("⚠️  Embedding provider unavailable: %v", err)
		} else {
			d.provider = provider
			store, err := knowledge.NewChromemStore(dbPath, provider.Func())
			if err != nil {
				if needKnowledge {
					return nil, err
				}
				log.Printf("⚠️  Knowledge store unavailable, continuing without it: %v", err)
			} else {
				d.store = store
			}
		}
	}
	if needKnowledge && d.store == nil {
		return nil, fmt.Errorf("knowledge store is required but could not be opened")
	}

	if cfg.Audit.Enabled {
		auditPath := cfg.Audit.DBPath
		if auditPath == "" {
			if appDir, err := utils.GetAppDataDir(); err == nil {
				auditPath = filepath.Join(appDir, "audit.db")
			}
		}
		if auditPath != "" {
			store, err := audit.NewStore(auditPath)
			if err != nil {
				log.Printf("⚠️  Audit store unavailable: %v", err)
			} else {
				d.auditStore = store
			}
		}
	}

	if cfg.Events.Enabled {
		d.producer = events.NewProducer(cfg.Events.Brokers, cfg.Events.Topic)
	}

	d.collector = metrics.NewCollector()

	var runner *tools.Runner
	if cfg.Tools.Enabled {
		runner = tools.NewRunner(tools.Timeouts{
			Default:  cfg.Tools.DefaultTimeout,
			Analysis: cfg.Tools.AnalysisTimeout,
		})
	}

	d.analyzer = analyzer.New(cfg, d.store, runner, d.auditStore, d.collector, d.producer)
	return d, nil
}

func (d *deps) close() {
	if d.provider != nil {
		d.provider.Close()
	}
	if d.auditStore != nil {
		d.auditStore.Close()
	}
	if d.producer != nil {
		d.producer.Close()
	}
}

func newAnalyzeCommand() *cobra.Command {
	opts := analyzer.DefaultOptions()
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze <contract.sol>",
		Short: "Run the full analysis pipeline against one contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := wire(ctx, false)
			if err != nil {
				return err
			}
			defer d.close()

			report, err := d.analyzer.Analyze(ctx, args[0], opts)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			renderReport(os.Stdout, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.IncludeKnowledgeBase, "knowledge", true, "query the exploit knowledge base")
	cmd.Flags().IntVar(&opts.KnowledgeLimit, "knowledge-limit", 10, "max knowledge matches per collection")
	cmd.Flags().BoolVar(&opts.IncludeSimilarExploits, "similar", true, "search for similar historical exploits")
	cmd.Flags().BoolVar(&opts.UseExternalTools, "tools", true, "run external tools (slither, solhint, myth)")
	cmd.Flags().BoolVar(&opts.ComprehensiveMode, "comprehensive", true, "widen knowledge query fan-out")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the raw JSON report")
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := wire(ctx, false)
			if err != nil {
				return err
			}
			defer d.close()

			srv := server.New(d.cfg.ServerPort, d.analyzer, d.store, d.auditStore, d.collector)
			return srv.Start(ctx)
		},
	}
}

func newSeedCommand() *cobra.Command {
	var swcPath string
	var exploitDirs, auditDirs []string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the knowledge base from on-disk corpora",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := wire(ctx, true)
			if err != nil {
				return err
			}
			defer d.close()

			if swcPath == "" {
				swcPath = d.cfg.Knowledge.SWCRegistryPath
			}
			if len(exploitDirs) == 0 {
				exploitDirs = d.cfg.Knowledge.SeedDirs
			}

			seeder := knowledge.NewSeeder(d.store)
			if swcPath != "" {
				n, err := seeder.SeedSWCRegistry(ctx, swcPath)
				if err != nil {
					return err
				}
				d.producer.PublishKnowledgeSeeded(ctx, types.CollectionSWC, n)
			}
			for _, dir := range exploitDirs {
				n, err := seeder.SeedExploitDir(ctx, dir)
				if err != nil {
					return err
				}
				d.producer.PublishKnowledgeSeeded(ctx, types.CollectionExploits, n)
			}
			for _, dir := range auditDirs {
				n, err := seeder.SeedAuditDir(ctx, dir)
				if err != nil {
					return err
				}
				d.producer.PublishKnowledgeSeeded(ctx, types.CollectionAuditFindings, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&swcPath, "swc", "", "path to the SWC registry JSON export")
	cmd.Flags().StringSliceVar(&exploitDirs, "exploits", nil, "directories of markdown exploit write-ups")
	cmd.Flags().StringSliceVar(&auditDirs, "audits", nil, "directories of markdown audit findings")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base collection sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := wire(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer d.close()

			for _, coll := range []types.Collection{types.CollectionSWC, types.CollectionExploits, types.CollectionAuditFindings} {
				fmt.Printf("%-16s %d\n", coll, d.store.Count(coll))
			}
			return nil
		},
	}
}
