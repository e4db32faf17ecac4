// Command gateway runs the ERP coagent gateway's HTTP/SSE surface: the
// agent loop, orchestrator, tool registry, and workflow engine wired
// together behind net/http (spec §6.1).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"goa.design/clue/log"

	"github.com/frappe/erp-coagent-gateway/internal/agent"
	"github.com/frappe/erp-coagent-gateway/internal/config"
	"github.com/frappe/erp-coagent-gateway/internal/cost"
	"github.com/frappe/erp-coagent-gateway/internal/erp"
	"github.com/frappe/erp-coagent-gateway/internal/erptools"
	"github.com/frappe/erp-coagent-gateway/internal/httpapi"
	"github.com/frappe/erp-coagent-gateway/internal/industry/hotel"
	"github.com/frappe/erp-coagent-gateway/internal/model/anthropic"
	"github.com/frappe/erp-coagent-gateway/internal/orchestrator"
	"github.com/frappe/erp-coagent-gateway/internal/resilience"
	"github.com/frappe/erp-coagent-gateway/internal/session"
	"github.com/frappe/erp-coagent-gateway/internal/telemetry"
	"github.com/frappe/erp-coagent-gateway/internal/tools"
	"github.com/frappe/erp-coagent-gateway/internal/tools/risk"
	"github.com/frappe/erp-coagent-gateway/internal/workflow"
	"github.com/frappe/erp-coagent-gateway/internal/workflow/checkpoint"
	"github.com/frappe/erp-coagent-gateway/internal/workflowbridge"
	"github.com/frappe/erp-coagent-gateway/internal/workflowregistry"
)

func main() {
	var (
		dbgF           = flag.Bool("debug", false, "Log request detail at debug level")
		subAgentsDirF  = flag.String("sub-agents-dir", "sub_agents", "Directory of sub-agent Markdown documents")
		workflowsDirF  = flag.String("workflows-dir", "workflows", "Directory of workflow graph manifests")
		watchWorkflows = flag.Bool("watch-workflows", true, "Hot-reload workflow manifests on change")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}
	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	tracer := telemetry.NewClueTracer()

	cfg := config.FromEnv()

	breakers := resilience.NewRegistry(resilience.DefaultConfig())
	costs := cost.NewTracker()

	var rdb *redis.Client
	var idempotency erp.IdempotencyCache = erp.NewInMemoryIdempotencyCache(cfg.IdempotencyTTL)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		idempotency = erp.NewRedisIdempotencyCache(rdb, cfg.IdempotencyTTL)
	}

	erpClient := erp.New(erp.Options{
		BaseURL:         cfg.ERPBaseURL,
		SessionToken:    os.Getenv("ERP_SESSION_TOKEN"),
		RateLimitPerSec: cfg.RateLimitPerSec,
		BatchMax:        cfg.BulkMaxBatch,
		Idempotency:     idempotency,
		Logger:          logger,
		Breaker:         breakers.Get("erp"),
	})

	modelClient, err := anthropic.NewFromAPIKey(cfg.AnthropicAPIKey, os.Getenv("ANTHROPIC_MODEL"))
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("model client: %w", err))
	}
	guardedModel := resilience.WrapModelClient(modelClient, breakers.Get("llm"))

	registry := tools.NewRegistry(risk.NewClassifier(risk.DefaultThresholds()))
	if err := erptools.Register(registry, erpClient); err != nil {
		log.Fatal(ctx, fmt.Errorf("register erp tools: %w", err))
	}
	if err := hotel.RegisterTools(registry, erpClient); err != nil {
		log.Fatal(ctx, fmt.Errorf("register hotel tools: %w", err))
	}

	var checkpointStore checkpoint.Store
	if rdb != nil {
		checkpointStore = checkpoint.NewRedisStore(rdb)
	} else {
		checkpointStore = checkpoint.NewInMemoryStore()
	}
	engine := workflow.NewEngine(checkpointStore, logger)

	// Graph factories are bound to their concrete dependencies before the
	// manifest scan, so LoadManifests finds a registered factory for every
	// manifest naming an industry graph this build ships.
	hotel.RegisterWorkflow(erpClient)

	workflows := workflowregistry.New()
	if skipped, err := workflows.LoadManifests(*workflowsDirF); err != nil {
		log.Fatal(ctx, fmt.Errorf("load workflow manifests: %w", err))
	} else if len(skipped) > 0 {
		logger.Warn(ctx, "gateway: manifests with no registered factory skipped", "graphs", skipped)
	}

	if *watchWorkflows {
		watcher := workflowregistry.NewWatcher(workflows, *workflowsDirF, 0, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn(ctx, "gateway: workflow manifest watch disabled", "error", err.Error())
		}
	}

	registry.Register(workflowbridge.Definition(workflows, engine)) //nolint:errcheck // static definition, schema always compiles

	approvals := agent.NewPendingApprovals()
	defaultLoop := agent.New(agent.Options{
		Model:         guardedModel,
		Registry:      registry,
		Approvals:     approvals,
		MaxIterations: cfg.MaxIterations,
		Logger:        logger,
		CostTracker:   costs,
	})

	subAgents, err := orchestrator.LoadSubAgents(*subAgentsDirF)
	if err != nil {
		log.Fatal(ctx, fmt.Errorf("load sub-agents: %w", err))
	}
	orch := orchestrator.New(orchestrator.Options{
		Classifier:  guardedModel,
		DefaultLoop: defaultLoop,
		SubAgents:   subAgents,
		Logger:      logger,
		CostTracker: costs,
	})

	sessions := session.NewStore(cfg.SessionIdleTimeout)
	sessions.StartSweep(0)
	defer sessions.Stop()

	srv := httpapi.New(httpapi.Server{
		Sessions:     sessions,
		ERP:          erpClient,
		Approvals:    approvals,
		DefaultLoop:  defaultLoop,
		Orchestrator: orch,
		Engine:       engine,
		Workflows:    workflows,
		Costs:        costs,
		Breakers:     breakers,
		Logger:       logger,
		Metrics:      metrics,
		Tracer:       tracer,
	})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv.Handler()}

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info(ctx, "gateway: listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	logger.Info(ctx, "gateway: exiting", "reason", (<-errc).Error())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.KeepAlive)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	wg.Wait()
	logger.Info(ctx, "gateway: exited")
}
