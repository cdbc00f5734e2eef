package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/blipee-dev/agentcore/internal/adapter/postgres"
	"github.com/blipee-dev/agentcore/internal/config"
	"github.com/blipee-dev/agentcore/internal/domain/approval"
	"github.com/blipee-dev/agentcore/internal/domain/schedule"
	"github.com/blipee-dev/agentcore/internal/middleware"
	"github.com/blipee-dev/agentcore/internal/service"
)

// runAdmin dispatches admin subcommands (register-schedule, status, decide-approval, health).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "register-schedule":
		return runAdminRegisterSchedule(args[1:])
	case "status":
		return runAdminStatus(args[1:])
	case "decide-approval":
		return runAdminDecideApproval(args[1:])
	case "health":
		return runAdminHealth(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: agentcore admin <command> [options]

Commands:
  register-schedule   Register a recurring schedule for an agent
  status              Show orchestration status for a tenant
  decide-approval     Approve or deny a pending approval request
  health              Check database and migration health
  help                Show this help message

Examples:
  agentcore admin register-schedule --agent 6f1c... --rule "every:15m"
  agentcore admin register-schedule --agent 6f1c... --rule "daily:06:00" --tenant 00000000-0000-0000-0000-000000000000
  agentcore admin status --tenant 00000000-0000-0000-0000-000000000000
  agentcore admin decide-approval --id 9ab2... --decision approve --by ops@example.com
  agentcore admin health
`)
}

type adminDeps struct {
	store   *postgres.Store
	cfg     *config.Config
	cleanup func()
}

func loadAdminDeps() (*adminDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &adminDeps{
		store:   postgres.NewStore(pool),
		cfg:     cfg,
		cleanup: pool.Close,
	}, nil
}

func tenantCtx(tenantID string) context.Context {
	if tenantID == "" {
		tenantID = middleware.DefaultTenantID
	}
	return middleware.WithTenantID(context.Background(), tenantID)
}

func runAdminRegisterSchedule(args []string) error {
	fs := flag.NewFlagSet("register-schedule", flag.ContinueOnError)
	agentID := fs.String("agent", "", "agent ID (required)")
	rule := fs.String("rule", "", `recurrence rule, e.g. "every:15m" or "daily:06:00" (required)`)
	tenantID := fs.String("tenant", "", "tenant ID (default tenant if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *agentID == "" {
		return fmt.Errorf("--agent is required")
	}
	if *rule == "" {
		return fmt.Errorf("--rule is required")
	}

	deps, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	schedulerSvc := service.NewSchedulerService(deps.store, nil, deps.cfg.Scheduler)
	sc, err := schedulerSvc.RegisterSchedule(tenantCtx(*tenantID), schedule.CreateRequest{
		AgentID: *agentID,
		Rule:    *rule,
	})
	if err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Schedule registered: %s (next run %s)\n", sc.ID, sc.NextRunAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

func runAdminStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	tenantID := fs.String("tenant", "", "tenant ID (default tenant if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	deps, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	id := *tenantID
	if id == "" {
		id = middleware.DefaultTenantID
	}

	schedulerSvc := service.NewSchedulerService(deps.store, nil, deps.cfg.Scheduler)
	decisionSvc := service.NewDecisionService(deps.store, nil, 0)
	approvalSvc := service.NewApprovalService(deps.store, nil, nil, deps.cfg.Approval)
	orch := service.NewOrchestratorService(deps.store, nil, schedulerSvc, decisionSvc, approvalSvc, nil)

	st, err := orch.Status(tenantCtx(id), id)
	if err != nil {
		return fmt.Errorf("tenant status: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Tenant\t%s\n", st.TenantID)
	fmt.Fprintf(w, "Enabled\t%v\n", st.Enabled)
	fmt.Fprintf(w, "Agents\t%d (%d active)\n", st.Agents, st.ActiveAgents)
	fmt.Fprintf(w, "Schedules\t%d (%d enabled)\n", st.Schedules, st.EnabledSchedules)
	fmt.Fprintf(w, "Failed tasks\t%d\n", st.FailedTasks)
	for _, e := range st.LastErrors {
		fmt.Fprintf(w, "  error\t%s\n", e)
	}
	fmt.Fprintf(w, "Pending approvals\t%d\n", st.PendingApprovals)
	fmt.Fprintf(w, "Recent results\t%d\n", len(st.RecentResults))
	return w.Flush()
}

func runAdminDecideApproval(args []string) error {
	fs := flag.NewFlagSet("decide-approval", flag.ContinueOnError)
	id := fs.String("id", "", "approval request ID (required)")
	decisionFlag := fs.String("decision", "", `"approve" or "deny" (required)`)
	by := fs.String("by", "", "identity of the decider")
	tenantID := fs.String("tenant", "", "tenant ID (default tenant if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *id == "" {
		return fmt.Errorf("--id is required")
	}
	d := approval.Decision(*decisionFlag)
	if !d.Valid() {
		return fmt.Errorf("--decision must be 'approve' or 'deny'")
	}

	deps, err := loadAdminDeps()
	if err != nil {
		return err
	}
	defer deps.cleanup()

	// No queue here: the running server's expiry sweep and orchestrator pick
	// the outcome up from the store.
	approvalSvc := service.NewApprovalService(deps.store, nil, nil, deps.cfg.Approval)
	req, err := approvalSvc.Decide(tenantCtx(*tenantID), *id, d, *by)
	if err != nil {
		return fmt.Errorf("decide approval: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Approval %s is now %s\n", req.ID, req.State)
	return nil
}

func runAdminHealth(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	version, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}

	fmt.Printf("postgres: ok (migration version %d)\n", version)
	return nil
}
