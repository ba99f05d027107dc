package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zoumson/OpenFreeAI/internal/api"
	"github.com/zoumson/OpenFreeAI/internal/api/handlers"
	"github.com/zoumson/OpenFreeAI/internal/client"
	domainauth "github.com/zoumson/OpenFreeAI/internal/domain/auth"
	"github.com/zoumson/OpenFreeAI/internal/domain/catalog"
	"github.com/zoumson/OpenFreeAI/internal/domain/job"
	"github.com/zoumson/OpenFreeAI/internal/infra/config"
	"github.com/zoumson/OpenFreeAI/internal/infra/sqlite"
	"github.com/zoumson/OpenFreeAI/internal/mcp"
	"github.com/zoumson/OpenFreeAI/internal/server"
	pkgauth "github.com/zoumson/OpenFreeAI/pkg/auth"
)

func cmdServe(ctx context.Context, args []string, _ io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	withWorker := fs.Bool("with-worker", false, "Run the worker pool in the same process")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	e, err := newEnv(ctx)
	if err != nil {
		return fail(err)
	}
	defer e.Close()

	authService, issuer, err := e.newAuth()
	if err != nil {
		return fail(err)
	}

	router := api.NewRouter(api.Services{
		Submitter: job.NewDispatcher(e.store, e.catalog, e.metrics),
		Jobs:      job.NewPoller(e.store),
		Catalog:   e.catalog,
		History:   e.history,
		Auth:      authService,
		Tokens:    issuer,
		Metrics:   e.metrics.Handler(),
		Logger:    e.logger,
	})
	srvCfg := server.DefaultConfig()
	srvCfg.Host, srvCfg.Port = e.cfg.HTTPHost, e.cfg.HTTPPort
	srv := server.NewServer(router, srvCfg, e.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if *withWorker {
		p, err := e.newPipeline(ctx)
		if err != nil {
			return fail(err)
		}
		defer p.cleanup()
		g.Go(func() error { return p.runWorker(gctx) })
		g.Go(func() error { return p.runRecorder(gctx) })
	}

	if err := g.Wait(); err != nil {
		return fail(err)
	}
	return 0
}

func cmdWorker(ctx context.Context, args []string, _ io.Writer) int {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	metricsAddr := fs.String("metrics-addr", ":9100", "Serve /metrics on this address (empty disables)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	e, err := newEnv(ctx)
	if err != nil {
		return fail(err)
	}
	defer e.Close()

	var metricsSrv *server.Server
	if *metricsAddr != "" {
		if metricsSrv, err = e.newMetricsServer(*metricsAddr); err != nil {
			return fail(err)
		}
	}

	p, err := e.newPipeline(ctx)
	if err != nil {
		return fail(err)
	}
	defer p.cleanup()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.runWorker(gctx) })
	g.Go(func() error { return p.runRecorder(gctx) })
	if metricsSrv != nil {
		g.Go(func() error { return metricsSrv.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}
	return 0
}

func cmdMigrate(ctx context.Context, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "Database path (default OFA_DB_PATH)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path, err := resolveDBPath(*dbPath)
	if err != nil {
		return fail(err)
	}
	if err := ensureDataDir(path); err != nil {
		return fail(err)
	}
	db, err := sqlite.NewDB(path)
	if err != nil {
		return fail(err)
	}
	defer db.Close() //nolint:errcheck

	applied, err := sqlite.MigrateUp(ctx, db)
	if err != nil {
		return fail(err)
	}
	v, err := sqlite.MigrationVersion(ctx, db)
	if err != nil {
		return fail(err)
	}
	for _, name := range applied {
		fmt.Fprintln(out, "applied", name) //nolint:errcheck
	}
	fmt.Fprintf(out, "schema version %d\n", v) //nolint:errcheck
	return 0
}

func cmdModels(ctx context.Context, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "Database path (default OFA_DB_PATH)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: openfreeai models [--db path] load <file> | list") //nolint:errcheck
		return 2
	}

	path, err := resolveDBPath(*dbPath)
	if err != nil {
		return fail(err)
	}
	db, err := openDB(ctx, path)
	if err != nil {
		return fail(err)
	}
	defer db.Close() //nolint:errcheck
	svc := catalog.NewService(db)

	switch fs.Arg(0) {
	case "load":
		if fs.NArg() != 2 {
			fmt.Fprintln(stderr, "usage: openfreeai models load <file>") //nolint:errcheck
			return 2
		}
		n, err := svc.LoadFile(ctx, fs.Arg(1))
		if err != nil {
			return fail(err)
		}
		fmt.Fprintf(out, "loaded %d new models\n", n) //nolint:errcheck
	case "list":
		models, err := svc.ListModels(ctx)
		if err != nil {
			return fail(err)
		}
		for i, m := range models {
			fmt.Fprintf(out, "%d\t%s\n", i, m) //nolint:errcheck
		}
	default:
		fmt.Fprintf(stderr, "unknown models command %q\n", fs.Arg(0)) //nolint:errcheck
		return 2
	}
	return 0
}

func cmdMCP(ctx context.Context, args []string, _ io.Writer) int {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	e, err := newEnv(ctx)
	if err != nil {
		return fail(err)
	}
	defer e.Close()

	srv := mcp.NewServer(mcp.Deps{
		Submitter: job.NewDispatcher(e.store, e.catalog, e.metrics),
		Poller:    job.NewPoller(e.store),
		Models:    e.catalog,
		Logger:    e.logger,
	})
	if err := mcp.Serve(ctx, srv); err != nil {
		return fail(err)
	}
	return 0
}

// resolveDBPath prefers an explicit flag over configuration.
func resolveDBPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.DBPath, nil
}

// newAuth builds the login service. Without JWT_SECRET a random secret is
// used, so tokens do not survive a restart.
func (e *env) newAuth() (*domainauth.Service, *pkgauth.Issuer, error) {
	secret := e.cfg.JWTSecret
	if secret == "" {
		var err error
		if secret, err = pkgauth.RandomSecret(); err != nil {
			return nil, nil, err
		}
		e.logger.Warn("JWT_SECRET is not set; using a random secret for this process")
	}
	issuer, err := pkgauth.NewIssuer(secret, e.cfg.JWTExpiry)
	if err != nil {
		return nil, nil, err
	}

	accounts, err := domainauth.BuiltinAccounts(e.cfg.AdminPassword, e.cfg.UserPassword)
	if err != nil {
		return nil, nil, err
	}
	if len(accounts) == 0 {
		e.logger.Warn("no login accounts enabled; set OFA_ADMIN_PASSWORD to use admin routes")
	}
	return domainauth.NewService(issuer, e.logger, accounts...), issuer, nil
}

// cmdAsk submits a prompt to a running server and polls until every job is
// settled or the poll budget is spent.
func cmdAsk(ctx context.Context, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := config.Load()
	if err != nil {
		return fail(err)
	}
	serverURL := fs.String("server", cfg.ServerURL, "Server base URL (default OFA_SERVER_URL)")
	model := fs.String("model", "", "Full model id, e.g. meta/llama:free")
	models := fs.String("models", "", "Comma-separated model ids to fan out to")
	index := fs.Int("model-index", -1, "Catalog index (default: first model)")
	stream := fs.Bool("stream", false, "Ask the worker to stream the completion")
	interval := fs.Duration("interval", time.Second, "Delay between polls")
	maxPolls := fs.Int("max-polls", 60, "Give up after this many polls")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" || *maxPolls < 1 {
		fmt.Fprintln(stderr, "usage: openfreeai ask [--model id | --models a,b | --model-index n] [--max-polls n] <prompt>") //nolint:errcheck
		return 2
	}

	req := handlers.PromptRequest{Prompt: prompt, ModelName: *model, Stream: *stream}
	if *models != "" {
		for _, m := range strings.Split(*models, ",") {
			if m = strings.TrimSpace(m); m != "" {
				req.Models = append(req.Models, m)
			}
		}
	}
	if *index >= 0 {
		req.ModelIndex = index
	}

	c := client.New(*serverURL, 0)
	ids, err := c.Submit(ctx, req)
	if err != nil {
		return fail(err)
	}
	snaps, waitErr := c.Wait(ctx, ids, *interval, *maxPolls)

	code := 0
	for _, s := range snaps {
		switch s.Status {
		case job.StatusSuccess:
			fmt.Fprintf(out, "[%s] %s\n%s\n", s.Model, s.Status, s.ResultText()) //nolint:errcheck
		case job.StatusFailure:
			fmt.Fprintf(out, "[%s] %s: %s\n", s.Model, s.Status, s.Error) //nolint:errcheck
			code = 1
		default:
			fmt.Fprintf(out, "[%s] %s %s\n", s.Model, s.Status, s.ID) //nolint:errcheck
			code = 1
		}
	}
	if waitErr != nil {
		return fail(waitErr)
	}
	return code
}
