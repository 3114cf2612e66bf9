package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/themacn/trial-abuse-guard/internal/config"
	"github.com/themacn/trial-abuse-guard/internal/logger"
	"github.com/themacn/trial-abuse-guard/internal/tempdomain"
)

const usage = `usage: trial-abuse-guard [-config path] [-debug] <command> [args]

commands:
  serve                  run the signup, check and admin HTTP servers (default)
  stats                  print list statistics
  check <email|domain>   report whether the domain is disposable
  search [-regex] <pattern>
                         list tracked domains matching pattern
  export [-o path] [-format json|txt]
                         write the list to path, or stdout
  import <path>          merge domains from a .json or text file
  add <domain>...        add domains
  remove <domain>...     remove domains
  update                 fetch every source once and merge
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// cli carries what every command needs after global flags are parsed.
type cli struct {
	cfg    *config.Config
	logger *zap.Logger
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("trial-abuse-guard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", config.DefaultPath, "path to the YAML config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	log := logger.Must(cfg.Environment, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	c := &cli{cfg: cfg, logger: log, stdout: stdout, stderr: stderr}

	rest := fs.Args()
	command := "serve"
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	switch command {
	case "serve":
		return c.serve(ctx)
	case "stats":
		return c.offline(c.stats)
	case "check":
		return c.offline(func(svc *tempdomain.Service) int { return c.check(svc, rest) })
	case "search":
		return c.offline(func(svc *tempdomain.Service) int { return c.search(svc, rest) })
	case "export":
		return c.offline(func(svc *tempdomain.Service) int { return c.export(svc, rest) })
	case "import":
		return c.offline(func(svc *tempdomain.Service) int { return c.importFile(svc, rest) })
	case "add":
		return c.offline(func(svc *tempdomain.Service) int { return c.add(svc, rest) })
	case "remove":
		return c.offline(func(svc *tempdomain.Service) int { return c.remove(svc, rest) })
	case "update":
		return c.offline(func(svc *tempdomain.Service) int { return c.update(ctx, svc) })
	case "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}
}

func (c *cli) serve(ctx context.Context) int {
	svc, err := tempdomain.New(ctx, c.cfg.TempDomainOptions(c.logger))
	if err != nil {
		c.logger.Error("temp domain service", zap.Error(err))
		return 1
	}
	defer svc.Destroy()

	app := NewApp(c.cfg, svc, c.logger)
	if err := app.Setup(); err != nil {
		c.logger.Error("setup", zap.Error(err))
		return 1
	}
	if err := app.Serve(ctx); err != nil {
		c.logger.Error("server", zap.Error(err))
		return 1
	}
	return 0
}

// offline runs fn against a service built from the snapshot and defaults,
// without the initial fetch or a schedule.
func (c *cli) offline(fn func(*tempdomain.Service) int) int {
	svc, err := tempdomain.NewOffline(c.cfg.TempDomainOptions(c.logger))
	if err != nil {
		fmt.Fprintln(c.stderr, "temp domain service:", err)
		return 1
	}
	defer svc.Destroy()
	return fn(svc)
}

func (c *cli) stats(svc *tempdomain.Service) int {
	return c.printJSON(svc.Stats())
}

func (c *cli) check(svc *tempdomain.Service, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.stderr, "usage: trial-abuse-guard check <email|domain>")
		return 2
	}
	domain := args[0]
	if at := strings.LastIndex(domain, "@"); at >= 0 {
		domain = domain[at+1:]
	}
	if svc.IsTemporary(domain) {
		fmt.Fprintf(c.stdout, "%s: temporary\n", domain)
	} else {
		fmt.Fprintf(c.stdout, "%s: not listed\n", domain)
	}
	return 0
}

func (c *cli) search(svc *tempdomain.Service, args []string) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	regex := fs.Bool("regex", false, "treat pattern as a regular expression")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(c.stderr, "usage: trial-abuse-guard search [-regex] <pattern>")
		return 2
	}

	var found []string
	if *regex {
		var err error
		if found, err = svc.SearchRegexp(fs.Arg(0)); err != nil {
			fmt.Fprintln(c.stderr, "search:", err)
			return 1
		}
	} else {
		found = svc.Search(fs.Arg(0))
	}
	for _, d := range found {
		fmt.Fprintln(c.stdout, d)
	}
	return 0
}

func (c *cli) export(svc *tempdomain.Service, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	out := fs.String("o", "", "output file (stdout when empty)")
	formatName := fs.String("format", "json", "json or txt")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	format, err := tempdomain.ParseFormat(*formatName)
	if err != nil {
		fmt.Fprintln(c.stderr, "export:", err)
		return 2
	}

	if *out == "" {
		err = svc.WriteExport(c.stdout, format)
	} else {
		err = svc.Export(*out, format)
	}
	if err != nil {
		fmt.Fprintln(c.stderr, "export:", err)
		return 1
	}
	if *out != "" {
		fmt.Fprintf(c.stderr, "exported %d domains to %s\n", svc.Size(), *out)
	}
	return 0
}

func (c *cli) importFile(svc *tempdomain.Service, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.stderr, "usage: trial-abuse-guard import <path>")
		return 2
	}
	n, err := svc.Import(args[0])
	if err != nil {
		fmt.Fprintln(c.stderr, "import:", err)
		return 1
	}
	fmt.Fprintf(c.stdout, "imported %d new domains (%d total)\n", n, svc.Size())
	return 0
}

func (c *cli) add(svc *tempdomain.Service, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, "usage: trial-abuse-guard add <domain>...")
		return 2
	}
	n := svc.AddDomains(args...)
	fmt.Fprintf(c.stdout, "added %d domains (%d total)\n", n, svc.Size())
	return 0
}

func (c *cli) remove(svc *tempdomain.Service, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, "usage: trial-abuse-guard remove <domain>...")
		return 2
	}
	n := svc.RemoveDomains(args...)
	fmt.Fprintf(c.stdout, "removed %d domains (%d total)\n", n, svc.Size())
	return 0
}

func (c *cli) update(ctx context.Context, svc *tempdomain.Service) int {
	res, err := svc.ForceUpdate(ctx)
	if err != nil {
		fmt.Fprintln(c.stderr, "update:", err)
		return 1
	}
	code := c.printJSON(res)
	if code == 0 && res.Sources > 0 && len(res.Succeeded) == 0 {
		return 1
	}
	return code
}

func (c *cli) printJSON(v any) int {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(c.stderr, "encode:", err)
		return 1
	}
	return 0
}
