package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ec-dashboard/internal/domain"
	fxmodules "ec-dashboard/internal/fx"
	"ec-dashboard/internal/poller"
	"ec-dashboard/internal/service"
	"ec-dashboard/internal/session"
	"ec-dashboard/internal/telemetry"

	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

// Version is set during build using ldflags
var Version = "dev"

const description = `ecctl resolves its mode the same way the server does, but it has no NUI listener.
With PARENT_RESOURCE set it waits out the host status timeout (2s) and settles on
in-game-customer, so host-only endpoints are denied. Run it against the web backend
(PARENT_RESOURCE unset, SERVER_PORT=HOST_PORT) for host access.`

type deps struct {
	session  *session.Session
	registry *poller.Registry
	pipeline *telemetry.Pipeline
	db       *sql.DB
}

// boot builds the core graph and starts a session against it.
func boot(ctx context.Context) (*deps, func(), error) {
	d := &deps{}
	app := fx.New(
		fxmodules.Core,
		fx.NopLogger,
		fx.Populate(&d.session, &d.registry, &d.pipeline, &d.db),
	)
	if err := app.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to build dependencies: %w", err)
	}

	cleanup := func() {
		d.registry.StopAll()
		flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		d.pipeline.Flush(flushCtx) //nolint:errcheck
		d.db.Close()
	}

	if err := d.session.Start(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return d, cleanup, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func withSession(fn func(ctx context.Context, cmd *cli.Command, d *deps) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		d, cleanup, err := boot(ctx)
		if err != nil {
			return err
		}
		defer cleanup()
		return fn(ctx, cmd, d)
	}
}

func main() {
	app := &cli.Command{
		Name:        "ecctl",
		Version:     Version,
		Usage:       "Operate the EC admin dashboard from a terminal",
		Description: description,
		Commands: []*cli.Command{
			{
				Name:  "mode",
				Usage: "Print the resolved runtime mode (in game this is always in-game-customer, see the description)",
				Action: withSession(func(ctx context.Context, cmd *cli.Command, d *deps) error {
					return printJSON(map[string]any{
						"mode":          d.session.Mode(),
						"authenticated": d.session.Authenticated(),
					})
				}),
			},
			{
				Name:      "call",
				Usage:     "Call a backend endpoint and print the normalized envelope",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "method", Aliases: []string{"X"}, Value: "GET", Usage: "HTTP method"},
					&cli.StringFlag{Name: "body", Aliases: []string{"d"}, Usage: "JSON request body"},
				},
				Action: withSession(callAction),
			},
			{
				Name:      "poll",
				Usage:     "Fetch an endpoint repeatedly until interrupted",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Value: 15 * time.Second, Usage: "time between fetches"},
				},
				Action: withSession(pollAction),
			},
			{
				Name:      "bridge",
				Usage:     "Invoke a NUI callback on the parent resource",
				ArgsUsage: "<event> [json]",
				Action:    withSession(bridgeAction),
			},
			{
				Name:      "login",
				Usage:     "Log in and persist the token",
				ArgsUsage: "<username> <password>",
				Action: withSession(func(ctx context.Context, cmd *cli.Command, d *deps) error {
					if cmd.Args().Len() < 2 {
						return fmt.Errorf("username and password required")
					}
					if err := d.session.Login(ctx, cmd.Args().Get(0), cmd.Args().Get(1)); err != nil {
						return fmt.Errorf("login failed: %w", err)
					}
					fmt.Println("Logged in")
					return nil
				}),
			},
			{
				Name:  "logout",
				Usage: "Forget the persisted token",
				Action: withSession(func(ctx context.Context, cmd *cli.Command, d *deps) error {
					if err := d.session.Logout(ctx); err != nil {
						return err
					}
					fmt.Println("Logged out")
					return nil
				}),
			},
			{
				Name:      "set-mode",
				Usage:     "Persist a mode preference (an empty kind clears it)",
				ArgsUsage: "<kind>",
				Action: withSession(func(ctx context.Context, cmd *cli.Command, d *deps) error {
					kind := domain.ModeUnknown
					if raw := cmd.Args().First(); raw != "" {
						parsed, ok := domain.ParseModeKind(raw)
						if !ok {
							return fmt.Errorf("unknown mode %q", raw)
						}
						kind = parsed
					}
					if err := d.session.SetMode(ctx, kind); err != nil {
						return err
					}
					return printJSON(d.session.Mode())
				}),
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func callAction(ctx context.Context, cmd *cli.Command, d *deps) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("endpoint path required")
	}

	ep := session.Endpoint{Method: strings.ToUpper(cmd.String("method")), Path: path}
	var body any
	if raw := cmd.String("body"); raw != "" {
		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("body is not valid JSON")
		}
		body = json.RawMessage(raw)
	}

	res, err := d.session.Call(ctx, ep, body)
	if err := printJSON(res); err != nil {
		return err
	}
	if err != nil {
		return err
	}
	return res.Err()
}

func pollAction(ctx context.Context, cmd *cli.Command, d *deps) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("endpoint path required")
	}

	ep := session.Endpoint{Path: path}
	d.registry.Start(path, func(pollCtx context.Context) {
		data, err := d.session.Fetch(pollCtx, ep, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", time.Now().Format(time.TimeOnly), err)
			return
		}
		fmt.Printf("%s %s\n", time.Now().Format(time.TimeOnly), data)
	}, cmd.Duration("interval"))

	<-ctx.Done()
	d.registry.Stop(path)
	return nil
}

func bridgeAction(ctx context.Context, cmd *cli.Command, d *deps) error {
	event := cmd.Args().First()
	if event == "" {
		return fmt.Errorf("event name required")
	}

	var payload any
	if raw := cmd.Args().Get(1); raw != "" {
		if !json.Valid([]byte(raw)) {
			return fmt.Errorf("payload is not valid JSON")
		}
		payload = json.RawMessage(raw)
	}

	ep, ok := service.BridgeEndpoint(event)
	if !ok {
		return fmt.Errorf("unknown NUI event %q", event)
	}
	data, err := d.session.Invoke(ctx, ep, payload)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
