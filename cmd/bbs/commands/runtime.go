package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/bbs/internal/config"
	"github.com/dyluth/bbs/internal/engine"
	"github.com/dyluth/bbs/internal/listing"
	"github.com/dyluth/bbs/internal/lockstring"
	"github.com/dyluth/bbs/internal/printer"
	"github.com/dyluth/bbs/pkg/bbs"
)

// newClient opens the store for a configuration. Tests replace it.
var newClient = func(cfg *config.Config) (*bbs.Client, error) {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, err
	}
	return bbs.NewClient(opts, cfg.Instance)
}

// runtime is everything a command needs to talk to one instance.
type runtime struct {
	cfg    *config.Config
	client *bbs.Client
	engine *engine.Engine
}

func openRuntime(ctx context.Context, flags *globalFlags) (*runtime, error) {
	cfg, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{"Check bbs.yml and the BBS_* environment variables"},
		)
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}
	client.SetMaxTxRetries(cfg.MaxTxRetries)

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis unreachable",
			err.Error(),
			[][2]string{{"Instance", cfg.Instance}, {"Redis", cfg.RedisURL}},
			[]string{"Start Redis or point REDIS_URL at a running server"},
		)
	}

	engineConfig, err := cfg.Engine()
	if err != nil {
		client.Close()
		return nil, err
	}
	eng, err := engine.New(client, client, client, client, lockstring.New(), engineConfig)
	if err != nil {
		client.Close()
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}

	return &runtime{cfg: cfg, client: client, engine: eng}, nil
}

func (rt *runtime) Close() {
	rt.client.Close()
}

// identities resolves the acting account and optional persona from flags.
func (f *globalFlags) identities() (bbs.Identity, *bbs.Identity, error) {
	account := bbs.Identity{
		Kind:        bbs.IdentityAccount,
		ID:          f.accountID,
		Name:        f.accountName,
		Permissions: f.permissions,
	}
	if err := account.Validate(); err != nil {
		return bbs.Identity{}, nil, printer.Error(
			"no account given",
			err.Error(),
			[]string{"Pass the acting account:\n  bbs --as-id 1 --as-name Admin --perm Admin ..."},
		)
	}

	if f.personaID == 0 && f.personaName == "" {
		return account, nil, nil
	}
	persona := &bbs.Identity{
		Kind:      bbs.IdentityPersona,
		ID:        f.personaID,
		Name:      f.personaName,
		AccountID: account.ID,
	}
	if err := persona.Validate(); err != nil {
		return bbs.Identity{}, nil, printer.Error("invalid persona", err.Error(), []string{"Pass both --persona-id and --persona-name"})
	}
	return account, persona, nil
}

// run executes one operation and prints its outcome.
func run(cmd *cobra.Command, flags *globalFlags, target engine.Target, operation string, kwargs map[string]interface{}) error {
	format, err := listing.ParseFormat(flags.output)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, json, jsonl"})
	}
	account, persona, err := flags.identities()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openRuntime(ctx, flags)
	if err != nil {
		return err
	}
	defer rt.Close()

	req := engine.NewRequest(account, persona, operation, kwargs)
	if err := rt.engine.Execute(ctx, target, req); err != nil {
		return operationError(target, req, err)
	}

	if format == listing.OutputFormatDefault && req.Message != "" {
		printer.Success("%s\n", req.Message)
	}
	return listing.New(cmd.OutOrStdout(), format).Result(req)
}

func operationError(target engine.Target, req *engine.Request, err error) error {
	var opErr *engine.OpError
	if !errors.As(err, &opErr) {
		return err
	}

	details := [][2]string{{"Operation", string(target) + " " + req.Operation}, {"Request", req.ID}}
	switch opErr.Status {
	case engine.StatusUnauthorized:
		return printer.ErrorWithContext("permission denied", opErr.Message, details, nil)
	case engine.StatusNotFound:
		return printer.ErrorWithContext("not found", opErr.Message, details, []string{"List what exists:\n  bbs board list"})
	case engine.StatusConflict:
		return printer.ErrorWithContext("conflict", opErr.Message, details, nil)
	case engine.StatusBadRequest:
		return printer.ErrorWithContext("invalid request", opErr.Message, details, nil)
	}
	return printer.ErrorWithContext("internal error", opErr.Message, details, []string{"Check the Redis server and retry"})
}

// abbreviationArg maps the literal "none" to the empty abbreviation.
func abbreviationArg(s string) string {
	if strings.EqualFold(s, "none") {
		return ""
	}
	return s
}
