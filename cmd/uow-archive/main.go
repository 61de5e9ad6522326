// Command uow-archive inspects and resumes client transactions parked in the
// snapshot archive. Backends are selected through the UOW_* environment.
//
//	uow-archive [-prefix snapshots] list
//	uow-archive show <transaction-id>
//	uow-archive delete <transaction-id>
//	uow-archive -schema schema.yaml commit <transaction-id>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"unitofwork/internal/blob"
	"unitofwork/internal/config"
	"unitofwork/internal/core"
	"unitofwork/internal/logger"
	"unitofwork/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	code := cli(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

type options struct {
	prefix     string
	schemaPath string
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("uow-archive", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.prefix, "prefix", "", "blob key prefix of the archive (default snapshots)")
	fs.StringVar(&opts.schemaPath, "schema", "", "YAML relation schema, required by commit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		_, _ = fmt.Fprintln(stderr, "usage: uow-archive [flags] list|show|delete|commit [transaction-id]")
		return 2
	}
	cfg, err := config.Parse()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "configuration: %v\n", err)
		return 1
	}
	log := logger.NewWithWriter(stderr, cfg.LogLevel).With(logger.Scope("uow-archive"))
	if err := run(ctx, cfg, log, opts, rest, stdout, stderr); err != nil {
		log.Error("command failed", slog.String("command", rest[0]), logger.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, opts options, args []string, stdout, stderr io.Writer) error {
	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	archive := core.NewSnapshotArchive(store, opts.prefix)

	command, id := args[0], ""
	if command != "list" {
		if len(args) != 2 {
			return fmt.Errorf("%s expects exactly one transaction id", command)
		}
		id = args[1]
	}
	switch command {
	case "list":
		return listSnapshots(ctx, archive, stdout)
	case "show":
		return showSnapshot(ctx, archive, id, stdout)
	case "delete":
		existed, err := archive.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !existed {
			return fmt.Errorf("snapshot %s: %w", id, domain.ErrObjectNotFound)
		}
		_, err = fmt.Fprintf(stdout, "deleted %s\n", id)
		return err
	case "commit":
		return commitSnapshot(ctx, cfg, log, opts, archive, id, stdout, stderr)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func listSnapshots(ctx context.Context, archive *core.SnapshotArchive, stdout io.Writer) error {
	ids, err := archive.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := fmt.Fprintln(stdout, id); err != nil {
			return err
		}
	}
	return nil
}

func showSnapshot(ctx context.Context, archive *core.SnapshotArchive, id string, stdout io.Writer) error {
	snap, err := archive.Load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(stdout, "transaction %s: %d objects, %d end points, %d changes\n",
		snap.TransactionID, len(snap.Objects), len(snap.EndPoints), len(snap.Changes)); err != nil {
		return err
	}
	for _, obj := range snap.Objects {
		if _, err := fmt.Fprintf(stdout, "  %s %s\n", obj.Container.ID, obj.State); err != nil {
			return err
		}
	}
	return nil
}

func commitSnapshot(ctx context.Context, cfg *config.Config, log *slog.Logger, opts options, archive *core.SnapshotArchive, id string, stdout, stderr io.Writer) (err error) {
	if opts.schemaPath == "" {
		return errors.New("commit requires -schema")
	}
	schema, err := config.LoadSchema(opts.schemaPath)
	if err != nil {
		return err
	}
	storage, err := core.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := core.CloseStorage(storage); cerr != nil && err == nil {
			err = fmt.Errorf("close storage: %w", cerr)
		}
	}()
	metrics, err := core.NewMetricsRecorder(cfg.Metrics, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	tracer, err := core.NewTracer(cfg.Tracing, stderr)
	if err != nil {
		return err
	}

	tx, err := archive.Restore(ctx, id, storage, schema,
		core.WithLogger(log),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(tracer),
	)
	if err != nil {
		return err
	}
	res, err := tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("commit %s: %w", id, err)
	}
	for _, v := range res.Violations {
		if _, err := fmt.Fprintf(stdout, "warning %s: %s\n", v.Rule, v.Message); err != nil {
			return err
		}
	}
	if _, err := archive.Delete(ctx, id); err != nil {
		return fmt.Errorf("drop committed snapshot: %w", err)
	}
	_, err = fmt.Fprintf(stdout, "committed %s\n", id)
	return err
}
