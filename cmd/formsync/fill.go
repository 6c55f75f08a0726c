package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/internal/config"
	"github.com/goliatone/go-formsync/pkg/docsync"
	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/prompt"
	"github.com/goliatone/go-formsync/pkg/sanitize"
	"github.com/goliatone/go-formsync/pkg/store"
	"github.com/goliatone/go-formsync/pkg/upload"
	"github.com/goliatone/go-formsync/pkg/visibility"
	visexpr "github.com/goliatone/go-formsync/pkg/visibility/expr"
)

const bindTimeout = 30 * time.Second

var (
	errNoBlobStore  = errors.New("the configured store does not accept uploads")
	errUploadFormat = errors.New("--upload expects field=path")
)

func fillCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "fill",
		Usage: "Fill a form interactively and save it to the configured store",
		Flags: append(schemaFlags(),
			&cli.StringFlag{
				Name:  "collection",
				Usage: "target collection, overrides sync.collection",
			},
			&cli.StringFlag{
				Name:  "id",
				Usage: "existing document to load and update",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "user recorded in the write metadata, overrides sync.user",
			},
			&cli.StringSliceFlag{
				Name:  "upload",
				Usage: "upload a file and store its reference in a field (field=path)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "print the filled values without saving",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			node, err := loadSchema(ctx, cmd, rt.logger)
			if err != nil {
				return err
			}
			uploads, err := parseUploads(cmd.StringSlice("upload"))
			if err != nil {
				return err
			}

			docs, blobs, closeStore, err := openStore(ctx, rt.cfg.Store, rt.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeStore(); err != nil {
					rt.logger.Warn("closing store", zap.Error(err))
				}
			}()

			syncCfg := rt.cfg.Sync
			if v := cmd.String("collection"); v != "" {
				syncCfg.Collection = v
			}
			if v := cmd.String("user"); v != "" {
				syncCfg.User = v
			}

			bound := make(chan docsync.State, 1)
			opts := append(syncOptions(syncCfg, rt.logger),
				docsync.WithSchema(node),
				docsync.WithDocumentID(cmd.String("id")),
				docsync.WithOnStateChange(func(s docsync.State) {
					if s == docsync.StateBound || s == docsync.StateError {
						select {
						case bound <- s:
						default:
						}
					}
				}),
			)
			engine, err := docsync.New(docs, opts...)
			if err != nil {
				return err
			}
			defer engine.Close()

			if cmd.String("id") != "" {
				if err := bindAndWait(ctx, engine, bound); err != nil {
					return err
				}
			}

			filler := prompt.New(
				prompt.WithLogger(rt.logger),
				prompt.WithVisibility(visibility.WithEvaluator(visexpr.New())),
			)
			if err := filler.Fill(ctx, engine.Form()); err != nil {
				return err
			}
			if len(uploads) > 0 {
				if err := runUploads(ctx, blobs, engine.Form(), uploads, rt.logger); err != nil {
					return err
				}
			}

			out := cmd.Root().Writer
			if cmd.Bool("dry-run") {
				return writeJSON(out, engine.Form().Values())
			}
			if err := engine.Save(ctx); err != nil {
				return err
			}
			ref, _ := engine.Binding().Ref()
			_, err = fmt.Fprintf(out, "saved %s\n", ref)
			return err
		},
	}
}

// syncOptions maps the sync config onto engine options. Auto-save stays off
// since the CLI saves once at the end.
func syncOptions(cfg config.SyncConfig, logger *zap.Logger) []docsync.Option {
	opts := []docsync.Option{
		docsync.WithCollection(cfg.Collection),
		docsync.WithMetadata(cfg.Metadata()),
		docsync.WithLogger(logger),
	}
	if cfg.User != "" {
		user := cfg.User
		opts = append(opts, docsync.WithUser(func() string { return user }))
	}
	if cfg.Sanitize {
		opts = append(opts, docsync.WithTransformBeforeSave(sanitize.New().Transform))
	}
	return opts
}

func bindAndWait(ctx context.Context, engine *docsync.Engine, bound <-chan docsync.State) error {
	if err := engine.Bind(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, bindTimeout)
	defer cancel()
	select {
	case s := <-bound:
		if s == docsync.StateError {
			return engine.Err()
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for document: %w", ctx.Err())
	}
}

type fileUpload struct {
	field string
	path  string
}

func parseUploads(raw []string) ([]fileUpload, error) {
	out := make([]fileUpload, 0, len(raw))
	for _, entry := range raw {
		field, path, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(field) == "" || strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("%w: %q", errUploadFormat, entry)
		}
		out = append(out, fileUpload{field: strings.TrimSpace(field), path: strings.TrimSpace(path)})
	}
	return out, nil
}

// runUploads sends every file and waits for all references to land in the
// form.
func runUploads(ctx context.Context, blobs store.BlobStore, f *form.Engine, uploads []fileUpload, logger *zap.Logger) error {
	if blobs == nil {
		return errNoBlobStore
	}
	coordinator, err := upload.New(blobs, upload.WithLogger(logger))
	if err != nil {
		return err
	}

	tasks := make([]*upload.Task, 0, len(uploads))
	for _, up := range uploads {
		data, err := os.ReadFile(up.path)
		if err != nil {
			return err
		}
		target := "uploads/" + filepath.Base(up.path)
		tasks = append(tasks, coordinator.UploadToField(ctx, f, up.field, target, data, upload.Callbacks{
			OnProgress: func(percent float64) {
				logger.Debug("upload progress", zap.String("field", up.field), zap.Float64("percent", percent))
			},
		}))
	}
	for i, task := range tasks {
		ref, err := task.Wait(ctx)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", uploads[i].path, err)
		}
		logger.Info("uploaded", zap.String("field", uploads[i].field), zap.String("reference", ref))
	}
	return nil
}
