package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/logging"
	"github.com/abhisek/predinator/internal/model"
	"github.com/abhisek/predinator/internal/service"
	"github.com/abhisek/predinator/internal/store"
)

// app holds the collaborators every subcommand shares.
type app struct {
	store   *store.Store
	catalog *catalog.FileStore
	model   *model.Model
	svc     *service.Service
}

// openApp opens the database and wires the service from cfg. The model is
// not loaded; callers invoke svc.Init or svc.Ready as needed.
func openApp() (*app, error) {
	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dbPath := cfg.DBPath()
	if err := store.EnsureDir(dbPath); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	cat := catalog.NewFileStore(cfg.QuestionsPath(), logging.New("catalog"))
	m := model.New(model.Options{
		Params:    cfg.Tree.Params(),
		Artifacts: model.NewFileArtifacts(cfg.ModelDir()),
		Logger:    logging.New("model"),
		Now:       time.Now,
	})

	opts := service.DefaultOptions()
	opts.ModelDir = cfg.ModelDir()
	svc := service.New(service.Deps{
		Catalog: cat,
		Matrix:  st.Matrix(),
		Model:   m,
		Events:  st.Events(),
		Logger:  logging.New("service"),
	}, opts)

	return &app{store: st, catalog: cat, model: m, svc: svc}, nil
}

// initModel loads or trains the model, reporting a missing knowledge base on stderr.
func (a *app) initModel(ctx context.Context) service.InitResult {
	res := a.svc.Init(ctx)
	if res.Source == service.SourceNone {
		fmt.Fprintln(os.Stderr, "No model available:", res.Err)
		fmt.Fprintln(os.Stderr, "Run `predinator seed` to load the sample characters.")
	}
	return res
}

func (a *app) Close() error {
	return a.store.Close()
}
