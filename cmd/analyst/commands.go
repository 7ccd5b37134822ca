package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/analystmesh/database"
	"github.com/hupe1980/analystmesh/internal/server"
	"github.com/hupe1980/analystmesh/runner"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	var showSQL bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), flags.configPath, showSQL, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&showSQL, "show-sql", false, "Print the generated SQL below each answer")
	return cmd
}

func runChat(ctx context.Context, configPath string, showSQL bool, in io.Reader, out io.Writer) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.shutdown()

	r := runner.New(a.mesh, in, out, func(o *runner.Options) {
		o.ShowSQL = showSQL
		o.Logger = logger
	})
	ids, err := r.Converse(ctx)
	logger.Info("chat.finished", "sessions", len(ids))
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags.configPath, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, configPath, addr string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.shutdown()

	srv := server.New(a.mesh.Engine(), func(o *server.Options) {
		o.Metrics = a.metrics
		o.Logger = logger
		o.Checks = map[string]server.Checker{"database": a.db.Ping}
		if a.redis != nil {
			o.Checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
		}
	})
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout)
}

func newInitDBCmd(flags *rootFlags) *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create (or with --drop, recreate) the analytics schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInitDB(cmd.Context(), flags.configPath, drop, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "Drop existing analytics tables first")
	return cmd
}

func runInitDB(ctx context.Context, configPath string, drop bool, out io.Writer) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if drop {
		if err := db.DropStructure(ctx); err != nil {
			return err
		}
	}
	if err := db.CreateStructure(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "analytics schema ready")
	return nil
}

func newUploadSnapshotCmd(flags *rootFlags) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "upload-snapshot",
		Short: "Load every CSV of a directory into the table of the same name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUploadSnapshot(cmd.Context(), flags.configPath, dir, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory with <table>.csv files (overrides data_dir)")
	return cmd
}

func runUploadSnapshot(ctx context.Context, configPath, dir string, out io.Writer) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if dir != "" {
		cfg.DataDir = dir
	}
	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	counts, err := database.UploadSnapshot(ctx, db, cfg.DataDir)
	if err != nil {
		return err
	}
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		fmt.Fprintf(out, "%-20s %d rows\n", t, counts[t])
	}
	return nil
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()
	if err := a.close(ctx); err != nil {
		a.logger.Error("shutdown.failed", "error", err.Error())
	}
}
