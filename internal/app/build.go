package app

import (
	"context"
	"fmt"
	"strconv"

	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/engine/generator"
	"go.trai.ch/lpkg/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// fetchWorkers bounds the number of packages whose sources download at once.
const fetchWorkers = 4

// GenerateOptions configuration for the Generate method.
type GenerateOptions struct {
	DryRun    bool
	Overwrite bool
}

// Generate emits build definitions for the given record ids, or for every ready record when
// ids is empty. Selecting a record that is not ready explicitly aborts before anything is
// written; a full run skips such records.
func (a *App) Generate(ctx context.Context, ids []string, opts GenerateOptions) (*domain.Report, error) {
	p, err := a.pipeline(ctx)
	if err != nil {
		return nil, err
	}

	explicit := len(ids) > 0
	if !explicit {
		if ids, err = p.store.List(ctx, ""); err != nil {
			return nil, err
		}
	}

	report := domain.NewReport("generate")
	artifacts := make([]*generator.Artifact, 0, len(ids))
	for _, id := range ids {
		record, err := p.store.Get(ctx, id)
		if err != nil {
			if explicit {
				return nil, err
			}
			report.Failed(id, err)
			continue
		}
		if !record.Ready() && !explicit {
			report.Skipped(id, "record is "+string(record.Status.State))
			continue
		}

		artifact, err := p.generator.Generate(record)
		if err != nil {
			if explicit {
				return nil, err
			}
			report.Failed(id, err)
			continue
		}
		artifacts = append(artifacts, artifact)
	}

	emitOpts := generator.EmitOptions{DryRun: opts.DryRun, Overwrite: opts.Overwrite}
	for _, artifact := range artifacts {
		id := artifact.Definition.ID
		res, err := p.generator.Emit(artifact, emitOpts)
		if res != nil && res.Diff != "" && (opts.DryRun || res.Action == generator.ActionConflict) {
			_, _ = fmt.Fprint(a.stdout, res.Diff)
		}
		if err != nil {
			report.Failed(id, err)
			continue
		}
		message := string(res.Action) + " " + res.Path
		if res.DryRun {
			message += " (dry run)"
		}
		report.Succeeded(id, message)
	}
	return report, report.Err()
}

// BuildOptions configuration for the Build method.
type BuildOptions struct {
	// Workers bounds concurrent nodes. Zero uses the configured worker count.
	Workers int
	Resume  bool
	Fetch   bool
}

// Build runs the generated build definitions in dependency order. With refs only the
// referenced packages and their dependencies are built.
func (a *App) Build(ctx context.Context, refs []string, opts BuildOptions) (*domain.Report, error) {
	p, err := a.pipeline(ctx)
	if err != nil {
		return nil, err
	}

	graph, err := a.loadGraph(p, refs)
	if err != nil {
		return nil, err
	}
	if graph.Len() == 0 {
		a.logger.Warn("no build definitions found in " + p.cfg.Paths.Artifacts + ", run generate first")
		return domain.NewReport("build"), nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = p.cfg.Build.Workers
	}
	a.logger.Info("building " + strconv.Itoa(graph.Len()) + " packages with " + strconv.Itoa(workers) + " workers")

	return a.scheduler(p.cfg).Run(ctx, graph, scheduler.Options{
		Workers: workers,
		Resume:  opts.Resume,
		Fetch:   opts.Fetch,
	})
}

// Fetch downloads the sources of the referenced packages and their dependencies, or of every
// generated definition when refs is empty.
func (a *App) Fetch(ctx context.Context, refs []string) (*domain.Report, error) {
	p, err := a.pipeline(ctx)
	if err != nil {
		return nil, err
	}

	graph, err := a.loadGraph(p, refs)
	if err != nil {
		return nil, err
	}

	nodes := graph.TopologicalOrder()
	errs := make([]error, len(nodes))
	counts := make([]int, len(nodes))
	fetcher := a.sources(p.cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for i, node := range nodes {
		g.Go(func() error {
			paths, err := fetcher.Fetch(gctx, node.Definition)
			counts[i], errs[i] = len(paths), err
			// Failures stay per package so that the group never cancels the others.
			return nil
		})
	}
	_ = g.Wait()

	report := domain.NewReport("fetch")
	for i, node := range nodes {
		if errs[i] != nil {
			report.Failed(node.Key.String(), errs[i])
			continue
		}
		report.Succeeded(node.Key.String(), strconv.Itoa(counts[i])+" files")
	}
	return report, report.Err()
}

func (a *App) loadGraph(p *pipeline, refs []string) (*domain.BuildGraph, error) {
	defs, err := p.generator.Load()
	if err != nil {
		return nil, err
	}
	graph, err := domain.NewBuildGraph(defs)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to build dependency graph")
	}
	return graph.Select(refs)
}
