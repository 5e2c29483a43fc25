// Package scheduler implements the build executor that runs a build graph.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/zerr"
)

// Config holds the filesystem layout and environment the scheduler runs nodes with.
type Config struct {
	WorkDir    string
	LogsDir    string
	SourcesDir string
	Env        map[string]string
}

// Options controls a single run.
type Options struct {
	// Workers bounds the number of nodes running at once. Zero uses runtime.NumCPU().
	Workers int
	// Resume skips the completed phases of nodes whose definition did not change.
	Resume bool
	// Fetch downloads the sources of every node before its first phase.
	Fetch bool
}

// Scheduler manages the execution of the nodes of a build graph.
type Scheduler struct {
	executor  ports.Executor
	store     ports.StateStore
	hasher    ports.Hasher
	telemetry ports.Telemetry
	logger    ports.Logger
	sources   ports.SourceFetcher
	config    Config

	mu     sync.RWMutex
	status map[domain.NodeKey]domain.NodeStatus
}

// NewScheduler creates a new Scheduler. The source fetcher may be nil when Options.Fetch is never set.
func NewScheduler(
	executor ports.Executor,
	store ports.StateStore,
	hasher ports.Hasher,
	telemetry ports.Telemetry,
	logger ports.Logger,
	sources ports.SourceFetcher,
	config Config,
) *Scheduler {
	return &Scheduler{
		executor:  executor,
		store:     store,
		hasher:    hasher,
		telemetry: telemetry,
		logger:    logger,
		sources:   sources,
		config:    config,
		status:    make(map[domain.NodeKey]domain.NodeStatus),
	}
}

// Status returns the current state of a node.
func (s *Scheduler) Status(key domain.NodeKey) domain.NodeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status[key]
}

func (s *Scheduler) initStatuses(graph *domain.BuildGraph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.status)
	for node := range graph.Walk() {
		s.status[node.Key] = domain.StatusPending
	}
}

// transition moves a node to next when the state machine allows it.
func (s *Scheduler) transition(key domain.NodeKey, next domain.NodeStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status[key].CanTransition(next) {
		return false
	}
	s.status[key] = next
	return true
}

// Run executes every node of the graph. A node starts only once all of its dependencies
// succeeded; nodes downstream of a failure are skipped while independent branches continue.
// The report lists every node in execution order.
func (s *Scheduler) Run(ctx context.Context, graph *domain.BuildGraph, opts Options) (*domain.Report, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Fetch && s.sources == nil {
		return nil, zerr.New("source fetching requested without a source fetcher")
	}

	s.initStatuses(graph)
	state := s.newRunState(ctx, graph, opts)
	state.runExecutionLoop()

	return state.report(), state.err()
}

type result struct {
	key     domain.NodeKey
	err     error
	message string
}

type schedulerRunState struct {
	s        *Scheduler
	ctx      context.Context
	graph    *domain.BuildGraph
	opts     Options
	inDegree map[domain.NodeKey]int
	ready    []domain.NodeKey
	active   int

	resultsCh chan result
	results   map[domain.NodeKey]result
	errs      error
}

func (s *Scheduler) newRunState(ctx context.Context, graph *domain.BuildGraph, opts Options) *schedulerRunState {
	state := &schedulerRunState{
		s:         s,
		ctx:       ctx,
		graph:     graph,
		opts:      opts,
		inDegree:  make(map[domain.NodeKey]int, graph.Len()),
		resultsCh: make(chan result, opts.Workers),
		results:   make(map[domain.NodeKey]result, graph.Len()),
	}

	// Walk yields nodes in ascending order among ready nodes, so ready starts sorted.
	for node := range graph.Walk() {
		state.inDegree[node.Key] = len(node.Dependencies)
		if len(node.Dependencies) == 0 {
			state.ready = append(state.ready, node.Key)
		}
	}
	return state
}

func (state *schedulerRunState) runExecutionLoop() {
	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		if state.ctx.Err() != nil && state.active == 0 {
			break
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
			// Running nodes observe the cancellation through their context.
			// Keep draining results until they have all returned.
			if state.active > 0 {
				state.handleResult(<-state.resultsCh)
			}
		}
	}

	if err := state.ctx.Err(); err != nil {
		state.errs = errors.Join(state.errs, err)
		for node := range state.graph.Walk() {
			state.skip(node.Key, "build canceled")
		}
	}
}

func (state *schedulerRunState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *schedulerRunState) schedule() {
	for len(state.ready) > 0 && state.active < state.opts.Workers && state.ctx.Err() == nil {
		key := state.ready[0]
		state.ready = state.ready[1:]

		if !state.s.transition(key, domain.StatusRunning) {
			continue
		}
		state.active++

		node, _ := state.graph.Node(key)
		go func() {
			state.resultsCh <- state.executeNode(node)
		}()
	}
}

func (state *schedulerRunState) handleResult(res result) {
	state.active--
	state.results[res.key] = res

	if res.err != nil {
		state.s.transition(res.key, domain.StatusFailed)
		state.errs = errors.Join(state.errs, zerr.With(res.err, "node", res.key.String()))
		state.skipDependents(res.key, "dependency "+res.key.String()+" failed")
		return
	}

	state.s.transition(res.key, domain.StatusSucceeded)
	for _, dep := range state.graph.Dependents(res.key) {
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 && state.s.Status(dep) == domain.StatusPending {
			pos, _ := slices.BinarySearchFunc(state.ready, dep, domain.NodeKey.Compare)
			state.ready = slices.Insert(state.ready, pos, dep)
		}
	}
}

// skipDependents marks every transitive dependent of key as skipped.
func (state *schedulerRunState) skipDependents(key domain.NodeKey, reason string) {
	for _, dep := range state.graph.Dependents(key) {
		if state.skip(dep, reason) {
			state.skipDependents(dep, "dependency "+dep.String()+" was skipped")
		}
	}
}

func (state *schedulerRunState) skip(key domain.NodeKey, reason string) bool {
	if !state.s.transition(key, domain.StatusSkipped) {
		return false
	}
	state.results[key] = result{key: key, message: reason}
	return true
}

func (state *schedulerRunState) report() *domain.Report {
	report := domain.NewReport("build")
	for node := range state.graph.Walk() {
		res := state.results[node.Key]
		switch state.s.Status(node.Key) {
		case domain.StatusSucceeded:
			report.Succeeded(node.Key.String(), res.message)
		case domain.StatusFailed:
			report.Failed(node.Key.String(), res.err)
		default:
			report.Skipped(node.Key.String(), res.message)
		}
	}
	return report
}

func (state *schedulerRunState) err() error {
	if state.errs == nil {
		return nil
	}
	return errors.Join(domain.ErrBuildExecutionFailed, state.errs)
}

// executeNode runs the phases of one node and records its progress after every phase.
func (state *schedulerRunState) executeNode(node *domain.BuildGraphNode) result {
	s := state.s
	def := node.Definition
	key := node.Key

	ctx, vertex := s.telemetry.Record(state.ctx, key.String())
	res := state.runPhases(ctx, node, vertex)
	if res.message == msgCached {
		vertex.Cached()
	} else {
		vertex.Complete(res.err)
	}
	if res.err != nil {
		res.err = zerr.With(res.err, "id", def.ID)
	}
	return res
}

const msgCached = "up to date"

func (state *schedulerRunState) runPhases(ctx context.Context, node *domain.BuildGraphNode, vertex ports.Vertex) result {
	s := state.s
	def := node.Definition
	key := node.Key

	workDir := nodeDir(s.config.WorkDir, key)
	env := s.nodeEnvironment(def, workDir)
	hash := s.hasher.DefinitionHash(def, env)

	start, err := state.resumePoint(key, hash)
	if err != nil {
		return result{key: key, err: err}
	}
	if start >= len(def.Phases) && start > 0 {
		s.logger.Info(key.String() + " is up to date")
		return result{key: key, message: msgCached}
	}
	if start > 0 {
		s.logger.Info(fmt.Sprintf("%s: resuming at phase %d of %d", key, start+1, len(def.Phases)))
	}

	if state.opts.Fetch {
		if _, err := s.sources.Fetch(ctx, def); err != nil {
			return result{key: key, err: err}
		}
	}

	if err := os.MkdirAll(workDir, domain.DirPerm); err != nil {
		return result{key: key, err: zerr.With(zerr.Wrap(err, "failed to create work directory"), "path", workDir)}
	}
	if err := s.stageSources(def, workDir); err != nil {
		return result{key: key, err: err}
	}

	envList := environList(env)
	buildState := domain.BuildState{Node: key.String(), DefinitionHash: hash, LastPhase: start - 1}
	if start == 0 {
		buildState.LastPhase = domain.NoPhase
	}

	for i := start; i < len(def.Phases); i++ {
		phase := &def.Phases[i]
		s.logger.Info(fmt.Sprintf("%s: %s (phase %d of %d)", key, phase.Kind, i+1, len(def.Phases)))

		if err := state.runPhase(ctx, key, i, phase, workDir, envList, vertex); err != nil {
			buildState.Status = domain.StatusFailed
			return result{key: key, err: errors.Join(err, state.saveState(buildState))}
		}

		buildState.LastPhase = i
		buildState.Status = domain.StatusRunning
		if err := state.saveState(buildState); err != nil {
			return result{key: key, err: err}
		}
	}

	buildState.Status = domain.StatusSucceeded
	if err := state.saveState(buildState); err != nil {
		return result{key: key, err: err}
	}

	switch {
	case len(def.Phases) == 0:
		return result{key: key, message: "no phases"}
	case start > 0:
		return result{key: key, message: fmt.Sprintf("resumed, %d of %d phases run", len(def.Phases)-start, len(def.Phases))}
	default:
		return result{key: key, message: strconv.Itoa(len(def.Phases)) + " phases"}
	}
}

// resumePoint returns the index of the first phase to run.
func (state *schedulerRunState) resumePoint(key domain.NodeKey, hash string) (int, error) {
	if !state.opts.Resume {
		return 0, nil
	}
	prev, err := state.s.store.Get(key.String())
	if err != nil {
		return 0, err
	}
	if prev == nil || prev.DefinitionHash != hash {
		return 0, nil
	}
	if prev.Status == domain.StatusSucceeded {
		// Every phase completed, including nodes without phases.
		return max(prev.LastPhase+1, 1), nil
	}
	return prev.LastPhase + 1, nil
}

func (state *schedulerRunState) saveState(buildState domain.BuildState) error {
	buildState.Timestamp = time.Now().UTC()
	return state.s.store.Put(buildState)
}

// runPhase executes one phase with its output captured to a log file and the telemetry vertex.
func (state *schedulerRunState) runPhase(
	ctx context.Context,
	key domain.NodeKey,
	index int,
	phase *domain.Phase,
	workDir string,
	env []string,
	vertex ports.Vertex,
) error {
	logPath := filepath.Join(nodeDir(state.s.config.LogsDir, key), fmt.Sprintf("%02d-%s.log", index+1, phase.Kind))
	if err := os.MkdirAll(filepath.Dir(logPath), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create log directory"), "path", logPath)
	}
	logFile, err := os.Create(logPath) //nolint:gosec // Path is derived from configuration
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create phase log"), "path", logPath)
	}
	defer logFile.Close() //nolint:errcheck // Output errors surface through Execute

	stdout := io.MultiWriter(logFile, vertex.Stdout())
	stderr := io.MultiWriter(logFile, vertex.Stderr())

	if err := state.s.executor.Execute(ctx, phase, workDir, env, stdout, stderr); err != nil {
		return zerr.With(err, "log", logPath)
	}
	return nil
}
