package commands_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/lpkg/cmd/lpkg/commands"
	"go.trai.ch/lpkg/internal/adapters/fs"
	"go.trai.ch/lpkg/internal/adapters/logger"
	"go.trai.ch/lpkg/internal/adapters/store"
	"go.trai.ch/lpkg/internal/adapters/telemetry"
	"go.trai.ch/lpkg/internal/app"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	cli    *commands.CLI
	out    *bytes.Buffer
	logs   *bytes.Buffer
	loader *mocks.MockConfigLoader
	cfg    *domain.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	ctrl := gomock.NewController(t)
	root := t.TempDir()

	cfg := &domain.Config{
		Root: root,
		Paths: domain.Paths{
			Metadata:  filepath.Join(root, "metadata"),
			Artifacts: filepath.Join(root, "build", "definitions"),
			Cache:     filepath.Join(root, ".lpkg", "cache"),
			State:     filepath.Join(root, ".lpkg", "state"),
			Work:      filepath.Join(root, "build", "work"),
			Logs:      filepath.Join(root, "build", "logs"),
			Sources:   filepath.Join(root, "build", "sources"),
		},
		Books: map[string]domain.Book{
			"lfs": {Name: "lfs", Release: "12.1", BaseURL: "https://lfs.invalid/view/{release}", WgetList: "wget-list"},
		},
		Build: domain.BuildSettings{Workers: 1, Shell: "/bin/sh"},
		Store: domain.StoreSettings{Backend: domain.StoreFS},
	}

	loader := mocks.NewMockConfigLoader(ctrl)
	log := logger.New()
	logs := &bytes.Buffer{}
	log.(*logger.Logger).SetOutput(logs)

	a := app.New(loader, log, mocks.NewMockFetcher(ctrl), fs.NewHasher(), telemetry.NewNoOp(), fs.NewWalker())
	cli := commands.New(a, log)
	out := &bytes.Buffer{}
	cli.SetOutput(out)

	return &fixture{cli: cli, out: out, logs: logs, loader: loader, cfg: cfg}
}

func (f *fixture) run(args ...string) error {
	f.cli.SetArgs(args)
	return f.cli.Execute(context.Background())
}

func (f *fixture) put(t *testing.T, record *domain.PackageRecord) {
	t.Helper()
	s := store.NewFileStore(f.cfg.Paths.Metadata, fs.NewWalker())
	require.NoError(t, s.Put(context.Background(), record.ID(), record))
}

func zlib(state domain.RecordState) *domain.PackageRecord {
	return &domain.PackageRecord{
		SchemaVersion: domain.SchemaVersion,
		Package: domain.PackageInfo{
			ID:      "lfs/zlib",
			Name:    "Zlib",
			Version: "1.3.1",
			Book:    "lfs",
			Chapter: 8,
		},
		Source: domain.Source{
			URLs: []domain.SourceURL{{URL: "https://zlib.net/zlib-1.3.1.tar.gz", Kind: domain.URLPrimary}},
		},
		Dependencies: domain.Dependencies{Build: []string{}, Runtime: []string{}},
		Build: []domain.Phase{
			{Kind: domain.PhaseConfigure, Commands: []string{"./configure --prefix=/usr"}},
			{Kind: domain.PhaseBuild, Commands: []string{"make", "make install"}},
		},
		Status: domain.Status{State: state, Issues: []domain.Issue{}},
	}
}

func TestVersion(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run("version"))
	assert.Contains(t, f.out.String(), "lpkg version dev")
}

func TestValidate_Promote(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(".", "custom.yaml").Return(f.cfg, nil)
	f.put(t, zlib(domain.StateDraft))

	require.NoError(t, f.run("-c", "custom.yaml", "validate", "--promote", "lfs"))

	assert.Equal(t, "validate\n  ✓ lfs/zlib  ready\n1 succeeded, 0 soft-issue, 0 failed\n", f.out.String())
	assert.Contains(t, f.logs.String(), "lfs/zlib is now ready")
}

func TestGenerate_DryRun(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(".", "").Return(f.cfg, nil)
	f.put(t, zlib(domain.StateReady))

	require.NoError(t, f.run("generate", "--dry-run", "lfs/zlib"))

	out := f.out.String()
	assert.Contains(t, out, "+# Code generated by lpkg. DO NOT EDIT.")
	assert.Contains(t, out, "+phase \"install\" {")
	assert.Contains(t, out, "✓ lfs/zlib  created ")
	assert.NoFileExists(t, filepath.Join(f.cfg.Paths.Artifacts, "lfs", "zl", "zlib", domain.ArtifactFileName))
}

func TestGenerate_NotReadyIsFatal(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(".", "").Return(f.cfg, nil)
	f.put(t, zlib(domain.StateDraft))

	err := f.run("generate", "lfs/zlib")
	require.ErrorIs(t, err, domain.ErrNotReady)
	assert.Empty(t, f.out.String())
}

func TestBuild(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(".", "").Return(f.cfg, nil).Times(2)
	record := zlib(domain.StateReady)
	record.Build = []domain.Phase{{Kind: domain.PhaseBuild, Commands: []string{"echo built"}}}
	f.put(t, record)

	require.NoError(t, f.run("generate"))
	f.out.Reset()

	require.NoError(t, f.run("build", "-j", "1", "lfs/zlib"))
	assert.Contains(t, f.out.String(), "✓ lfs/zlib")
	assert.Contains(t, f.out.String(), "1 succeeded, 0 soft-issue, 0 failed")
}

func TestIndex_Compact(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(".", "").Return(f.cfg, nil)
	f.put(t, zlib(domain.StateReady))

	require.NoError(t, f.run("index", "--compact"))
	assert.Contains(t, f.out.String(), "→ 1 packages")
	assert.FileExists(t, filepath.Join(f.cfg.Paths.Metadata, domain.IndexFileName))
}

func TestHarvest_RequiresPages(t *testing.T) {
	f := newFixture(t)

	err := f.run("harvest", "lfs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 2 arg(s)")
}

func TestLogJSON(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(".", "").Return(f.cfg, nil)
	f.put(t, zlib(domain.StateDraft))

	require.NoError(t, f.run("--log-json", "validate", "--promote"))
	assert.Contains(t, f.logs.String(), `"msg":"lfs/zlib is now ready"`)
}
