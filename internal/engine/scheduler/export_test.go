package scheduler

import "go.trai.ch/lpkg/internal/core/domain"

// NodeDir exposes nodeDir for testing.
func NodeDir(root string, key domain.NodeKey) string {
	return nodeDir(root, key)
}

// EnvironList exposes environList for testing.
func EnvironList(env map[string]string) []string {
	return environList(env)
}

// StageSources exposes stageSources for testing.
func (s *Scheduler) StageSources(def *domain.BuildDefinition, workDir string) error {
	return s.stageSources(def, workDir)
}
