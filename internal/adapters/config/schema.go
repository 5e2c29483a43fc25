package config

// Lpkgfile represents the structure of the lpkg.yaml configuration file.
type Lpkgfile struct {
	Version   string             `yaml:"version"`
	Paths     PathsDTO           `yaml:"paths"`
	Manifests ManifestsDTO       `yaml:"manifests"`
	Books     map[string]BookDTO `yaml:"books"`
	Build     BuildDTO           `yaml:"build"`
	Mirrors   MirrorsDTO         `yaml:"mirrors"`
	Store     StoreDTO           `yaml:"store"`
}

// PathsDTO lists the pipeline directories. Relative paths are resolved against the config file's directory.
type PathsDTO struct {
	Metadata  string `yaml:"metadata"`
	Artifacts string `yaml:"artifacts"`
	Cache     string `yaml:"cache"`
	State     string `yaml:"state"`
	Work      string `yaml:"work"`
	Logs      string `yaml:"logs"`
	Sources   string `yaml:"sources"`
}

// ManifestsDTO configures the manifest cache.
type ManifestsDTO struct {
	MaxAge          string `yaml:"max_age"`
	FallbackToCache *bool  `yaml:"fallback_to_cache"`
}

// BookDTO describes a book. Fields left empty keep their built-in default.
type BookDTO struct {
	Release  string `yaml:"release"`
	BaseURL  string `yaml:"base_url"`
	PageBase string `yaml:"page_base"`
	WgetList string `yaml:"wget_list"`
	MD5Sums  string `yaml:"md5sums"`
}

// BuildDTO configures the build executor.
type BuildDTO struct {
	Workers      int               `yaml:"workers"`
	Shell        string            `yaml:"shell"`
	PhaseTimeout string            `yaml:"phase_timeout"`
	KillGrace    string            `yaml:"kill_grace"`
	Env          map[string]string `yaml:"env"`
}

// MirrorsDTO configures download mirrors.
type MirrorsDTO struct {
	GNU string `yaml:"gnu"`
}

// StoreDTO selects the record store backend.
type StoreDTO struct {
	Backend  string `yaml:"backend"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}
