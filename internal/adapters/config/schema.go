package config

// Locusfile represents the structure of the locus.yaml configuration file.
type Locusfile struct {
	Ignore  []string `yaml:"ignore"`
	Cached  []string `yaml:"cached"`
	Updated []string `yaml:"updated"`
	Bundles []string `yaml:"bundles"`
	Matcher string   `yaml:"matcher"`
	Cache   string   `yaml:"cache"`
}
