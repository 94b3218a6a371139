// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"runtime"
	"strings"

	"github.com/statecraft/asmi/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the target selection, the entry point specifications and the call classification rules used
// to derive and instrument abstract state machines.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// PackagePrefixes restricts the classes analyzed to the packages whose path starts with one of the prefixes.
	// Calls into those packages are considered calls into the target program by the meaningful call filter.
	PackagePrefixes []string `yaml:"package-prefixes"`

	// ExcludePackages lists package regexes whose classes are never analyzed
	ExcludePackages []string `yaml:"exclude-packages"`

	// Classes is an explicit set of classes (qualified as pkgpath.Name) to analyze. When non-empty, only those
	// classes are analyzed.
	Classes []string `yaml:"classes"`

	// EntryPoints lists the procedures that are analyzed as state machines
	EntryPoints []EntryPointSpec `yaml:"entry-points"`

	// TrivialCalls are calls that never make a program region meaningful. They take precedence over the defaults.
	TrivialCalls []CodeIdentifier `yaml:"trivial-calls"`

	// MeaningfulCalls are calls that always make a program region meaningful. They take precedence over the
	// defaults and over TrivialCalls.
	MeaningfulCalls []CodeIdentifier `yaml:"meaningful-calls"`

	// MainPackages lists the packages whose main function receives the runtime agent initialization
	MainPackages []string `yaml:"main-packages"`

	// IgnoredFieldTypes are type regexes; fields whose type matches are not part of the concrete state
	IgnoredFieldTypes []string `yaml:"ignored-field-types"`

	excludeRegexes     []*regexp.Regexp
	ignoredFieldRegexs []*regexp.Regexp
}

// EntryPointSpec identifies the methods of a class that are entry points of a state machine.
// A class matches when it implements Interface (if specified) and declares a method matching Method.
type EntryPointSpec struct {
	// Interface is a regex over the qualified name of an interface the class must implement. Empty matches any
	// class.
	Interface string `yaml:"interface"`

	// Method is a regex over the method name
	Method string `yaml:"method"`

	// Register sets the register instrumentation mode: the entry is a long-running actor whose termination is
	// reported
	Register bool `yaml:"register"`

	interfaceRegex *regexp.Regexp
	methodRegex    *regexp.Regexp
}

// Options are the general options of the tool
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the yaml config file this config struct has
	// been loaded does not specify a ReportsDir but sets DumpAnalysisResult, then ReportsDir will be created
	// next to the config file.
	ReportsDir string `yaml:"reports-dir"`

	// DumpAnalysisResult writes the per-procedure abstract state counts to abstract_states.csv in the reports
	// directory
	DumpAnalysisResult bool `yaml:"dump-analysis-result"`

	// OutputDir is where instrumented source files are written
	OutputDir string `yaml:"output-dir"`

	// AgentPackage is the import path of the runtime agent receiving the state reports
	AgentPackage string `yaml:"agent-package"`

	// NumWorkers is the number of procedures analyzed in parallel. Values <= 0 default to the number of CPUs.
	NumWorkers int `yaml:"num-workers"`

	// VerifyDominators cross-checks every dominator tree against the Lengauer-Tarjan dominators
	VerifyDominators bool `yaml:"verify-dominators"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// LogFile redirects the logs to a rotated file
	LogFile string `yaml:"log-file"`
}

// NewDefault returns a default config: runnable run loops and http handlers are entry points in register mode.
func NewDefault() *Config {
	return &Config{
		sourceFile:  "",
		EntryPoints: DefaultEntryPoints(),
		Options: Options{
			ReportsDir:         "",
			DumpAnalysisResult: false,
			AgentPackage:       DefaultAgentPackage,
			NumWorkers:         runtime.NumCPU(),
			LogLevel:           int(InfoLevel),
		},
	}
}

// DefaultEntryPoints returns the entry point specifications used when the config file does not specify any
func DefaultEntryPoints() []EntryPointSpec {
	return compileEntryPoints([]EntryPointSpec{
		{Interface: RunnableInterface, Method: "^Run$", Register: true},
		{Interface: HandlerInterface, Method: "^ServeHTTP$", Register: true},
	})
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.sourceFile = filename

	if cfg.DumpAnalysisResult {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Parse reads a configuration from yaml contents
func Parse(b []byte) (*Config, error) {
	cfg := NewDefault()
	cfg.EntryPoints = nil
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}
	if len(cfg.EntryPoints) == 0 {
		cfg.EntryPoints = DefaultEntryPoints()
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = runtime.NumCPU()
	}
	if cfg.AgentPackage == "" {
		cfg.AgentPackage = DefaultAgentPackage
	}

	for _, p := range cfg.ExcludePackages {
		r, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude-packages regex %q: %w", p, err)
		}
		cfg.excludeRegexes = append(cfg.excludeRegexes, r)
	}
	for _, p := range cfg.IgnoredFieldTypes {
		r, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ignored-field-types regex %q: %w", p, err)
		}
		cfg.ignoredFieldRegexs = append(cfg.ignoredFieldRegexs, r)
	}

	cfg.EntryPoints = compileEntryPoints(cfg.EntryPoints)
	cfg.TrivialCalls = funcutil.Map(cfg.TrivialCalls, compileRegexes)
	cfg.MeaningfulCalls = funcutil.Map(cfg.MeaningfulCalls, compileRegexes)
	return cfg, nil
}

func compileEntryPoints(specs []EntryPointSpec) []EntryPointSpec {
	return funcutil.Map(specs, func(e EntryPointSpec) EntryPointSpec {
		if e.Interface != "" {
			if r, err := regexp.Compile(e.Interface); err == nil {
				e.interfaceRegex = r
			}
		}
		if r, err := regexp.Compile(e.Method); err == nil {
			e.methodRegex = r
		}
		return e
	})
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return fmt.Errorf("could not create directory %s", c.ReportsDir)
			}
		}
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// IsTargetPackage returns true if the package path is part of the analyzed program: it starts with one of the
// package prefixes (any package when no prefix is set) and is not excluded.
func (c Config) IsTargetPackage(pkgPath string) bool {
	if len(c.PackagePrefixes) > 0 && !funcutil.Exists(c.PackagePrefixes, func(p string) bool {
		return strings.HasPrefix(pkgPath, p)
	}) {
		return false
	}
	return !funcutil.Exists(c.excludeRegexes, func(r *regexp.Regexp) bool { return r.MatchString(pkgPath) })
}

// IsTargetClass returns true if the class named name in package pkgPath should be analyzed
func (c Config) IsTargetClass(pkgPath string, name string) bool {
	if !c.IsTargetPackage(pkgPath) {
		return false
	}
	if len(c.Classes) == 0 {
		return true
	}
	qualified := pkgPath + "." + name
	return funcutil.Exists(c.Classes, func(s string) bool { return s == qualified })
}

// IsMainPackage returns true if the main function of pkgPath should initialize the runtime agent
func (c Config) IsMainPackage(pkgPath string) bool {
	return funcutil.Exists(c.MainPackages, func(s string) bool { return s == pkgPath })
}

// IsIgnoredFieldType returns true if a field of type typ is never part of the concrete state
func (c Config) IsIgnoredFieldType(typ string) bool {
	return funcutil.Exists(c.ignoredFieldRegexs, func(r *regexp.Regexp) bool { return r.MatchString(typ) })
}

// IsTrivialCall returns true if a call matches a trivial call rule of the config
func (c Config) IsTrivialCall(pkg, typ, method string) bool {
	return ExistsCid(c.TrivialCalls, func(cid CodeIdentifier) bool { return cid.Matches(pkg, typ, method) })
}

// IsMeaningfulCall returns true if a call matches a meaningful call rule of the config
func (c Config) IsMeaningfulCall(pkg, typ, method string) bool {
	return ExistsCid(c.MeaningfulCalls, func(cid CodeIdentifier) bool { return cid.Matches(pkg, typ, method) })
}

// MatchesInterface returns true if one of the interfaces matches the spec's interface regex. A spec without
// interface matches any list, including the empty one.
func (e EntryPointSpec) MatchesInterface(interfaces []string) bool {
	if e.Interface == "" {
		return true
	}
	return funcutil.Exists(interfaces, func(s string) bool {
		if e.interfaceRegex != nil {
			return e.interfaceRegex.MatchString(s)
		}
		return s == e.Interface
	})
}

// MatchesMethod returns true if the method name matches the spec's method regex
func (e EntryPointSpec) MatchesMethod(name string) bool {
	if e.methodRegex != nil {
		return e.methodRegex.MatchString(name)
	}
	return e.Method == name
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}
