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
	"embed"
	"os"
	"path/filepath"
	"testing"
)

//go:embed testdata
var testfsys embed.FS

func parseFromTestDir(t *testing.T, filename string) *Config {
	name := filepath.Join("testdata", filename)
	b, err := testfsys.ReadFile(name)
	if err != nil {
		t.Fatalf("failed to read file %v: %v", name, err)
	}
	c, err := Parse(b)
	if err != nil {
		t.Fatalf("failed to parse file %v: %v", name, err)
	}
	return c
}

func TestCodeIdentifier_Matches_emptyMatchesAny(t *testing.T) {
	cid := compileRegexes(CodeIdentifier{})
	if !cid.Matches("a", "b", "c") {
		t.Errorf("empty code identifier should match anything")
	}
}

func TestCodeIdentifier_Matches_regexes(t *testing.T) {
	cid := compileRegexes(CodeIdentifier{Package: "(main)|(command-line-arguments)$", Method: "^Get"})
	if !cid.Matches("main", "", "GetX") {
		t.Errorf("%v should match main.GetX", cid)
	}
	if !cid.Matches("command-line-arguments", "T", "GetY") {
		t.Errorf("%v should match command-line-arguments.T.GetY", cid)
	}
	if cid.Matches("main", "", "SetX") {
		t.Errorf("%v should not match main.SetX", cid)
	}
}

func TestCodeIdentifier_Matches_plainStrings(t *testing.T) {
	// not a valid regex, fields are compared as strings
	cid := compileRegexes(CodeIdentifier{Package: "a(", Type: "T"})
	if !cid.Matches("a(", "T", "anything") {
		t.Errorf("%v should match its literal package", cid)
	}
	if cid.Matches("a", "T", "anything") {
		t.Errorf("%v should not match another package", cid)
	}
}

func TestNewDefault(t *testing.T) {
	c := NewDefault()
	if c.LogLevel != int(InfoLevel) {
		t.Errorf("default log level should be info, got %d", c.LogLevel)
	}
	if c.NumWorkers <= 0 {
		t.Errorf("default number of workers should be positive")
	}
	if len(c.EntryPoints) != 2 {
		t.Fatalf("expected two default entry points, got %d", len(c.EntryPoints))
	}
	for _, e := range c.EntryPoints {
		if !e.Register {
			t.Errorf("default entry point %v should be in register mode", e)
		}
	}
	if !c.EntryPoints[0].MatchesInterface([]string{"example.com/lib.Runnable"}) ||
		!c.EntryPoints[0].MatchesMethod("Run") {
		t.Errorf("first default entry point should match Runnable.Run")
	}
	if !c.EntryPoints[1].MatchesInterface([]string{"net/http.Handler"}) {
		t.Errorf("second default entry point should match http handlers")
	}
	if !c.IsTargetPackage("anything") {
		t.Errorf("without prefixes, every package is a target")
	}
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "does-not-exist.yaml"))
	if c != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load non existent file.")
	}
}

func TestLoadBadFormatFileReturnsError(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "bad-format.yaml"))
	if c != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load a badly formatted file.")
	}
}

func TestLoadBadRegexReturnsError(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "bad-regex.yaml"))
	if c != nil || err == nil {
		t.Errorf("Expected error and nil value when an exclude regex does not compile.")
	}
}

func TestLoadFullConfig(t *testing.T) {
	config, err := Load(filepath.Join("testdata", "full-config.yaml"))
	if config == nil || err != nil {
		t.Fatalf("Could not load full-config.yaml: %v", err)
	}
	if config.LogLevel != int(DebugLevel) {
		t.Error("full config should have set debug")
	}
	if config.NumWorkers != 2 {
		t.Error("full config should set two workers")
	}
	if !config.VerifyDominators {
		t.Error("full config should set verify-dominators")
	}
	if config.AgentPackage != DefaultAgentPackage {
		t.Error("agent package should default when not specified")
	}
	if config.RelPath("instrumented") != filepath.Join("testdata", "instrumented") {
		t.Errorf("RelPath should be relative to the config file, got %s", config.RelPath("instrumented"))
	}
	if !config.IsTargetClass("example.com/server", "Worker") {
		t.Error("Worker should be a target class")
	}
	if config.IsTargetClass("example.com/server", "Other") {
		t.Error("Other is not in the classes list")
	}
	if config.IsTargetPackage("example.com/server/gen") {
		t.Error("gen package is excluded")
	}
	if config.IsTargetPackage("example.com/client") {
		t.Error("client package does not have a target prefix")
	}
	if !config.IsMainPackage("example.com/server/cmd") {
		t.Error("cmd should be a main package")
	}
	if !config.IsIgnoredFieldType("sync.Mutex") || config.IsIgnoredFieldType("int") {
		t.Error("only sync types are ignored fields")
	}
	if len(config.EntryPoints) != 2 {
		t.Fatalf("full config should have two entry points, got %d", len(config.EntryPoints))
	}
	handle := config.EntryPoints[1]
	if handle.Register || !handle.MatchesMethod("HandleMessage") || !handle.MatchesInterface(nil) {
		t.Errorf("second entry point should match Handle* methods of any class without register: %v", handle)
	}
	if !config.IsTrivialCall("example.com/server/metrics", "", "Inc") {
		t.Error("metrics calls should be trivial")
	}
	if !config.IsMeaningfulCall("example.com/server/metrics", "Registry", "Flush") {
		t.Error("metrics Flush should be meaningful")
	}
}

func TestParseKeepsDefaultEntryPoints(t *testing.T) {
	config := parseFromTestDir(t, "no-entry-points.yaml")
	if len(config.EntryPoints) != len(DefaultEntryPoints()) {
		t.Errorf("config without entry points should use the defaults")
	}
	if config.ReportsDir != "reports" {
		t.Errorf("expected reports dir to be set")
	}
}

func TestLoadWithDumpCreatesReportsDir(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(name, []byte("dump-analysis-result: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	config, err := Load(name)
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if config.ReportsDir == "" {
		t.Fatalf("reports dir should be created when dumping the analysis result")
	}
	if _, err := os.Stat(config.ReportsDir); err != nil {
		t.Errorf("reports dir %s should exist: %v", config.ReportsDir, err)
	}
}
