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

// Version is the version of the asmi tools
const Version = "v0.1.0"

const (
	// DefaultAgentPackage is the import path of the runtime agent inserted in instrumented sources
	DefaultAgentPackage = "github.com/statecraft/asmi/agent"
	// RunnableInterface matches interfaces with a Run method used as goroutine bodies
	RunnableInterface = `(^|\.)Runnable$`
	// HandlerInterface matches the net/http handler interface
	HandlerInterface = `^net/http\.Handler$`
	// AnalysisResultFile is the name of the csv file produced when DumpAnalysisResult is set
	AnalysisResultFile = "abstract_states.csv"
)
