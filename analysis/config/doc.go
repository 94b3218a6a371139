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

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type, and the options are inlined at the top level.
For example, a valid config file is as follows:

	log-level: 4
	package-prefixes:
	  - example.com/server
	entry-points:
	  - interface: Runnable$
	    method: ^Run$
	    register: true
	  - method: ^Handle
	trivial-calls:
	  - package: example.com/server/metrics

# Identifying code elements

The call classification rules use [CodeIdentifier] to identify specific functions in specific packages, or
methods of specific types. The string specifications are seen as regexes if they can be compiled to regexes,
otherwise they are strings.

# Entry points

When no entry point is given, methods named Run of classes implementing an interface named Runnable, and ServeHTTP
methods of net/http handlers are analyzed, both in register mode.
*/
package config
