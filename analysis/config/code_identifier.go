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

import "regexp"

// A CodeIdentifier identifies a code element: a called function or method, a field type or an interface.
// A code identifier can be identified from its package, type or method, or any combination of those.
// Each non-empty string is treated as a regex if it compiles to one, otherwise as a plain string.
type CodeIdentifier struct {
	Package string `yaml:"package"`
	Type    string `yaml:"type"`
	Method  string `yaml:"method"`
	// This will not be part of the yaml config
	computedRegexs *codeIdentifierRegex
}

type codeIdentifierRegex struct {
	packageRegex *regexp.Regexp
	typeRegex    *regexp.Regexp
	methodRegex  *regexp.Regexp
}

// compileRegexes compiles the strings in the code identifier into regexes. It compiles all identifiers into regexes
// or none.
func compileRegexes(cid CodeIdentifier) CodeIdentifier {
	packageRegex, err := regexp.Compile(cid.Package)
	if err != nil {
		return cid
	}
	typeRegex, err := regexp.Compile(cid.Type)
	if err != nil {
		return cid
	}
	methodRegex, err := regexp.Compile(cid.Method)
	if err != nil {
		return cid
	}
	cid.computedRegexs = &codeIdentifierRegex{
		packageRegex: packageRegex,
		typeRegex:    typeRegex,
		methodRegex:  methodRegex,
	}
	return cid
}

// Matches returns true if each of the non-empty fields of cid matches the corresponding argument.
// An empty field in cid matches anything.
func (cid CodeIdentifier) Matches(pkg, typ, method string) bool {
	if cid.computedRegexs != nil {
		return (cid.Package == "" || cid.computedRegexs.packageRegex.MatchString(pkg)) &&
			(cid.Type == "" || cid.computedRegexs.typeRegex.MatchString(typ)) &&
			(cid.Method == "" || cid.computedRegexs.methodRegex.MatchString(method))
	}
	return (cid.Package == "" || cid.Package == pkg) &&
		(cid.Type == "" || cid.Type == typ) &&
		(cid.Method == "" || cid.Method == method)
}

// ExistsCid is true if there is some x in a such that f(x) is true.
func ExistsCid(a []CodeIdentifier, f func(identifier CodeIdentifier) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}
