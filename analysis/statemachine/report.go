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

package statemachine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/statecraft/asmi/analysis/config"
)

// CSVHeader is the first line of the analysis result file
const CSVHeader = "class,method,asv,csv"

// WriteCSV writes the header and one line per row. The method is always quoted.
func WriteCSV(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(bw, "%s,\"%s\",%d,%d\n", r.Class, r.Method, r.ASV, r.CSV); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DumpCSV writes the rows to the analysis result file of the reports directory of c and returns its path
func DumpCSV(c *config.Config, rows []Row) (string, error) {
	dir := c.ReportsDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("could not create reports directory: %w", err)
	}
	filename := filepath.Join(dir, config.AnalysisResultFile)
	f, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("could not create %s: %w", filename, err)
	}
	defer f.Close()
	if err := WriteCSV(f, rows); err != nil {
		return "", fmt.Errorf("could not write %s: %w", filename, err)
	}
	return filename, nil
}

// WriteTable renders the rows and the aggregate of their counts as a table
func WriteTable(w io.Writer, rows []Row) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Class", "Method", "ASV", "CSV", "Loops", "Register"})
	counts := make([]int, 0, len(rows))
	for _, r := range rows {
		table.Append([]string{
			r.Class,
			r.Method,
			strconv.Itoa(r.ASV),
			strconv.Itoa(r.CSV),
			strconv.Itoa(r.Loops),
			strconv.FormatBool(r.Register),
		})
		counts = append(counts, r.ASV)
	}
	s := Aggregate(counts)
	table.SetFooter([]string{"", "Total", strconv.Itoa(s.Total), fmt.Sprintf("mean %.2f", s.Mean), "", ""})
	table.Render()
}
