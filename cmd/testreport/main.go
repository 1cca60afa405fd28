// Command testreport merges `go test -json` output with the annotations in
// test doc comments (TestPurpose, Scope, Security, Expected, Test Case ID)
// and writes JSON and Markdown reports.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const modulePath = "github.com/opentrusty/tenantry/"

// Annotation holds what a test's doc comment declares about it
type Annotation struct {
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Category   string `json:"category"`
}

// goTestEvent is one line of `go test -json`
type goTestEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

// Result is the merged outcome of one test
type Result struct {
	Name        string     `json:"name"`
	Package     string     `json:"package"`
	Status      string     `json:"status"`
	Elapsed     float64    `json:"elapsed_seconds"`
	Failure     string     `json:"failure_reason,omitempty"`
	Annotations Annotation `json:"annotations"`
}

// Report is the full document written to disk
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Results     []Result  `json:"results"`
}

func main() {
	inputPath := flag.String("input", "", "Path to go test -json output file")
	outputJSON := flag.String("out-json", "", "Path for output JSON report")
	outputMD := flag.String("out-md", "", "Path for output Markdown report")
	root := flag.String("root", ".", "Repository root to scan for annotations")
	title := flag.String("title", "Test Report", "Report title")
	flag.Parse()

	if *inputPath == "" || *outputJSON == "" || *outputMD == "" {
		fmt.Fprintln(os.Stderr, "Usage: testreport -input <json_file> -out-json <out_json> -out-md <out_md>")
		os.Exit(2)
	}

	annotations, err := scanAnnotations(os.DirFS(*root))
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan annotations: %v\n", err)
		os.Exit(1)
	}

	in, err := os.Open(*inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open test output: %v\n", err)
		os.Exit(1)
	}
	results, err := mergeResults(in, annotations)
	in.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read test output: %v\n", err)
		os.Exit(1)
	}

	report := summarize(results, time.Now())
	if err := writeJSON(report, *outputJSON); err != nil {
		fmt.Fprintf(os.Stderr, "write json: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outputMD, []byte(renderMarkdown(report, *title)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write markdown: %v\n", err)
		os.Exit(1)
	}

	// Non-zero exit keeps CI gates honest
	if report.Failed > 0 {
		fmt.Printf("%d tests failed\n", report.Failed)
		os.Exit(1)
	}
}

// scanAnnotations parses every _test.go under fsys and indexes the doc
// comment annotations by "<package>.<TestName>".
func scanAnnotations(fsys fs.FS) (map[string]Annotation, error) {
	out := make(map[string]Annotation)
	fset := token.NewFileSet()

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != "." && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "vendor") {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}

		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
		if err != nil {
			return nil
		}

		pkg := packagePath(path)
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			a := parseDoc(fn.Doc)
			a.Category = category(pkg)
			out[pkg+"."+fn.Name.Name] = a
		}
		return nil
	})
	return out, err
}

func parseDoc(doc *ast.CommentGroup) Annotation {
	var a Annotation
	if doc == nil {
		return a
	}
	fields := map[string]*string{
		"TestPurpose:":  &a.Purpose,
		"Scope:":        &a.Scope,
		"Security:":     &a.Security,
		"Expected:":     &a.Expected,
		"Test Case ID:": &a.TestCaseID,
	}
	for _, line := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(line.Text, "//"))
		for prefix, dst := range fields {
			if rest, ok := strings.CutPrefix(text, prefix); ok {
				*dst = strings.TrimSpace(rest)
			}
		}
	}
	return a
}

func packagePath(file string) string {
	dir := filepath.ToSlash(filepath.Dir(file))
	if dir == "." {
		return strings.TrimSuffix(modulePath, "/")
	}
	return modulePath + dir
}

func category(pkg string) string {
	rel := strings.TrimPrefix(pkg, modulePath)
	switch {
	case strings.HasPrefix(rel, "internal/transport/http"):
		return "API"
	case strings.HasPrefix(rel, "internal/store/"):
		return "Storage"
	case strings.HasPrefix(rel, "internal/tenant"), strings.HasPrefix(rel, "internal/collection"):
		return "Tenant"
	case strings.HasPrefix(rel, "internal/access"), strings.HasPrefix(rel, "internal/auth"):
		return "Access"
	case strings.HasPrefix(rel, "internal/audit"):
		return "Audit"
	}
	return "Other"
}

// mergeResults folds test events into per-test results. Subtests inherit
// their parent's annotations.
func mergeResults(r io.Reader, annotations map[string]Annotation) ([]Result, error) {
	states := make(map[string]*Result)
	for key, a := range annotations {
		pkg, name := splitKey(key)
		states[key] = &Result{Name: name, Package: pkg, Status: "not run", Annotations: a}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev goTestEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}

		key := ev.Package + "." + ev.Test
		res, ok := states[key]
		if !ok {
			parent, _, _ := strings.Cut(ev.Test, "/")
			a, found := annotations[ev.Package+"."+parent]
			if !found {
				a = Annotation{Category: category(ev.Package)}
			}
			res = &Result{Name: ev.Test, Package: ev.Package, Annotations: a}
			states[key] = res
		}

		switch ev.Action {
		case "pass", "fail":
			res.Status = ev.Action
			res.Elapsed = ev.Elapsed
		case "skip":
			res.Status = "skip"
		case "output":
			if res.Status == "fail" || res.Status == "" || res.Status == "not run" {
				res.Failure += ev.Output
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	list := make([]Result, 0, len(states))
	for _, res := range states {
		if res.Status != "fail" {
			res.Failure = ""
		}
		list = append(list, *res)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Package != list[j].Package {
			return list[i].Package < list[j].Package
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func splitKey(key string) (pkg, name string) {
	i := strings.LastIndex(key, ".")
	return key[:i], key[i+1:]
}

func summarize(results []Result, now time.Time) Report {
	report := Report{GeneratedAt: now, Results: results}
	for _, r := range results {
		report.Total++
		switch r.Status {
		case "pass":
			report.Passed++
		case "fail":
			report.Failed++
		case "skip":
			report.Skipped++
		}
	}
	return report
}

func writeJSON(report Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func renderMarkdown(report Report, title string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Tenantry %s\n\n", title)
	fmt.Fprintf(&sb, "**Generated:** %s  \n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	status := "PASSED"
	if report.Failed > 0 {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "**Status:** %s\n\n", status)

	sb.WriteString("| Total | Passed | Failed | Skipped |\n")
	sb.WriteString("|-------|--------|--------|---------|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d |\n\n", report.Total, report.Passed, report.Failed, report.Skipped)

	byCategory := make(map[string][]Result)
	for _, r := range report.Results {
		byCategory[r.Annotations.Category] = append(byCategory[r.Annotations.Category], r)
	}

	for _, cat := range []string{"Tenant", "Access", "API", "Storage", "Audit", "Other"} {
		tests := byCategory[cat]
		if len(tests) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n", cat)
		sb.WriteString("| ID | Test | Status | Purpose | Security |\n")
		sb.WriteString("|----|------|--------|---------|----------|\n")
		for _, t := range tests {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				t.Annotations.TestCaseID, t.Name, t.Status, t.Annotations.Purpose, t.Annotations.Security)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
