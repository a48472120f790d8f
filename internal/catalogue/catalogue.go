// Package catalogue holds the read-only runtime catalogue: the mapping
// from a language's runtime key to the command templates and defaults
// needed to compile and run it. Adding a language is a data change to
// the table below, not a code change anywhere else in the pipeline.
package catalogue

import "github.com/codeexec/engine/internal/domain"

// Descriptor is the static, install-time definition of one runtime.
// It never mutates after the catalogue is built.
type Descriptor struct {
	RuntimeKey           string
	FileName             string
	CompileCmdTemplate   string // empty when the runtime needs no compile step; {{src}}/{{bin}}/{{bindir}} substituted
	RunCmdTemplate       string // {{src}}/{{bin}}/{{bindir}} substituted
	DefaultTimeLimitMs   int
	DefaultMemoryLimitMB int
}

// Catalogue is the closed set of supported runtimes, keyed by runtime key.
type Catalogue struct {
	descriptors map[string]Descriptor
}

// Default builds the catalogue shipped with the service. It is the
// single source of truth for which runtime keys are supported; the
// Runner's dispatch reads from it, and `codeexec migrate` seeds the
// languages table that the HTTP /languages surface reads from it.
func Default() *Catalogue {
	c := &Catalogue{descriptors: make(map[string]Descriptor)}
	for _, d := range []Descriptor{
		{
			RuntimeKey:           "python",
			FileName:             "main.py",
			RunCmdTemplate:       "python3 {{src}}",
			DefaultTimeLimitMs:   5000,
			DefaultMemoryLimitMB: 256,
		},
		{
			RuntimeKey:           "node",
			FileName:             "main.js",
			RunCmdTemplate:       "node {{src}}",
			DefaultTimeLimitMs:   5000,
			DefaultMemoryLimitMB: 256,
		},
		{
			RuntimeKey:           "gcc",
			FileName:             "main.c",
			CompileCmdTemplate:   "gcc -O2 -o {{bin}} {{src}}",
			RunCmdTemplate:       "{{bin}}",
			DefaultTimeLimitMs:   5000,
			DefaultMemoryLimitMB: 256,
		},
		{
			RuntimeKey:           "g++",
			FileName:             "main.cpp",
			CompileCmdTemplate:   "g++ -O2 -std=c++17 -o {{bin}} {{src}}",
			RunCmdTemplate:       "{{bin}}",
			DefaultTimeLimitMs:   5000,
			DefaultMemoryLimitMB: 256,
		},
		{
			RuntimeKey:           "java",
			FileName:             "Main.java",
			CompileCmdTemplate:   "javac -d {{bindir}} {{src}}",
			RunCmdTemplate:       "java -cp {{bindir}} Main",
			DefaultTimeLimitMs:   10000,
			DefaultMemoryLimitMB: 512,
		},
		{
			RuntimeKey:           "go",
			FileName:             "main.go",
			CompileCmdTemplate:   "go build -o {{bin}} {{src}}",
			RunCmdTemplate:       "{{bin}}",
			DefaultTimeLimitMs:   10000,
			DefaultMemoryLimitMB: 256,
		},
		{
			RuntimeKey:           "php",
			FileName:             "main.php",
			RunCmdTemplate:       "php {{src}}",
			DefaultTimeLimitMs:   5000,
			DefaultMemoryLimitMB: 256,
		},
		{
			RuntimeKey:           "ruby",
			FileName:             "main.rb",
			RunCmdTemplate:       "ruby {{src}}",
			DefaultTimeLimitMs:   5000,
			DefaultMemoryLimitMB: 256,
		},
	} {
		c.descriptors[d.RuntimeKey] = d
	}
	return c
}

// Get returns the descriptor for a runtime key, and whether it exists.
func (c *Catalogue) Get(runtimeKey string) (Descriptor, bool) {
	d, ok := c.descriptors[runtimeKey]
	return d, ok
}

// RequiresCompile reports whether the runtime needs a compile step
// before it can be run.
func (d Descriptor) RequiresCompile() bool {
	return d.CompileCmdTemplate != ""
}

// RuntimeKeys lists every supported runtime key.
func (c *Catalogue) RuntimeKeys() []string {
	keys := make([]string, 0, len(c.descriptors))
	for k := range c.descriptors {
		keys = append(keys, k)
	}
	return keys
}

// SeedLanguages returns the full seed data for the languages table,
// joining a Language row's business fields to its runtime descriptor.
// This is what `codeexec migrate` uses to populate `languages` on a
// fresh install; the durable store never mutates these rows afterward.
func (c *Catalogue) SeedLanguages() []domain.Language {
	seeds := []domain.Language{
		{ID: "python3", Name: "Python 3", RuntimeKey: "python", Version: "3.x", TemplateCode: "print(\"Hello, World!\")\n"},
		{ID: "node20", Name: "Node.js", RuntimeKey: "node", Version: "20.x", TemplateCode: "console.log(\"Hello, World!\");\n"},
		{ID: "c17", Name: "C", RuntimeKey: "gcc", Version: "11", TemplateCode: "#include <stdio.h>\nint main(void) {\n    printf(\"Hello, World!\\n\");\n    return 0;\n}\n"},
		{ID: "cpp17", Name: "C++", RuntimeKey: "g++", Version: "11", TemplateCode: "#include <iostream>\nint main() {\n    std::cout << \"Hello, World!\" << std::endl;\n    return 0;\n}\n"},
		{ID: "java17", Name: "Java", RuntimeKey: "java", Version: "17", TemplateCode: "public class Main {\n    public static void main(String[] args) {\n        System.out.println(\"Hello, World!\");\n    }\n}\n"},
		{ID: "go1", Name: "Go", RuntimeKey: "go", Version: "1.x", TemplateCode: "package main\n\nimport \"fmt\"\n\nfunc main() {\n    fmt.Println(\"Hello, World!\")\n}\n"},
		{ID: "php8", Name: "PHP", RuntimeKey: "php", Version: "8.x", TemplateCode: "<?php\necho \"Hello, World!\\n\";\n"},
		{ID: "ruby3", Name: "Ruby", RuntimeKey: "ruby", Version: "3.x", TemplateCode: "puts \"Hello, World!\"\n"},
	}
	for i := range seeds {
		d := c.descriptors[seeds[i].RuntimeKey]
		seeds[i].FileName = d.FileName
		seeds[i].CompileCmd = d.CompileCmdTemplate
		seeds[i].RunCmd = d.RunCmdTemplate
		seeds[i].DefaultTimeLimitMs = d.DefaultTimeLimitMs
		seeds[i].DefaultMemoryLimitMB = d.DefaultMemoryLimitMB
	}
	return seeds
}
