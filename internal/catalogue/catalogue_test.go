package catalogue

import "testing"

func TestDefault_ContainsExpectedRuntimes(t *testing.T) {
	c := Default()
	for _, key := range []string{"python", "node", "gcc", "g++", "java", "go", "php", "ruby"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("expected runtime %q to be present", key)
		}
	}
}

func TestGet_UnknownRuntimeReportsFalse(t *testing.T) {
	c := Default()
	if _, ok := c.Get("cobol"); ok {
		t.Fatal("expected unknown runtime to report false")
	}
}

func TestRequiresCompile_DistinguishesInterpretedFromCompiled(t *testing.T) {
	c := Default()

	python, _ := c.Get("python")
	if python.RequiresCompile() {
		t.Error("expected python to not require compilation")
	}

	gcc, _ := c.Get("gcc")
	if !gcc.RequiresCompile() {
		t.Error("expected gcc to require compilation")
	}
}

func TestRuntimeKeys_MatchesSeedLanguageCount(t *testing.T) {
	c := Default()
	keys := c.RuntimeKeys()
	want := len(c.SeedLanguages())
	if len(keys) != want {
		t.Fatalf("got %d runtime keys, want %d", len(keys), want)
	}
}

func TestSeedLanguages_EveryLanguageResolvesToAKnownRuntime(t *testing.T) {
	c := Default()
	seeds := c.SeedLanguages()
	if len(seeds) == 0 {
		t.Fatal("expected at least one seed language")
	}
	for _, l := range seeds {
		d, ok := c.Get(l.RuntimeKey)
		if !ok {
			t.Fatalf("language %s references unknown runtime %s", l.ID, l.RuntimeKey)
		}
		if l.FileName != d.FileName {
			t.Errorf("language %s: got file name %q, want %q", l.ID, l.FileName, d.FileName)
		}
		if l.RunCmd != d.RunCmdTemplate {
			t.Errorf("language %s: got run cmd %q, want %q", l.ID, l.RunCmd, d.RunCmdTemplate)
		}
		if l.TemplateCode == "" {
			t.Errorf("language %s: expected non-empty starter template", l.ID)
		}
	}
}

func TestSeedLanguages_IDsAreUnique(t *testing.T) {
	c := Default()
	seen := make(map[string]bool)
	for _, l := range c.SeedLanguages() {
		if seen[l.ID] {
			t.Fatalf("duplicate seed language id %s", l.ID)
		}
		seen[l.ID] = true
	}
}
