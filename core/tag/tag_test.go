package tag

import (
	"testing"
	"time"
)

type inner struct {
	Retention time.Duration `default:"720h"`
	Prefixes  []string      `default:"analytics_history:,scratch:"`
}

type outer struct {
	Name    string  `default:"studycore"`
	Port    int     `default:"8080"`
	Ratio   float64 `default:"0.5"`
	Enabled bool    `default:"true"`
	Inner   inner
	Ptr     *inner
	Keep    string `default:"unused"`
	Limit   *int   `default:"3"`
}

func TestApplyDefaults(t *testing.T) {
	c := &outer{Keep: "set"}
	if err := ApplyDefaults(c); err != nil {
		t.Fatalf("ApplyDefaults: %v", err)
	}

	if c.Name != "studycore" || c.Port != 8080 || c.Ratio != 0.5 || !c.Enabled {
		t.Errorf("scalar defaults not applied: %+v", c)
	}
	if c.Keep != "set" {
		t.Errorf("non-zero field overwritten: %q", c.Keep)
	}
	if c.Inner.Retention != 720*time.Hour {
		t.Errorf("duration = %v", c.Inner.Retention)
	}
	if len(c.Inner.Prefixes) != 2 || c.Inner.Prefixes[1] != "scratch:" {
		t.Errorf("slice = %v", c.Inner.Prefixes)
	}
	if c.Ptr == nil || c.Ptr.Retention != 720*time.Hour {
		t.Errorf("pointer struct not initialised: %+v", c.Ptr)
	}
	if c.Limit == nil || *c.Limit != 3 {
		t.Errorf("pointer scalar = %v", c.Limit)
	}
}

func TestApplyDefaultsRejectsNonPointer(t *testing.T) {
	if err := ApplyDefaults(outer{}); err != ErrTargetMustBePointer {
		t.Fatalf("got %v", err)
	}
	var nilPtr *outer
	if err := ApplyDefaults(nilPtr); err != ErrTargetMustBePointer {
		t.Fatalf("got %v", err)
	}
}

func TestApplyDefaultsBadValue(t *testing.T) {
	type bad struct {
		N int `default:"x"`
	}
	if err := ApplyDefaults(&bad{}); err == nil {
		t.Fatal("expected parse error")
	}
}
