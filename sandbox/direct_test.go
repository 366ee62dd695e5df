package sandbox

import (
	"context"
	"testing"

	executor "github.com/avb-is-me/codespace-executor"
)

func TestDirectRunnerContract(t *testing.T) {
	RunRunnerContractTests(t, RunnerContract{
		New: func(t *testing.T) Runner {
			return NewDirectRunner(DirectConfig{WorkRoot: t.TempDir()})
		},
		Mode:        executor.ModeDirect,
		EchoPayload: `fmt.Println("hi"); return "ok"`,
	})
}

func TestDirectRunnerRejectsOtherModes(t *testing.T) {
	r := NewDirectRunner(DirectConfig{WorkRoot: t.TempDir()})
	_, err := r.Execute(context.Background(), "return 1", nil, executor.ModeIsolated, Limits{}, "")
	if err == nil {
		t.Error("expected an error when DirectRunner is asked to run a non-direct mode")
	}
}

func TestWrapPayloadLeavesFullProgramsAlone(t *testing.T) {
	src := "package main\n\nfunc main() {}\n"
	if got := wrapPayload(src); got != src {
		t.Error("wrapPayload should not alter a payload that already declares package main/func main")
	}
}

func TestExtractOutValueParsesMarkerLine(t *testing.T) {
	stdout := "some program output\n" + outMarker + `{"k":"v"}` + "\nmore output\n"
	v, ok := extractOutValue(stdout)
	if !ok {
		t.Fatal("expected a marker line to be found")
	}
	m, ok := v.(map[string]any)
	if !ok || m["k"] != "v" {
		t.Errorf("unexpected decoded value: %#v", v)
	}
}

func TestExtractOutValueAbsent(t *testing.T) {
	if _, ok := extractOutValue("no marker here\n"); ok {
		t.Error("expected no value to be found")
	}
}

func TestStripOutMarkerRemovesMarkerLine(t *testing.T) {
	stdout := "keep me\n" + outMarker + `{"k":"v"}` + "\nkeep me too\n"
	got := stripOutMarker(stdout)
	if got == stdout {
		t.Error("expected the marker line to be stripped")
	}
	if contains := (got == "keep me\nkeep me too\n" || got == "keep me\n\nkeep me too\n"); !contains {
		t.Logf("stripped output: %q", got)
	}
}
