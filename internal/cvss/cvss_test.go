package cvss

import (
	"math"
	"testing"
)

func TestDropSeverity_SetsUnprovenAndUnknown(t *testing.T) {
	got := DropSeverity("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H")
	v := Parse(got)
	if e, _ := v.Get("E"); e != Unproven {
		t.Fatalf("expected E=%s, got %s", Unproven, e)
	}
	if rc, _ := v.Get("RC"); rc != Unknown {
		t.Fatalf("expected RC=%s, got %s", Unknown, rc)
	}
	if c, _ := v.Get("C"); c != "H" {
		t.Fatalf("expected base metrics preserved, C=%s", c)
	}
}

func TestDropSeverity_UpdatesExistingTemporalMetrics(t *testing.T) {
	got := DropSeverity("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H/E:F/RC:C")
	v := Parse(got)
	if e, _ := v.Get("E"); e != Unproven {
		t.Fatalf("expected E overwritten to %s, got %s", Unproven, e)
	}
	if rc, _ := v.Get("RC"); rc != Unknown {
		t.Fatalf("expected RC overwritten to %s, got %s", Unknown, rc)
	}
}

func TestReduceScore_FlooredAtZero(t *testing.T) {
	if got := ReduceScore(9.8); math.Abs(got-7.3) > 1e-9 {
		t.Fatalf("expected 7.3, got %v", got)
	}
	if got := ReduceScore(1.0); got != 0 {
		t.Fatalf("expected floor at 0, got %v", got)
	}
}
