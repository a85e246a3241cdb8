package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncConnections_IncrementsCounter(t *testing.T) {
	m := New()
	m.IncConnections()
	m.IncConnections()

	if got := testutil.ToFloat64(m.connectionsTotal); got != 2 {
		t.Fatalf("expected connectionsTotal=2, got %v", got)
	}
}

func TestActiveConnections_IncDec(t *testing.T) {
	m := New()
	m.IncActive()
	m.IncActive()
	m.DecActive()

	if got := testutil.ToFloat64(m.activeConnections); got != 1 {
		t.Fatalf("expected activeConnections=1, got %v", got)
	}
}

func TestICEState_DefaultsUnknownLabel(t *testing.T) {
	m := New()
	m.IncICEState("")
	m.IncICEState("connected")

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	var found string
	for _, f := range families {
		if f.GetName() == "bs_ice_state_total" {
			for _, metric := range f.Metric {
				for _, l := range metric.Label {
					if l.GetName() == "ice_state" && l.GetValue() == "unknown" {
						found = "unknown"
					}
				}
			}
		}
	}
	if found != "unknown" {
		t.Fatalf("expected an unknown-labeled sample from empty ice_state")
	}
}

func TestRegionCarrier_BothMissingDefaultUnknown(t *testing.T) {
	m := New()
	m.IncRegionCarrier("", "")

	families, _ := m.Registry().Gather()
	var rendered strings.Builder
	for _, f := range families {
		if f.GetName() == "bs_region_carrier_total" {
			rendered.WriteString(f.String())
		}
	}
	if !strings.Contains(rendered.String(), "unknown") {
		t.Fatalf("expected unknown label in rendered family, got %q", rendered.String())
	}
}
