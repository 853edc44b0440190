package storage

import (
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestLabeler_Label(t *testing.T) {
	tests := map[string]struct {
		tmpl    string
		summary *SlotSummary
		exp     string
	}{
		"default template": {
			summary: &SlotSummary{SlotName: "auto", PlayerLevel: 3, CurrentUnitId: "forest-2", TotalPlayTime: 3725},
			exp:     "AUTO - Lv 3 - forest-2 - 1:02:05",
		},
		"default template without unit": {
			summary: &SlotSummary{SlotName: "manual", PlayerLevel: 1, TotalPlayTime: 59.6},
			exp:     "MANUAL - Lv 1 - 0:01:00",
		},
		"custom template with sprig": {
			tmpl:    `{{ .SlotName | title }} ({{ .PlayerLevel | add 0 }})`,
			summary: &SlotSummary{SlotName: "quest", PlayerLevel: 4},
			exp:     "Quest (4)",
		},
		"nil summary": {
			summary: nil,
			exp:     "",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			l, err := NewLabeler(tt.tmpl)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got, err := l.Label(tt.summary)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "label", got, tt.exp)
		})
	}
}

func TestNewLabeler_InvalidTemplate(t *testing.T) {
	_, err := NewLabeler("{{ .SlotName ")
	testutil.AssertErrorContains(t, err, "parsing label template")
}
