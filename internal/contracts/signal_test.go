package contracts

import (
	"errors"
	"testing"
)

func TestParseStrategies(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []StrategyKind
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"single", "breakout", []StrategyKind{StrategyBreakout}, false},
		{"dedup and trim", " pullback, convergence ,pullback", []StrategyKind{StrategyPullback, StrategyConvergence}, false},
		{"unknown", "breakout,momentum", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStrategies(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownStrategy) {
					t.Fatalf("ParseStrategies(%q) error = %v, want ErrUnknownStrategy", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStrategies(%q) unexpected error: %v", tt.raw, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseStrategies(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseStrategies(%q)[%d] = %s, want %s", tt.raw, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGradeRank(t *testing.T) {
	order := []Grade{GradeS, GradeA, GradeBPlus, GradeB}
	for i := 1; i < len(order); i++ {
		if order[i-1].Rank() >= order[i].Rank() {
			t.Errorf("expected %s to rank before %s", order[i-1], order[i])
		}
	}
}

func TestSignalClone(t *testing.T) {
	orig := NewSignal("005930", StrategyBreakout)
	orig.Reasons = append(orig.Reasons, "박스권 돌파")
	orig.Details["box_top"] = 71000.0

	c := orig.Clone()
	c.Reasons[0] = "changed"
	c.Details["box_top"] = 1.0

	if orig.Reasons[0] != "박스권 돌파" {
		t.Errorf("clone shares reasons slice")
	}
	if orig.Details["box_top"] != 71000.0 {
		t.Errorf("clone shares details map")
	}
	if c.StrategyLabel != "박스권 돌파" {
		t.Errorf("StrategyLabel = %s", c.StrategyLabel)
	}
}

func TestMarketConditionAllows(t *testing.T) {
	mc := &MarketCondition{AllowedStrategies: []StrategyKind{StrategyBottomEscape}}
	if !mc.Allows(StrategyBottomEscape) {
		t.Error("expected bottom_escape allowed")
	}
	if mc.Allows(StrategyBreakout) {
		t.Error("expected breakout blocked")
	}
}
