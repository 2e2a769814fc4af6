package credits

import "testing"

func TestQuotaFor(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
		want int
	}{
		{"personal", PlanPersonal, 100},
		{"pro", PlanPro, 500},
		{"academia", PlanAcademia, 1000},
		{"unknown plan falls back to personal", Plan("enterprise"), 100},
		{"empty plan falls back to personal", Plan(""), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuotaFor(tt.plan); got != tt.want {
				t.Errorf("QuotaFor(%q) = %d, want %d", tt.plan, got, tt.want)
			}
		})
	}
}

func TestCostFor(t *testing.T) {
	tests := []struct {
		name string
		typ  MaterialType
		want int
	}{
		{"test", MaterialTest, 5},
		{"study guide", MaterialStudyGuide, 4},
		{"summary", MaterialSummary, 3},
		{"presentation", MaterialPresentation, 8},
		{"unknown type falls back to default cost", MaterialType("worksheet"), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CostFor(tt.typ); got != tt.want {
				t.Errorf("CostFor(%q) = %d, want %d", tt.typ, got, tt.want)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	acc := &Account{Plan: PlanPersonal, CreditsUsed: 98}
	if got := acc.Remaining(); got != 2 {
		t.Errorf("Remaining() = %d, want 2", got)
	}

	// A downgrade can leave the counter above the new quota.
	over := &Account{Plan: PlanPersonal, CreditsUsed: 450}
	if got := over.Remaining(); got != 0 {
		t.Errorf("Remaining() with overdrawn counter = %d, want 0", got)
	}
}

func TestNormalizeDifficulty(t *testing.T) {
	tests := []struct {
		in   string
		want Difficulty
	}{
		{"easy", DifficultyEasy},
		{"medium", DifficultyMedium},
		{"hard", DifficultyHard},
		{"", DifficultyMedium},
		{"extreme", DifficultyMedium},
	}

	for _, tt := range tests {
		if got := NormalizeDifficulty(tt.in); got != tt.want {
			t.Errorf("NormalizeDifficulty(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
