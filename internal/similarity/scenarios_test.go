package similarity

import (
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

// jaccardScenario is one row of testdata/jaccard_scenarios.yaml. WantScore
// pins an exact value; WantMax only asserts an upper bound, for scenarios
// that are only bounded rather than pinned (e.g. "strictly below 40").
type jaccardScenario struct {
	Name      string   `yaml:"name"`
	TokensA   []string `yaml:"tokens_a"`
	TokensB   []string `yaml:"tokens_b"`
	WantScore *float64 `yaml:"want_score"`
	WantMax   *float64 `yaml:"want_max"`
}

func loadJaccardScenarios(t *testing.T) []jaccardScenario {
	t.Helper()
	raw, err := os.ReadFile("testdata/jaccard_scenarios.yaml")
	if err != nil {
		t.Fatalf("read scenarios fixture: %v", err)
	}
	var scenarios []jaccardScenario
	if err := yaml.Unmarshal(raw, &scenarios); err != nil {
		t.Fatalf("parse scenarios fixture: %v", err)
	}
	return scenarios
}

func TestJaccardScenariosFromFixture(t *testing.T) {
	for _, sc := range loadJaccardScenarios(t) {
		sc := sc
		t.Run(sc.Name, func(t *testing.T) {
			got := JaccardPercent(sc.TokensA, sc.TokensB)
			if sc.WantScore != nil && got != *sc.WantScore {
				t.Fatalf("%s: got score %v, want %v", sc.Name, got, *sc.WantScore)
			}
			if sc.WantMax != nil && got >= *sc.WantMax {
				t.Fatalf("%s: got score %v, want strictly below %v", sc.Name, got, *sc.WantMax)
			}
		})
	}
}
