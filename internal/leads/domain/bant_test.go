package domain

import (
	"testing"
)

var testWeights = Weights{Budget: 25, Authority: 25, Need: 30, Timeline: 20}

func strongAnalysis() Analysis {
	return Analysis{
		Budget:    BudgetSignal{Detected: true, Confidence: 0.8},
		Authority: AuthoritySignal{Detected: true, IsDecisionMaker: true, Confidence: 0.9},
		Need:      NeedSignal{Detected: true, Urgency: UrgencyHigh, Confidence: 0.9},
		Timeline:  TimelineSignal{Detected: true, Timeframe: TimeframeImmediate, Confidence: 0.8},
	}
}

func TestScoreStrongAnalysis(t *testing.T) {
	// 25*0.8 + 25*0.9 + 30*0.9 + 20*0.8 = 20 + 22.5 + 27 + 16 = 85.5 -> 86
	if got := Score(strongAnalysis(), testWeights); got != 86 {
		t.Fatalf("Score = %d, want 86", got)
	}
}

func TestScoreWeakNeedOnly(t *testing.T) {
	a := Analysis{Need: NeedSignal{Detected: true, Urgency: UrgencyLow, Confidence: 0.5}}
	// 30*0.5*0.4 = 6
	if got := Score(a, testWeights); got != 6 {
		t.Fatalf("Score = %d, want 6", got)
	}
}

func TestScoreIgnoresUndetectedDimensions(t *testing.T) {
	a := strongAnalysis()
	a.Budget.Detected = false
	a.Budget.Confidence = 1.0
	// 22.5 + 27 + 16 = 65.5 -> 66
	if got := Score(a, testWeights); got != 66 {
		t.Fatalf("Score = %d, want 66", got)
	}
}

func TestScoreNonDecisionMakerDiscount(t *testing.T) {
	a := Analysis{Authority: AuthoritySignal{Detected: true, IsDecisionMaker: false, Confidence: 1.0}}
	// 25*1.0*0.6 = 15
	if got := Score(a, testWeights); got != 15 {
		t.Fatalf("Score = %d, want 15", got)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	a := strongAnalysis()
	first := Score(a, testWeights)
	for i := 0; i < 10; i++ {
		if got := Score(a, testWeights); got != first {
			t.Fatalf("Score changed between calls: %d then %d", first, got)
		}
	}
}

func TestScoreMonotonicInEachConfidence(t *testing.T) {
	bump := func(a Analysis, dim int, confidence float64) Analysis {
		switch dim {
		case 0:
			a.Budget.Confidence = confidence
		case 1:
			a.Authority.Confidence = confidence
		case 2:
			a.Need.Confidence = confidence
		case 3:
			a.Timeline.Confidence = confidence
		}
		return a
	}

	base := strongAnalysis()
	for dim := 0; dim < 4; dim++ {
		prev := -1
		for c := 0.0; c <= 1.0; c += 0.05 {
			got := Score(bump(base, dim, c), testWeights)
			if got < prev {
				t.Fatalf("score decreased on dimension %d at confidence %.2f: %d < %d", dim, c, got, prev)
			}
			prev = got
		}
	}
}

func TestScoreClampsOutOfRangeConfidence(t *testing.T) {
	a := strongAnalysis()
	a.Budget.Confidence = 3.5
	a.Need.Confidence = -2
	got := Score(a, testWeights)
	capped := Analysis{
		Budget:    BudgetSignal{Detected: true, Confidence: 1},
		Authority: a.Authority,
		Need:      NeedSignal{Detected: true, Urgency: UrgencyHigh, Confidence: 0},
		Timeline:  a.Timeline,
	}
	if want := Score(capped, testWeights); got != want {
		t.Fatalf("Score = %d, want clamped %d", got, want)
	}
}

func TestStatusForScore(t *testing.T) {
	thresholds := Thresholds{AutoCreate: 30, AutoQualify: 70}
	cases := []struct {
		score int
		want  Status
	}{
		{86, StatusQualified},
		{70, StatusQualified},
		{69, StatusContacted},
		{49, StatusContacted},
		{48, StatusNew},
		{30, StatusNew},
	}
	for _, tc := range cases {
		if got := StatusForScore(tc.score, thresholds); got != tc.want {
			t.Fatalf("StatusForScore(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestDetectCues(t *testing.T) {
	a := DetectCues("Onze ketel is kapot, wat kost een nieuwe? Ik beslis zelf, graag deze week.")
	if !a.Budget.Detected || !a.Authority.Detected || !a.Need.Detected || !a.Timeline.Detected {
		t.Fatalf("expected all dimensions detected, got %+v", a)
	}
	if !a.Authority.IsDecisionMaker {
		t.Fatal("expected decision-maker cue to register")
	}
	if a.Need.Urgency != UrgencyHigh {
		t.Fatalf("urgency = %s, want high", a.Need.Urgency)
	}
	if a.Timeline.Timeframe != TimeframeImmediate {
		t.Fatalf("timeframe = %s, want immediate", a.Timeline.Timeframe)
	}

	if DetectCues("bedankt en fijne dag").HasSignal() {
		t.Fatal("expected no signal from small talk")
	}
}
