package episode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassifySeverityBoundaries(t *testing.T) {
	cases := []struct {
		temp float64
		want SeverityBand
	}{
		{95.0, SeverityNormal},
		{98.6, SeverityNormal},
		{98.61, SeverityMild},
		{99.5, SeverityMild},
		{99.51, SeverityModerate},
		{100.4, SeverityModerate},
		{100.41, SeverityHigh},
		{108.0, SeverityHigh},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ClassifySeverity(tc.temp), "temp %v", tc.temp)
	}
}

func TestValidateVitals(t *testing.T) {
	require.NoError(t, ValidateVitals(temp(95.0), nil))
	require.NoError(t, ValidateVitals(temp(108.0), pulse(40)))
	require.NoError(t, ValidateVitals(temp(101.2), pulse(180)))

	for _, bad := range []float64{94.9, 108.1} {
		err := ValidateVitals(temp(bad), nil)
		require.Error(t, err)
		require.True(t, IsValidation(err))
	}
	require.True(t, IsValidation(ValidateVitals(nil, nil)))
	require.True(t, IsValidation(ValidateVitals(temp(99), pulse(39))))
	require.True(t, IsValidation(ValidateVitals(temp(99), pulse(181))))
}

func TestDayOfIllness(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 1, DayOfIllness(start, start))
	require.Equal(t, 1, DayOfIllness(start, time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)))
	require.Equal(t, 4, DayOfIllness(start, time.Date(2024, 1, 4, 0, 0, 1, 0, time.UTC)))
	require.Equal(t, 1, DayOfIllness(start, start.Add(-time.Hour)))
}

func TestResolveDayPrefersExplicitValue(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(72 * time.Hour)

	got, err := ResolveDay(nil, start, now)
	require.NoError(t, err)
	require.Equal(t, 4, got)

	explicit := 2
	got, err = ResolveDay(&explicit, start, now)
	require.NoError(t, err)
	require.Equal(t, 2, got)

	zero := 0
	_, err = ResolveDay(&zero, start, now)
	require.True(t, IsValidation(err))
}

func TestDetectDangerSigns(t *testing.T) {
	snap := Snapshot{Symptoms: Symptoms{Bleeding: true}, UrineOutput: UrineNormal}
	require.Equal(t, []DangerSign{SignBleeding}, DetectDangerSigns(snap))

	none := Snapshot{Symptoms: Symptoms{Headache: true, BodyPain: true, Rash: true, Vomiting: true, EyePain: true, Nausea: true}, UrineOutput: UrineDark}
	require.Empty(t, DetectDangerSigns(none))
	require.NotNil(t, DetectDangerSigns(none))

	all := Snapshot{
		Symptoms:    Symptoms{Bleeding: true, Breathlessness: true, Confusion: true, AbdominalPain: true},
		UrineOutput: UrineBloody,
	}
	require.Equal(t, []DangerSign{
		SignBleeding, SignBreathlessness, SignConfusion, SignSevereAbdominalPain, SignBloodyUrine,
	}, DetectDangerSigns(all))
}

func TestAdvisePhase(t *testing.T) {
	g, ok := AdvisePhase(DiseaseDengue, 2)
	require.True(t, ok)
	require.Equal(t, "Febrile phase", g.Phase)

	g, ok = AdvisePhase(DiseaseDengue, 5)
	require.True(t, ok)
	require.Equal(t, "Critical phase", g.Phase)
	require.Contains(t, g.Notes, "platelet <100k or rapid drop = admission indicated")

	g, ok = AdvisePhase(DiseaseDengue, 7)
	require.True(t, ok)
	require.Equal(t, "Critical phase", g.Phase)

	g, ok = AdvisePhase(DiseaseDengue, 10)
	require.True(t, ok)
	require.Equal(t, "Recovery phase", g.Phase)

	for _, d := range []Disease{DiseaseMalaria, DiseaseTyphoid, DiseaseViral, DiseaseOther} {
		for _, day := range []int{1, 5, 10} {
			_, ok := AdvisePhase(d, day)
			require.False(t, ok, "%s day %d", d, day)
		}
	}
}

func TestEscalateUrgencyNeverDowngrades(t *testing.T) {
	confusion := []DangerSign{SignConfusion}
	require.Equal(t, UrgencyHigh, EscalateUrgency(UrgencyLow, confusion))
	require.Equal(t, UrgencyHigh, EscalateUrgency(UrgencyMedium, confusion))
	require.Equal(t, UrgencyHigh, EscalateUrgency("", confusion))
	require.Equal(t, UrgencyEmergency, EscalateUrgency(UrgencyEmergency, confusion))
	require.Equal(t, UrgencyCritical, EscalateUrgency(UrgencyCritical, confusion))
	require.Equal(t, UrgencyCritical, EscalateUrgency(UrgencyCritical, nil))
	require.Equal(t, UrgencyLow, EscalateUrgency(UrgencyLow, nil))
}

func TestNormalizePrediction(t *testing.T) {
	pred, err := NormalizePrediction(RawPrediction{
		Disease:    "dengue",
		Confidence: 82.5,
		Urgency:    "high",
		Alternatives: []RawAlternative{
			{Disease: "Viral", Probability: 0.1},
			{Disease: "Dengue", Probability: 0.8},
			{Disease: "Chikungunya", Probability: 0.02},
			{Disease: "Malaria", Probability: 0.05},
		},
	})
	require.NoError(t, err)
	require.Equal(t, DiseaseDengue, pred.Disease)
	require.Equal(t, UrgencyHigh, pred.Urgency)
	require.Equal(t, []Alternative{
		{Disease: DiseaseDengue, Probability: 0.8},
		{Disease: DiseaseViral, Probability: 0.1},
		{Disease: DiseaseMalaria, Probability: 0.05},
	}, pred.TopAlternatives)

	_, err = NormalizePrediction(RawPrediction{Disease: "Dengue", Confidence: 101})
	require.True(t, IsValidation(err))

	_, err = NormalizePrediction(RawPrediction{Disease: "Dengue", Confidence: 50, Urgency: "SEVERE"})
	require.True(t, IsValidation(err))
}

func temp(v float64) *float64 { return &v }

func pulse(v int) *int { return &v }
