package episode

// Dengue phase boundaries (2024 guideline).
const (
	febrileLastDay  = 3
	criticalLastDay = 7
)

// AdvisePhase returns phase guidance for a disease on a given day of illness.
// Only dengue has a phase model; every other disease reports no guidance.
func AdvisePhase(disease Disease, dayOfIllness int) (PhaseGuidance, bool) {
	if disease != DiseaseDengue {
		return PhaseGuidance{}, false
	}
	switch {
	case dayOfIllness <= febrileLastDay:
		return PhaseGuidance{
			Phase: "Febrile phase",
			Notes: []string{
				"High fever, headache and body pain are common",
				"Hydration is key: monitor fluid intake and output",
				"Paracetamol for fever; avoid NSAIDs",
				"Antibiotics are not indicated",
			},
		}, true
	case dayOfIllness <= criticalLastDay:
		return PhaseGuidance{
			Phase: "Critical phase",
			Notes: []string{
				"HIGH RISK PERIOD: close monitoring essential",
				"Watch for warning signs: abdominal pain, persistent vomiting, bleeding",
				"CBC monitoring every 6-12 hours",
				"platelet <100k or rapid drop = admission indicated",
			},
		}, true
	default:
		return PhaseGuidance{
			Phase: "Recovery phase",
			Notes: []string{
				"Fever subsides, appetite returns",
				"Fluid reabsorption: watch for fluid overload",
				"Ensure platelet >100k before discharge",
			},
		}, true
	}
}
