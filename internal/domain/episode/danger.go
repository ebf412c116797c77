package episode

// DetectDangerSigns flags emergency conditions in a snapshot. The result is
// ordered and empty (never nil) when nothing triggers.
func DetectDangerSigns(s Snapshot) []DangerSign {
	signs := make([]DangerSign, 0, 2)
	if s.Symptoms.Bleeding {
		signs = append(signs, SignBleeding)
	}
	if s.Symptoms.Breathlessness {
		signs = append(signs, SignBreathlessness)
	}
	if s.Symptoms.Confusion {
		signs = append(signs, SignConfusion)
	}
	if s.Symptoms.AbdominalPain {
		signs = append(signs, SignSevereAbdominalPain)
	}
	if s.UrineOutput == UrineBloody {
		signs = append(signs, SignBloodyUrine)
	}
	return signs
}
