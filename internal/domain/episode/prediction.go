package episode

import "sort"

const maxAlternatives = 3

// Alternative is one ranked disease candidate.
type Alternative struct {
	Disease     Disease `json:"disease"`
	Probability float64 `json:"probability"`
}

// Prediction is the external classifier's verdict for a reading.
type Prediction struct {
	Disease         Disease       `json:"disease"`
	Confidence      float64       `json:"confidence"`
	TopAlternatives []Alternative `json:"topAlternatives,omitempty"`
	Urgency         Urgency       `json:"urgency,omitempty"`
}

// RawPrediction is the loosely typed form received from callers and the predictor service.
type RawPrediction struct {
	Disease      string           `json:"disease" yaml:"disease"`
	Confidence   float64          `json:"confidence" yaml:"confidence"`
	Alternatives []RawAlternative `json:"topAlternatives" yaml:"topAlternatives"`
	Urgency      string           `json:"urgency" yaml:"urgency"`
}

// RawAlternative is an unnormalised alternative.
type RawAlternative struct {
	Disease     string  `json:"disease" yaml:"disease"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// NormalizePrediction validates confidence and urgency, maps labels onto known
// diseases and keeps the three most probable alternatives in descending order.
func NormalizePrediction(raw RawPrediction) (Prediction, error) {
	if raw.Confidence < 0 || raw.Confidence > 100 {
		return Prediction{}, validationError("confidence must be between 0 and 100, got %v", raw.Confidence)
	}
	urgency, err := ParseUrgency(raw.Urgency)
	if err != nil {
		return Prediction{}, err
	}
	alts := make([]Alternative, 0, len(raw.Alternatives))
	for _, alt := range raw.Alternatives {
		alts = append(alts, Alternative{Disease: ParseDisease(alt.Disease), Probability: alt.Probability})
	}
	sort.SliceStable(alts, func(i, j int) bool {
		return alts[i].Probability > alts[j].Probability
	})
	if len(alts) > maxAlternatives {
		alts = alts[:maxAlternatives]
	}
	return Prediction{
		Disease:         ParseDisease(raw.Disease),
		Confidence:      raw.Confidence,
		TopAlternatives: alts,
		Urgency:         urgency,
	}, nil
}

func (p *Prediction) clone() *Prediction {
	if p == nil {
		return nil
	}
	out := *p
	if p.TopAlternatives != nil {
		out.TopAlternatives = append([]Alternative(nil), p.TopAlternatives...)
	}
	return &out
}
