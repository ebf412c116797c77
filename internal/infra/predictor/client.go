package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
)

const defaultPath = "/ml/predict"

// Client calls the fever classifier over HTTP.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient builds a predictor client. An empty path posts to /ml/predict.
func NewClient(baseURL, path, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(baseURL), "/") + path,
		token:    strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Predict sends one reading's features and normalises the classifier's answer.
func (c *Client) Predict(ctx context.Context, in tracking.PredictionInput) (episode.Prediction, error) {
	body, err := json.Marshal(toRequest(in))
	if err != nil {
		return episode.Prediction{}, fmt.Errorf("encode predict request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return episode.Prediction{}, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return episode.Prediction{}, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return episode.Prediction{}, fmt.Errorf("predict request error: status=%d body=%s", resp.StatusCode, string(payload))
	}

	var raw predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&raw); err != nil {
		return episode.Prediction{}, fmt.Errorf("decode predict response: %w", err)
	}
	return episode.NormalizePrediction(raw.toRaw())
}

type predictRequest struct {
	PatientID        string  `json:"patientId,omitempty"`
	EpisodeID        string  `json:"episodeId,omitempty"`
	Temperature      float64 `json:"temperature"`
	FeverDays        int     `json:"fever_days"`
	Headache         int     `json:"headache"`
	BodyPain         int     `json:"body_pain"`
	EyePain          int     `json:"eye_pain"`
	NauseaVomiting   int     `json:"nausea_vomiting"`
	AbdominalPain    int     `json:"abdominal_pain"`
	Rash             int     `json:"rash"`
	Bleeding         int     `json:"bleeding"`
	PlateletCount    float64 `json:"platelet_count"`
	MosquitoExposure int     `json:"mosquito_exposure"`
	Travel           int     `json:"travel"`
}

type predictResponse struct {
	Prediction string            `json:"prediction"`
	Confidence float64           `json:"confidence"`
	Top3       []predictedOption `json:"top_3_predictions"`
	Urgency    string            `json:"urgency"`
}

type predictedOption struct {
	Disease     string  `json:"disease"`
	Probability float64 `json:"probability"`
}

func (r predictResponse) toRaw() episode.RawPrediction {
	raw := episode.RawPrediction{
		Disease:    r.Prediction,
		Confidence: r.Confidence,
		Urgency:    r.Urgency,
	}
	for _, alt := range r.Top3 {
		raw.Alternatives = append(raw.Alternatives, episode.RawAlternative{Disease: alt.Disease, Probability: alt.Probability})
	}
	return raw
}

func toRequest(in tracking.PredictionInput) predictRequest {
	return predictRequest{
		PatientID:        in.PatientID,
		EpisodeID:        in.EpisodeID,
		Temperature:      in.TemperatureF,
		FeverDays:        in.FeverDays,
		Headache:         flag(in.Headache),
		BodyPain:         flag(in.BodyPain),
		EyePain:          flag(in.EyePain),
		NauseaVomiting:   flag(in.NauseaVomiting),
		AbdominalPain:    flag(in.AbdominalPain),
		Rash:             flag(in.Rash),
		Bleeding:         flag(in.Bleeding),
		PlateletCount:    in.PlateletCount,
		MosquitoExposure: flag(in.MosquitoExposure),
		Travel:           flag(in.Travel),
	}
}

func flag(v bool) int {
	if v {
		return 1
	}
	return 0
}

var _ tracking.Predictor = (*Client)(nil)
