package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/fleet-tracking/internal/models"
)

// OSRMClient queries an OSRM /table endpoint for travel
// distance/duration matrices. The server is untrusted: every request
// carries a timeout and failures feed the circuit breaker upstream.
type OSRMClient struct {
	Endpoint string
	Client   *http.Client
}

func NewOSRMClient(endpoint string, timeout time.Duration) *OSRMClient {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &OSRMClient{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

func (o *OSRMClient) Name() string { return "osrm" }

func osrmProfile(mode models.TravelMode) string {
	switch mode {
	case models.ModeWalking:
		return "foot"
	case models.ModeCycling:
		return "bike"
	default:
		return "driving"
	}
}

// Matrix requests all origin→destination pairs in one table call:
// /table/v1/{profile}/{lon,lat;...}?sources=...&destinations=...
func (o *OSRMClient) Matrix(ctx context.Context, origins, destinations []models.Coord, mode models.TravelMode) ([][]models.MatrixCell, error) {
	coords := make([]string, 0, len(origins)+len(destinations))
	for _, c := range append(append([]models.Coord{}, origins...), destinations...) {
		coords = append(coords, fmt.Sprintf("%.6f,%.6f", c.Lon, c.Lat))
	}
	srcIdx := make([]string, len(origins))
	for i := range origins {
		srcIdx[i] = fmt.Sprintf("%d", i)
	}
	dstIdx := make([]string, len(destinations))
	for i := range destinations {
		dstIdx[i] = fmt.Sprintf("%d", len(origins)+i)
	}
	url := fmt.Sprintf("%s/table/v1/%s/%s?sources=%s&destinations=%s&annotations=distance,duration",
		o.Endpoint, osrmProfile(mode), strings.Join(coords, ";"),
		strings.Join(srcIdx, ";"), strings.Join(dstIdx, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Code      string      `json:"code"`
		Durations [][]float64 `json:"durations"`
		Distances [][]float64 `json:"distances"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Code != "Ok" || len(out.Durations) != len(origins) || len(out.Distances) != len(origins) {
		return nil, fmt.Errorf("osrm table: code=%s", out.Code)
	}

	cells := make([][]models.MatrixCell, len(origins))
	for i := range origins {
		if len(out.Durations[i]) != len(destinations) || len(out.Distances[i]) != len(destinations) {
			return nil, fmt.Errorf("osrm table: short row %d", i)
		}
		cells[i] = make([]models.MatrixCell, len(destinations))
		for j := range destinations {
			cells[i][j] = models.MatrixCell{
				DistanceMeters:  out.Distances[i][j],
				DurationSeconds: out.Durations[i][j],
			}
		}
	}
	return cells, nil
}
