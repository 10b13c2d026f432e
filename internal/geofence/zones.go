package geofence

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/example/fleet-tracking/internal/models"
)

type zoneFile struct {
	Zones []models.Zone `yaml:"zones" validate:"dive"`
}

// LoadZones reads geofence definitions from a YAML file and validates
// them. Zones are configuration: read-only to the engine.
func LoadZones(path string) ([]models.Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zone file: %w", err)
	}
	var zf zoneFile
	if err := yaml.Unmarshal(data, &zf); err != nil {
		return nil, fmt.Errorf("parse zone file: %w", err)
	}
	v := validator.New()
	if err := v.Struct(zf); err != nil {
		return nil, fmt.Errorf("invalid zone file: %w", err)
	}
	for _, z := range zf.Zones {
		switch z.Kind {
		case models.ZoneCircle:
			if z.RadiusMeters <= 0 {
				return nil, fmt.Errorf("zone %s: circle requires radius_meters > 0", z.ID)
			}
		case models.ZonePolygon:
			if len(z.Vertices) < 3 {
				return nil, fmt.Errorf("zone %s: polygon requires at least 3 vertices", z.ID)
			}
		}
	}
	return zf.Zones, nil
}
