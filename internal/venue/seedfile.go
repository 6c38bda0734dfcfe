package venue

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadSeedFile reads extra venues from a YAML file with a top-level
// "venues" list. Entries use the same field names as directory rows and
// are mapped with FromRow; malformed entries are dropped.
func LoadSeedFile(path string) ([]Venue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "venue: read seed file %s", path)
	}

	var wrapper struct {
		Venues []Row `yaml:"venues"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "venue: parse seed file")
	}

	venues, _ := MapRows(wrapper.Venues)
	return venues, nil
}
