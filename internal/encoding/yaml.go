// Package encoding provides small configuration-loading helpers.
package encoding

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// LoadAndUnmarshalYAML loads data from the specified path and decodes it,
// strictly, into value. Unknown fields are a load error.
func LoadAndUnmarshalYAML(path string, value interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "unable to read configuration file")
	}
	if err := yaml.UnmarshalStrict(data, value); err != nil {
		return errors.Wrap(err, "unable to unmarshal configuration file")
	}
	return nil
}
