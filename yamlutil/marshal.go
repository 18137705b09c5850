package yamlutil

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/tim-schneider/nexsync/resource"
)

const docIndent = 2

// MarshalDoc renders a configuration document the way the input files are
// written: two-space indent, no document separator.
func MarshalDoc(doc resource.Doc) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(docIndent)
	if err := encoder.Encode(doc); err != nil {
		_ = encoder.Close()
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
