package mapstore

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/mapupgrade/internal/kvyaml"
	"github.com/MrWong99/mapupgrade/pkg/entity"
	"github.com/MrWong99/mapupgrade/pkg/level"
)

// yamlDoc is the on-disk layout of a YAML level:
//
//	category: source
//	entities:
//	  - classname: worldspawn
//	    wad: halflife.wad
//	  - classname: info_player_start
//	    origin: 0 0 64
type yamlDoc struct {
	Category string         `yaml:"category"`
	Entities []kvyaml.Pairs `yaml:"entities"`
}

func decodeYAML(r io.Reader) (level.Category, []entity.Record, error) {
	var doc yamlDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return 0, nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	cat, err := level.ParseCategory(doc.Category)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	records := make([]entity.Record, len(doc.Entities))
	for i, kv := range doc.Entities {
		records[i] = kv.Record()
	}
	return cat, records, nil
}

func encodeYAML(w io.Writer, cat level.Category, records []entity.Record) error {
	doc := yamlDoc{Category: cat.String(), Entities: make([]kvyaml.Pairs, len(records))}
	for i, r := range records {
		doc.Entities[i] = kvyaml.FromRecord(r)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("mapstore: encode yaml: %w", err)
	}
	return enc.Close()
}
