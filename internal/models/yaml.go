package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalYAML emits items as a list of mappings carrying the same "type"
// discriminator and key order as the JSON form.
func (s Items) MarshalYAML() (any, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, it := range s {
		b, err := MarshalItem(it)
		if err != nil {
			return nil, err
		}
		m, err := objectNode(b)
		if err != nil {
			return nil, err
		}
		seq.Content = append(seq.Content, m)
	}
	return seq, nil
}

// objectNode converts a flat JSON object to a mapping node, keeping key
// order and writing whole numbers as integers.
func objectNode(data []byte) (*yaml.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				v = i
			} else if f, err := n.Float64(); err == nil {
				v = f
			}
		}
		val := &yaml.Node{}
		if err := val.Encode(v); err != nil {
			return nil, err
		}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, val)
	}
	return m, nil
}

func (s *Items) UnmarshalYAML(node *yaml.Node) error {
	var raw []map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out := make(Items, 0, len(raw))
	for _, m := range raw {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		it, err := UnmarshalItem(b)
		if err != nil {
			return err
		}
		out = append(out, it)
	}
	*s = out
	return nil
}
