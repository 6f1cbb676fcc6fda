package answerkey

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

func decodeYAML(doc []byte) ([]entry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeyDocument, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedKeyDocument)
	}

	top := root.Content[0]
	switch top.Kind {
	case yaml.MappingNode:
		out := make([]entry, 0, len(top.Content)/2)
		for i := 0; i+1 < len(top.Content); i += 2 {
			out = append(out, entry{
				numeral: scalarValue(top.Content[i]),
				letter:  scalarValue(top.Content[i+1]),
			})
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]entry, 0, len(top.Content))
		for _, item := range top.Content {
			if item.Kind != yaml.MappingNode {
				out = append(out, entry{})
				continue
			}
			var e entry
			for i := 0; i+1 < len(item.Content); i += 2 {
				switch item.Content[i].Value {
				case "number":
					e.numeral = scalarValue(item.Content[i+1])
				case "answer":
					e.letter = scalarValue(item.Content[i+1])
				}
			}
			out = append(out, e)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: top level must be a mapping or a sequence", ErrMalformedKeyDocument)
	}
}

func scalarValue(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}
