package detector

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// labelFile matches the dataset YAML written by YOLO training runs, where names is
// either a list or a map from class ID to name.
type labelFile struct {
	Names yaml.Node `yaml:"names"`
}

// LoadLabels reads class names from a YAML file and returns them indexed by class ID.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file %s: %w", path, err)
	}
	return ParseLabels(data)
}

// ParseLabels decodes the names section of a dataset YAML document.
func ParseLabels(data []byte) ([]string, error) {
	var lf labelFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("failed to parse labels: %w", err)
	}

	switch lf.Names.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := lf.Names.Decode(&names); err != nil {
			return nil, fmt.Errorf("failed to decode label list: %w", err)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("labels: names list is empty")
		}
		return names, nil
	case yaml.MappingNode:
		var byID map[int]string
		if err := lf.Names.Decode(&byID); err != nil {
			return nil, fmt.Errorf("failed to decode label map: %w", err)
		}
		return labelsFromMap(byID)
	case 0:
		return nil, fmt.Errorf("labels: missing 'names' section")
	default:
		return nil, fmt.Errorf("labels: 'names' must be a list or a map")
	}
}

func labelsFromMap(byID map[int]string) ([]string, error) {
	if len(byID) == 0 {
		return nil, fmt.Errorf("labels: names map is empty")
	}
	ids := make([]int, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	// IDs must be 0..n-1 so that they line up with the model's class scores.
	for i, id := range ids {
		if id != i {
			return nil, fmt.Errorf("labels: class IDs must be contiguous from 0, missing %d", i)
		}
	}
	names := make([]string, len(ids))
	for _, id := range ids {
		names[id] = byID[id]
	}
	return names, nil
}
