package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Tutortoise/weapon-detection-service/models"
	"github.com/protocolbuffers/txtpbfmt/ast"
	"github.com/protocolbuffers/txtpbfmt/parser"
	"gopkg.in/yaml.v3"
)

// LoadLabelMap reads a class-id to name mapping from a text-format label map
// (.pbtxt) or a YAML file with a top-level "labels" mapping. Ids above
// maxClasses are ignored when maxClasses > 0.
func LoadLabelMap(path string, maxClasses int) (models.LabelMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label map: %w", err)
	}

	var labels models.LabelMap
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		labels, err = parseYAMLLabelMap(data)
	default:
		labels, err = parseTextLabelMap(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse label map %s: %w", filepath.Base(path), err)
	}

	if maxClasses > 0 {
		for id := range labels {
			if id > maxClasses {
				delete(labels, id)
			}
		}
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("label map %s has no usable classes", filepath.Base(path))
	}
	return labels, nil
}

func parseYAMLLabelMap(data []byte) (models.LabelMap, error) {
	var doc struct {
		Labels map[int]string `yaml:"labels"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	labels := make(models.LabelMap, len(doc.Labels))
	for id, name := range doc.Labels {
		if err := checkLabelID(id, name); err != nil {
			return nil, err
		}
		if id == 0 {
			continue
		}
		labels[id] = name
	}
	return labels, nil
}

type labelItem struct {
	id          int
	hasID       bool
	name        string
	displayName string
}

// parseTextLabelMap handles the protobuf text format used by object detection
// label maps:
//
//	item {
//	  id: 1
//	  name: 'weapon'
//	  display_name: "weapon"
//	}
func parseTextLabelMap(src []byte) (models.LabelMap, error) {
	nodes, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}

	labels := make(models.LabelMap)
	for _, node := range nodes {
		if node.Name == "" {
			continue
		}
		if node.Name != "item" || len(node.Values) > 0 {
			return nil, fmt.Errorf("line %d: expected an item block, got %q", node.Start.Line, node.Name)
		}

		item, err := labelItemFromNode(node)
		if err != nil {
			return nil, err
		}
		name := item.displayName
		if name == "" {
			name = item.name
		}
		if err := checkLabelID(item.id, name); err != nil {
			return nil, err
		}
		if item.id == 0 {
			continue
		}
		labels[item.id] = name
	}
	return labels, nil
}

func labelItemFromNode(node *ast.Node) (labelItem, error) {
	var item labelItem
	for _, field := range node.Children {
		if field.Name == "" {
			continue
		}
		value := fieldValue(field)
		switch field.Name {
		case "id":
			n, err := strconv.Atoi(value)
			if err != nil {
				return item, fmt.Errorf("line %d: invalid id %q", field.Start.Line, value)
			}
			item.id, item.hasID = n, true
		case "name":
			item.name = value
		case "display_name":
			item.displayName = value
		}
	}
	if !item.hasID {
		return item, fmt.Errorf("line %d: item %q has no id", node.Start.Line, item.name)
	}
	return item, nil
}

// fieldValue joins a scalar field's values with quotes removed. Adjacent string
// literals concatenate as in the text format.
func fieldValue(field *ast.Node) string {
	var sb strings.Builder
	for _, v := range field.Values {
		sb.WriteString(unquote(v.Value))
	}
	return sb.String()
}

func unquote(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	switch q := raw[0]; {
	case q == '"' && raw[len(raw)-1] == '"':
		if s, err := strconv.Unquote(raw); err == nil {
			return s
		}
		return raw[1 : len(raw)-1]
	case q == '\'' && raw[len(raw)-1] == '\'':
		return raw[1 : len(raw)-1]
	}
	return raw
}

func checkLabelID(id int, name string) error {
	if id < 0 {
		return fmt.Errorf("label map ids should be >= 0, got %d", id)
	}
	if id == 0 && name != "background" {
		return fmt.Errorf("label map id 0 is reserved for the background label")
	}
	return nil
}
