package metadata

import "strings"

// Columns is the GA columns metadata document.
type Columns struct {
	Kind           string   `json:"kind"`
	Etag           string   `json:"etag,omitempty"`
	TotalResults   int      `json:"totalResults"`
	AttributeNames []string `json:"attributeNames,omitempty"`
	Items          []Column `json:"items"`
}

// Column describes one dimension or metric.
type Column struct {
	ID         string           `json:"id"`
	Kind       string           `json:"kind,omitempty"`
	Attributes ColumnAttributes `json:"attributes"`
}

// ColumnAttributes are the documented properties of a column.
type ColumnAttributes struct {
	Type              string `json:"type"`
	DataType          string `json:"dataType,omitempty"`
	Group             string `json:"group"`
	Status            string `json:"status,omitempty"`
	UIName            string `json:"uiName,omitempty"`
	Description       string `json:"description,omitempty"`
	AllowedInSegments string `json:"allowedInSegments,omitempty"`
	AddedInAPIVersion string `json:"addedInApiVersion,omitempty"`
	ReplacedBy        string `json:"replacedBy,omitempty"`
	Calculation       string `json:"calculation,omitempty"`
	MinTemplateIndex  string `json:"minTemplateIndex,omitempty"`
	MaxTemplateIndex  string `json:"maxTemplateIndex,omitempty"`
}

// ColumnGroup holds the columns of one group, split by type.
type ColumnGroup struct {
	Name       string   `json:"name"`
	Slug       string   `json:"slug"`
	Metrics    []Column `json:"metrics"`
	Dimensions []Column `json:"dimensions"`
}

// GroupColumns groups columns by attributes.group in order of first
// appearance. Columns that are neither METRIC nor DIMENSION are dropped.
func GroupColumns(items []Column) []ColumnGroup {
	var groups []ColumnGroup
	index := make(map[string]int)

	for _, item := range items {
		name := item.Attributes.Group
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, ColumnGroup{
				Name:       name,
				Slug:       GroupSlug(name),
				Metrics:    []Column{},
				Dimensions: []Column{},
			})
		}

		switch item.Attributes.Type {
		case "METRIC":
			groups[i].Metrics = append(groups[i].Metrics, item)
		case "DIMENSION":
			groups[i].Dimensions = append(groups[i].Dimensions, item)
		}
	}
	return groups
}

// GroupSlug lowercases a group name and replaces spaces with dashes.
func GroupSlug(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}
