package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Column types reported by the Core Reporting API.
const (
	ColumnTypeDimension = "DIMENSION"
	ColumnTypeMetric    = "METRIC"
)

// AnalyticsReport is a Core Reporting API (v3) response.
type AnalyticsReport struct {
	Kind                string         `json:"kind,omitempty"`
	ID                  string         `json:"id,omitempty"`
	Query               QueryParams    `json:"query"`
	ItemsPerPage        Count          `json:"itemsPerPage"`
	TotalResults        Count          `json:"totalResults"`
	SelfLink            string         `json:"selfLink,omitempty"`
	NextLink            string         `json:"nextLink,omitempty"`
	PreviousLink        string         `json:"previousLink,omitempty"`
	ProfileInfo         *ProfileInfo   `json:"profileInfo,omitempty"`
	ContainsSampledData bool           `json:"containsSampledData"`
	ColumnHeaders       []ColumnHeader `json:"columnHeaders" validate:"required,min=1,dive"`
	TotalsForAllResults Totals         `json:"totalsForAllResults"`
	Rows                [][]string     `json:"rows,omitempty"`
}

// ProfileName returns the view name, or "" when the report carries no profile info.
func (r *AnalyticsReport) ProfileName() string {
	if r.ProfileInfo == nil {
		return ""
	}
	return r.ProfileInfo.ProfileName
}

// HasRows reports whether the report contains at least one data row.
func (r *AnalyticsReport) HasRows() bool {
	return r != nil && len(r.Rows) > 0
}

// ColumnHeader describes one column of the result table.
type ColumnHeader struct {
	Name       string `json:"name" validate:"required"`
	ColumnType string `json:"columnType" validate:"required,oneof=DIMENSION METRIC"`
	DataType   string `json:"dataType,omitempty"`
}

// IsMetric reports whether the column holds a metric.
func (c ColumnHeader) IsMetric() bool {
	return c.ColumnType == ColumnTypeMetric
}

// ProfileInfo identifies the view a report was produced for.
type ProfileInfo struct {
	ProfileID             string `json:"profileId,omitempty"`
	AccountID             string `json:"accountId,omitempty"`
	WebPropertyID         string `json:"webPropertyId,omitempty"`
	InternalWebPropertyID string `json:"internalWebPropertyId,omitempty"`
	ProfileName           string `json:"profileName,omitempty"`
	TableID               string `json:"tableId,omitempty"`
}

// Count is a row count the API may send either as a number or as a numeric
// string. The textual form is kept exactly as received.
type Count string

func (c *Count) UnmarshalJSON(data []byte) error {
	text, err := scalarText(data)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	*c = Count(text)
	return nil
}

func (c Count) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(c), 10, 64); err == nil {
		return []byte(c), nil
	}
	return json.Marshal(string(c))
}

func (c Count) String() string {
	return string(c)
}

// QueryValue is a query parameter value: a scalar or a list of strings.
type QueryValue struct {
	Scalar string
	List   []string
	IsList bool
}

// String renders the value for a report; lists are joined with ",".
func (v QueryValue) String() string {
	if v.IsList {
		return strings.Join(v.List, ",")
	}
	return v.Scalar
}

// QueryParam is one entry of the report's query echo.
type QueryParam struct {
	Name  string
	Value QueryValue
}

// QueryParams keeps the query parameters in document order.
type QueryParams []QueryParam

// Get returns the value for name.
func (q QueryParams) Get(name string) (QueryValue, bool) {
	for _, p := range q {
		if p.Name == name {
			return p.Value, true
		}
	}
	return QueryValue{}, false
}

func (q *QueryParams) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	params := QueryParams{}
	index := map[string]int{}
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		value, err := parseQueryValue(raw)
		if err != nil {
			return fmt.Errorf("query parameter %q: %w", key, err)
		}
		if i, ok := index[key]; ok {
			params[i].Value = value
			return nil
		}
		index[key] = len(params)
		params = append(params, QueryParam{Name: key, Value: value})
		return nil
	})
	if err != nil {
		return err
	}
	*q = params
	return nil
}

func (q QueryParams) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range q {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		var value []byte
		if p.Value.IsList {
			value, err = json.Marshal(p.Value.List)
		} else {
			value, err = json.Marshal(p.Value.Scalar)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Total is the aggregate value of one metric over all matched rows.
type Total struct {
	Name  string
	Value string
}

// Totals keeps totalsForAllResults in document order.
type Totals []Total

// Get returns the total recorded for metric name.
func (t Totals) Get(name string) (string, bool) {
	for _, total := range t {
		if total.Name == name {
			return total.Value, true
		}
	}
	return "", false
}

func (t *Totals) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	totals := Totals{}
	index := map[string]int{}
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		value, err := scalarText(raw)
		if err != nil {
			return fmt.Errorf("total %q: %w", key, err)
		}
		if i, ok := index[key]; ok {
			totals[i].Value = value
			return nil
		}
		index[key] = len(totals)
		totals = append(totals, Total{Name: key, Value: value})
		return nil
	})
	if err != nil {
		return err
	}
	*t = totals
	return nil
}

func (t Totals) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, total := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(total.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(total.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

// decodeOrderedObject walks the members of a JSON object in document order.
func decodeOrderedObject(data []byte, member func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("value of %q: %w", key, err)
		}
		if err := member(key, raw); err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}

func parseQueryValue(raw json.RawMessage) (QueryValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return QueryValue{}, err
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			text, err := scalarText(item)
			if err != nil {
				return QueryValue{}, err
			}
			list = append(list, text)
		}
		return QueryValue{List: list, IsList: true}, nil
	}

	text, err := scalarText(raw)
	if err != nil {
		return QueryValue{}, err
	}
	return QueryValue{Scalar: text}, nil
}

// scalarText renders a JSON scalar as text: strings verbatim, numbers in
// plain decimal notation, booleans as true/false and null as "".
// Objects and arrays are kept as compact JSON.
func scalarText(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}

	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		s := t.String()
		if strings.ContainsAny(s, "eE") {
			f, err := t.Float64()
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		}
		return s, nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
}
