package mapstate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Dimension is an axis by which territories are grouped and colored.
type Dimension string

const (
	Ruler           Dimension = "ruler"
	Culture         Dimension = "culture"
	Religion        Dimension = "religion"
	ReligionGeneral Dimension = "religionGeneral"
	Population      Dimension = "population"
)

// Dimensions lists every dimension in layer order.
var Dimensions = []Dimension{Ruler, Culture, Religion, ReligionGeneral, Population}

// ParseDimension accepts the wire names of the five dimensions.
func ParseDimension(s string) (Dimension, bool) {
	for _, d := range Dimensions {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

func (d Dimension) Valid() bool {
	_, ok := ParseDimension(string(d))
	return ok
}

// index is the position of the dimension in the wire tuple. religionGeneral
// has no column of its own and reads the religion column.
func (d Dimension) index() int {
	switch d {
	case Ruler:
		return 0
	case Culture:
		return 1
	case Religion, ReligionGeneral:
		return 2
	case Population:
		return 4
	}
	return -1
}

// Attributes is one territory's record for one year. On the wire it is the
// tuple [rulerId, cultureId, religionId, capitalId|null, population].
type Attributes struct {
	Ruler      string
	Culture    string
	Religion   string
	Capital    string
	Population float64
}

// at returns the id stored at a tuple index; population is not an id.
func (a Attributes) at(idx int) string {
	switch idx {
	case 0:
		return a.Ruler
	case 1:
		return a.Culture
	case 2:
		return a.Religion
	case 3:
		return a.Capital
	}
	return ""
}

func (a *Attributes) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("area tuple: %w", err)
	}
	field := func(i int) json.RawMessage {
		if i < len(raw) {
			return raw[i]
		}
		return nil
	}
	*a = Attributes{
		Ruler:      rawID(field(0)),
		Culture:    rawID(field(1)),
		Religion:   rawID(field(2)),
		Capital:    rawID(field(3)),
		Population: rawNumber(field(4)),
	}
	return nil
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	var capital any
	if a.Capital != "" {
		capital = a.Capital
	}
	return json.Marshal([]any{a.Ruler, a.Culture, a.Religion, capital, a.Population})
}

// rawID reads a string id; numeric ids are formatted, null and anything else is "".
func rawID(m json.RawMessage) string {
	m = bytes.TrimSpace(m)
	if len(m) == 0 || bytes.Equal(m, []byte("null")) {
		return ""
	}
	var v any
	if err := json.Unmarshal(m, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func rawNumber(m json.RawMessage) float64 {
	m = bytes.TrimSpace(m)
	if len(m) == 0 {
		return 0
	}
	var v any
	if err := json.Unmarshal(m, &v); err != nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err == nil {
			return f
		}
	}
	return 0
}

// AreaSnapshot maps territory id to its attributes for one year. Snapshots
// are never mutated once stored; writers replace them.
type AreaSnapshot map[string]Attributes

// value resolves the attribute a territory shows on dimension d. religionGeneral
// goes through the religion's parent.
func (s *Store) valueLocked(a Attributes, d Dimension) string {
	switch d {
	case Ruler:
		return a.Ruler
	case Culture:
		return a.Culture
	case Religion:
		return a.Religion
	case ReligionGeneral:
		if a.Religion == "" {
			return ""
		}
		return s.religionGeneralLocked(a.Religion)
	}
	return ""
}
