package tui

import (
	"strconv"

	table "github.com/charmbracelet/bubbles/table"

	"chronomap/internal/mapstate"
)

// attrRows describes one territory: its id, then each dimension as
// "name (id)", the capital and the population.
func attrRows(s *mapstate.Store, p mapstate.Province) []table.Row {
	rows := []table.Row{{"territory", p.ID}}
	if p.Props == nil {
		return append(rows, table.Row{"status", "no data for this year"})
	}
	named := func(id string, d mapstate.Dimension) string {
		if id == "" {
			return "-"
		}
		if name := s.EntityName(id, d); name != id {
			return name + " (" + id + ")"
		}
		return id
	}
	rows = append(rows,
		table.Row{"ruler", named(p.Props.Ruler, mapstate.Ruler)},
		table.Row{"culture", named(p.Props.Culture, mapstate.Culture)},
		table.Row{"religion", named(p.Props.Religion, mapstate.Religion)},
		table.Row{"religion group", named(p.Props.ReligionGeneral, mapstate.ReligionGeneral)},
	)
	capital := p.Props.Capital
	if capital == "" {
		capital = "-"
	}
	rows = append(rows,
		table.Row{"capital", capital},
		table.Row{"population", strconv.FormatFloat(p.Props.Population, 'f', -1, 64)},
	)
	d := s.ActiveColor()
	if d != mapstate.Population {
		if wiki, ok := s.GetEntityWiki(p.Props.Value(d), d); ok && wiki != "" {
			rows = append(rows, table.Row{"wiki", wiki})
		}
	}
	return rows
}

// refreshAttrs fills the table with the territory under the cursor, or
// under the map center when the mouse is elsewhere.
func (m *Model) refreshAttrs() {
	lon, lat := m.hoverLon, m.hoverLat
	if !m.hoverHasGeo {
		v := m.store.Viewport()
		lon, lat = v.Longitude, v.Latitude
	}
	p, ok := m.store.ProvinceAt(lon, lat)
	if !ok {
		m.showAttrs = false
		m.status = "no territory here"
		return
	}
	rows := attrRows(m.store, p)
	valW := 12
	for _, r := range rows {
		valW = max(valW, len(r[1]))
	}
	// clear rows first so the table never sees rows wider than its columns
	m.tbl.SetRows(nil)
	m.tbl.SetColumns([]table.Column{{Title: "field", Width: 14}, {Title: "value", Width: min(valW, 48)}})
	m.tbl.SetRows(rows)
}
