package tui

import (
	list "github.com/charmbracelet/bubbles/list"

	"chronomap/internal/mapstate"
)

type entityItem struct {
	id, name  string
	dimension mapstate.Dimension
}

func (e entityItem) Title() string       { return e.name }
func (e entityItem) Description() string { return e.id }
func (e entityItem) FilterValue() string { return e.name }

// refreshEntities lists the labeled entities of the active dimension,
// biggest first.
func (m *Model) refreshEntities() {
	labels := m.store.Labels()
	items := make([]list.Item, 0, len(labels))
	for _, l := range labels {
		name := l.Name
		if name == "" {
			name = l.EntityID
		}
		items = append(items, entityItem{id: l.EntityID, name: name, dimension: l.Dimension})
	}
	m.entities.SetItems(items)
	m.entities.Title = "Entities: " + string(m.store.ActiveColor())
}

// selectEntity highlights an entity and flies to it.
func (m *Model) selectEntity(id string, d mapstate.Dimension) {
	if d == mapstate.ReligionGeneral {
		m.status = "religion groups are outlined by picking a territory on the map"
		return
	}
	o := m.store.SelectEntity(id, d)
	if o == nil {
		m.status = "no outline for " + m.store.EntityName(id, d)
		return
	}
	m.status = "selected " + m.store.EntityName(id, d)
	m.store.FitToEntityOutline(mapstate.DefaultFitPadding)
}
