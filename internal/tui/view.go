package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chronomap/internal/mapstate"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	_, _, mapWidth, mapHeight := m.layout()
	contentWidth := max(10, m.width)
	st := m.store.State()

	header := lipgloss.NewStyle().Width(contentWidth).Render(m.renderHeader(st))

	var sidebar string
	switch m.sidebar {
	case sidebarEntities:
		sidebar = lipgloss.NewStyle().Width(sidebarWidth).Render(m.entities.View())
	case sidebarFiles:
		sidebar = lipgloss.NewStyle().Width(sidebarWidth).Render(m.files.View())
	}

	var mapView string
	switch {
	case m.gotoMode:
		box := boxStyle.Render(titleStyle.Render("Go to year") + "\n" + m.ti.View())
		mapView = lipgloss.Place(mapWidth, mapHeight, lipgloss.Center, lipgloss.Center, box)
	case m.showAttrs:
		colW := 0
		for _, c := range m.tbl.Columns() {
			colW += c.Width + 3
		}
		maxW := min(mapWidth, max(32, colW))
		tbl := m.tbl
		tbl.SetWidth(maxW - 4)
		tbl.SetHeight(min(mapHeight-2, len(tbl.Rows())+1))
		attrsBox := boxStyle.Width(maxW).Render(tbl.View())
		mapView = lipgloss.Place(mapWidth, mapHeight, lipgloss.Center, lipgloss.Center, attrsBox)
	default:
		f := frame{
			showLabels:  m.showLabels,
			showMarkers: m.showMarkers,
			cursor:      m.hovering,
			cursorX:     m.hoverCellX,
			cursorY:     m.hoverCellY,
		}
		mapView = strings.Join(renderMap(m.store, st, f, mapWidth, mapHeight), "\n")
	}

	body := mapView
	if sidebar != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", mapView)
	}

	status := " " + m.status + " "
	if st.Err != nil {
		status = errStyle.Render(status)
	} else {
		status = dimStyle.Render(status)
	}
	coords := ""
	if m.hoverHasGeo {
		coords = fmt.Sprintf("  lon=%.4f lat=%.4f", m.hoverLon, m.hoverLat)
		if m.hoverID != "" {
			coords += "  " + m.hoverID
		}
		coords = dimStyle.Render(coords + "  ")
	}
	spacerW := max(0, contentWidth-lipgloss.Width(status)-lipgloss.Width(coords))
	line1 := status + strings.Repeat(" ", spacerW) + coords
	footer := lipgloss.JoinVertical(lipgloss.Left, line1, m.renderHelp())

	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return appStyle.Width(contentWidth).Height(m.height).Render(ui)
}

func (m Model) renderHeader(st mapstate.State) string {
	parts := []string{
		titleStyle.Render(" chronomap "),
		fmt.Sprintf("year %s", formatYear(m.year)),
		"color: " + string(st.ActiveColor),
		fmt.Sprintf("zoom %.2f", st.Viewport.Zoom),
	}
	if st.Selection != nil {
		parts = append(parts, "selected: "+m.store.EntityName(st.Selection.Value, st.Selection.Dimension))
	}
	var loading []string
	if st.MetadataLoading {
		loading = append(loading, "metadata")
	}
	if st.AreaLoading {
		loading = append(loading, "areas")
	}
	if st.MarkersLoading {
		loading = append(loading, "markers")
	}
	if len(loading) > 0 {
		parts = append(parts, dimStyle.Render("loading "+strings.Join(loading, ", ")+"…"))
	}
	return strings.Join(parts, dimStyle.Render(" │ "))
}

func formatYear(y int) string {
	if y < 0 {
		return fmt.Sprintf("%d BC", -y)
	}
	return fmt.Sprintf("%d", y)
}

func (m Model) renderHelp() string {
	if !m.helpVisible {
		return ""
	}
	keys := []string{
		"↑↓←→ pan",
		"+/- zoom",
		"[ ] year",
		"g goto",
		"1-5 color",
		"Enter select",
		"f fit",
		"Tab sidebar",
		"a attrs",
		"l labels",
		"m markers",
		"x export",
		"u link",
		"q quit",
	}
	return dimStyle.Render(" " + fitText(strings.Join(keys, "  "), max(0, m.width-1)))
}
