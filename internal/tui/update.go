package tui

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	list "github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"chronomap/internal/mapstate"
	"chronomap/internal/transport"
)

const (
	sidebarWidth = 28
	zoomStep     = 0.25
	// panCells is how far one arrow press moves the map.
	panCells = 4
)

// layout returns the map origin and size in terminal cells. View and the
// mouse handler must agree on it.
func (m Model) layout() (x, y, w, h int) {
	headerHeight, footerHeight := 1, 2
	h = max(4, m.height-headerHeight-footerHeight)
	w = max(10, m.width)
	if m.sidebar != sidebarHidden {
		x = sidebarWidth + 1
		w = max(10, w-sidebarWidth-1)
	}
	return x, headerHeight, w, h
}

func (m Model) projection() projection {
	_, _, w, h := m.layout()
	return newProjection(m.store.Viewport(), w, h)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		_, _, w, h := m.layout()
		m.store.SetViewport(mapstate.ViewportPatch{Width: mapstate.Float(float64(w)), Height: mapstate.Float(float64(h))})
		m.entities.SetSize(sidebarWidth-2, h-2)
		m.files.SetSize(sidebarWidth-2, h-2)
		return m, nil

	case metadataMsg:
		switch {
		case transport.IsCanceled(msg.err):
		case msg.err != nil:
			m.status = "metadata: " + msg.err.Error()
		default:
			m.status = fmt.Sprintf("metadata loaded, %d territories", len(m.store.State().Provinces))
		}
		m.refreshEntities()
		return m, nil

	case areaMsg:
		if msg.year != m.year {
			return m, nil
		}
		switch {
		case transport.IsCanceled(msg.err):
		case msg.err != nil:
			m.status = fmt.Sprintf("year %d: %v", msg.year, msg.err)
		default:
			m.status = fmt.Sprintf("year %d", msg.year)
		}
		m.refreshEntities()
		if m.showAttrs {
			m.refreshAttrs()
		}
		return m, nil

	case markersMsg:
		if msg.err != nil && !transport.IsCanceled(msg.err) && msg.year == m.year {
			m.status = fmt.Sprintf("markers %d: %v", msg.year, msg.err)
		}
		return m, nil

	case provincesMsg:
		if msg.err != nil {
			m.status = "load error: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("%d territories from %s", msg.n, msg.path)
		m.refreshEntities()
		return m, nil

	case exportMsg:
		switch {
		case errors.Is(msg.err, mapstate.ErrNoOutline):
			m.status = "nothing selected to export"
		case msg.err != nil:
			m.status = "export: " + msg.err.Error()
		default:
			m.status = "wrote " + msg.path
		}
		return m, nil

	case flyTickMsg:
		return m.stepFlight(time.Time(msg))

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.gotoMode {
		switch msg.String() {
		case "esc":
			m.gotoMode = false
			m.ti.Blur()
			return m, nil
		case "enter":
			y, err := mapstate.ParseYear(strings.TrimSpace(m.ti.Value()))
			m.gotoMode = false
			m.ti.Blur()
			if err != nil {
				m.status = err.Error()
				return m, nil
			}
			return m.setYear(y)
		}
		var cmd tea.Cmd
		m.ti, cmd = m.ti.Update(msg)
		return m, cmd
	}

	// a filtering list owns the keyboard
	if l := m.activeList(); l != nil && l.FilterState() == list.Filtering {
		var cmd tea.Cmd
		*l, cmd = l.Update(msg)
		return m, cmd
	}

	switch k := msg.String(); k {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "h":
		m.helpVisible = !m.helpVisible
	case "up", "down", "left", "right":
		if m.sidebar != sidebarHidden && (k == "up" || k == "down") {
			break
		}
		m.pan(k)
		return m, nil
	case "+", "=":
		m.zoomBy(zoomStep)
	case "-", "_":
		m.zoomBy(-zoomStep)
	case "[":
		return m.setYear(m.year - 1)
	case "]":
		return m.setYear(m.year + 1)
	case "{":
		return m.setYear(m.year - 10)
	case "}":
		return m.setYear(m.year + 10)
	case "g":
		m.gotoMode = true
		m.ti.SetValue("")
		m.ti.Focus()
		return m, nil
	case "1", "2", "3", "4", "5":
		d := mapstate.Dimensions[int(k[0]-'1')]
		if err := m.store.SetActiveColor(d); err != nil {
			m.status = err.Error()
			break
		}
		m.status = "coloring by " + string(d)
		m.refreshEntities()
	case "tab":
		m.sidebar = (m.sidebar + 1) % 3
		if m.sidebar == sidebarFiles {
			m.refreshDir()
		}
		return m, nil
	case "enter":
		switch m.sidebar {
		case sidebarEntities:
			if it, ok := m.entities.SelectedItem().(entityItem); ok {
				m.selectEntity(it.id, it.dimension)
				return m, m.startFlight()
			}
		case sidebarFiles:
			if it, ok := m.files.SelectedItem().(fileItem); ok {
				m.status = "loading " + it.title
				return m, loadProvincesCmd(m.store, it.path)
			}
		default:
			m.selectUnderCursor()
			return m, m.startFlight()
		}
	case "f":
		if !m.store.FitToEntityOutline(mapstate.DefaultFitPadding) {
			m.status = "nothing selected"
			break
		}
		return m, m.startFlight()
	case "esc":
		m.store.ClearSelection()
		m.status = "selection cleared"
	case "a":
		m.showAttrs = !m.showAttrs
		if m.showAttrs {
			m.refreshAttrs()
		}
	case "l":
		m.showLabels = !m.showLabels
	case "m":
		m.showMarkers = !m.showMarkers
	case "b", "s", "p":
		group := map[string]string{"b": "conflict", "s": "settlement", "p": "people"}[k]
		on := !m.store.MarkerVisible(group)
		m.store.SetMarkerFilter(group, on)
		m.status = fmt.Sprintf("%s markers: %v", group, on)
	case "x":
		return m, exportOutlineCmd(m.store, m.exportDir, m.year)
	case "u":
		m.status = "link: " + m.shareQuery()
	}

	if l := m.activeList(); l != nil {
		var cmd tea.Cmd
		*l, cmd = l.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) activeList() *list.Model {
	switch m.sidebar {
	case sidebarEntities:
		return &m.entities
	case sidebarFiles:
		return &m.files
	}
	return nil
}

func (m Model) setYear(y int) (tea.Model, tea.Cmd) {
	if y == m.year {
		return m, nil
	}
	m.year = y
	m.status = fmt.Sprintf("loading year %d", y)
	return m, loadYearCmd(m.ctx, m.store, y)
}

func (m *Model) pan(dir string) {
	m.cancelFlight()
	v := m.store.Viewport()
	step := panCells * m.projection().degPerCell()
	switch dir {
	case "up":
		v.Latitude += step
	case "down":
		v.Latitude -= step
	case "left":
		v.Longitude -= step
	case "right":
		v.Longitude += step
	}
	m.store.SetViewport(mapstate.ViewportPatch{Latitude: &v.Latitude, Longitude: &v.Longitude})
}

func (m *Model) zoomBy(dz float64) {
	m.cancelFlight()
	v := m.store.SetViewport(mapstate.ViewportPatch{Zoom: mapstate.Float(m.store.Viewport().Zoom + dz)})
	m.status = fmt.Sprintf("zoom: %.2f", v.Zoom)
}

// selectUnderCursor outlines the entity of the territory under the mouse,
// or under the map center.
func (m *Model) selectUnderCursor() {
	lon, lat := m.hoverLon, m.hoverLat
	if !m.hoverHasGeo {
		v := m.store.Viewport()
		lon, lat = v.Longitude, v.Latitude
	}
	p, ok := m.store.ProvinceAt(lon, lat)
	if !ok || p.Props == nil {
		m.status = "no territory here"
		return
	}
	d := m.store.ActiveColor()
	if d == mapstate.Population {
		m.status = "population has no entities"
		return
	}
	// religion groups are outlined through the religion column
	value := p.Props.Value(d)
	if d == mapstate.ReligionGeneral {
		value = p.Props.Religion
	}
	if m.store.SelectEntity(value, d) == nil {
		m.status = "no outline for " + value
		return
	}
	m.status = "selected " + m.store.EntityName(p.Props.Value(d), d)
	m.store.FitToEntityOutline(mapstate.DefaultFitPadding)
}

// shareQuery encodes the camera and year as a URL query.
func (m Model) shareQuery() string {
	q := url.Values{}
	mapstate.EncodeViewport(q, m.store.Viewport())
	mapstate.EncodeYear(q, m.year)
	return "?" + q.Encode()
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	ox, oy, w, h := m.layout()
	cx, cy := msg.X-ox, msg.Y-oy
	if cx < 0 || cx >= w || cy < 0 || cy >= h {
		m.hovering = false
		m.hoverHasGeo = false
		if l := m.activeList(); l != nil {
			var cmd tea.Cmd
			*l, cmd = l.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	m.hovering = true
	m.hoverCellX, m.hoverCellY = cx, cy
	m.hoverLon, m.hoverLat = newProjection(m.store.Viewport(), w, h).cellLonLat(cx, cy)
	m.hoverHasGeo = true
	m.hoverID = ""
	if p, ok := m.store.ProvinceAt(m.hoverLon, m.hoverLat); ok {
		m.hoverID = p.ID
	}

	switch {
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.selectUnderCursor()
		return m, m.startFlight()
	case msg.Button == tea.MouseButtonWheelUp:
		m.zoomBy(zoomStep)
	case msg.Button == tea.MouseButtonWheelDown:
		m.zoomBy(-zoomStep)
	}
	return m, nil
}

// startFlight begins animating a pending FlyTo.
func (m *Model) startFlight() tea.Cmd {
	ft, ok := m.store.PendingFlyTo()
	if !ok {
		return nil
	}
	m.flight = &flight{from: m.store.Viewport(), target: ft, start: time.Now()}
	if m.ticking {
		return nil
	}
	m.ticking = true
	return flyTickCmd()
}

func (m *Model) cancelFlight() {
	if m.flight != nil {
		m.flight = nil
		m.store.ClearFlyTo()
	}
}

func (m Model) stepFlight(now time.Time) (tea.Model, tea.Cmd) {
	ft, ok := m.store.PendingFlyTo()
	if !ok {
		m.flight, m.ticking = nil, false
		return m, nil
	}
	if m.flight == nil || m.flight.target != ft {
		// a flight requested outside the model, or a new target
		m.flight = &flight{from: m.store.Viewport(), target: ft, start: now}
	}
	t := float64(now.Sub(m.flight.start)) / float64(ft.Duration)
	if t >= 1 {
		m.store.SetViewport(patchOf(ft.Target))
		m.store.ClearFlyTo()
		m.flight, m.ticking = nil, false
		return m, nil
	}
	m.store.SetViewport(patchOf(interpolate(m.flight.from, ft.Target, ease(t))))
	m.ticking = true
	return m, flyTickCmd()
}

// ease is a cubic ease-in-out on [0,1].
func ease(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// interpolate blends two viewports, taking the short way round in longitude.
func interpolate(a, b mapstate.Viewport, t float64) mapstate.Viewport {
	lerp := func(x, y float64) float64 { return x + (y-x)*t }
	dLng := math.Mod(b.Longitude-a.Longitude+540, 360) - 180
	out := a
	out.Latitude = lerp(a.Latitude, b.Latitude)
	out.Longitude = a.Longitude + dLng*t
	out.Zoom = lerp(a.Zoom, b.Zoom)
	out.Bearing = lerp(a.Bearing, b.Bearing)
	out.Pitch = lerp(a.Pitch, b.Pitch)
	return out
}

func patchOf(v mapstate.Viewport) mapstate.ViewportPatch {
	return mapstate.ViewportPatch{
		Latitude:  &v.Latitude,
		Longitude: &v.Longitude,
		Zoom:      &v.Zoom,
		Bearing:   &v.Bearing,
		Pitch:     &v.Pitch,
	}
}
