package tui

import (
	"context"
	"os"
	"time"

	list "github.com/charmbracelet/bubbles/list"
	table "github.com/charmbracelet/bubbles/table"
	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"chronomap/internal/mapstate"
)

type sidebarMode int

const (
	sidebarHidden sidebarMode = iota
	sidebarEntities
	sidebarFiles
)

// flight is a viewport transition being animated.
type flight struct {
	from   mapstate.Viewport
	target mapstate.FlyTarget
	start  time.Time
}

type Model struct {
	store *mapstate.Store
	ctx   context.Context

	width  int
	height int

	sidebar     sidebarMode
	helpVisible bool
	showLabels  bool
	showMarkers bool

	status string
	year   int

	// entity list of the active dimension
	entities list.Model

	// territory file browser
	cwd   string
	files list.Model

	// goto-year prompt
	gotoMode bool
	ti       textinput.Model

	// hover state
	hovering    bool
	hoverCellX  int
	hoverCellY  int
	hoverLon    float64
	hoverLat    float64
	hoverID     string
	hoverHasGeo bool

	// territory attributes table
	showAttrs bool
	tbl       table.Model

	flight  *flight
	ticking bool

	exportDir string
}

// Options configure a Model.
type Options struct {
	Year      int
	ExportDir string
	// Context bounds every fetch the model starts; nil means Background.
	Context context.Context
}

func New(store *mapstate.Store, opts Options) Model {
	m := Model{
		store:       store,
		ctx:         opts.Context,
		helpVisible: true,
		showLabels:  true,
		showMarkers: true,
		status:      "chronomap ready",
		year:        opts.Year,
		exportDir:   opts.ExportDir,
	}
	if m.ctx == nil {
		m.ctx = context.Background()
	}
	if m.exportDir == "" {
		m.exportDir, _ = os.Getwd()
	}
	m.cwd, _ = os.Getwd()

	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	m.entities = list.New(nil, d, 0, 0)
	m.entities.Title = "Entities"
	m.entities.SetShowHelp(false)
	m.entities.SetShowStatusBar(false)
	m.entities.SetFilteringEnabled(true)
	m.entities.DisableQuitKeybindings()

	fd := list.NewDefaultDelegate()
	fd.ShowDescription = false
	m.files = list.New(nil, fd, 0, 0)
	m.files.Title = "Territory files"
	m.files.SetShowHelp(false)
	m.files.SetShowStatusBar(false)
	m.files.SetFilteringEnabled(true)
	m.files.DisableQuitKeybindings()

	m.ti = textinput.New()
	m.ti.Placeholder = "year, e.g. 1453 or -500"
	m.ti.Prompt = "year> "
	m.ti.CharLimit = 8

	m.tbl = table.New(table.WithFocused(true))
	m.tbl.SetHeight(10)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadMetadataCmd(m.ctx, m.store), loadYearCmd(m.ctx, m.store, m.year), pendingFlyCmd(m.store))
}
