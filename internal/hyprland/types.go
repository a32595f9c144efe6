package hyprland

// Monitor matches an entry of `hyprctl monitors -j`.
type Monitor struct {
	ID              int          `json:"id"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Width           int          `json:"width"`
	Height          int          `json:"height"`
	RefreshRate     float64      `json:"refreshRate"`
	X               int          `json:"x"`
	Y               int          `json:"y"`
	ActiveWorkspace WorkspaceRef `json:"activeWorkspace"`
	Scale           float64      `json:"scale"`
	Transform       int          `json:"transform"`
	Focused         bool         `json:"focused"`
	Disabled        bool         `json:"disabled"`
}

// WorkspaceRef is the short workspace reference embedded in monitors and
// clients.
type WorkspaceRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Workspace matches `hyprctl activeworkspace -j`.
type Workspace struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Monitor string `json:"monitor"`
	Windows int    `json:"windows"`
}

// Window matches an entry of `hyprctl clients -j`.
type Window struct {
	Address      string       `json:"address"`
	Mapped       bool         `json:"mapped"`
	Hidden       bool         `json:"hidden"`
	At           [2]int       `json:"at"`
	Size         [2]int       `json:"size"`
	Workspace    WorkspaceRef `json:"workspace"`
	Floating     bool         `json:"floating"`
	Pinned       bool         `json:"pinned"`
	Monitor      int          `json:"monitor"`
	Class        string       `json:"class"`
	Title        string       `json:"title"`
	InitialClass string       `json:"initialClass"`
	PID          int          `json:"pid"`
}

// Area returns the window's pixel area, treating negative sizes as empty.
func (w Window) Area() int64 {
	width, height := int64(max(w.Size[0], 0)), int64(max(w.Size[1], 0))
	return width * height
}

// Selector returns the dispatcher window selector for w.
func (w Window) Selector() string {
	if w.Address != "" {
		return "address:" + w.Address
	}
	return PIDSelector(w.PID)
}
