package session

import "time"

// Status describes the active session.
type Status struct {
	Record          *Record       `json:"record"`
	ControllerAlive bool          `json:"controller_alive"`
	ChildAlive      bool          `json:"child_alive"`
	Uptime          time.Duration `json:"uptime_ns"`
}

// GetStatus loads the record and checks its processes. A record whose
// processes are all gone is reported as ErrNoActiveSession.
func GetStatus(records *RecordStore, alive Liveness, now time.Time) (*Status, error) {
	if records == nil {
		records = NewRecordStore("")
	}
	if alive == nil {
		alive = ProcessAlive
	}

	rec, err := records.Load()
	if err != nil {
		return nil, err
	}

	st := &Status{
		Record:          rec,
		ControllerAlive: alive(rec.ControllerPID, rec.ControllerName),
		ChildAlive:      alive(rec.ChildPID, rec.ChildName),
	}
	if !st.ControllerAlive && !st.ChildAlive {
		return nil, ErrNoActiveSession
	}
	if !rec.StartedAt.IsZero() {
		st.Uptime = now.Sub(rec.StartedAt)
	}
	return st, nil
}
