package nearby

import (
	"context"
	"errors"
	"sync"

	"github.com/ctanbus/ctanbus_core/internal/models"
)

// ErrSuperseded is returned when the selection changed while its data was
// being fetched. The late result is discarded.
var ErrSuperseded = errors.New("selection superseded")

// Session tracks the stop and line a user has selected. Each selection bumps
// a generation counter; a fetch only publishes its result when the
// generation it started with is still current.
type Session struct {
	transit Transit

	mu      sync.Mutex
	stop    *models.BusStop
	stopGen uint64
	lineID  string
	line    *models.LineDetail
	lineGen uint64
}

// NewSession creates an empty selection session
func NewSession(transit Transit) *Session {
	return &Session{transit: transit}
}

// SelectStop selects stop and loads the lines serving it. Selecting the
// already selected stop clears the selection and returns nil. When the lines
// cannot be loaded the stop stays selected with no lines.
func (s *Session) SelectStop(ctx context.Context, stop models.BusStop) (*models.BusStop, error) {
	s.mu.Lock()
	s.stopGen++
	if s.stop != nil && s.stop.ID == stop.ID {
		s.stop = nil
		s.mu.Unlock()
		return nil, nil
	}
	gen := s.stopGen
	stop.Lines = []models.BusLine{}
	s.stop = &stop
	s.mu.Unlock()

	lines, err := s.transit.FindLinesForStop(ctx, stop.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.stopGen {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	selected := stop
	selected.Lines = lines
	s.stop = &selected
	out := selected
	return &out, nil
}

// SelectLine selects a line and loads its stops and route
func (s *Session) SelectLine(ctx context.Context, lineID string) (*models.LineDetail, error) {
	s.mu.Lock()
	s.lineGen++
	gen := s.lineGen
	s.lineID = lineID
	s.line = nil
	s.mu.Unlock()

	detail, err := s.transit.LineDetail(ctx, lineID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.lineGen {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	s.line = detail
	return detail, nil
}

// ClearLine drops the line selection, superseding any fetch in flight
func (s *Session) ClearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineGen++
	s.lineID = ""
	s.line = nil
}

// SelectedStop returns a copy of the selected stop, or nil
func (s *Session) SelectedStop() *models.BusStop {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return nil
	}
	out := *s.stop
	return &out
}

// SelectedLine returns the selected line id and its detail once loaded
func (s *Session) SelectedLine() (string, *models.LineDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lineID, s.line
}
