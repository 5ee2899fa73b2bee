package panels

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/dsentr/dsentr/pkg/domain"
)

// ViewHandler receives every view a session emits, in emission order.
type ViewHandler func(view PanelView)

// Session is a live configuration panel for one node. It renders immediately
// from whatever is cached, subscribes to inventory updates, and re-renders on
// every change. Identical consecutive views are not re-emitted, and a view
// built from an older snapshot than one already emitted is dropped.
type Session struct {
	id          string
	workspaceID string
	nodeID      string

	service *Service
	handler ViewHandler
	cancel  func()

	mu           sync.Mutex
	closed       bool
	lastEmitted  *PanelView
	optionTokens map[string]string
}

// OptionsResult is a loaded pick-list page tagged with the request token it
// was loaded under.
type OptionsResult struct {
	Token string            `json:"token"`
	Page  domain.OptionPage `json:"page"`
}

// OpenSession opens a live panel for a node. The reading of the cached
// snapshot and the subscription happen as one step, so no inventory update
// can fall between the first render and the first notification. When the
// workspace has no cached snapshot yet the session emits a pending view and
// fetches in the background; the fetch arrives through the subscription.
func (s *Service) OpenSession(ctx context.Context, workspaceID, nodeID string, handler ViewHandler) (*Session, error) {
	node, err := s.loadProviderNode(ctx, workspaceID, nodeID)
	if err != nil {
		return nil, err
	}

	session := &Session{
		id:           xid.New().String(),
		workspaceID:  workspaceID,
		nodeID:       nodeID,
		service:      s,
		handler:      handler,
		optionTokens: make(map[string]string),
	}

	snapshot, ok, cancel := s.hub.Cache().GetAndSubscribe(workspaceID, session.onSnapshot)
	session.cancel = cancel

	if !ok {
		session.emit(pendingView(node))
		go session.fetchInitial()
		return session, nil
	}

	view, err := s.applySnapshot(ctx, node, snapshot)
	if err != nil {
		cancel()
		return nil, err
	}
	session.emit(view)

	return session, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) fetchInitial() {
	if _, err := s.service.hub.EnsureSnapshot(context.Background(), s.workspaceID); err != nil {
		log.Warn().
			Err(err).
			Str("workspace_id", s.workspaceID).
			Str("node_id", s.nodeID).
			Msg("Failed to fetch connection inventory for panel")
	}
}

// onSnapshot runs on the cache's fan-out goroutine for every inventory
// update, in commit order.
func (s *Session) onSnapshot(snapshot *domain.GroupedConnectionsSnapshot) {
	if s.isClosed() {
		return
	}

	ctx := context.Background()

	node, err := s.service.nodes.GetNode(ctx, s.workspaceID, s.nodeID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("workspace_id", s.workspaceID).
			Str("node_id", s.nodeID).
			Msg("Panel node unavailable during inventory update")
		return
	}

	view, err := s.service.applySnapshot(ctx, node, snapshot)
	if err != nil {
		log.Warn().
			Err(err).
			Str("workspace_id", s.workspaceID).
			Str("node_id", s.nodeID).
			Msg("Failed to reconcile panel after inventory update")
		return
	}

	s.emit(view)
}

// SetSelection applies an explicit connection choice and emits the resulting
// view.
func (s *Session) SetSelection(ctx context.Context, selection domain.ConnectionSelection) (PanelView, error) {
	if s.isClosed() {
		return PanelView{}, ErrSessionClosed
	}

	view, err := s.service.SetSelection(ctx, s.workspaceID, s.nodeID, selection)
	if err != nil {
		return PanelView{}, err
	}

	s.emit(view)
	return view, nil
}

// ClearSelection drops the node's selection and emits the resulting view.
func (s *Session) ClearSelection(ctx context.Context) (PanelView, error) {
	if s.isClosed() {
		return PanelView{}, ErrSessionClosed
	}

	view, err := s.service.ClearSelection(ctx, s.workspaceID, s.nodeID)
	if err != nil {
		return PanelView{}, err
	}

	s.emit(view)
	return view, nil
}

// LoadOptions loads one pick-list under a fresh request token. When a newer
// request for the same field starts before this one finishes, this one comes
// back as superseded no matter how it went: its data and its error are both
// discarded, so a slow early response can never overwrite a later one.
func (s *Session) LoadOptions(ctx context.Context, req OptionsRequest) (OptionsResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return OptionsResult{}, ErrSessionClosed
	}
	token := xid.New().String()
	s.optionTokens[req.OptionType] = token
	s.mu.Unlock()

	page, err := s.service.LoadOptions(ctx, s.workspaceID, s.nodeID, req)

	s.mu.Lock()
	current := s.optionTokens[req.OptionType]
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return OptionsResult{}, ErrSessionClosed
	}
	if current != token {
		return OptionsResult{}, fmt.Errorf("%w: %s", ErrStaleOptionsRequest, req.OptionType)
	}
	if err != nil {
		return OptionsResult{}, err
	}

	return OptionsResult{Token: token, Page: page}, nil
}

// Close cancels the subscription and invalidates outstanding option tokens.
// Views and option results already in flight are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.optionTokens = nil
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) emit(view PanelView) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.lastEmitted != nil {
		last := *s.lastEmitted
		if last.Equal(view) {
			s.mu.Unlock()
			return
		}
		// Never step back: a loaded view beats a pending one and a newer
		// snapshot beats an older one, whatever order they were built in.
		if last.Loaded && !view.Loaded {
			s.mu.Unlock()
			return
		}
		if last.Loaded && view.Loaded && view.SnapshotVersion < last.SnapshotVersion {
			s.mu.Unlock()
			return
		}
	}
	s.lastEmitted = &view
	s.mu.Unlock()

	s.handler(view)
}
