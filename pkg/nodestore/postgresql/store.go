package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/jackc/pgx/v5"
)

// NodeStore persists workflow node selections in PostgreSQL.
type NodeStore struct {
	conn        *pgx.Conn
	tablePrefix string
}

type Opts struct {
	URI         string
	TablePrefix string
}

func New(ctx context.Context, opts Opts) (*NodeStore, error) {
	conn, err := pgx.Connect(ctx, opts.URI)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}

	store := &NodeStore{
		conn:        conn,
		tablePrefix: opts.TablePrefix,
	}

	if err := store.ensureTables(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("create node tables: %w", err)
	}

	return store, nil
}

func (s *NodeStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

func (s *NodeStore) nodeTable() string {
	if s.tablePrefix != "" {
		return fmt.Sprintf("%s_workflow_nodes", s.tablePrefix)
	}
	return "workflow_nodes"
}

func (s *NodeStore) ensureTables(ctx context.Context) error {
	nodeTable := s.nodeTable()

	createNodeSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT NOT NULL,
			workflow_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			name TEXT NOT NULL,
			provider TEXT NOT NULL,
			selection_scope TEXT NOT NULL DEFAULT '',
			selection_id TEXT NOT NULL DEFAULT '',
			selection_email TEXT NOT NULL DEFAULT '',
			dirty BOOLEAN NOT NULL DEFAULT FALSE,
			validation_errors JSONB,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (workspace_id, id)
		)
	`, nodeTable)

	createNodeIndexSQL := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_workspace ON %s(workspace_id)
	`, nodeTable, nodeTable)

	_, err := s.conn.Exec(ctx, createNodeSQL)
	if err != nil {
		return fmt.Errorf("failed to create workflow nodes table: %w", err)
	}

	_, err = s.conn.Exec(ctx, createNodeIndexSQL)
	if err != nil {
		return fmt.Errorf("failed to create workflow nodes index: %w", err)
	}

	return nil
}

type nodeRow struct {
	ID               string
	WorkflowID       string
	WorkspaceID      string
	Name             string
	Provider         string
	SelectionScope   string
	SelectionID      string
	SelectionEmail   string
	Dirty            bool
	ValidationErrors []byte
	UpdatedAt        time.Time
}

func rowFromNode(node domain.WorkflowNode) (nodeRow, error) {
	var validationErrors []byte
	if len(node.ValidationErrors) > 0 {
		encoded, err := json.Marshal(node.ValidationErrors)
		if err != nil {
			return nodeRow{}, fmt.Errorf("failed to marshal validation errors: %w", err)
		}
		validationErrors = encoded
	}

	return nodeRow{
		ID:               node.ID,
		WorkflowID:       node.WorkflowID,
		WorkspaceID:      node.WorkspaceID,
		Name:             node.Name,
		Provider:         string(node.Provider),
		SelectionScope:   string(node.Selection.ConnectionScope),
		SelectionID:      node.Selection.ConnectionID,
		SelectionEmail:   node.Selection.AccountEmail,
		Dirty:            node.Dirty,
		ValidationErrors: validationErrors,
		UpdatedAt:        node.UpdatedAt,
	}, nil
}

func (r nodeRow) toNode() (domain.WorkflowNode, error) {
	var validationErrors []domain.NodeValidationError
	if len(r.ValidationErrors) > 0 {
		if err := json.Unmarshal(r.ValidationErrors, &validationErrors); err != nil {
			return domain.WorkflowNode{}, fmt.Errorf("failed to unmarshal validation errors: %w", err)
		}
	}

	return domain.WorkflowNode{
		ID:          r.ID,
		WorkflowID:  r.WorkflowID,
		WorkspaceID: r.WorkspaceID,
		Name:        r.Name,
		Provider:    domain.ProviderType(r.Provider),
		Selection: domain.ConnectionSelection{
			ConnectionScope: domain.ConnectionScope(r.SelectionScope),
			ConnectionID:    r.SelectionID,
			AccountEmail:    r.SelectionEmail,
		},
		Dirty:            r.Dirty,
		ValidationErrors: validationErrors,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}

func (s *NodeStore) GetNode(ctx context.Context, workspaceID, nodeID string) (domain.WorkflowNode, error) {
	selectSQL := fmt.Sprintf(`
		SELECT id, workflow_id, workspace_id, name, provider,
			selection_scope, selection_id, selection_email,
			dirty, validation_errors, updated_at
		FROM %s
		WHERE workspace_id = $1 AND id = $2
	`, s.nodeTable())

	var row nodeRow
	err := s.conn.QueryRow(ctx, selectSQL, workspaceID, nodeID).Scan(
		&row.ID,
		&row.WorkflowID,
		&row.WorkspaceID,
		&row.Name,
		&row.Provider,
		&row.SelectionScope,
		&row.SelectionID,
		&row.SelectionEmail,
		&row.Dirty,
		&row.ValidationErrors,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WorkflowNode{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
		}
		return domain.WorkflowNode{}, fmt.Errorf("failed to query node: %w", err)
	}

	return row.toNode()
}

func (s *NodeStore) SaveNode(ctx context.Context, node domain.WorkflowNode) error {
	node.UpdatedAt = time.Now()

	row, err := rowFromNode(node)
	if err != nil {
		return err
	}

	upsertSQL := fmt.Sprintf(`
		INSERT INTO %s (
			id, workflow_id, workspace_id, name, provider,
			selection_scope, selection_id, selection_email,
			dirty, validation_errors, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (workspace_id, id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			name = EXCLUDED.name,
			provider = EXCLUDED.provider,
			selection_scope = EXCLUDED.selection_scope,
			selection_id = EXCLUDED.selection_id,
			selection_email = EXCLUDED.selection_email,
			dirty = EXCLUDED.dirty,
			validation_errors = EXCLUDED.validation_errors,
			updated_at = EXCLUDED.updated_at
	`, s.nodeTable())

	_, err = s.conn.Exec(ctx, upsertSQL,
		row.ID,
		row.WorkflowID,
		row.WorkspaceID,
		row.Name,
		row.Provider,
		row.SelectionScope,
		row.SelectionID,
		row.SelectionEmail,
		row.Dirty,
		row.ValidationErrors,
		row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save node: %w", err)
	}

	return nil
}

func (s *NodeStore) ListNodes(ctx context.Context, workspaceID string) ([]domain.WorkflowNode, error) {
	selectSQL := fmt.Sprintf(`
		SELECT id, workflow_id, workspace_id, name, provider,
			selection_scope, selection_id, selection_email,
			dirty, validation_errors, updated_at
		FROM %s
		WHERE workspace_id = $1
		ORDER BY id
	`, s.nodeTable())

	rows, err := s.conn.Query(ctx, selectSQL, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.WorkflowNode

	for rows.Next() {
		var row nodeRow
		err := rows.Scan(
			&row.ID,
			&row.WorkflowID,
			&row.WorkspaceID,
			&row.Name,
			&row.Provider,
			&row.SelectionScope,
			&row.SelectionID,
			&row.SelectionEmail,
			&row.Dirty,
			&row.ValidationErrors,
			&row.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		node, err := row.toNode()
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}

	return nodes, nil
}

func (s *NodeStore) ApplySelectionPatch(ctx context.Context, workspaceID, nodeID string, patch *domain.SelectionPatch) (domain.WorkflowNode, error) {
	node, err := s.GetNode(ctx, workspaceID, nodeID)
	if err != nil {
		return domain.WorkflowNode{}, err
	}

	// A patch that would not change the stored selection leaves the node
	// exactly as it is, dirty flag and update time included.
	if !patch.AppliesTo(node.Selection) {
		return node, nil
	}

	if patch.Selection == nil {
		node.Selection = domain.ConnectionSelection{}
	} else {
		node.Selection = *patch.Selection
	}
	node.Dirty = true
	node.UpdatedAt = time.Now()

	updateSQL := fmt.Sprintf(`
		UPDATE %s
		SET selection_scope = $1, selection_id = $2, selection_email = $3,
			dirty = $4, updated_at = $5
		WHERE workspace_id = $6 AND id = $7
	`, s.nodeTable())

	_, err = s.conn.Exec(ctx, updateSQL,
		string(node.Selection.ConnectionScope),
		node.Selection.ConnectionID,
		node.Selection.AccountEmail,
		node.Dirty,
		node.UpdatedAt,
		workspaceID,
		nodeID,
	)
	if err != nil {
		return domain.WorkflowNode{}, fmt.Errorf("failed to apply selection patch: %w", err)
	}

	return node, nil
}

func (s *NodeStore) SetValidationErrors(ctx context.Context, workspaceID, nodeID string, validationErrors []domain.NodeValidationError) error {
	var encoded []byte
	if len(validationErrors) > 0 {
		var err error
		encoded, err = json.Marshal(validationErrors)
		if err != nil {
			return fmt.Errorf("failed to marshal validation errors: %w", err)
		}
	}

	updateSQL := fmt.Sprintf(`
		UPDATE %s
		SET validation_errors = $1
		WHERE workspace_id = $2 AND id = $3
	`, s.nodeTable())

	tag, err := s.conn.Exec(ctx, updateSQL, encoded, workspaceID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to set validation errors: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}

	return nil
}
