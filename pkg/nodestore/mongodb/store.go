package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const indexTimeout = 30 * time.Second

// NodeStore persists workflow node selections in MongoDB.
type NodeStore struct {
	collection *mongo.Collection
}

type Opts struct {
	URI            string
	DatabaseName   string
	CollectionName string
}

func New(ctx context.Context, opts Opts) (*NodeStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	databaseName := opts.DatabaseName
	if databaseName == "" {
		databaseName = "dsentr"
	}

	collectionName := opts.CollectionName
	if collectionName == "" {
		collectionName = "workflow_nodes"
	}

	store := &NodeStore{collection: client.Database(databaseName).Collection(collectionName)}
	store.ensureIndexes(ctx)

	return store, nil
}

// ensureIndexes is best effort. A node store on a collection without its
// indexes still works, just slower, so startup is not blocked on this.
func (s *NodeStore) ensureIndexes(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	byWorkspaceAndNode := mongo.IndexModel{
		Keys:    bson.D{{Key: "workspace_id", Value: 1}, {Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	byWorkspace := mongo.IndexModel{
		Keys: bson.D{{Key: "workspace_id", Value: 1}},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{byWorkspaceAndNode, byWorkspace}); err != nil {
		log.Warn().Err(err).Msg("Failed to create workflow node indexes")
	}
}

type validationErrorDocument struct {
	Code    string `bson:"code"`
	Message string `bson:"message"`
}

type nodeDocument struct {
	ID               string                    `bson:"id"`
	WorkflowID       string                    `bson:"workflow_id"`
	WorkspaceID      string                    `bson:"workspace_id"`
	Name             string                    `bson:"name"`
	Provider         string                    `bson:"provider"`
	SelectionScope   string                    `bson:"selection_scope,omitempty"`
	SelectionID      string                    `bson:"selection_id,omitempty"`
	SelectionEmail   string                    `bson:"selection_email,omitempty"`
	Dirty            bool                      `bson:"dirty"`
	ValidationErrors []validationErrorDocument `bson:"validation_errors,omitempty"`
	UpdatedAt        time.Time                 `bson:"updated_at"`
}

func documentFromNode(node domain.WorkflowNode) nodeDocument {
	validationErrors := make([]validationErrorDocument, 0, len(node.ValidationErrors))
	for _, validationError := range node.ValidationErrors {
		validationErrors = append(validationErrors, validationErrorDocument{
			Code:    string(validationError.Code),
			Message: validationError.Message,
		})
	}

	return nodeDocument{
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
	}
}

func (d nodeDocument) toNode() domain.WorkflowNode {
	var validationErrors []domain.NodeValidationError
	for _, validationError := range d.ValidationErrors {
		validationErrors = append(validationErrors, domain.NodeValidationError{
			Code:    domain.NodeValidationCode(validationError.Code),
			Message: validationError.Message,
		})
	}

	return domain.WorkflowNode{
		ID:          d.ID,
		WorkflowID:  d.WorkflowID,
		WorkspaceID: d.WorkspaceID,
		Name:        d.Name,
		Provider:    domain.ProviderType(d.Provider),
		Selection: domain.ConnectionSelection{
			ConnectionScope: domain.ConnectionScope(d.SelectionScope),
			ConnectionID:    d.SelectionID,
			AccountEmail:    d.SelectionEmail,
		},
		Dirty:            d.Dirty,
		ValidationErrors: validationErrors,
		UpdatedAt:        d.UpdatedAt,
	}
}

// nodeFilter addresses a single node. Every document is keyed by workspace
// and node id together, matching the unique index.
func nodeFilter(workspaceID, nodeID string) bson.M {
	return bson.M{"workspace_id": workspaceID, "id": nodeID}
}

func (s *NodeStore) GetNode(ctx context.Context, workspaceID, nodeID string) (domain.WorkflowNode, error) {
	var doc nodeDocument
	err := s.collection.FindOne(ctx, nodeFilter(workspaceID, nodeID)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.WorkflowNode{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}
	if err != nil {
		return domain.WorkflowNode{}, fmt.Errorf("find node: %w", err)
	}

	return doc.toNode(), nil
}

func (s *NodeStore) SaveNode(ctx context.Context, node domain.WorkflowNode) error {
	node.UpdatedAt = time.Now()
	doc := documentFromNode(node)

	_, err := s.collection.UpdateOne(ctx, nodeFilter(doc.WorkspaceID, doc.ID), bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save node: %w", err)
	}

	return nil
}

func (s *NodeStore) ListNodes(ctx context.Context, workspaceID string) ([]domain.WorkflowNode, error) {
	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.M{"workspace_id": workspaceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find nodes: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []nodeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}

	nodes := make([]domain.WorkflowNode, 0, len(docs))
	for _, doc := range docs {
		nodes = append(nodes, doc.toNode())
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

	update := bson.M{"$set": bson.M{
		"selection_scope": string(node.Selection.ConnectionScope),
		"selection_id":    node.Selection.ConnectionID,
		"selection_email": node.Selection.AccountEmail,
		"dirty":           node.Dirty,
		"updated_at":      node.UpdatedAt,
	}}

	if _, err := s.collection.UpdateOne(ctx, nodeFilter(workspaceID, nodeID), update); err != nil {
		return domain.WorkflowNode{}, fmt.Errorf("apply selection patch: %w", err)
	}

	return node, nil
}

func (s *NodeStore) SetValidationErrors(ctx context.Context, workspaceID, nodeID string, validationErrors []domain.NodeValidationError) error {
	docs := make([]validationErrorDocument, 0, len(validationErrors))
	for _, validationError := range validationErrors {
		docs = append(docs, validationErrorDocument{
			Code:    string(validationError.Code),
			Message: validationError.Message,
		})
	}

	update := bson.M{"$set": bson.M{"validation_errors": docs}}

	result, err := s.collection.UpdateOne(ctx, nodeFilter(workspaceID, nodeID), update)
	if err != nil {
		return fmt.Errorf("set validation errors: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, nodeID)
	}

	return nil
}
