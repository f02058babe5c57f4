// Package graph adapts the document abstraction to a graph store: vertex
// and edge mutations are expressed as parameterized traversal statements,
// and a collection's change feed can be replayed into the graph for bulk
// sync.
package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arthur-debert/docstore/types"
	"go.uber.org/zap"
)

// Submitter executes one parameterized traversal statement. Bindings keep
// property values out of the statement text.
type Submitter interface {
	Submit(ctx context.Context, statement string, bindings map[string]any) error
}

// Statement is a traversal with its bindings, the unit streamed during
// change replay.
type Statement struct {
	Text     string
	Bindings map[string]any
}

// Graph issues vertex/edge mutations through a Submitter.
type Graph struct {
	sub    Submitter
	logger *zap.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger; the default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Graph) { g.logger = logger }
}

// New wraps a Submitter.
func New(sub Submitter, opts ...Option) *Graph {
	g := &Graph{sub: sub, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// UpsertVertex creates or updates a vertex carrying the document's
// top-level properties.
func (g *Graph) UpsertVertex(ctx context.Context, label string, doc types.RawDocument) error {
	stmt, err := UpsertVertexStatement(label, doc)
	if err != nil {
		return err
	}
	return g.sub.Submit(ctx, stmt.Text, stmt.Bindings)
}

// UpsertEdge creates or updates an edge between two vertices, carrying
// properties as edge properties.
func (g *Graph) UpsertEdge(ctx context.Context, label, fromID, toID string, properties map[string]any) error {
	stmt := UpsertEdgeStatement(label, fromID, toID, properties)
	return g.sub.Submit(ctx, stmt.Text, stmt.Bindings)
}

// DropVertex removes a vertex and its incident edges.
func (g *Graph) DropVertex(ctx context.Context, id string) error {
	return g.sub.Submit(ctx, "g.V(vertexId).drop()", map[string]any{"vertexId": id})
}

// UpsertVertexStatement builds the upsert traversal for one document. The
// document value must be a JSON object; its top-level fields become vertex
// properties.
func UpsertVertexStatement(label string, doc types.RawDocument) (Statement, error) {
	properties := map[string]any{}
	if len(doc.Value) > 0 {
		if err := json.Unmarshal(doc.Value, &properties); err != nil {
			return Statement{}, fmt.Errorf("vertex %q: value is not a JSON object: %w", doc.ID, err)
		}
	}
	bindings := map[string]any{
		"vertexId": doc.ID,
		"label":    label,
	}
	text := "g.V(vertexId).fold().coalesce(unfold(), addV(label).property('id', vertexId))"
	text = appendProperties(text, bindings, properties)
	return Statement{Text: text, Bindings: bindings}, nil
}

// UpsertEdgeStatement builds the upsert traversal for one edge. Property
// names and values travel as indexed bindings, so a property named after
// one of the identity bindings cannot clobber it.
func UpsertEdgeStatement(label, fromID, toID string, properties map[string]any) Statement {
	bindings := map[string]any{
		"fromId": fromID,
		"toId":   toID,
		"label":  label,
	}
	text := "g.V(fromId).as('a').V(toId).coalesce(inE(label).where(outV().as('a')), addE(label).from('a'))"
	text = appendProperties(text, bindings, properties)
	return Statement{Text: text, Bindings: bindings}
}

// appendProperties adds one property step per entry, binding both the key
// and the value under generated pN/pNk names.
func appendProperties(text string, bindings map[string]any, properties map[string]any) string {
	i := 0
	for name, value := range properties {
		key := fmt.Sprintf("p%d", i)
		bindings[key] = value
		bindings[key+"k"] = name
		text += fmt.Sprintf(".property(%sk, %s)", key, key)
		i++
	}
	return text
}

// StatementFor converts one change record into the traversal that applies
// it: adds and updates upsert the vertex, deletes drop it.
func StatementFor(label string, change types.Change) (Statement, error) {
	switch change.Type {
	case types.ChangeAdd, types.ChangeUpdate:
		return UpsertVertexStatement(label, change.Document)
	case types.ChangeDelete:
		return Statement{
			Text:     "g.V(vertexId).drop()",
			Bindings: map[string]any{"vertexId": change.Document.ID},
		}, nil
	default:
		return Statement{}, fmt.Errorf("unknown change type %d", change.Type)
	}
}

// ApplyChanges drains a change feed and replays every record as a vertex
// mutation, returning how many statements were applied. Ordering follows
// the feed; a statement failure stops the replay.
func (g *Graph) ApplyChanges(ctx context.Context, label string, feed types.Feed[types.Change]) (int, error) {
	applied := 0
	for feed.HasMore() {
		page, err := feed.ReadNext(ctx)
		if err != nil {
			return applied, err
		}
		for _, change := range page {
			stmt, err := StatementFor(label, change)
			if err != nil {
				return applied, err
			}
			if err := g.sub.Submit(ctx, stmt.Text, stmt.Bindings); err != nil {
				return applied, fmt.Errorf("apply %s %q: %w", change.Type, change.Document.ID, err)
			}
			applied++
			g.logger.Debug("applied change",
				zap.Stringer("type", change.Type),
				zap.String("id", change.Document.ID))
		}
	}
	return applied, nil
}
