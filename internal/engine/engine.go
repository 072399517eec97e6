package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/blockdoc/internal/blocks"
	"github.com/roach88/blockdoc/internal/chain"
	"github.com/roach88/blockdoc/internal/delta"
	"github.com/roach88/blockdoc/internal/ir"
	"github.com/roach88/blockdoc/internal/schema"
	"github.com/roach88/blockdoc/internal/sorter"
	"github.com/roach88/blockdoc/internal/substrate"
)

// documentRoot holds document metadata: the layout version and root id.
var documentRoot = substrate.Root(ir.DocumentRoot)

// Engine is one local replica of a block document.
//
// Thread-safety model:
//   - ApplyActions, ApplyUpdates, InitEmptyDocument, SetRootNodeID:
//     serialized; one write transaction at a time
//   - GetDocumentState, EncodeState: may run concurrently with each other
//   - MergeUpdates: pure, touches no replica state
type Engine struct {
	docID   string
	replica string
	doc     *substrate.Doc
	linker  *chain.Linker
	text    *delta.Engine
	schema  *schema.Schema
	ids     IDGenerator
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithReplicaID fixes the replica id. It must be unique among every replica
// that exchanges updates with this one.
func WithReplicaID(id string) Option {
	return func(e *Engine) {
		e.replica = id
	}
}

// WithIDGenerator sets the generator used for the replica id when none is
// fixed with WithReplicaID. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSchema validates every inserted or updated block against s.
// Without a schema blocks are not validated.
func WithSchema(s *schema.Schema) Option {
	return func(e *Engine) {
		e.schema = s
	}
}

// New creates an Engine holding an empty replica of document docID.
func New(docID string, opts ...Option) *Engine {
	e := &Engine{
		docID:  docID,
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.replica == "" {
		e.replica = e.ids.Generate()
	}

	e.logger = e.logger.With("doc_id", docID, "replica_id", e.replica)
	e.doc = substrate.NewDoc(e.replica)
	e.linker = chain.New(e.logger)
	e.text = delta.New(e.logger)
	return e
}

// DocID returns the document id.
func (e *Engine) DocID() string {
	return e.docID
}

// ReplicaID returns the local replica id.
func (e *Engine) ReplicaID() string {
	return e.replica
}

// InitEmptyDocument writes the document skeleton, if this replica does not
// have it yet, and returns the replica's full state as an update.
func (e *Engine) InitEmptyDocument() ([]byte, error) {
	if _, err := e.doc.Update(ensureInitialized); err != nil {
		e.logger.Error("init failed", "kind", ir.KindOf(err), "error", err)
		return nil, encodingFailure(err)
	}
	update, err := e.EncodeState()
	if err != nil {
		return nil, err
	}
	e.logger.Info("document initialized", "bytes", len(update))
	return update, nil
}

// SetRootNodeID records the id of the document's root block and returns the
// change as an update.
func (e *Engine) SetRootNodeID(id string) ([]byte, error) {
	if id == "" {
		return nil, ir.InvalidOperation("root node id must not be empty")
	}
	update, err := e.doc.Update(func(tx *substrate.Txn) error {
		if err := ensureInitialized(tx); err != nil {
			return err
		}
		return tx.Set(documentRoot, ir.FieldRootID, ir.String(id))
	})
	if err != nil {
		return nil, encodingFailure(err)
	}
	e.logger.Info("root node set", "root_id", id)
	return update, nil
}

// EncodeState returns every op the local replica knows as one update.
// Applying it to an empty replica reproduces this replica's state.
func (e *Engine) EncodeState() ([]byte, error) {
	update, err := e.doc.EncodeState()
	if err != nil {
		return nil, ir.Wrap(ir.KindEncodingError, "failed to encode document state", err)
	}
	return update, nil
}

// MergeUpdates compacts updates into one without applying them. Merging is
// commutative and associative. Any undecodable input fails the whole call
// with MERGE_ERROR.
func (e *Engine) MergeUpdates(updates [][]byte) ([]byte, error) {
	merged, err := substrate.MergeUpdates(updates)
	if err != nil {
		e.logger.Error("merge failed", "updates", len(updates), "error", err)
		return nil, ir.Wrap(ir.KindMergeError, "failed to merge updates", err)
	}
	e.logger.Info("updates merged", "updates", len(updates), "bytes", len(merged))
	return merged, nil
}

// ApplyUpdates merges remote updates and applies them to the local replica.
//
// Every update is decoded before anything is applied. If any fails, the
// error is UPDATE_DECODING_FAILED with a *DecodeFailures cause listing
// every failed index, and the replica is untouched.
func (e *Engine) ApplyUpdates(updates [][]byte) error {
	failures := &DecodeFailures{}
	for i, u := range updates {
		if _, err := substrate.DecodeUpdate(u); err != nil {
			failures.add(i, err)
		}
	}
	if !failures.empty() {
		e.logger.Error("updates rejected",
			"updates", len(updates),
			"failed", failures.Indexes)
		return ir.Wrap(ir.KindUpdateDecodingFailed,
			fmt.Sprintf("%d of %d updates could not be decoded", len(failures.Indexes), len(updates)),
			failures)
	}

	merged, err := substrate.MergeUpdates(updates)
	if err != nil {
		return ir.Wrap(ir.KindMergeError, "failed to merge updates", err)
	}
	if err := e.doc.Apply(merged); err != nil {
		return ir.Wrap(ir.KindUpdateDecodingFailed, "failed to apply merged update", err)
	}

	e.logger.Info("updates applied",
		"updates", len(updates),
		"ops", e.doc.OpCount())
	return nil
}

// GetDocumentState extracts a snapshot of the document, with every
// parent's children in reconciled order.
//
// Fails with STATE_ERROR when the replica holds no document.
func (e *Engine) GetDocumentState() (ir.DocumentState, error) {
	var state ir.DocumentState
	err := e.doc.View(func(r substrate.Reader) error {
		view := blocks.NewView(r)
		ids := view.AllIDs()

		layout, ok := r.Value(documentRoot, ir.FieldLayout)
		switch {
		case ok:
			if err := checkLayout(layout); err != nil {
				return err
			}
		case len(ids) == 0:
			return ir.StateError("blocks map not found in document")
		}

		all := make(map[string]ir.Block, len(ids))
		for _, id := range ids {
			b, ok, err := view.Get(id)
			if err != nil {
				return err
			}
			if ok {
				all[id] = b
			}
		}

		state = ir.DocumentState{
			DocID:    e.docID,
			Blocks:   all,
			Children: sorter.Sort(all),
		}
		if root, ok := r.Value(documentRoot, ir.FieldRootID); ok {
			state.RootID = ir.TextOf(root)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("state extraction failed", "kind", ir.KindOf(err), "error", err)
		return ir.DocumentState{}, err
	}

	e.logger.Debug("state extracted",
		"blocks", len(state.Blocks),
		"parents", len(state.Children))
	return state, nil
}

// ensureInitialized writes the layout version on first use and rejects
// documents written with another layout.
func ensureInitialized(tx *substrate.Txn) error {
	if v, ok := tx.Value(documentRoot, ir.FieldLayout); ok {
		return checkLayout(v)
	}
	return tx.Set(documentRoot, ir.FieldLayout, ir.String(ir.LayoutVersion))
}

func checkLayout(v ir.Value) error {
	if s, ok := v.(ir.String); ok && string(s) == ir.LayoutVersion {
		return nil
	}
	return ir.StateError(fmt.Sprintf("unsupported document layout %s (want %s)", ir.TextOf(v), ir.LayoutVersion))
}

// encodingFailure gives untyped errors from committing a transaction the
// ENCODING_ERROR kind; typed errors pass through.
func encodingFailure(err error) error {
	if ir.KindOf(err) == "" {
		return ir.Wrap(ir.KindEncodingError, "failed to encode update", err)
	}
	return err
}
