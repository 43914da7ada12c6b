package ingest

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"folio/internal/archive"
	"folio/internal/assets"
	"folio/internal/checkpoint"
	"folio/internal/config"
	"folio/internal/derivatives"
	"folio/internal/filetree"
	"folio/internal/imagemeta"
	"folio/internal/integrity"
	"folio/internal/logging"
	"folio/internal/sequence"
	"folio/internal/services"
)

const component = "ingest"

// Orchestrator runs the end-to-end import pipeline: classify the source
// tree, build archive entities file by file, merge and persist the result,
// then hand full-resolution derivative work to the background pool.
//
// One Orchestrator serves one archive root. Concurrent runs against the
// same root are rejected through the ingest lock.
type Orchestrator struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *integrity.Registry
	pool     *derivatives.Pool
	store    assets.Store
	points   *checkpoint.Store

	gate gate

	mu           sync.Mutex
	current      *tracker
	checkpointID string
}

// Options configures one Run.
type Options struct {
	// SourceName identifies the import source for checkpointing and for the
	// root label when no marker overrides it.
	SourceName string
	// ExistingRoot, when set, receives the freshly built subtree during the
	// saving stage instead of the run producing a standalone root.
	ExistingRoot *archive.Entity
	// Resume looks up an interrupted checkpoint for SourceName and skips
	// files it already recorded.
	Resume bool
	// LockPath, when non-empty, is the flock file guarding the archive root.
	LockPath string
	// OnProgress receives a snapshot after every state change.
	OnProgress ProgressFunc
}

// Report summarizes what a run created.
type Report struct {
	CollectionsCreated int
	ManifestsCreated   int
	CanvasesCreated    int
	FilesProcessed     int
	DuplicatesSkipped  int
	Warnings           []string
}

// Result carries the run outcome. On cancellation it is still returned with
// the partial report alongside the context error.
type Result struct {
	Root         *archive.Entity
	Report       Report
	Progress     Progress
	CheckpointID string
}

func New(cfg *config.Config, logger *slog.Logger, registry *integrity.Registry, pool *derivatives.Pool, store assets.Store, points *checkpoint.Store) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		pool:     pool,
		store:    store,
		points:   points,
	}
}

// Pause suspends the run at the next file boundary. In-flight file work
// finishes first; nothing is lost. The checkpoint is marked paused so a
// process killed while paused still resumes cleanly.
func (o *Orchestrator) Pause() {
	o.gate.Pause()
	if t := o.trackerRef(); t != nil {
		t.setPaused(true)
	}
	o.persistStatus(checkpoint.StatusPaused)
}

// Resume lifts a pause.
func (o *Orchestrator) Resume() {
	o.gate.Resume()
	if t := o.trackerRef(); t != nil {
		t.setPaused(false)
	}
	o.persistStatus(checkpoint.StatusInProgress)
}

// Paused reports whether the next file boundary will block.
func (o *Orchestrator) Paused() bool { return o.gate.Paused() }

func (o *Orchestrator) setTracker(t *tracker) {
	o.mu.Lock()
	o.current = t
	o.mu.Unlock()
}

func (o *Orchestrator) trackerRef() *tracker {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *Orchestrator) setCheckpointID(id string) {
	o.mu.Lock()
	o.checkpointID = id
	o.mu.Unlock()
}

func (o *Orchestrator) persistStatus(status checkpoint.Status) {
	o.mu.Lock()
	id := o.checkpointID
	o.mu.Unlock()
	if id == "" {
		return
	}
	if err := o.points.SetStatus(context.Background(), id, status); err != nil {
		o.logger.Warn("checkpoint status update failed",
			logging.String("status", string(status)),
			logging.Error(err))
	}
}

// Run executes the full pipeline over handles. Cancel through ctx; the run
// stops at the next file boundary, marks its checkpoint cancelled, and
// returns the partial Result with ctx's error.
func (o *Orchestrator) Run(ctx context.Context, handles []filetree.FileHandle, opts Options) (*Result, error) {
	if opts.LockPath != "" {
		lock := flock.New(opts.LockPath)
		held, err := lock.TryLock()
		if err != nil {
			return nil, services.Wrap(services.ErrFatal, component, "lock", "acquire ingest lock", err)
		}
		if !held {
			return nil, services.Wrap(services.ErrPrecondition, component, "lock", "another ingest is writing this archive", nil)
		}
		defer lock.Unlock()
	}

	operationID := uuid.NewString()
	t := newTracker(operationID, o.cfg.Ingest.ActivityLogSize, opts.OnProgress)
	o.setTracker(t)
	defer o.setTracker(nil)
	defer o.setCheckpointID("")

	o.logger.Info("ingest starting",
		logging.String(logging.FieldComponent, component),
		logging.String(logging.FieldOperationID, operationID),
		logging.String("source", opts.SourceName),
		logging.Int("files", len(handles)))

	r := &run{o: o, t: t, opts: opts, exts: o.cfg.Ingest.MediaExtensions}
	root, err := r.execute(ctx, handles)

	switch {
	case err == nil:
		t.setStage(StageComplete)
		o.logger.Info("ingest complete",
			logging.String(logging.FieldOperationID, operationID),
			logging.Int("processed", r.report.FilesProcessed),
			logging.Int("duplicates", r.report.DuplicatesSkipped))
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		t.setStage(StageCancelled)
		r.checkpointStatus(checkpoint.StatusCancelled)
		o.logger.Info("ingest cancelled",
			logging.String(logging.FieldOperationID, operationID),
			logging.Int("processed", r.report.FilesProcessed))
	default:
		t.setStage(StageError)
		r.checkpointStatus(checkpoint.StatusFailed)
		o.logger.Error("ingest failed",
			logging.String(logging.FieldOperationID, operationID),
			logging.Error(err))
	}

	result := &Result{
		Root:         root,
		Report:       r.report,
		Progress:     t.Snapshot(),
		CheckpointID: r.checkpointID,
	}
	return result, err
}

// run is the per-invocation state of one Run call.
type run struct {
	o    *Orchestrator
	t    *tracker
	opts Options
	exts []string

	checkpointID string
	completed    map[string]struct{}
	report       Report
	background   []backgroundJob
}

// backgroundJob is a full-size derivative render deferred to the pool.
type backgroundJob struct {
	assetID string
	handle  filetree.FileHandle
}

func (r *run) execute(ctx context.Context, handles []filetree.FileHandle) (*archive.Entity, error) {
	tree, warnings, err := filetree.Build(r.opts.SourceName, handles)
	if err != nil {
		return nil, services.Wrap(services.ErrFatal, component, "scan", "build source tree", err)
	}
	for _, w := range warnings {
		r.warn(w.String())
	}

	total := r.registerFiles(tree)
	r.t.setTotal(total)
	if total == 0 {
		return nil, services.Wrap(services.ErrPrecondition, component, "scan", "no media files in source", nil)
	}

	if err := r.openCheckpoint(ctx, total); err != nil {
		return nil, err
	}

	r.t.setStage(StageProcessing)
	root, err := r.buildNode(ctx, tree)
	if err != nil {
		return nil, err
	}
	if root == nil && r.opts.ExistingRoot == nil {
		return nil, services.Wrap(services.ErrPrecondition, component, "process", "nothing to import", nil)
	}

	r.t.setStage(StageSaving)
	final := root
	if r.opts.ExistingRoot != nil {
		final = r.merge(r.opts.ExistingRoot, root)
	}
	if err := r.o.store.SaveProject(ctx, final); err != nil {
		return final, services.Wrap(services.ErrFatal, component, "save", "persist project", err)
	}

	r.t.setStage(StageDerivatives)
	r.enqueueDerivatives()

	r.finishCheckpoint(ctx)
	return final, nil
}

// registerFiles announces every eligible file to the tracker and returns the
// eligible count. Files are keyed by relative path, which is unique within a
// source tree and stable across resumed runs.
func (r *run) registerFiles(node *filetree.Node) int {
	total := 0
	for _, handle := range sortedMedia(node, r.exts) {
		r.t.addFile(handle.RelPath(), handle.Name(), handle.Size(), handle.MIME())
		total++
	}
	for _, child := range node.SortedChildren() {
		total += r.registerFiles(child)
	}
	return total
}

func (r *run) openCheckpoint(ctx context.Context, total int) error {
	r.completed = make(map[string]struct{})
	if r.opts.Resume {
		existing, err := r.o.points.FindBySource(ctx, r.opts.SourceName)
		if err != nil {
			return services.Wrap(services.ErrFatal, component, "checkpoint", "look up resumable checkpoint", err)
		}
		if existing != nil {
			done, err := r.o.points.CompletedFiles(ctx, existing.ID)
			if err != nil {
				return services.Wrap(services.ErrFatal, component, "checkpoint", "load completed files", err)
			}
			r.checkpointID = existing.ID
			r.completed = done
			if err := r.o.points.SetStatus(ctx, existing.ID, checkpoint.StatusInProgress); err != nil {
				return services.Wrap(services.ErrFatal, component, "checkpoint", "reopen checkpoint", err)
			}
			if err := r.o.points.SetTotal(ctx, existing.ID, total); err != nil {
				return services.Wrap(services.ErrFatal, component, "checkpoint", "update total", err)
			}
			r.o.setCheckpointID(existing.ID)
			r.t.log("resuming: " + existing.ID)
			return nil
		}
	}
	created, err := r.o.points.Create(ctx, uuid.NewString(), r.opts.SourceName, total)
	if err != nil {
		return services.Wrap(services.ErrFatal, component, "checkpoint", "create checkpoint", err)
	}
	r.checkpointID = created.ID
	r.o.setCheckpointID(created.ID)
	return nil
}

// buildNode recursively turns a classified tree node into archive entities.
// A nil entity with nil error means the node produced nothing and is pruned.
func (r *run) buildNode(ctx context.Context, node *filetree.Node) (*archive.Entity, error) {
	switch filetree.Classify(node, r.exts) {
	case filetree.KindManifest:
		return r.buildManifest(ctx, node)
	default:
		return r.buildCollection(ctx, node)
	}
}

func (r *run) buildManifest(ctx context.Context, node *filetree.Node) (*archive.Entity, error) {
	manifest := archive.NewManifest(node.DisplayLabel())
	manifest.Language = node.Language
	manifest.Behavior = node.Behavior

	media := sortedMedia(node, r.exts)
	if len(media) == 0 {
		return nil, nil
	}

	byName := make(map[string]filetree.FileHandle, len(media))
	names := make([]string, 0, len(media))
	for _, handle := range media {
		byName[handle.Name()] = handle
		names = append(names, handle.Name())
	}
	seq := sequence.Detect(names)
	if seq.Tag != sequence.TagNone {
		manifest.Metadata = map[string]string{"sequence": seq.Tag}
	}

	skipped := 0
	for _, name := range seq.Ordered {
		handle := byName[name]
		if _, done := r.completed[handle.RelPath()]; done {
			skipped++
		}
		if err := r.processFile(ctx, handle, manifest); err != nil {
			return nil, err
		}
	}
	if len(manifest.Items) == 0 {
		// All files skipped as previously completed: prune quietly, the
		// entities live in the existing root. Otherwise every file failed.
		if skipped < len(media) {
			r.warn(node.Path + ": no files imported, dropping manifest")
		}
		return nil, nil
	}
	r.report.ManifestsCreated++
	return manifest, nil
}

func (r *run) buildCollection(ctx context.Context, node *filetree.Node) (*archive.Entity, error) {
	collection := archive.NewCollection(node.DisplayLabel())
	collection.Language = node.Language
	collection.Behavior = node.Behavior

	// Loose media in a grouping directory becomes its own manifest so no
	// eligible file is silently dropped.
	if media := sortedMedia(node, r.exts); len(media) > 0 {
		loose := &filetree.Node{
			Name:  node.Name,
			Path:  node.Path,
			Files: node.Files,
			Label: node.DisplayLabel(),
		}
		manifest, err := r.buildManifest(ctx, loose)
		if err != nil {
			return nil, err
		}
		if manifest != nil {
			if err := collection.Attach(manifest); err != nil {
				return nil, services.Wrap(services.ErrFatal, component, "process", "attach manifest", err)
			}
		}
	}

	for _, child := range node.SortedChildren() {
		entity, err := r.buildNode(ctx, child)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			continue
		}
		if err := collection.Attach(entity); err != nil {
			return nil, services.Wrap(services.ErrFatal, component, "process", "attach child", err)
		}
	}

	if len(collection.Items) == 0 {
		return nil, nil
	}
	r.report.CollectionsCreated++
	return collection, nil
}

// processFile is the per-file unit of work: dedup, persist bytes, read
// dimensions and metadata, build the canvas, record the checkpoint. Failures
// here are recoverable; the file is marked errored and the run continues.
func (r *run) processFile(ctx context.Context, handle filetree.FileHandle, manifest *archive.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.o.gate.Wait(ctx); err != nil {
		return err
	}

	id := handle.RelPath()
	if _, done := r.completed[id]; done {
		r.t.fileSkipped(id, "completed in a previous run")
		return nil
	}
	r.t.fileProcessing(id)

	canvas, assetID, err := r.importFile(ctx, handle)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		wrapped := services.Wrap(services.ErrFileRecoverable, component, "process", handle.RelPath(), err)
		r.t.fileErrored(id, err)
		r.warn(wrapped.Error())
		return nil
	}

	if err := manifest.Attach(canvas); err != nil {
		return services.Wrap(services.ErrFatal, component, "process", "attach canvas", err)
	}
	r.report.CanvasesCreated++
	r.report.FilesProcessed++

	if err := r.o.points.MarkFileCompleted(ctx, r.checkpointID, id); err != nil {
		return services.Wrap(services.ErrFatal, component, "checkpoint", "record file", err)
	}
	r.t.fileCompleted(id)

	if isImage(handle) && assetID != "" {
		r.background = append(r.background, backgroundJob{assetID: assetID, handle: handle})
	}
	return nil
}

// importFile does the fallible per-file work and returns the finished canvas.
func (r *run) importFile(ctx context.Context, handle filetree.FileHandle) (*archive.Entity, string, error) {
	width, height := 0, 0
	if isImage(handle) {
		w, h, err := imagemeta.Dimensions(handle)
		if err != nil {
			return nil, "", err
		}
		width, height = w, h
	}

	canvas := archive.NewCanvas(canvasLabel(handle.Name()), width, height)

	res, err := r.o.registry.RegisterFile(ctx, handle, canvas.ID, handle.Name())
	if err != nil {
		return nil, "", err
	}
	assetID := res.Fingerprint.Hash
	if res.IsDuplicate {
		r.report.DuplicatesSkipped++
		r.warn(handle.RelPath() + ": duplicate content, canonical entity " + res.ExistingEntityID)
	}

	f, err := handle.Open()
	if err != nil {
		return nil, "", err
	}
	saveErr := r.o.store.SaveAsset(ctx, assetID, f)
	f.Close()
	if saveErr != nil {
		return nil, "", saveErr
	}

	if isImage(handle) {
		if thumb, err := derivatives.Thumbnail(handle, r.o.cfg.Ingest.ThumbnailPx); err != nil {
			r.warn(handle.RelPath() + ": thumbnail: " + err.Error())
		} else if err := r.o.store.SaveDerivative(ctx, assetID, "thumb", thumb); err != nil {
			r.warn(handle.RelPath() + ": save thumbnail: " + err.Error())
		}
		if meta, err := imagemeta.Extract(handle); err == nil {
			if fields := meta.Fields(); len(fields) > 0 {
				canvas.Metadata = fields
			}
		}
	}

	annotation := archive.NewPaintingAnnotation(assetID, handle.MIME())
	if err := canvas.Attach(annotation); err != nil {
		return nil, "", err
	}
	return canvas, assetID, nil
}

// merge attaches the freshly built subtree's members into an existing root.
// Illegal parent/child pairs are skipped with a structural-merge warning;
// the merge never aborts the run.
func (r *run) merge(existing, fresh *archive.Entity) *archive.Entity {
	if fresh == nil {
		return existing
	}
	children := fresh.Items
	if archive.CanAttach(existing.Kind, fresh.Kind) {
		children = []*archive.Entity{fresh}
	}
	for _, child := range children {
		if err := existing.Attach(child); err != nil {
			wrapped := services.Wrap(services.ErrStructuralMerge, component, "save", child.Label, err)
			r.warn(wrapped.Error())
		}
	}
	return existing
}

// enqueueDerivatives hands full-size renders to the pool and returns without
// waiting. Results are written by the pool's workers as they finish.
func (r *run) enqueueDerivatives() {
	sizes := derivatives.SizesFromPx(r.o.cfg.Ingest.DerivativeSizes)
	for _, job := range r.background {
		job := job
		opID, err := r.o.pool.Enqueue(job.assetID, job.handle, sizes, func(blobs map[string][]byte, err error) {
			if err != nil {
				r.o.logger.Warn("derivative render failed",
					logging.String(logging.FieldFile, job.handle.RelPath()),
					logging.Error(err))
				return
			}
			for tag, blob := range blobs {
				if err := r.o.store.SaveDerivative(context.Background(), job.assetID, tag, blob); err != nil {
					r.o.logger.Warn("derivative save failed",
						logging.String(logging.FieldFile, job.handle.RelPath()),
						logging.String("size", tag),
						logging.Error(err))
				}
			}
		})
		if err != nil {
			r.warn(job.handle.RelPath() + ": enqueue derivatives: " + err.Error())
			continue
		}
		r.o.logger.Debug("derivatives queued",
			logging.String(logging.FieldFile, job.handle.RelPath()),
			logging.String("op", opID))
	}
}

func (r *run) finishCheckpoint(ctx context.Context) {
	if r.checkpointID == "" {
		return
	}
	if err := r.o.points.Delete(ctx, r.checkpointID); err != nil {
		r.warn("delete checkpoint: " + err.Error())
	}
	retention := time.Duration(r.o.cfg.Checkpoints.RetentionDays) * 24 * time.Hour
	if pruned, err := r.o.points.Prune(ctx, retention, r.o.cfg.Checkpoints.MaxCount); err != nil {
		r.o.logger.Warn("checkpoint prune failed", logging.Error(err))
	} else if pruned > 0 {
		r.o.logger.Debug("checkpoints pruned", logging.Int("count", pruned))
	}
}

func (r *run) checkpointStatus(status checkpoint.Status) {
	if r.checkpointID == "" {
		return
	}
	if err := r.o.points.SetStatus(context.Background(), r.checkpointID, status); err != nil {
		r.o.logger.Warn("checkpoint status update failed",
			logging.String("status", string(status)),
			logging.Error(err))
	}
}

func (r *run) warn(message string) {
	r.report.Warnings = append(r.report.Warnings, message)
	r.t.log("warning: " + message)
	r.o.logger.Warn(message, logging.String(logging.FieldComponent, component))
}

// sortedMedia returns a node's eligible files in deterministic name order.
func sortedMedia(node *filetree.Node, exts []string) []filetree.FileHandle {
	media := node.MediaFiles(exts)
	sort.Slice(media, func(i, j int) bool { return media[i].Name() < media[j].Name() })
	return media
}

func isImage(handle filetree.FileHandle) bool {
	return strings.HasPrefix(handle.MIME(), "image/")
}

func canvasLabel(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
