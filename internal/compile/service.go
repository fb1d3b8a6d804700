// Package compile orchestrates one reel compilation end to end: select
// images, download them into an isolated workspace, render with ffmpeg,
// upload the result, persist the record, and tag the sources.
package compile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clipforge/clipforge-api/internal/connection"
	"github.com/clipforge/clipforge-api/internal/filtergraph"
	"github.com/clipforge/clipforge-api/internal/media"
	"github.com/clipforge/clipforge-api/internal/mediacloud"
	"github.com/clipforge/clipforge-api/internal/selection"
	"github.com/clipforge/clipforge-api/internal/storage"
	"github.com/google/uuid"
)

var (
	// ErrInvalidRequest indicates a request with a non-positive count,
	// duration, or zoom.
	ErrInvalidRequest = errors.New("compile: invalid request")

	// ErrDownloadTimeout indicates a source image download exceeded the
	// per-image deadline.
	ErrDownloadTimeout = errors.New("compile: download timed out")
)

// DownloadError indicates a source image could not be fetched.
type DownloadError struct {
	PublicID string
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("compile: download %s: %v", e.PublicID, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

const (
	// defaultDownloadTimeout bounds each source image fetch.
	defaultDownloadTimeout = 30 * time.Second
	// downloadConcurrency bounds parallel fetches within one request.
	downloadConcurrency = 4
	// uploadFolder is the provider folder rendered reels land in.
	uploadFolder = "reels"
	// outputFileName is the rendered file inside the workspace.
	outputFileName = "reel.mp4"
)

// Selector resolves a composition plan from manual ids or a random draw.
type Selector interface {
	Manual(ctx context.Context, creds mediacloud.Credentials, publicIDs []string) (selection.Plan, error)
	Random(ctx context.Context, creds mediacloud.Credentials, count int) (selection.Plan, error)
}

// AudioPicker supplies an optional background track. A nil track with a
// nil error means silence.
type AudioPicker interface {
	Pick(ctx context.Context) (*filtergraph.AudioTrack, error)
}

// CredentialResolver turns a stored connection into live provider
// credentials.
type CredentialResolver interface {
	Resolve(ctx context.Context, userID, connectionID string) (*connection.Connection, mediacloud.Credentials, error)
}

// CompileInput contains the parameters for one compilation request.
type CompileInput struct {
	// UserID is the owner of the connection and the resulting record.
	UserID string
	// ConnectionID selects the provider account to compile against.
	ConnectionID string
	// PublicIDs is the manual image list. Empty means random mode.
	PublicIDs []string
	// Count is the number of body images to draw in random mode.
	Count int
	// SecondsPerImage is how long each image is shown.
	SecondsPerImage float64
	// Transition is the requested crossfade duration.
	Transition float64
	// Zoom is the pan/zoom amplitude.
	Zoom float64
	// FadeToBlack enables the opening and closing black fades.
	FadeToBlack bool
}

// Deps collects the collaborators a Service needs.
type Deps struct {
	Client   mediacloud.Client
	Creds    CredentialResolver
	Selector Selector
	Graphs   *filtergraph.Compiler
	Renderer media.Renderer
	Audio    AudioPicker
	Temp     *storage.TempRoot
	// Archiver is optional. When set, rendered reels are also copied to
	// long-term storage; archive failure never fails the request.
	Archiver storage.Archiver
	Repo     Repository
	Records  RecordStore
}

// Service runs the compilation pipeline.
type Service struct {
	deps            Deps
	logger          *slog.Logger
	downloadTimeout time.Duration
	now             func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDownloadTimeout overrides the per-image download deadline.
func WithDownloadTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.downloadTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a compilation Service.
func NewService(deps Deps, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		deps:            deps,
		logger:          logger,
		downloadTimeout: defaultDownloadTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the request shape and persists a new compilation in
// the VALIDATING stage. Processing happens separately via Process.
func (s *Service) Create(ctx context.Context, input CompileInput) (*Compilation, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	comp := New(input.UserID, input.ConnectionID)

	s.logger.Info("creating compilation",
		slog.String("compilation_id", comp.ID),
		slog.String("user_id", input.UserID),
		slog.String("connection_id", input.ConnectionID),
		slog.Int("manual_images", len(input.PublicIDs)),
		slog.Int("count", input.Count),
	)

	if err := s.deps.Repo.Save(ctx, comp); err != nil {
		return nil, err
	}
	return comp, nil
}

// Get retrieves a compilation by id.
func (s *Service) Get(ctx context.Context, id string) (*Compilation, error) {
	return s.deps.Repo.FindByID(ctx, id)
}

// ListRecords returns the user's persisted compilation records.
func (s *Service) ListRecords(ctx context.Context, userID string) ([]*Record, error) {
	return s.deps.Records.ListByUser(ctx, userID)
}

// Process runs the full pipeline for a previously created compilation.
// The workspace is removed on every exit path.
func (s *Service) Process(ctx context.Context, compID string, input CompileInput) error {
	comp, err := s.deps.Repo.FindByID(ctx, compID)
	if err != nil {
		return err
	}

	logger := s.logger.With(slog.String("compilation_id", comp.ID))

	if err := validateInput(input); err != nil {
		return s.fail(ctx, comp, StageValidating, err)
	}
	conn, creds, err := s.deps.Creds.Resolve(ctx, input.UserID, input.ConnectionID)
	if err != nil {
		return s.fail(ctx, comp, StageValidating, err)
	}

	// Selecting
	if err := s.advance(ctx, comp, StageSelecting); err != nil {
		return err
	}
	plan, err := s.selectPlan(ctx, creds, input)
	if err != nil {
		return s.fail(ctx, comp, StageSelecting, err)
	}
	comp.SetPlan(plan.PublicIDs())
	if err := s.deps.Repo.Save(ctx, comp); err != nil {
		return err
	}
	logger.Info("plan resolved", slog.Int("images", len(plan)))

	// Downloading
	if err := s.advance(ctx, comp, StageDownloading); err != nil {
		return err
	}
	workspace, err := s.deps.Temp.CreateWorkspace()
	if err != nil {
		return s.fail(ctx, comp, StageDownloading, err)
	}
	defer func() {
		if cleanupErr := s.deps.Temp.RemoveWorkspace(workspace); cleanupErr != nil {
			logger.Error("workspace cleanup failed",
				slog.String("workspace", workspace),
				slog.String("error", cleanupErr.Error()),
			)
		}
	}()

	imagePaths, err := s.download(ctx, workspace, plan)
	if err != nil {
		return s.fail(ctx, comp, StageDownloading, err)
	}

	// Rendering
	if err := s.advance(ctx, comp, StageRendering); err != nil {
		return err
	}
	outputPath := filepath.Join(workspace, outputFileName)
	timing, err := s.render(ctx, logger, imagePaths, outputPath, input)
	if err != nil {
		return s.fail(ctx, comp, StageRendering, err)
	}
	logger.Info("render complete",
		slog.Float64("total_duration", timing.TotalDuration),
	)

	// Uploading
	if err := s.advance(ctx, comp, StageUploading); err != nil {
		return err
	}
	result, err := s.deps.Client.UploadVideo(ctx, creds, outputPath, uploadFolder, comp.ID)
	if err != nil {
		return s.fail(ctx, comp, StageUploading, err)
	}
	archiveURL := s.archive(ctx, logger, comp.ID, outputPath)

	// Persisting
	if err := s.advance(ctx, comp, StagePersisting); err != nil {
		return err
	}
	record := &Record{
		ID:              uuid.NewString(),
		UserID:          input.UserID,
		ConnectionID:    conn.ID,
		ConnectionName:  conn.Name,
		PublicID:        result.PublicID,
		URL:             result.URL,
		SecureURL:       result.SecureURL,
		ArchiveURL:      archiveURL,
		SourcePublicIDs: plan.UniquePublicIDs(),
		ImageCount:      len(plan),
		CreatedAt:       s.now().UTC(),
	}
	if err := s.deps.Records.Save(ctx, record); err != nil {
		return s.fail(ctx, comp, StagePersisting, err)
	}
	comp.SetRecord(record)

	// Tagging is best-effort. The record is already the source of truth;
	// tag failures are reported on the compilation, never rolled back.
	if err := s.advance(ctx, comp, StageTagging); err != nil {
		return err
	}
	comp.SetTagOutcomes(s.tagSources(ctx, logger, creds, record.SourcePublicIDs))

	if err := s.advance(ctx, comp, StageDone); err != nil {
		return err
	}
	logger.Info("compilation done",
		slog.String("public_id", record.PublicID),
		slog.String("secure_url", record.SecureURL),
	)
	return nil
}

func validateInput(input CompileInput) error {
	if input.UserID == "" || input.ConnectionID == "" {
		return fmt.Errorf("%w: user and connection are required", ErrInvalidRequest)
	}
	if len(input.PublicIDs) == 0 && input.Count <= 0 {
		return fmt.Errorf("%w: count must be positive for random selection", ErrInvalidRequest)
	}
	if input.SecondsPerImage <= 0 {
		return fmt.Errorf("%w: seconds per image must be positive", ErrInvalidRequest)
	}
	if input.Transition < 0 {
		return fmt.Errorf("%w: transition must not be negative", ErrInvalidRequest)
	}
	if input.Zoom <= 0 || input.Zoom > filtergraph.MaxZoom {
		return fmt.Errorf("%w: zoom must be in (0, %v]", ErrInvalidRequest, filtergraph.MaxZoom)
	}
	return nil
}

func (s *Service) selectPlan(ctx context.Context, creds mediacloud.Credentials, input CompileInput) (selection.Plan, error) {
	if len(input.PublicIDs) > 0 {
		return s.deps.Selector.Manual(ctx, creds, input.PublicIDs)
	}
	return s.deps.Selector.Random(ctx, creds, input.Count)
}

// download fetches every plan image into the workspace. Fetches run with
// bounded parallelism but the returned paths preserve plan order.
func (s *Service) download(ctx context.Context, workspace string, plan selection.Plan) ([]string, error) {
	paths := make([]string, len(plan))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for i, asset := range plan {
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(gctx, s.downloadTimeout)
			defer cancel()

			dest := filepath.Join(workspace, fmt.Sprintf("%03d%s", i, imageExtension(asset)))
			if err := s.deps.Client.Download(dctx, asset.DownloadURL(), dest); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("%w: %s", ErrDownloadTimeout, asset.PublicID)
				}
				return &DownloadError{PublicID: asset.PublicID, Err: err}
			}
			paths[i] = dest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (s *Service) render(ctx context.Context, logger *slog.Logger, imagePaths []string, outputPath string, input CompileInput) (filtergraph.Timing, error) {
	track, err := s.deps.Audio.Pick(ctx)
	if err != nil {
		// A silent reel is better than no reel.
		logger.Warn("audio bed unavailable, rendering silent",
			slog.String("error", err.Error()),
		)
		track = nil
	}

	args, timing, err := s.deps.Graphs.Compile(filtergraph.Params{
		ImagePaths:      imagePaths,
		SecondsPerImage: input.SecondsPerImage,
		Transition:      input.Transition,
		Zoom:            input.Zoom,
		FadeToBlack:     input.FadeToBlack,
		Audio:           track,
		OutputPath:      outputPath,
	})
	if err != nil {
		return filtergraph.Timing{}, err
	}
	if err := s.deps.Renderer.Render(ctx, args); err != nil {
		return filtergraph.Timing{}, err
	}
	return timing, nil
}

// archive copies the rendered file to long-term storage when an Archiver
// is configured. Failure is logged and ignored.
func (s *Service) archive(ctx context.Context, logger *slog.Logger, compID, outputPath string) string {
	if s.deps.Archiver == nil {
		return ""
	}
	f, err := os.Open(outputPath)
	if err != nil {
		logger.Warn("archive skipped", slog.String("error", err.Error()))
		return ""
	}
	defer func() { _ = f.Close() }()

	url, err := s.deps.Archiver.Archive(ctx, compID+".mp4", f)
	if err != nil {
		logger.Warn("archive failed", slog.String("error", err.Error()))
		return ""
	}
	return url
}

// tagSources marks every source image as used: one bulk tag update plus
// a per-image context flag, each reported independently.
func (s *Service) tagSources(ctx context.Context, logger *slog.Logger, creds mediacloud.Credentials, publicIDs []string) []TagOutcome {
	outcomes := make([]TagOutcome, 0, len(publicIDs)+1)

	tagOutcome := TagOutcome{Target: "tag:" + mediacloud.TagReel}
	if err := s.deps.Client.UpdateTags(ctx, creds, publicIDs, mediacloud.TagCommandAdd, mediacloud.TagReel); err != nil {
		tagOutcome.Error = err.Error()
	}
	outcomes = append(outcomes, tagOutcome)

	for _, id := range publicIDs {
		outcome := TagOutcome{Target: "context:" + id}
		if err := s.deps.Client.UpdateContext(ctx, creds, id, mediacloud.TagReel, "true", "upload"); err != nil {
			outcome.Error = err.Error()
		}
		outcomes = append(outcomes, outcome)
	}

	for _, o := range outcomes {
		if !o.OK() {
			logger.Warn("tag update failed",
				slog.String("target", o.Target),
				slog.String("error", o.Error),
			)
		}
	}
	return outcomes
}

func (s *Service) advance(ctx context.Context, comp *Compilation, stage Stage) error {
	if err := comp.Advance(stage); err != nil {
		return err
	}
	return s.deps.Repo.Save(ctx, comp)
}

func (s *Service) fail(ctx context.Context, comp *Compilation, stage Stage, cause error) error {
	comp.Fail(stage, cause.Error())
	if saveErr := s.deps.Repo.Save(ctx, comp); saveErr != nil {
		s.logger.Error("failed to persist failure",
			slog.String("compilation_id", comp.ID),
			slog.String("error", saveErr.Error()),
		)
	}
	s.logger.Error("compilation failed",
		slog.String("compilation_id", comp.ID),
		slog.String("stage", string(stage)),
		slog.String("error", cause.Error()),
	)
	return cause
}

func imageExtension(asset mediacloud.Asset) string {
	if asset.Format == "" {
		return ".jpg"
	}
	return "." + asset.Format
}
