package operations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/kebairia/rdhist/internal/config"
	"github.com/kebairia/rdhist/internal/logger"
	"github.com/kebairia/rdhist/internal/pathenc"
	"github.com/kebairia/rdhist/internal/rdtime"
	"github.com/kebairia/rdhist/internal/repository"
	"github.com/kebairia/rdhist/internal/statistics"
)

// OperationManager runs the read-only queries behind the CLI.
type OperationManager struct {
	ctx  context.Context
	cfg  config.Config
	fs   afero.Fs
	log  logger.Logger
	opID string
}

// Option lets you override default settings on an OperationManager.
type Option func(*OperationManager)

// WithFs replaces the OS filesystem, mostly for tests.
func WithFs(fsys afero.Fs) Option {
	return func(om *OperationManager) {
		if fsys != nil {
			om.fs = fsys
		}
	}
}

// WithLogger sets the logger. Every entry carries the operation id.
func WithLogger(log logger.Logger) Option {
	return func(om *OperationManager) {
		if log != nil {
			om.log = log
		}
	}
}

// NewOperationManager prepares queries against the repositories of cfg.
func NewOperationManager(ctx context.Context, cfg config.Config, opts ...Option) *OperationManager {
	om := &OperationManager{
		ctx:  ctx,
		cfg:  cfg,
		fs:   afero.NewOsFs(),
		log:  logger.Global(),
		opID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(om)
	}
	om.log = om.log.With("op", om.opID)
	return om
}

// OperationID identifies this run in logs and reports.
func (om *OperationManager) OperationID() string {
	return om.opID
}

// Repository is an opened repository together with how to display its paths.
type Repository struct {
	Name    string
	Source  repository.Source
	Decoder *pathenc.Decoder
	Stats   *statistics.Reader
}

// OpenRepository opens a configured repository by name, or, failing that,
// treats nameOrPath as a directory.
func (om *OperationManager) OpenRepository(nameOrPath string) (*Repository, error) {
	rc, err := om.cfg.Repository(nameOrPath)
	if errors.Is(err, config.ErrUnknownRepository) {
		rc = config.RepositoryConfig{
			Name:     nameOrPath,
			Path:     nameOrPath,
			Encoding: om.cfg.Display.Encoding,
		}
	}

	opts := []repository.Option{repository.WithLogger(om.log.With("repository", rc.Name))}
	if rc.CharsToQuote != "" {
		opts = append(opts, repository.WithCharsToQuote(rc.CharsToQuote))
	}
	src, err := repository.Open(om.fs, rc.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("open repository %q: %w", rc.Name, err)
	}
	dec, err := pathenc.New(rc.Encoding)
	if err != nil {
		return nil, fmt.Errorf("repository %q: %w", rc.Name, err)
	}

	om.log.Debug("repository opened", "name", rc.Name, "path", rc.Path, "encoding", dec.Name())
	return &Repository{
		Name:    rc.Name,
		Source:  src,
		Decoder: dec,
		Stats:   statistics.NewReader(src),
	}, nil
}

// Sessions lists the backup sessions of repo, oldest first.
func (om *OperationManager) Sessions(repo *Repository) ([]rdtime.Timestamp, error) {
	sessions, err := repo.Source.Sessions()
	if err != nil {
		return nil, fmt.Errorf("list sessions of %q: %w", repo.Name, err)
	}
	return sessions, nil
}
