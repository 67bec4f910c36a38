package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/experimentd/internal/store"

// Resource names one of the two independent collection documents.
type Resource string

const (
	Definitions Resource = "definitions"
	Responses   Resource = "responses"
)

// Store is the persistence boundary used by the API server.
type Store interface {
	// GetExperiments returns every stored definition in document order.
	GetExperiments(ctx context.Context) ([]*experiment.Experiment, error)

	// GetResponses returns every submitted response in submission order.
	GetResponses(ctx context.Context) ([]*experiment.Experiment, error)

	// AddExperiment appends e to the definitions.
	AddExperiment(ctx context.Context, e *experiment.Experiment) error

	// UpdateExperiment replaces the definition named e.Name and moves it to
	// the end. When no definition has that name the document is rewritten
	// unchanged.
	UpdateExperiment(ctx context.Context, e *experiment.Experiment) error

	// SubmitResponse appends e to the responses.
	SubmitResponse(ctx context.Context, e *experiment.Experiment) error
}

// FileStore implements Store over two JSON files.
type FileStore struct {
	config *Config
	paths  map[Resource]string
	logger *logging.Logger

	tracer  trace.Tracer
	meter   metric.Meter
	opCount metric.Int64Counter

	// written remembers the digest of the last document this process wrote,
	// so the watcher can tell its own writes from external ones.
	mu      sync.Mutex
	written map[Resource][sha256.Size]byte
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the data directory if needed and returns a store
// rooted there.
func NewFileStore(cfg *Config, logger *logging.Logger) (*FileStore, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &FileStore{
		config: cfg,
		paths: map[Resource]string{
			Definitions: filepath.Join(cfg.DataDir, cfg.DefinitionsFile),
			Responses:   filepath.Join(cfg.DataDir, cfg.ResponsesFile),
		},
		logger:  logger.Named("store"),
		tracer:  otel.Tracer(instrumentationName),
		meter:   otel.Meter(instrumentationName),
		written: make(map[Resource][sha256.Size]byte),
	}
	s.initMetrics()

	return s, nil
}

func (s *FileStore) initMetrics() {
	var err error
	s.opCount, err = s.meter.Int64Counter(
		"experimentd.store.operations_total",
		metric.WithDescription("Store operations labeled by operation, resource and status"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to create operations counter", zap.Error(err))
	}
}

// Path returns the file backing res.
func (s *FileStore) Path(res Resource) string {
	return s.paths[res]
}

// GetExperiments implements Store.
func (s *FileStore) GetExperiments(ctx context.Context) ([]*experiment.Experiment, error) {
	ctx, span := s.start(ctx, "get", Definitions)
	defer span.End()

	list, err := s.read(ctx, Definitions)
	s.finish(ctx, span, "get", Definitions, err)
	return list, err
}

// GetResponses implements Store.
func (s *FileStore) GetResponses(ctx context.Context) ([]*experiment.Experiment, error) {
	ctx, span := s.start(ctx, "get", Responses)
	defer span.End()

	list, err := s.read(ctx, Responses)
	s.finish(ctx, span, "get", Responses, err)
	return list, err
}

// AddExperiment implements Store.
func (s *FileStore) AddExperiment(ctx context.Context, e *experiment.Experiment) error {
	return s.appendTo(ctx, "add", Definitions, e)
}

// SubmitResponse implements Store.
func (s *FileStore) SubmitResponse(ctx context.Context, e *experiment.Experiment) error {
	return s.appendTo(ctx, "submit", Responses, e)
}

// UpdateExperiment implements Store.
func (s *FileStore) UpdateExperiment(ctx context.Context, e *experiment.Experiment) error {
	if e == nil {
		return errors.New("experiment is required")
	}
	ctx, span := s.start(ctx, "update", Definitions)
	defer span.End()
	span.SetAttributes(attribute.String("experiment.name", e.Name))

	err := func() error {
		list, err := s.read(ctx, Definitions)
		if err != nil {
			return err
		}

		kept := make([]*experiment.Experiment, 0, len(list)+1)
		found := false
		for _, existing := range list {
			if existing.Name == e.Name {
				found = true
				continue
			}
			kept = append(kept, existing)
		}

		if found {
			kept = append(kept, e)
		} else {
			s.logger.Warn(ctx, "update for unknown experiment ignored", zap.String("name", e.Name))
		}
		span.SetAttributes(attribute.Bool("experiment.found", found))

		if err := s.write(ctx, Definitions, kept); err != nil {
			return err
		}
		if found {
			s.logger.Info(ctx, "experiment updated", zap.String("name", e.Name), zap.Int("count", len(kept)))
		}
		return nil
	}()

	s.finish(ctx, span, "update", Definitions, err)
	return err
}

func (s *FileStore) appendTo(ctx context.Context, op string, res Resource, e *experiment.Experiment) error {
	if e == nil {
		return errors.New("experiment is required")
	}
	ctx, span := s.start(ctx, op, res)
	defer span.End()
	span.SetAttributes(attribute.String("experiment.name", e.Name))

	err := func() error {
		list, err := s.read(ctx, res)
		if err != nil {
			return err
		}
		list = append(list, e)
		if err := s.write(ctx, res, list); err != nil {
			return err
		}
		s.logger.Info(ctx, "experiment appended",
			zap.String("resource", string(res)),
			zap.String("name", e.Name),
			zap.Int("count", len(list)))
		return nil
	}()

	s.finish(ctx, span, op, res, err)
	return err
}

// read loads a whole document. A missing file is an empty collection.
func (s *FileStore) read(ctx context.Context, res Resource) ([]*experiment.Experiment, error) {
	path := s.paths[res]
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug(ctx, "collection document missing, using empty collection", zap.String("path", path))
			return []*experiment.Experiment{}, nil
		}
		return nil, storageErr("read", res, path, err)
	}

	list, err := experiment.UnmarshalList(data)
	if err != nil {
		return nil, storageErr("decode", res, path, err)
	}
	return list, nil
}

// write replaces a whole document through a temporary file and a rename.
func (s *FileStore) write(ctx context.Context, res Resource, list []*experiment.Experiment) error {
	path := s.paths[res]
	data, err := experiment.MarshalList(list)
	if err != nil {
		return storageErr("encode", res, path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return storageErr("write", res, path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return storageErr("write", res, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return storageErr("write", res, path, err)
	}

	// Record the digest before the rename becomes visible to the watcher.
	s.remember(res, data)

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return storageErr("write", res, path, err)
	}

	s.logger.Trace(ctx, "collection document written", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

func (s *FileStore) remember(res Resource, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written[res] = sha256.Sum256(data)
}

// wroteLast reports whether data is what this store last wrote for res.
func (s *FileStore) wroteLast(res Resource, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.written[res]
	return ok && sum == sha256.Sum256(data)
}

func (s *FileStore) start(ctx context.Context, op string, res Resource) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "store."+op)
	span.SetAttributes(attribute.String("store.resource", string(res)))
	return ctx, span
}

func (s *FileStore) finish(ctx context.Context, span trace.Span, op string, res Resource, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(ctx, "store operation failed",
			zap.String("op", op),
			zap.String("resource", string(res)),
			zap.Error(err))
	}
	if s.opCount != nil {
		s.opCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("resource", string(res)),
			attribute.String("status", status),
		))
	}
}
