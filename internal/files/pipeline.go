// Package files turns Slack attachments into text the dispatcher can use:
// images become vision descriptions, voice notes become transcripts, and
// documents are indexed for retrieval.
package files

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/slack-go/slack"

	"github.com/earlybirdlabs/sparrow/pkg/logger"
	"github.com/earlybirdlabs/sparrow/pkg/metrics"
)

// UploadType tags what the pipeline made of an attachment.
type UploadType string

// Upload type tags.
const (
	UploadTypeImage       UploadType = "image"
	UploadTypeAudio       UploadType = "audio"
	UploadTypeDocument    UploadType = "document"
	UploadTypeUnsupported UploadType = "unsupported"
)

// Artifact is the textual outcome of processing one attachment.
type Artifact struct {
	Name    string
	Type    UploadType
	Content string
}

// Result is the outcome of one pipeline pass over a message's attachments.
// Artifacts keep the original attachment order.
type Result struct {
	Artifacts []Artifact
	// SpeechMode is set when any attachment was audio, which makes the reply
	// go out as synthesized speech as well as text.
	SpeechMode bool
	// StoreID is the vector store holding any indexed documents. It echoes
	// the input store, or names a newly created one.
	StoreID string
	// IndexedCount is the number of documents added to the store this pass.
	IndexedCount int
}

// Sharer grants and revokes public access to a Slack file and downloads its
// bytes while access is granted.
type Sharer interface {
	SharePublic(ctx context.Context, fileID string) (*slack.File, error)
	RevokePublic(ctx context.Context, fileID string) error
	Download(ctx context.Context, file *slack.File) ([]byte, error)
}

// Describer produces a textual description of image bytes.
type Describer interface {
	DescribeImage(ctx context.Context, data []byte, mimeType, message string) (string, error)
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename, mimeType string, data []byte) (string, error)
}

// Indexer stores document content for later retrieval.
type Indexer interface {
	CreateStore(ctx context.Context, name string) (string, error)
	IndexFile(ctx context.Context, storeID, filename, mimeType string, data []byte) error
}

// Pipeline processes a message's attachments.
type Pipeline struct {
	sharer      Sharer
	describer   Describer
	transcriber Transcriber
	indexer     Indexer
	log         logger.Logger
	metrics     *metrics.Metrics
}

// New creates a pipeline. indexer may be nil, in which case documents are
// treated as unsupported.
func New(sharer Sharer, describer Describer, transcriber Transcriber, indexer Indexer, log logger.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		sharer:      sharer,
		describer:   describer,
		transcriber: transcriber,
		indexer:     indexer,
		log:         log.WithFields(logger.StringField("component", "file_pipeline")),
		metrics:     m,
	}
}

// Process handles every attachment on a message. One failing file does not
// stop the others; per-file errors are aggregated into the returned error
// while the Result still carries every successful artifact. storeID names an
// existing vector store for document indexing, or "" to create one on first
// need.
func (p *Pipeline) Process(ctx context.Context, attachments []slack.File, message, storeID string) (*Result, error) {
	result := &Result{StoreID: storeID}
	var errs error

	for i := range attachments {
		file := &attachments[i]
		artifact, err := p.processOne(ctx, file, message, result)
		if err != nil {
			p.log.Error("attachment processing failed",
				logger.StringField("file", file.Name),
				logger.ErrorField(err))
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", file.Name, err))
			continue
		}
		if artifact != nil {
			result.Artifacts = append(result.Artifacts, *artifact)
		}
	}

	return result, errs
}

func (p *Pipeline) processOne(ctx context.Context, file *slack.File, message string, result *Result) (*Artifact, error) {
	uploadType := classify(file)

	switch uploadType {
	case UploadTypeImage:
		if p.describer == nil {
			uploadType = UploadTypeUnsupported
		}
	case UploadTypeAudio:
		if p.transcriber == nil {
			uploadType = UploadTypeUnsupported
		}
	}

	p.countFile(uploadType)

	if uploadType == UploadTypeUnsupported || (uploadType == UploadTypeDocument && p.indexer == nil) {
		p.log.Warn("dropping unsupported attachment",
			logger.StringField("file", file.Name),
			logger.StringField("mime_type", file.Mimetype))
		return nil, nil
	}

	shared, err := p.sharer.SharePublic(ctx, file.ID)
	if err != nil {
		return nil, fmt.Errorf("share public: %w", err)
	}
	defer func() {
		if rerr := p.sharer.RevokePublic(ctx, file.ID); rerr != nil {
			p.log.Error("failed to revoke public file access",
				logger.StringField("file", file.Name),
				logger.ErrorField(rerr))
		}
	}()

	data, err := p.sharer.Download(ctx, shared)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	switch uploadType {
	case UploadTypeImage:
		description, err := p.describer.DescribeImage(ctx, data, file.Mimetype, message)
		if err != nil {
			return nil, fmt.Errorf("describe image: %w", err)
		}
		return &Artifact{Name: file.Name, Type: UploadTypeImage, Content: description}, nil

	case UploadTypeAudio:
		transcript, err := p.transcriber.Transcribe(ctx, file.Name, file.Mimetype, data)
		if err != nil {
			return nil, fmt.Errorf("transcribe: %w", err)
		}
		result.SpeechMode = true
		return &Artifact{Name: file.Name, Type: UploadTypeAudio, Content: transcript}, nil

	case UploadTypeDocument:
		if result.StoreID == "" {
			storeID, err := p.indexer.CreateStore(ctx, "sparrow-"+file.ID)
			if err != nil {
				return nil, fmt.Errorf("create vector store: %w", err)
			}
			result.StoreID = storeID
		}
		if err := p.indexer.IndexFile(ctx, result.StoreID, file.Name, file.Mimetype, data); err != nil {
			return nil, fmt.Errorf("index document: %w", err)
		}
		result.IndexedCount++
		return &Artifact{Name: file.Name, Type: UploadTypeDocument}, nil
	}

	return nil, nil
}

var (
	imageExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	}
	audioExtensions = map[string]bool{
		".mp3": true, ".m4a": true, ".wav": true, ".webm": true, ".ogg": true, ".mp4": true,
	}
	documentExtensions = map[string]bool{
		".pdf": true, ".txt": true, ".md": true, ".doc": true, ".docx": true,
		".csv": true, ".json": true, ".html": true,
	}
)

// classify picks an upload type from the MIME type, falling back to the file
// extension when Slack reports a generic type.
func classify(file *slack.File) UploadType {
	switch {
	case strings.HasPrefix(file.Mimetype, "image/"):
		return UploadTypeImage
	case strings.HasPrefix(file.Mimetype, "audio/"):
		return UploadTypeAudio
	}

	ext := strings.ToLower(path.Ext(file.Name))
	switch {
	case imageExtensions[ext]:
		return UploadTypeImage
	case audioExtensions[ext]:
		return UploadTypeAudio
	case documentExtensions[ext]:
		return UploadTypeDocument
	}
	return UploadTypeUnsupported
}

func (p *Pipeline) countFile(t UploadType) {
	if p.metrics != nil {
		p.metrics.FilesProcessed.WithLabelValues(string(t)).Inc()
	}
}
