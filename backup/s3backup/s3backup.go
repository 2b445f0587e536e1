// Package s3backup implements model.BackupProvider against an S3-compatible
// object store, grounded on the teacher's storage package: the same
// config.LoadDefaultConfig + static-credentials + custom endpoint resolver
// pattern used for LakeFS/MinIO/Hetzner, and manager.Uploader for the
// actual put.
//
// A backup is the JSON-encoded event list plus a snapshot of the source
// ObjectDocument, read at the moment Backup is called and stored at one S3
// key per (object, stream). Restore downloads that object back and
// replays it through DocumentStore.Set and DataStore.Append/Recovery, so a
// restore puts both the document metadata and the stream contents back to
// how they looked when the backup was taken.
package s3backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/libfaes/eventstream/faeserrors"
	"github.com/libfaes/eventstream/model"
	"github.com/libfaes/eventstream/store"
)

// Config configures the S3-compatible endpoint this provider backs up to.
// Endpoint and UsePathStyle are only needed for non-AWS S3-compatible
// targets (MinIO, Hetzner Cloud Storage); leave Endpoint empty to talk to
// real AWS S3.
type Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// backupPayload is the JSON shape stored in S3: a snapshot of the
// document as it stood at backup time plus the full event list, so
// Restore can put both back.
type backupPayload struct {
	Document *model.ObjectDocument `json:"document"`
	Events   []model.Event         `json:"events"`
}

// Provider implements model.BackupProvider. It keeps an in-memory set of
// the BackupHandle IDs it has written (each ID is the backup's S3 key),
// since model.BackupProvider.Restore is only handed the BackupHandle;
// Restore refuses a handle that is not in that set.
type Provider struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string

	dataStore store.DataStore
	docStore  store.DocumentStore

	mu      sync.Mutex
	indexed map[string]struct{}
}

// New builds a Provider. dataStore and docStore are the source stream's
// collaborators backups are read from and, on Restore, replayed into.
// docStore may be nil, in which case Restore only replays events and
// leaves document metadata untouched.
func New(ctx context.Context, cfg Config, dataStore store.DataStore, docStore store.DocumentStore) (*Provider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				if cfg.Endpoint == "" {
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
				return aws.Endpoint{URL: cfg.Endpoint, SigningRegion: region, HostnameImmutable: true}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("s3backup: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Provider{
		client:    client,
		uploader:  manager.NewUploader(client),
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		dataStore: dataStore,
		docStore:  docStore,
		indexed:   make(map[string]struct{}),
	}, nil
}

// Backup implements model.BackupProvider. The interface carries no
// context, so the upload runs against context.Background() and is not
// bounded by any caller deadline.
func (p *Provider) Backup(sourceDocument *model.ObjectDocument, sourceStreamIdentifier string) (model.BackupHandle, error) {
	ctx := context.Background()

	events, err := p.dataStore.Read(ctx, sourceDocument, 0, nil)
	if err != nil {
		return model.BackupHandle{}, fmt.Errorf("s3backup: read source stream: %w", err)
	}

	docCopy := *sourceDocument
	payload, err := json.Marshal(backupPayload{Document: &docCopy, Events: events})
	if err != nil {
		return model.BackupHandle{}, fmt.Errorf("s3backup: marshal backup: %w", err)
	}

	key := fmt.Sprintf("%s/%s/%s.json", p.prefix, sourceDocument.ObjectId, sourceStreamIdentifier)
	if _, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload),
		Metadata: map[string]string{
			"eventCount": fmt.Sprintf("%d", len(events)),
		},
	}); err != nil {
		return model.BackupHandle{}, fmt.Errorf("s3backup: upload %s: %w", key, err)
	}

	handle := model.BackupHandle{ID: key, Location: fmt.Sprintf("s3://%s/%s", p.bucket, key), TakenAt: time.Now()}

	p.mu.Lock()
	p.indexed[handle.ID] = struct{}{}
	p.mu.Unlock()

	return handle, nil
}

// Restore downloads the backed-up event list and replays it into the
// source stream: it removes whatever is currently there via
// store.Recovery and re-appends the backed-up events from version 0. The
// DataStore configured on Provider must implement store.Recovery, or
// Restore fails with faeserrors.ErrNotImplemented.
func (p *Provider) Restore(handle model.BackupHandle) error {
	ctx := context.Background()

	p.mu.Lock()
	_, ok := p.indexed[handle.ID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("s3backup: no backup indexed for handle %q", handle.ID)
	}

	result, err := p.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(handle.ID)})
	if err != nil {
		return fmt.Errorf("s3backup: download %s: %w", handle.ID, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("s3backup: read backup body: %w", err)
	}
	var payload backupPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("s3backup: unmarshal backup: %w", err)
	}
	doc := payload.Document

	recovery, ok := p.dataStore.(store.Recovery)
	if !ok {
		return fmt.Errorf("s3backup: %w: configured data store does not support replay", faeserrors.ErrNotImplemented)
	}

	current, err := p.dataStore.Read(ctx, doc, 0, nil)
	if err != nil {
		return fmt.Errorf("s3backup: read current stream state: %w", err)
	}
	if len(current) > 0 {
		if _, err := recovery.RemoveEventsForFailedCommit(ctx, doc, 0, len(current)-1); err != nil {
			return fmt.Errorf("s3backup: clear stream before replay: %w", err)
		}
	}
	if len(payload.Events) > 0 {
		if err := p.dataStore.Append(ctx, doc, payload.Events); err != nil {
			return fmt.Errorf("s3backup: replay backed-up events: %w", err)
		}
	}

	if p.docStore == nil {
		return nil
	}
	current2, err := p.docStore.Get(ctx, doc.ObjectName, doc.ObjectId)
	if err != nil {
		return fmt.Errorf("s3backup: read current document before restore: %w", err)
	}
	restored := *doc
	if current2 != nil {
		restored.Version = current2.Version
	}
	if err := p.docStore.Set(ctx, &restored); err != nil {
		return fmt.Errorf("s3backup: restore document metadata: %w", err)
	}
	return nil
}
