package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mindnote/internal/common"
	sc "github.com/dmitrijs2005/mindnote/internal/server/config"
	"github.com/dmitrijs2005/mindnote/internal/server/models"
	"github.com/dmitrijs2005/mindnote/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const presignValidity = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// MediaService hands out presigned object-storage URLs for image and file
// items and tracks their upload state.
type MediaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	now         func() time.Time
}

func NewMediaService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config) *MediaService {
	return &MediaService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		now:         time.Now,
	}
}

// GetRandomStorageKey builds a date-partitioned object key for a new blob.
func GetRandomStorageKey(d time.Time) string {
	return fmt.Sprintf("users/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *MediaService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

func (s *MediaService) presignedPutURL(ctx context.Context, key string) (string, error) {
	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}
	bucket := s.config.S3Bucket
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignValidity))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func (s *MediaService) presignedGetURL(ctx context.Context, key string) (string, error) {
	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}
	bucket := s.config.S3Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignValidity))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// PresignUpload registers a pending blob for itemID and returns the URL the
// client must PUT the bytes to. Re-presigning an item replaces its key.
func (s *MediaService) PresignUpload(ctx context.Context, userID, workspaceID, itemID string) (string, error) {
	if workspaceID == "" || itemID == "" {
		return "", fmt.Errorf("%w: workspace and item ids are required", common.ErrorValidation)
	}

	key := GetRandomStorageKey(s.now())
	url, err := s.presignedPutURL(ctx, key)
	if err != nil {
		return "", err
	}

	version, err := s.repomanager.Users(s.db).CurrentVersion(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("error reading version: %w", err)
	}

	f := &models.File{
		ItemID:       itemID,
		UserID:       userID,
		WorkspaceID:  workspaceID,
		StorageKey:   key,
		UploadStatus: models.UploadPending,
		Version:      version,
	}
	if err := s.repomanager.Files(s.db).CreateOrUpdate(ctx, f); err != nil {
		return "", fmt.Errorf("error registering file: %w", err)
	}
	return url, nil
}

// MarkUploaded confirms that the client finished the PUT for itemID.
func (s *MediaService) MarkUploaded(ctx context.Context, userID, itemID string) error {
	if err := s.repomanager.Files(s.db).MarkUploaded(ctx, userID, itemID); err != nil {
		return fmt.Errorf("error updating file: %w", err)
	}
	return nil
}

// PresignDownload returns a GET URL for an uploaded blob. Blobs still
// pending are reported as not found.
func (s *MediaService) PresignDownload(ctx context.Context, userID, itemID string) (string, error) {
	f, err := s.repomanager.Files(s.db).GetByItemID(ctx, userID, itemID)
	if err != nil {
		return "", fmt.Errorf("error getting file: %w", err)
	}
	if f.UploadStatus != models.UploadCompleted {
		return "", fmt.Errorf("file upload %w", common.ErrorNotFound)
	}
	return s.presignedGetURL(ctx, f.StorageKey)
}
