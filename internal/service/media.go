package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"loomgraph/internal/config"
	"loomgraph/internal/model"
)

// presignTTL is how long a presigned post-media upload URL stays valid.
const presignTTL = 15 * time.Minute

var mediaExtensions = map[string]string{
	model.ContentTypeJPEG: ".jpg",
	model.ContentTypePNG:  ".png",
	model.ContentTypeGIF:  ".gif",
	model.ContentTypeWebP: ".webp",
	model.ContentTypeMP4:  ".mp4",
}

// MediaService handles media uploads to Cloudflare R2. Avatars are resized
// server-side; post media goes straight from the client via presigned URLs.
type MediaService struct {
	s3Client  *s3.Client
	presigner *s3.PresignClient
	bucket    string
	publicURL string
}

// NewMediaService constructs an S3-compatible client for Cloudflare R2.
func NewMediaService(ctx context.Context, cfg *config.Config) (*MediaService, error) {
	if cfg.R2AccountID == "" || cfg.R2AccessKeyID == "" || cfg.R2SecretAccessKey == "" || cfg.R2BucketName == "" || cfg.R2PublicURL == "" {
		return nil, fmt.Errorf("missing Cloudflare R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &MediaService{
		s3Client:  s3Client,
		presigner: s3.NewPresignClient(s3Client),
		bucket:    cfg.R2BucketName,
		publicURL: strings.TrimSuffix(cfg.R2PublicURL, "/"),
	}, nil
}

// UploadAvatar enforces size/type, normalizes to 200x200 JPEG, and uploads to R2.
func (s *MediaService) UploadAvatar(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error) {
	data, _, err := readAndValidateImage(file, header, model.MaxAvatarSizeBytes)
	if err != nil {
		return nil, err
	}

	jpegBytes, err := resizeToJPEG(data, model.AvatarWidth, model.AvatarHeight, 85)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", model.AvatarFolder, uuid.NewString(), model.AvatarExt)

	if err := s.putObject(ctx, key, jpegBytes, model.ContentTypeJPEG, model.AvatarCacheControl); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s", s.publicURL, key)
	return &model.UploadResult{URL: url, Key: key}, nil
}

// PresignPostUpload hands out a short-lived PUT URL so the client uploads
// post media to R2 directly instead of proxying bytes through the API.
func (s *MediaService) PresignPostUpload(ctx context.Context, authorUID string, req *model.PresignPostUploadRequest) (*model.PresignPostUploadResponse, error) {
	contentType := normalizeContentType(req.ContentType)
	if !model.IsAllowedPostMediaType(contentType) {
		return nil, model.ErrInvalidMediaType
	}
	if req.FileSize > model.MaxPostMediaSize {
		return nil, model.ErrFileTooLarge
	}

	key := fmt.Sprintf("%s/%s/%s%s", model.PostMediaFolder, authorUID, uuid.NewString(), mediaExtensions[contentType])

	presigned, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(presignTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &model.PresignPostUploadResponse{
		UploadURL:  presigned.URL,
		PublicURL:  fmt.Sprintf("%s/%s", s.publicURL, key),
		Key:        key,
		ExpiresInS: int(presignTTL.Seconds()),
	}, nil
}

// PresignPostUploadBatch presigns every item or none. A single bad item
// fails the whole batch so clients never upload half an attachment set.
func (s *MediaService) PresignPostUploadBatch(ctx context.Context, authorUID string, req *model.PresignPostUploadBatchRequest) (*model.PresignPostUploadBatchResponse, error) {
	if len(req.Items) == 0 {
		return nil, model.ErrNoMediaItems
	}
	if len(req.Items) > model.MaxPostMediaCount {
		return nil, model.ErrTooManyMediaItems
	}

	items := make([]model.PresignPostUploadResponse, 0, len(req.Items))
	for i := range req.Items {
		item, err := s.PresignPostUpload(ctx, authorUID, &req.Items[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	return &model.PresignPostUploadBatchResponse{Items: items}, nil
}

// readAndValidateImage loads the upload into memory with size and type checks.
func readAndValidateImage(file multipart.File, header *multipart.FileHeader, maxSize int64) ([]byte, string, error) {
	if header.Size > maxSize {
		return nil, "", model.ErrFileTooLarge
	}

	limitedReader := io.LimitReader(file, maxSize+1)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", model.ErrFileTooLarge
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" && len(data) > 0 {
		contentType = http.DetectContentType(data[:min(len(data), 512)])
	}
	contentType = normalizeContentType(contentType)
	if !model.IsAllowedImageType(contentType) {
		return nil, "", model.ErrInvalidImageType
	}

	return data, contentType, nil
}

// normalizeContentType strips parameters like "; charset=binary" and lowercases.
func normalizeContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// resizeToJPEG centers/crops to target size and encodes as JPEG.
func resizeToJPEG(data []byte, width, height, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	resized := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}

	return buf.Bytes(), nil
}

// putObject uploads bytes to R2 with metadata.
func (s *MediaService) putObject(ctx context.Context, key string, body []byte, contentType, cacheControl string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(cacheControl),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to r2: %w", err)
	}
	return nil
}

// KeyFromPublicURL maps a public media URL back to its object key.
// Returns "" for URLs that don't point at our bucket.
func (s *MediaService) KeyFromPublicURL(url string) string {
	prefix := s.publicURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

// DeleteObject removes an object by key. Callers should ensure the key is not the shared default.
func (s *MediaService) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from r2: %w", err)
	}
	return nil
}
