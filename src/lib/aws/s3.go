package aws

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned when the requested key is not in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// S3Download writes bucket/key to dest unless dest already exists.
func S3Download(ctx context.Context, cfg aws.Config, bucket, key, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		log.Printf("[S3] %s already present\n", dest)
		return nil
	}
	client := s3.NewFromConfig(cfg)
	object, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return ErrObjectNotFound
		}
		log.Printf("[S3] Error retrieving object: %s\n", err.Error())
		return err
	}
	defer object.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return err
	}
	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		log.Printf("Could not create file %s: %s\n", dest, err.Error())
		return err
	}
	defer file.Close()
	if _, err := io.Copy(file, object.Body); err != nil {
		log.Printf("Error writing to file: %s\n", err.Error())
		return err
	}
	log.Printf("[S3] downloaded %s to %s\n", key, dest)
	return nil
}
