// Package storage adapta MinIO como object store de artefactos: XML firmados
// y autorizados, RIDE en PDF y certificados .p12.
package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/crisanro/kipu-core/internal/application/facturacion"
	"github.com/crisanro/kipu-core/pkg/config"
)

var _ facturacion.ArtifactStore = (*MinioStore)(nil)

// MinioStore implementa facturacion.ArtifactStore. El cliente es thread-safe
// y se comparte entre handlers y worker.
type MinioStore struct {
	client *minio.Client

	mu      sync.Mutex
	buckets map[string]bool // buckets ya verificados/creados
}

// NewMinioStore construye el adaptador y verifica la conexión.
func NewMinioStore(cfg config.MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Addr(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: crear cliente MinIO: %w", err)
	}
	return &MinioStore{client: client, buckets: make(map[string]bool)}, nil
}

// Put sube el objeto, creando el bucket en el primer uso, y devuelve la ruta
// canónica "<bucket>/<key>".
func (s *MinioStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := s.asegurarBucket(ctx, bucket); err != nil {
		return "", err
	}
	_, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s/%s: %w", bucket, key, err)
	}
	return bucket + "/" + key, nil
}

// Get devuelve un stream del objeto.
func (s *MinioStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s/%s: %w", bucket, key, err)
	}
	// GetObject es lazy: forzar la primera lectura de metadata para detectar
	// objetos inexistentes aquí y no en el primer Read del caller.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("storage: stat %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

// Delete elimina el objeto.
func (s *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Presign genera una URL firmada de descarga con vigencia ttl.
func (s *MinioStore) Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("storage: presign %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}

func (s *MinioStore) asegurarBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets[bucket] {
		return nil
	}
	existe, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("storage: verificar bucket %s: %w", bucket, err)
	}
	if !existe {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("storage: crear bucket %s: %w", bucket, err)
		}
	}
	s.buckets[bucket] = true
	return nil
}
