// Пакет objstore — публикация фидов в S3-совместимое объектное хранилище.
// Объекты загружаются с ACL public-read и Content-Type application/xml,
// публичная ссылка строится из публичного endpoint или из endpoint/bucket.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config — параметры подключения к объектному хранилищу.
type Config struct {
	// Endpoint — host[:port] без схемы
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// PublicEndpoint — базовый URL для публичных ссылок (пусто: endpoint/bucket)
	PublicEndpoint string
	// Prefix — префикс ключей объектов, например "feeds/"
	Prefix string
}

// Client — клиент публикации документов.
type Client struct {
	mc     *minio.Client
	cfg    Config
	logger *slog.Logger
}

// New создаёт клиент. Сетевых запросов не выполняет.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("создание S3-клиента: %w", err)
	}
	return &Client{
		mc:     mc,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "objstore")),
	}, nil
}

// ObjectKey возвращает ключ объекта с префиксом.
func (c *Client) ObjectKey(name string) string {
	if c.cfg.Prefix == "" {
		return name
	}
	return path.Join(c.cfg.Prefix, name)
}

// PublicURL возвращает публичную ссылку на объект.
func (c *Client) PublicURL(key string) string {
	if c.cfg.PublicEndpoint != "" {
		return strings.TrimRight(c.cfg.PublicEndpoint, "/") + "/" + key
	}
	scheme := "http"
	if c.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, c.cfg.Endpoint, c.cfg.Bucket, key)
}

// Upload загружает документ под именем name и возвращает публичную ссылку.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (string, error) {
	key := c.ObjectKey(name)
	_, err := c.mc.PutObject(ctx, c.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  "application/xml",
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		return "", fmt.Errorf("загрузка объекта %s: %w", key, err)
	}

	url := c.PublicURL(key)
	c.logger.Info("Объект загружен",
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.String("url", url),
	)
	return url, nil
}

// Delete удаляет объект. Отсутствие объекта ошибкой не считается.
func (c *Client) Delete(ctx context.Context, name string) error {
	key := c.ObjectKey(name)
	if err := c.mc.RemoveObject(ctx, c.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("удаление объекта %s: %w", key, err)
	}
	c.logger.Info("Объект удалён", slog.String("key", key))
	return nil
}

// CheckReady проверяет доступность бакета для readiness probe.
func (c *Client) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ok, err := c.mc.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return "fail", fmt.Sprintf("объектное хранилище недоступно: %v", err)
	}
	if !ok {
		return "fail", fmt.Sprintf("бакет %s не найден", c.cfg.Bucket)
	}
	return "ok", "бакет доступен"
}
