// Package inventory records the provider identifiers of a cluster so later
// runs and operators can see what was created without querying the cloud.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minisc/minisc/internal/cloud"
)

const keyPrefix = "clusters/"

// Record is the persisted view of one cluster.
type Record struct {
	ClusterTag      string    `yaml:"cluster_tag"`
	Provider        string    `yaml:"provider"`
	Region          string    `yaml:"region"`
	State           string    `yaml:"state"`
	NetworkID       string    `yaml:"network_id,omitempty"`
	SubnetID        string    `yaml:"subnet_id,omitempty"`
	RouteTableID    string    `yaml:"route_table_id,omitempty"`
	GatewayID       string    `yaml:"gateway_id,omitempty"`
	SecurityGroupID string    `yaml:"security_group_id,omitempty"`
	HeadInstanceID  string    `yaml:"head_instance_id,omitempty"`
	HeadAddress     string    `yaml:"head_address,omitempty"`
	WorkerIDs       []string  `yaml:"worker_ids,omitempty"`
	Reason          string    `yaml:"reason,omitempty"`
	UpdatedAt       time.Time `yaml:"updated_at"`
}

// ObjectStore is the subset of the S3 client the store needs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Store reads and writes records as YAML objects under clusters/<tag>.yaml.
type Store struct {
	objects ObjectStore
	bucket  string
	now     func() time.Time
}

// NewStore returns a store writing to bucket.
func NewStore(objects ObjectStore, bucket string) *Store {
	return &Store{objects: objects, bucket: bucket, now: time.Now}
}

// Key returns the object key for a cluster tag.
func Key(tag string) string {
	return keyPrefix + tag + ".yaml"
}

// Save writes rec, stamping UpdatedAt.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.ClusterTag == "" {
		return errors.New("inventory record needs a cluster tag")
	}
	rec.UpdatedAt = s.now().UTC()

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode inventory record: %w", err)
	}
	if err := s.objects.PutObject(ctx, s.bucket, Key(rec.ClusterTag), data); err != nil {
		return fmt.Errorf("failed to save inventory for %s: %w", rec.ClusterTag, err)
	}
	return nil
}

// Load reads the record for tag. A missing record matches cloud.ErrNotFound.
func (s *Store) Load(ctx context.Context, tag string) (*Record, error) {
	data, err := s.objects.GetObject(ctx, s.bucket, Key(tag))
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory for %s: %w", tag, err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode inventory for %s: %w", tag, err)
	}
	return &rec, nil
}

// Update loads the record for tag (or starts a new one), applies fn and
// saves the result.
func (s *Store) Update(ctx context.Context, tag string, fn func(*Record)) error {
	rec, err := s.Load(ctx, tag)
	switch {
	case errors.Is(err, cloud.ErrNotFound):
		rec = &Record{ClusterTag: tag}
	case err != nil:
		return err
	}
	fn(rec)
	rec.ClusterTag = tag
	return s.Save(ctx, *rec)
}

// Delete removes the record for tag. Deleting a missing record succeeds.
func (s *Store) Delete(ctx context.Context, tag string) error {
	if err := s.objects.DeleteObject(ctx, s.bucket, Key(tag)); err != nil {
		return fmt.Errorf("failed to delete inventory for %s: %w", tag, err)
	}
	return nil
}

// List returns the tags of all recorded clusters, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys, err := s.objects.ListObjects(ctx, s.bucket, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}

	tags := make([]string, 0, len(keys))
	for _, k := range keys {
		name := path.Base(k)
		if tag, ok := strings.CutSuffix(name, ".yaml"); ok && tag != "" {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags, nil
}
