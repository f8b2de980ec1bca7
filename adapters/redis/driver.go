// Package redis provides a Redis storage driver.
//
// Documents are stored as JSON strings under "{schema_path}:{identity}" and
// index sets as Redis sets under "{schema_path}:indexes:{attr}:{value}".
// The index keys a document is a member of are kept in the set
// "{schema_path}:{identity}:indexes".
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/artpar/datalayer/ports"
	"github.com/redis/go-redis/v9"
)

// DefaultRetries bounds optimistic transaction retries in Save.
const DefaultRetries = 5

// Options configures a Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a client and pings the server.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

// Driver implements ports.Driver using Redis.
//
// Save watches every index key it checks, so a concurrent writer to the
// same key aborts the transaction and the check is retried.
type Driver struct {
	client  redis.UniversalClient
	retries int
}

// NewDriver creates a driver on client.
func NewDriver(client redis.UniversalClient) *Driver {
	return &Driver{client: client, retries: DefaultRetries}
}

// Save checks uniqueness and writes docs and entries in one MULTI block.
func (d *Driver) Save(ctx context.Context, docs []ports.Document, entries []ports.IndexEntry) ([]string, error) {
	bodies := make([][]byte, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		b, err := json.Marshal(doc.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", doc.Key(), err)
		}
		bodies[i] = b
		ids[i] = doc.Identity
	}

	var watched []string
	for _, e := range entries {
		if ports.Indexed(e) {
			watched = append(watched, e.Key())
		}
	}
	for _, doc := range docs {
		watched = append(watched, ownedKey(doc.Key()))
	}

	save := func(tx *redis.Tx) error {
		members := func(key string) ([]string, error) {
			return tx.SMembers(ctx, key).Result()
		}
		if err := ports.CheckUnique(entries, members); err != nil {
			return err
		}

		previous := make([][]string, len(docs))
		for i, doc := range docs {
			keys, err := tx.SMembers(ctx, ownedKey(doc.Key())).Result()
			if err != nil {
				return fmt.Errorf("read indexes of %s: %w", doc.Key(), err)
			}
			previous[i] = keys
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, doc := range docs {
				for _, key := range previous[i] {
					pipe.SRem(ctx, key, doc.Identity)
				}
				pipe.Del(ctx, ownedKey(doc.Key()))
			}
			for _, e := range entries {
				if ports.Indexed(e) {
					pipe.SAdd(ctx, e.Key(), e.Identity)
					pipe.SAdd(ctx, ownedKey(ports.DocumentKey(e.SchemaPath, e.Identity)), e.Key())
				}
			}
			for i, doc := range docs {
				pipe.Set(ctx, doc.Key(), bodies[i], 0)
			}
			return nil
		})
		return err
	}

	for range d.retries {
		err := d.client.Watch(ctx, save, watched...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return ids, nil
	}

	return nil, fmt.Errorf("save: %w after %d attempts", redis.TxFailedErr, d.retries)
}

// FindByRef returns the document stored under ref.
func (d *Driver) FindByRef(ctx context.Context, ref string) (map[string]any, error) {
	raw, err := d.client.Get(ctx, strings.TrimPrefix(ref, ports.RefPrefix)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ports.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", ref, err)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return body, nil
}

// FindIDBy returns the sorted members of "{prefix}:{value}" matching version.
func (d *Driver) FindIDBy(ctx context.Context, prefix, value, version string) ([]string, error) {
	all, err := d.client.SMembers(ctx, prefix+":"+value).Result()
	if err != nil {
		return nil, fmt.Errorf("query index %s:%s: %w", prefix, value, err)
	}
	slices.Sort(all)

	ids := make([]string, 0, len(all))
	for _, id := range all {
		if ports.MatchVersion(id, version) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Delete removes documents and their index memberships.
func (d *Driver) Delete(ctx context.Context, refs []string) error {
	for _, ref := range refs {
		key := strings.TrimPrefix(ref, ports.RefPrefix)
		_, identity, ok := ports.SplitKey(key)
		if !ok {
			continue
		}

		indexes, err := d.client.SMembers(ctx, ownedKey(key)).Result()
		if err != nil {
			return fmt.Errorf("read indexes of %s: %w", key, err)
		}

		_, err = d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, idx := range indexes {
				pipe.SRem(ctx, idx, identity)
			}
			pipe.Del(ctx, key, ownedKey(key))
			return nil
		})
		if err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

func ownedKey(docKey string) string {
	return docKey + ":indexes"
}

// Ensure interface compliance.
var _ ports.Driver = (*Driver)(nil)
